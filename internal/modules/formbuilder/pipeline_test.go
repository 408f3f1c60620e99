package formbuilder

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	ran  []uint
	fail map[uint]error
}

func (r *recorder) handler(resp func(n *widgy.Node) *Response) HandlerFunc {
	return func(_ context.Context, _ *Submission, n *widgy.Node) (*Response, error) {
		r.ran = append(r.ran, n.ID)
		if err := r.fail[n.ID]; err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, nil
		}
		return resp(n), nil
	}
}

func recordingPipeline(r *recorder) *Pipeline {
	p := NewPipeline(nil)
	p.Register(models.KindSaveDataHandler, r.handler(nil))
	p.Register(models.KindEmailSuccessHandler, r.handler(nil))
	p.Register(models.KindRedirectResponseHandler, r.handler(func(n *widgy.Node) *Response {
		return Redirect(n.Content.(*models.RedirectResponseHandlerModel).URL)
	}))
	return p
}

func twoButtonForm() *widgy.Node {
	return memNode(1, &models.FormModel{},
		memNode(2, textInput("Name", true)),
		memNode(3, &models.SubmitButtonModel{},
			memNode(4, &models.SaveDataHandlerModel{}),
			memNode(5, &models.RedirectResponseHandlerModel{URL: "/first"}),
		),
		memNode(6, &models.SubmitButtonModel{},
			memNode(7, &models.EmailSuccessHandlerModel{}),
			memNode(8, &models.RedirectResponseHandlerModel{URL: "/second"}),
		),
	)
}

func TestPipelineRunsHandlersInDocumentOrder(t *testing.T) {
	r := &recorder{}
	resp, err := recordingPipeline(r).Execute(context.Background(), &Submission{Form: twoButtonForm()})
	require.NoError(t, err)

	assert.Equal(t, []uint{4, 5, 7, 8}, r.ran)
	require.NotNil(t, resp)
	assert.Equal(t, "/second", resp.Location, "last response handler wins")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
}

func TestPipelineWithoutResponseHandler(t *testing.T) {
	form := memNode(1, &models.FormModel{},
		memNode(2, &models.SubmitButtonModel{}, memNode(3, &models.SaveDataHandlerModel{})),
	)
	resp, err := recordingPipeline(&recorder{}).Execute(context.Background(), &Submission{Form: form})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	boom := errors.New("smtp down")
	r := &recorder{fail: map[uint]error{7: boom}}
	resp, err := recordingPipeline(r).Execute(context.Background(), &Submission{Form: twoButtonForm()})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, resp)
	assert.Equal(t, []uint{4, 5, 7}, r.ran)
}

func TestPipelineRequiresExecutor(t *testing.T) {
	form := memNode(1, &models.FormModel{},
		memNode(2, &models.SubmitButtonModel{}, memNode(3, &models.MessageResponseHandlerModel{})),
	)
	_, err := recordingPipeline(&recorder{}).Execute(context.Background(), &Submission{Form: form})
	assert.ErrorContains(t, err, string(models.KindMessageResponseHandler))
}

func TestBuiltinEmailAndMessage(t *testing.T) {
	mailer := &recordingMailer{}
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPipeline(nil)
	b := &Builtins{Mailer: mailer, From: "forms@example.com", Site: "Example", Logger: zap.New(core)}
	b.Install(p)

	form := memNode(1, &models.FormModel{},
		memNode(2, &models.SubmitButtonModel{},
			memNode(3, &models.EmailSuccessHandlerModel{
				To: "a@example.com; b@example.com, ", Subject: "New entry", Content: "**thanks**",
			}),
			memNode(4, &models.EmailSuccessHandlerModel{To: " "}),
			memNode(5, &models.MessageResponseHandlerModel{Content: "Thanks *a lot*"}),
		),
	)
	resp, err := p.Execute(context.Background(), &Submission{Form: form})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1, "handler without recipients sends nothing")
	skipped := logs.FilterMessage("email handler has no recipients, skipped").All()
	require.Len(t, skipped, 1)
	assert.EqualValues(t, 4, skipped[0].ContextMap()["node"])
	msg := mailer.sent[0]
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, msg.To)
	assert.Equal(t, "forms@example.com", msg.From)
	assert.Equal(t, "New entry", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>thanks</strong>")

	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.HTML), "<em>a lot</em>")
}

func TestBuiltinEmailFailureAborts(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("refused")}
	p := NewPipeline(nil)
	(&Builtins{Mailer: mailer}).Install(p)

	form := memNode(1, &models.FormModel{},
		memNode(2, &models.SubmitButtonModel{},
			memNode(3, &models.EmailSuccessHandlerModel{To: "a@example.com"}),
			memNode(4, &models.RedirectResponseHandlerModel{URL: "/thanks"}),
		),
	)
	resp, err := p.Execute(context.Background(), &Submission{Form: form})
	assert.ErrorContains(t, err, "refused")
	assert.Nil(t, resp)
}
