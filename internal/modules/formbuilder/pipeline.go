package formbuilder

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Response is what a response handler answers a submission with. Either
// Location (a redirect) or HTML is set.
type Response struct {
	Status   int           `json:"status"`
	Location string        `json:"location,omitempty"`
	HTML     template.HTML `json:"html,omitempty"`
}

// Redirect builds a 303 response.
func Redirect(url string) *Response {
	return &Response{Status: http.StatusSeeOther, Location: url}
}

// Submission is the input shared by every handler of one submission.
type Submission struct {
	Request *http.Request
	Form    *widgy.Node
	Bound   *BoundForm
	// Stored collects the rows written by save handlers during the run.
	Stored []*models.FormSubmissionModel
}

// HandlerFunc executes one handler node. Success handlers return a nil Response.
type HandlerFunc func(ctx context.Context, sub *Submission, n *widgy.Node) (*Response, error)

// Pipeline dispatches the handlers of a form in document order.
type Pipeline struct {
	handlers map[models.ContentKind]HandlerFunc
	logger   *zap.Logger
}

func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{handlers: map[models.ContentKind]HandlerFunc{}, logger: logger}
}

// Register sets the executor of a handler kind.
func (p *Pipeline) Register(kind models.ContentKind, fn HandlerFunc) {
	p.handlers[kind] = fn
}

// Execute runs every success and response handler under the form. The result
// of the last response handler is returned; success handler results are
// dropped. The first handler error aborts the run.
func (p *Pipeline) Execute(ctx context.Context, sub *Submission) (*Response, error) {
	var (
		resp      *Response
		responded uint
	)
	for _, n := range sub.Form.DepthFirst() {
		cat := n.Category()
		if !cat.IsSuccessHandler() {
			continue
		}
		fn, ok := p.handlers[n.Kind()]
		if !ok {
			return nil, fmt.Errorf("no executor for handler %s", n.Kind())
		}
		out, err := fn(ctx, sub, n)
		if err != nil {
			metrics.HandlerRuns.WithLabelValues(string(n.Kind()), "error").Inc()
			p.logger.Error("form handler failed",
				zap.Uint("form_node", sub.Form.ID),
				zap.Uint("handler_node", n.ID),
				zap.String("kind", string(n.Kind())),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%s handler %d: %w", n.Kind(), n.ID, err)
		}
		metrics.HandlerRuns.WithLabelValues(string(n.Kind()), "ok").Inc()
		if !cat.IsResponseHandler() {
			continue
		}
		if responded != 0 {
			p.logger.Warn("more than one response handler in form",
				zap.Uint("form_node", sub.Form.ID),
				zap.Uint("previous", responded),
				zap.Uint("current", n.ID),
			)
		}
		resp, responded = out, n.ID
	}
	return resp, nil
}
