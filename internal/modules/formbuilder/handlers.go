package formbuilder

import (
	"context"
	"net/http"
	"strings"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/mail"
	"github.com/mx-space/widgy/internal/pkg/markdown"
	"go.uber.org/zap"
)

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Builtins executes the handler kinds shipped with the form builder.
type Builtins struct {
	Submitter *Submitter
	Mailer    Mailer
	// From is the sender address of handler mail.
	From   string
	Site   string
	Logger *zap.Logger
}

func (b *Builtins) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// Install registers every built-in executor on p.
func (b *Builtins) Install(p *Pipeline) {
	p.Register(models.KindSaveDataHandler, b.saveData)
	p.Register(models.KindEmailSuccessHandler, b.email)
	p.Register(models.KindRedirectResponseHandler, redirect)
	p.Register(models.KindMessageResponseHandler, message)
}

func (b *Builtins) saveData(ctx context.Context, sub *Submission, _ *widgy.Node) (*Response, error) {
	stored, err := b.Submitter.Submit(ctx, sub.Form, sub.Bound.Cleaned)
	if err != nil {
		return nil, err
	}
	sub.Stored = append(sub.Stored, stored)
	return nil, nil
}

func (b *Builtins) email(ctx context.Context, sub *Submission, n *widgy.Node) (*Response, error) {
	h := n.Content.(*models.EmailSuccessHandlerModel)
	to := splitAddresses(h.To)
	if len(to) == 0 {
		b.log().Warn("email handler has no recipients, skipped",
			zap.Uint("node", n.ID),
			zap.Uint("form_node", sub.Form.ID),
		)
		return nil, nil
	}
	body, err := markdown.Render(h.Content)
	if err != nil {
		return nil, err
	}
	html, err := mail.Layout(b.Site, body)
	if err != nil {
		return nil, err
	}
	return nil, b.Mailer.Send(ctx, mail.Message{
		From:    b.From,
		To:      to,
		Subject: h.Subject,
		HTML:    html,
	})
}

func redirect(_ context.Context, _ *Submission, n *widgy.Node) (*Response, error) {
	h := n.Content.(*models.RedirectResponseHandlerModel)
	return Redirect(h.URL), nil
}

func message(_ context.Context, _ *Submission, n *widgy.Node) (*Response, error) {
	h := n.Content.(*models.MessageResponseHandlerModel)
	html, err := markdown.Render(h.Content)
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, HTML: html}, nil
}

func splitAddresses(raw string) []string {
	var out []string
	for _, a := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
