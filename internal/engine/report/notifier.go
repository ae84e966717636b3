package report

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/tokens"
)

// Sender delivers a rendered HTML report.
type Sender interface {
	Send(ctx context.Context, subject, htmlBody string) error
}

type Notifier struct {
	renderer *Renderer
	sender   Sender
}

func NewNotifier(renderer *Renderer, sender Sender) *Notifier {
	return &Notifier{renderer: renderer, sender: sender}
}

func (n *Notifier) Notify(ctx context.Context, analysis *tokens.Analysis, includeAll bool) error {
	summary := analysis.Summary()
	if !includeAll && summary.ProblematicCount == 0 {
		log.Info().Msg("no expiring tokens found, skipping email notification")
		return nil
	}

	body, err := n.renderer.Render(ctx, analysis)
	if err != nil {
		return err
	}

	subject := Subject(summary)
	if err := n.sender.Send(ctx, subject, body); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	log.Info().Str("subject", subject).Msg("email notification sent")
	return nil
}
