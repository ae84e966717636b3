package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/monitor"
	"tokenaudit/internal/platform/audit"
	"tokenaudit/internal/platform/config"
)

const EventRunCompleted = "token_audit.completed"

const (
	HeaderSignature = "X-Tokenaudit-Signature"
	HeaderEvent     = "X-Tokenaudit-Event"
	HeaderDelivery  = "X-Tokenaudit-Delivery"
)

type Event struct {
	ID        string     `json:"id"`
	Event     string     `json:"event"`
	Timestamp int64      `json:"timestamp"`
	GitLabURL string     `json:"gitlab_url"`
	Data      *audit.Run `json:"data"`
}

// Dispatcher posts a signed summary of every finished run to one URL.
// Deliveries are attempted once.
type Dispatcher struct {
	cfg       config.WebhookConfig
	gitlabURL string
	client    *http.Client
}

func NewDispatcher(cfg config.WebhookConfig, gitlabURL string) *Dispatcher {
	client := cleanhttp.DefaultClient()
	client.Timeout = cfg.Timeout
	return &Dispatcher{cfg: cfg, gitlabURL: gitlabURL, client: client}
}

// Record delivers the run-completed event for res.
func (d *Dispatcher) Record(ctx context.Context, res *monitor.Result) error {
	event := &Event{
		ID:        uuid.New().String(),
		Event:     EventRunCompleted,
		Timestamp: res.FinishedAt.Unix(),
		GitLabURL: d.gitlabURL,
		Data:      audit.FromResult(res),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.Event)
	req.Header.Set(HeaderDelivery, event.ID)
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(d.cfg.Secret, payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("deliver webhook: HTTP %d", resp.StatusCode)
	}

	log.Info().Str("delivery", event.ID).Str("run_id", res.ID).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}
