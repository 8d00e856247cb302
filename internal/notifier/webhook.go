package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/utafrali/storefront/pkg/httpclient"
)

// WebhookMailer hands messages to an HTTP mail relay as JSON.
type WebhookMailer struct {
	client httpclient.Doer
	url    string
}

// NewWebhookMailer posts to url through client. Pass a breaker-wrapped
// client so a failing relay is not hammered by consumer retries.
func NewWebhookMailer(client httpclient.Doer, url string) *WebhookMailer {
	return &WebhookMailer{client: client, url: url}
}

func (m *WebhookMailer) Name() string {
	return "webhook"
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m *WebhookMailer) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(webhookPayload(msg))
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("post mail: %w", err)
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "mail relay")
	}
	_ = resp.Body.Close()
	return nil
}
