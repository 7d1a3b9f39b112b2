package payments

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// ProjectIDHeader tags forwarded results with the owning project.
// Deliveries are not signed.
const ProjectIDHeader = "x-zapstack-project-id"

type Deliverer interface {
	Deliver(ctx context.Context, url, projectID string, payload []byte) error
}

// WebhookSender POSTs results to tenant webhooks.
type WebhookSender struct {
	httpClient *http.Client
}

func NewWebhookSender(httpClient *http.Client) *WebhookSender {
	return &WebhookSender{httpClient: httpClient}
}

func (s *WebhookSender) Deliver(ctx context.Context, url, projectID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ProjectIDHeader, projectID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
