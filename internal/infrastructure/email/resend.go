package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paperfeeder/internal/ports"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendDeliverer ships the digest through the Resend email API.
type ResendDeliverer struct {
	endpoint string
	apiKey   string
	from     string
	to       []string
	client   *http.Client
}

var _ ports.Deliverer = (*ResendDeliverer)(nil)

// NewResendDeliverer registers credentials and addressing. Multiple
// recipients are comma-separated in to.
func NewResendDeliverer(apiKey, from, to string) *ResendDeliverer {
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return &ResendDeliverer{
		endpoint: resendEndpoint,
		apiKey:   apiKey,
		from:     from,
		to:       recipients,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver posts the HTML digest as one email.
func (d *ResendDeliverer) Deliver(ctx context.Context, subject, htmlBody string) error {
	if d.apiKey == "" || len(d.to) == 0 {
		return fmt.Errorf("email deliverer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"from":    d.from,
		"to":      d.to,
		"subject": subject,
		"html":    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
