package executors

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"worknest/internal/jobs"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPayload is the WEBHOOK_CALL job payload.
type WebhookPayload struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Webhook executes WEBHOOK_CALL jobs as a single HTTP request. Retrying is
// left to the engine.
type Webhook struct {
	Client  *http.Client
	Secret  string
	Timeout time.Duration
}

func (w *Webhook) JobType() jobs.Type { return jobs.TypeWebhookCall }

func (w *Webhook) Execute(ctx context.Context, payload string) error {
	var p WebhookPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if err := validateWebhookURL(p.URL); err != nil {
		return jobs.NewExecutionError("invalid payload: "+err.Error(), err)
	}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodPost
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, p.URL, body)
	if err != nil {
		return jobs.NewExecutionError("build webhook request: "+err.Error(), err)
	}
	if len(p.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "worknest-webhook/1.0")
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if w.Secret != "" {
		for k, v := range signWebhook(w.Secret, p.Body, time.Now()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := w.client().Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return jobs.NewExecutionError(fmt.Sprintf("webhook timed out after %s", timeout), err)
		}
		return jobs.NewExecutionError("webhook request failed: "+err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if s := strings.TrimSpace(strings.ReplaceAll(string(respBody), "\n", " ")); s != "" {
			if len(s) > 200 {
				s = s[:200] + "..."
			}
			msg += ": " + s
		}
		return jobs.NewExecutionError(msg, nil)
	}
	return nil
}

func (w *Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

func validateWebhookURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("only http and https urls are supported")
	}
	if u.Host == "" {
		return errors.New("url host is required")
	}
	return nil
}

// signWebhook returns HMAC-SHA256 headers over "<unix ts>.<body>".
func signWebhook(secret string, body []byte, now time.Time) map[string]string {
	ts := now.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return map[string]string{
		"X-Webhook-Signature": hex.EncodeToString(mac.Sum(nil)),
		"X-Webhook-Timestamp": strconv.FormatInt(ts, 10),
		"X-Webhook-ID":        uuid.NewString(),
	}
}
