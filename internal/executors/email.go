package executors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrz1836/postmark"

	"worknest/internal/jobs"
)

var ErrInvalidEmailConfig = errors.New("invalid email sender configuration")

// EmailPayload is the EMAIL_SEND job payload. The body is rendered upstream.
type EmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Sender delivers a rendered email.
type Sender interface {
	SendEmail(ctx context.Context, msg EmailPayload) error
}

// Email executes EMAIL_SEND jobs.
type Email struct {
	Sender Sender
}

func (e *Email) JobType() jobs.Type { return jobs.TypeEmailSend }

func (e *Email) Execute(ctx context.Context, payload string) error {
	var msg EmailPayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	msg.To = strings.TrimSpace(msg.To)
	if msg.To == "" {
		return jobs.NewExecutionError("invalid payload: to is required", nil)
	}

	if err := e.Sender.SendEmail(ctx, msg); err != nil {
		return jobs.NewExecutionError("", err)
	}
	return nil
}

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, accountToken, from string) (*PostmarkSender, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidEmailConfig)
	}
	if accountToken == "" {
		return nil, fmt.Errorf("%w: postmark account token is required", ErrInvalidEmailConfig)
	}
	if from == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidEmailConfig)
	}
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (s *PostmarkSender) SendEmail(ctx context.Context, msg EmailPayload) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.BodyHTML,
		TrackOpens: true,
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

// LogSender writes emails to the log instead of sending them. Used when no
// provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendEmail(ctx context.Context, msg EmailPayload) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "email (not sent, no provider configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag))
	return nil
}
