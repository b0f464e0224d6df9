// Package mailer sends the transactional welcome email after signup.
package mailer

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const welcomeSubject = "Welcome to Messenger"

//go:embed welcome.html
var welcomeHTML string

var welcomeTmpl = template.Must(template.New("welcome").Parse(welcomeHTML))

// Sender delivers the welcome email to a freshly registered identity.
type Sender interface {
	SendWelcome(ctx context.Context, email, name, clientURL string) error
}

// RenderWelcome renders the welcome email body.
func RenderWelcome(name, clientURL string) (string, error) {
	var buf bytes.Buffer
	err := welcomeTmpl.Execute(&buf, struct{ Name, ClientURL string }{name, clientURL})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ResendSender talks to the Resend HTTP API.
type ResendSender struct {
	client   *resty.Client
	from     string
	fromName string
}

// NewResendSender creates a sender authenticated with apiKey.
func NewResendSender(baseURL, apiKey, from, fromName string) *ResendSender {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &ResendSender{client: c, from: from, fromName: fromName}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *ResendSender) SendWelcome(ctx context.Context, email, name, clientURL string) error {
	html, err := RenderWelcome(name, clientURL)
	if err != nil {
		return fmt.Errorf("render welcome email: %w", err)
	}
	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	var out sendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sendRequest{From: from, To: []string{email}, Subject: welcomeSubject, HTML: html}).
		SetResult(&out).
		SetError(&out).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend status %d: %s", resp.StatusCode(), out.Message)
	}
	return nil
}

// LogSender records the email instead of sending it. Used when no API key is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) SendWelcome(_ context.Context, email, name, _ string) error {
	s.Log.Info().Str("to", email).Str("name", name).Msg("welcome email not sent: mail disabled")
	return nil
}
