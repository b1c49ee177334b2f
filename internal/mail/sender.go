package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultSendGridURL = "https://api.sendgrid.com/v3/mail/send"

// Message is one transactional email to deliver.
type Message struct {
	To           string         `json:"to"`
	ToName       string         `json:"to_name,omitempty"`
	Template     Template       `json:"template"`
	TemplateData map[string]any `json:"template_data,omitempty"`
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers mail through the SendGrid v3 API using dynamic
// templates.
type SendGridSender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

// NewSendGridSender constructs the default SendGrid sender.
func NewSendGridSender(apiKey, fromEmail, fromName string, client *http.Client) *SendGridSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SendGridSender{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		baseURL:    defaultSendGridURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func (s *SendGridSender) WithBaseURL(url string) *SendGridSender {
	s.baseURL = url
	return s
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To           []sendGridAddress `json:"to"`
	TemplateData map[string]any    `json:"dynamic_template_data,omitempty"`
}

type sendGridPayload struct {
	From             sendGridAddress           `json:"from"`
	Personalizations []sendGridPersonalization `json:"personalizations"`
	TemplateID       string                    `json:"template_id"`
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	payload := sendGridPayload{
		From: sendGridAddress{Email: s.fromEmail, Name: s.fromName},
		Personalizations: []sendGridPersonalization{{
			To:           []sendGridAddress{{Email: msg.To, Name: msg.ToName}},
			TemplateData: msg.TemplateData,
		}},
		TemplateID: TemplateID(msg.Template),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("send mail: status=%d body=%s", resp.StatusCode, detail)
	}
	return nil
}

// LogSender swallows mail and logs it. Used when no SendGrid key is
// configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail delivery skipped, no provider configured",
		zap.String("to", msg.To),
		zap.String("template", string(msg.Template)),
	)
	return nil
}
