package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/socialimageapp/authentication-api-service/internal/mail"
)

type recordingSender struct {
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestWorker(t *testing.T, sender mail.Sender) *Worker {
	t.Helper()
	return &Worker{
		sender:  sender,
		logger:  zaptest.NewLogger(t),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func TestHandleJobDeliversDecodedMessage(t *testing.T) {
	sender := &recordingSender{}
	worker := newTestWorker(t, sender)

	payload, err := json.Marshal(mail.Message{
		To:           "jane@example.com",
		Template:     mail.TemplateConfirmEmail,
		TemplateData: map[string]any{"link": "https://app.example.com/verify"},
	})
	require.NoError(t, err)

	require.NoError(t, worker.handleJob(context.Background(), payload))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", sender.sent[0].To)
	assert.Equal(t, mail.TemplateConfirmEmail, sender.sent[0].Template)
}

func TestHandleJobRejectsMalformedPayload(t *testing.T) {
	worker := newTestWorker(t, &recordingSender{})
	assert.Error(t, worker.handleJob(context.Background(), []byte("not json")))
}

func TestHandleJobPropagatesSendFailure(t *testing.T) {
	sendErr := errors.New("provider down")
	worker := newTestWorker(t, &recordingSender{err: sendErr})

	payload, err := json.Marshal(mail.Message{To: "jane@example.com", Template: mail.TemplateResetPassword})
	require.NoError(t, err)

	assert.ErrorIs(t, worker.handleJob(context.Background(), payload), sendErr)
}
