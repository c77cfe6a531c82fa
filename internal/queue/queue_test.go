package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"account-service/internal/mailer"
	"account-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var resetMsg = models.PasswordResetEmail{
	UserID: 4,
	Email:  "a@x.com",
	Name:   "Asha Rai",
	UIDB64: "NA",
	Token:  "tok.en.value",
}

func TestPasswordResetHandlerSendsLink(t *testing.T) {
	m := &recordingMailer{}
	h := NewPasswordResetHandler(m, "https://shop.example/reset", time.Hour, zerolog.Nop())

	task, err := NewPasswordResetTask(resetMsg)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "a@x.com", m.sent[0].To)
	assert.Contains(t, m.sent[0].Body, "Hello Asha Rai,")
	assert.Contains(t, m.sent[0].Body, "https://shop.example/reset?token=tok.en.value&uidb64=NA")
}

func TestPasswordResetHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := NewPasswordResetHandler(&recordingMailer{}, "https://shop.example/reset", time.Hour, zerolog.Nop())

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypePasswordResetEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(models.PasswordResetEmail{Email: "a@x.com"})
	err = h.ProcessTask(context.Background(), asynq.NewTask(TypePasswordResetEmail, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPasswordResetHandlerRetriesMailFailures(t *testing.T) {
	h := NewPasswordResetHandler(&recordingMailer{err: errors.New("smtp down")}, "https://shop.example/reset", time.Hour, zerolog.Nop())

	task, err := NewPasswordResetTask(resetMsg)
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestResetLink(t *testing.T) {
	link := ResetLink("https://shop.example/reset?lang=ne", "MTI", "a+b")
	assert.True(t, strings.HasPrefix(link, "https://shop.example/reset?lang=ne&"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "a+b", u.Query().Get("token"))
	assert.Equal(t, "MTI", u.Query().Get("uidb64"))
}

func TestDispatcherEnqueuesOnCriticalQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	d := NewDispatcher(client, zerolog.Nop())
	require.NoError(t, d.NotifyPasswordReset(context.Background(), resetMsg))

	pending, err := mr.List("asynq:{critical}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
