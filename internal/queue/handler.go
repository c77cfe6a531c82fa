package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"account-service/internal/mailer"
	"account-service/internal/models"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

type PasswordResetHandler struct {
	mailer   mailer.Mailer
	resetURL string
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewPasswordResetHandler(m mailer.Mailer, resetURL string, ttl time.Duration, logger zerolog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{
		mailer:   m,
		resetURL: resetURL,
		ttl:      ttl,
		logger:   logger,
	}
}

func (h *PasswordResetHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p models.PasswordResetEmail
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal password reset payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Email == "" || p.UIDB64 == "" || p.Token == "" {
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, h.message(p)); err != nil {
		h.logger.Error().Err(err).Int64("user_id", p.UserID).Msg("Failed to send password reset email")
		return fmt.Errorf("send password reset email: %w", err)
	}

	h.logger.Info().Int64("user_id", p.UserID).Msg("Password reset email sent")
	return nil
}

func (h *PasswordResetHandler) message(p models.PasswordResetEmail) mailer.Message {
	greeting := "Hello,"
	if name := strings.TrimSpace(p.Name); name != "" {
		greeting = "Hello " + name + ","
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", greeting)
	b.WriteString("We received a request to reset the password of your account.\n")
	fmt.Fprintf(&b, "Use the link below within %s:\n\n", h.ttl)
	fmt.Fprintf(&b, "%s\n\n", ResetLink(h.resetURL, p.UIDB64, p.Token))
	b.WriteString("If you did not ask for this, you can ignore this email.\n")

	return mailer.Message{
		To:      p.Email,
		Subject: "Reset your password",
		Body:    b.String(),
	}
}

// ResetLink appends uidb64 and token to base as query parameters.
func ResetLink(base, uidb64, token string) string {
	q := url.Values{}
	q.Set("uidb64", uidb64)
	q.Set("token", token)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
