package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"academy/internal/mailer"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	QueueDefault = "default"
	// TaskRegistrationNotify tells staff about a new course registration.
	TaskRegistrationNotify = "registration:notify"
)

type RegistrationNotifyPayload struct {
	RegistrationID string   `json:"registration_id"`
	Reference      string   `json:"reference"`
	Courses        []string `json:"courses"`
	FullName       string   `json:"full_name"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone"`
	PackageType    string   `json:"package_type"`
	PaymentMethod  string   `json:"payment_method"`
	TotalPrice     int64    `json:"total_price"` // dinars
}

func NewRegistrationNotifyTask(p RegistrationNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRegistrationNotify, data, asynq.MaxRetry(5)), nil
}

// NotifyHandler mails registration notifications to the staff inbox.
type NotifyHandler struct {
	mailer mailer.Client
	to     string
	logger *zap.SugaredLogger
}

func NewNotifyHandler(m mailer.Client, to string, logger *zap.SugaredLogger) *NotifyHandler {
	return &NotifyHandler{mailer: m, to: to, logger: logger}
}

func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RegistrationNotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	email := p.Email
	if email == "" {
		email = "-"
	}
	courses := strings.Join(p.Courses, ", ")
	msg := mailer.Message{
		To:      h.to,
		Subject: fmt.Sprintf("New registration %s for %s", p.Reference, courses),
		Body: fmt.Sprintf(
			"Reference: %s\nCourses: %s\nPackage: %s\nPayment: %s\nName: %s\nEmail: %s\nPhone: %s\nTotal: %d DZD\n",
			p.Reference, courses, p.PackageType, p.PaymentMethod, p.FullName, email, p.Phone, p.TotalPrice,
		),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}
	h.logger.Infow("registration notification sent", "reference", p.Reference)
	return nil
}
