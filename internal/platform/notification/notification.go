// Package notification renders and dispatches patient notifications.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NotificationType represents the channel used to deliver a notification.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeSMS   NotificationType = "sms"
)

// Template ids used by the appointment service.
const (
	TemplateAppointmentBooked      = "appointment-booked"
	TemplateAppointmentStatus      = "appointment-status"
	TemplateAppointmentRescheduled = "appointment-rescheduled"
	TemplateAppointmentCancelled   = "appointment-cancelled"
)

// SMSTemplateID returns the id of the text-message variant of templateID.
func SMSTemplateID(templateID string) string {
	return templateID + "-sms"
}

// Notification is a single outbound message and its delivery outcome.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Recipient  string           `json:"recipient"`
	Subject    string           `json:"subject,omitempty"`
	Body       string           `json:"body"`
	TemplateID string           `json:"template_id,omitempty"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	SentAt     *time.Time       `json:"sent_at,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string
	Subject string
	Body    string
	Type    NotificationType
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine creates a TemplateEngine with the appointment templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateAppointmentBooked,
			Subject: "Appointment request received",
			Body:    "Dear {{patient_name}}, we received your appointment request with {{doctor}} on {{date}} at {{time}}. We will confirm it shortly.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentStatus,
			Subject: "Your appointment is {{status}}",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor}} on {{date}} at {{time}} is now {{status}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentRescheduled,
			Subject: "Your appointment was rescheduled",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor}} has been moved to {{date}} at {{time}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentCancelled,
			Subject: "Your appointment was cancelled",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor}} on {{date}} at {{time}} has been cancelled. {{reason}}",
			Type:    TypeEmail,
		},
		{
			ID:   SMSTemplateID(TemplateAppointmentBooked),
			Body: "Careline: request received for {{doctor}} on {{date}} at {{time}}.",
			Type: TypeSMS,
		},
		{
			ID:   SMSTemplateID(TemplateAppointmentStatus),
			Body: "Careline: your appointment with {{doctor}} on {{date}} at {{time}} is {{status}}.",
			Type: TypeSMS,
		},
		{
			ID:   SMSTemplateID(TemplateAppointmentRescheduled),
			Body: "Careline: your appointment with {{doctor}} moved to {{date}} at {{time}}.",
			Type: TypeSMS,
		},
		{
			ID:   SMSTemplateID(TemplateAppointmentCancelled),
			Body: "Careline: your appointment with {{doctor}} on {{date}} at {{time}} was cancelled.",
			Type: TypeSMS,
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render fills the template's placeholders from data. Placeholders without a
// value are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Template, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", templateID)
	}

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		t.Subject = strings.ReplaceAll(t.Subject, placeholder, v)
		t.Body = strings.ReplaceAll(t.Body, placeholder, v)
	}
	t.Body = strings.TrimSpace(t.Body)
	return t, nil
}

// Observer receives one call per dispatched notification.
type Observer interface {
	ObserveNotification(channel, outcome string)
}

// Manager renders templates and dispatches through the configured senders.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	observer  Observer
}

// NewManager constructs a Manager. sms and observer may be nil.
func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine, observer Observer) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{email: email, sms: sms, templates: tpl, observer: observer}
}

var errNoSender = errors.New("no sender configured for channel")

// Send dispatches n and records the outcome on it.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	var err error
	switch n.Type {
	case TypeEmail:
		if m.email == nil {
			err = errNoSender
		} else {
			err = m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
		}
	case TypeSMS:
		if m.sms == nil {
			err = errNoSender
		} else {
			err = m.sms.SendSMS(ctx, n.Recipient, n.Body)
		}
	default:
		err = fmt.Errorf("unsupported notification type: %s", n.Type)
	}

	outcome := "sent"
	if err != nil {
		outcome = "failed"
		n.Status = "failed"
		n.Error = err.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}
	if m.observer != nil {
		m.observer.ObserveNotification(string(n.Type), outcome)
	}
	return err
}

// SendFromTemplate renders templateID with data and sends it to recipient.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	t, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Type:       t.Type,
		Recipient:  recipient,
		Subject:    t.Subject,
		Body:       t.Body,
		TemplateID: templateID,
	}
	return n, m.Send(ctx, n)
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New("mock email failure")
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New("mock sms failure")
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
