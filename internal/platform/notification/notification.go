// Package notification sends SMS messages through BulkSMS, or logs them when
// no credentials are configured, and renders message templates.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SendResult is what a gateway reports for an accepted message.
type SendResult struct {
	MessageID string
}

// Gateway delivers a single SMS.
type Gateway interface {
	Send(ctx context.Context, to, body string) (SendResult, error)
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

const TemplateAppointmentReminder = "appointment-reminder"

// Template is a message body with {{key}} placeholders.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateEngine manages message templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:   TemplateAppointmentReminder,
		Name: "Appointment Reminder",
		Body: "Reminder: You have an appointment with Dr. {{doctor}} tomorrow at {{time}}.",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and fills its placeholders.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}
	return Render(t.Body, data), nil
}

// Render performs {{key}} replacement. Keys present in tpl but absent from
// data are left as-is.
func Render(tpl string, data map[string]string) string {
	for k, v := range data {
		tpl = strings.ReplaceAll(tpl, "{{"+k+"}}", v)
	}
	return tpl
}

// ---------------------------------------------------------------------------
// Mock gateway (test double)
// ---------------------------------------------------------------------------

// SMSCall records a single call to Send.
type SMSCall struct {
	To   string
	Body string
}

// MockGateway is a test double for Gateway. FailFor makes sends to the listed
// recipients fail.
type MockGateway struct {
	mu        sync.Mutex
	calls     []SMSCall
	FailFor   map[string]bool
	FailError string
}

func (m *MockGateway) Send(_ context.Context, to, body string) (SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.FailFor[to] {
		msg := m.FailError
		if msg == "" {
			msg = "send failed"
		}
		return SendResult{}, errors.New(msg)
	}
	return SendResult{MessageID: fmt.Sprintf("msg-%d", len(m.calls))}, nil
}

// Calls returns a copy of recorded calls.
func (m *MockGateway) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
