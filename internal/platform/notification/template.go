package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template IDs.
const (
	TemplatePatientWelcome      = "patient-welcome"
	TemplateBookingConfirmation = "booking-confirmation"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.Register(Template{
		ID:      TemplatePatientWelcome,
		Subject: "Welcome to PathLab, {{patient_name}}",
		Body:    "Dear {{patient_name}}, your patient account has been created. Sign in to view bookings and reports: {{link}}",
	})
	e.Register(Template{
		ID:      TemplateBookingConfirmation,
		Subject: "Booking confirmed for {{booking_date}}",
		Body:    "Dear {{patient_name}}, your booking for {{tests}} on {{booking_date}} is confirmed. Details: {{link}}",
	})
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Unknown placeholders are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}
