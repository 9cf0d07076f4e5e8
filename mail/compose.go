package mail

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"
)

const (
	SubjectSignupVerify  = "Welcome! 🎉"
	SubjectPasswordReset = "Password Reset Link"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type linkData struct {
	Email    string
	Link     string
	ValidFor string
}

// Composer renders the account emails from the embedded templates.
type Composer struct {
	From string
}

func NewComposer(from string) *Composer {
	return &Composer{From: from}
}

// SignupVerification addresses the verification link to email.
func (c *Composer) SignupVerification(email, link string, validFor time.Duration) (Message, error) {
	return c.compose("signup_verify.tmpl", SubjectSignupVerify, email, link, validFor)
}

// PasswordReset addresses the reset link to email.
func (c *Composer) PasswordReset(email, link string, validFor time.Duration) (Message, error) {
	return c.compose("password_reset_request.tmpl", SubjectPasswordReset, email, link, validFor)
}

func (c *Composer) compose(name, subject, email, link string, validFor time.Duration) (Message, error) {
	var body bytes.Buffer
	data := linkData{Email: email, Link: link, ValidFor: humanDuration(validFor)}
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{
		From:    c.From,
		To:      []string{email},
		Subject: subject,
		Body:    body.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
