// Package email sends transactional mail over SMTP. When no SMTP host is
// configured the service reports itself unconfigured and callers fall back
// to surfacing tokens directly (dev mode).
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	cfg  Config
	addr string
	auth smtp.Auth
}

func NewService(cfg Config) *Service {
	return &Service{
		cfg:  cfg,
		addr: cfg.Host + ":" + cfg.Port,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}
}

// IsConfigured reports whether enough SMTP settings are present to send.
func (s *Service) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port != "" && s.cfg.From != ""
}

func (s *Service) fromHeader() string {
	if s.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}
	return s.cfg.From
}

// Send delivers a plain-text message to the given recipients.
func (s *Service) Send(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n%s", body)

	return smtp.SendMail(s.addr, s.auth, s.cfg.From, to, msg.Bytes())
}

func (s *Service) sendHTML(to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}

	const boundary = "bandstand-mail-boundary"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "This message is best viewed in an HTML-capable mail client.\r\n\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.addr, s.auth, s.cfg.From, []string{to}, msg.Bytes())
}

type linkMail struct {
	Name string
	URL  string
}

// SendVerificationEmail mails the account activation link for a fresh signup.
func (s *Service) SendVerificationEmail(to, name, verifyURL string) error {
	html, err := render(verifyTemplate, linkMail{Name: name, URL: verifyURL})
	if err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}
	return s.sendHTML(to, "Verify your Bandstand account", html)
}

// SendPasswordResetEmail mails a single-use password reset link.
func (s *Service) SendPasswordResetEmail(to, name, resetURL string) error {
	html, err := render(resetTemplate, linkMail{Name: name, URL: resetURL})
	if err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}
	return s.sendHTML(to, "Reset your Bandstand password", html)
}

func render(tmpl string, data linkMail) (string, error) {
	var buf bytes.Buffer
	if err := template.Must(template.New("mail").Parse(tmpl)).Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const verifyTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verify your Bandstand account</title></head>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto; padding: 24px; color: #222;">
	<h1 style="border-bottom: 2px solid #d63b2f; padding-bottom: 8px;">Bandstand</h1>
	{{if .Name}}<p>Hey {{.Name}},</p>{{else}}<p>Hey,</p>{{end}}
	<p>Your account is almost ready. Confirm your email address to start posting:</p>
	<p><a href="{{.URL}}" style="display: inline-block; padding: 12px 24px; background: #d63b2f; color: #fff; text-decoration: none; border-radius: 4px;">Verify email</a></p>
	<p>Or open this link directly:</p>
	<p style="word-break: break-all;"><a href="{{.URL}}">{{.URL}}</a></p>
	<p>The link expires in 24 hours.</p>
	<p style="margin-top: 32px; font-size: 12px; color: #777;">If you did not sign up for Bandstand, ignore this message.</p>
</body>
</html>`

const resetTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reset your Bandstand password</title></head>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto; padding: 24px; color: #222;">
	<h1 style="border-bottom: 2px solid #d63b2f; padding-bottom: 8px;">Bandstand</h1>
	{{if .Name}}<p>Hey {{.Name}},</p>{{else}}<p>Hey,</p>{{end}}
	<p>Someone asked to reset the password for this account. If that was you, pick a new one here:</p>
	<p><a href="{{.URL}}" style="display: inline-block; padding: 12px 24px; background: #d63b2f; color: #fff; text-decoration: none; border-radius: 4px;">Reset password</a></p>
	<p>Or open this link directly:</p>
	<p style="word-break: break-all;"><a href="{{.URL}}">{{.URL}}</a></p>
	<p>The link expires in 1 hour and works once.</p>
	<p style="margin-top: 32px; font-size: 12px; color: #777;">If you did not request a reset, your password is unchanged and you can ignore this message.</p>
</body>
</html>`
