package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{name: "empty", cfg: Config{}, want: false},
		{name: "no host", cfg: Config{Port: "587", From: "noreply@bandstand.dev"}, want: false},
		{name: "no port", cfg: Config{Host: "smtp.bandstand.dev", From: "noreply@bandstand.dev"}, want: false},
		{name: "no from", cfg: Config{Host: "smtp.bandstand.dev", Port: "587"}, want: false},
		{name: "complete", cfg: Config{Host: "smtp.bandstand.dev", Port: "587", From: "noreply@bandstand.dev"}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewService(tc.cfg).IsConfigured(); got != tc.want {
				t.Fatalf("IsConfigured() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.Send([]string{"a@b.c"}, "hi", "body"); err == nil {
		t.Fatal("Send should fail when SMTP is not configured")
	}
	if err := svc.SendVerificationEmail("a@b.c", "Ada", "https://x/verify"); err == nil {
		t.Fatal("SendVerificationEmail should fail when SMTP is not configured")
	}
}

func TestVerificationTemplate(t *testing.T) {
	html, err := render(verifyTemplate, linkMail{Name: "Ada", URL: "https://bandstand.dev/verify-email?token=abc123"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Ada") {
		t.Error("template should greet the user by name")
	}
	if !strings.Contains(html, "https://bandstand.dev/verify-email?token=abc123") {
		t.Error("template should carry the verification link")
	}
	if !strings.Contains(html, "24 hours") {
		t.Error("template should state the expiry")
	}
}

func TestResetTemplateWithoutName(t *testing.T) {
	html, err := render(resetTemplate, linkMail{URL: "https://bandstand.dev/reset-password?token=xyz"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Hey,") {
		t.Error("template should fall back to a generic greeting")
	}
	if !strings.Contains(html, "https://bandstand.dev/reset-password?token=xyz") {
		t.Error("template should carry the reset link")
	}
	if !strings.Contains(html, "1 hour") {
		t.Error("template should state the expiry")
	}
}
