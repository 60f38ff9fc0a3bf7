package mail

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("no-reply@pdit.local", []string{"a@example.com", "b@example.com"}, "Hello", "body text"))

	for _, want := range []string{
		"From: no-reply@pdit.local\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/plain; charset=\"utf-8\"\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody text") {
		t.Errorf("body not separated from headers: %q", msg)
	}
}

func TestSMTPMailerRequiresRecipients(t *testing.T) {
	m := NewSMTPMailer("localhost", 25, "", "", "no-reply@pdit.local")
	if err := m.Send(context.Background(), nil, "s", "b"); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	m := &LogMailer{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := m.Send(context.Background(), []string{"a@example.com"}, "s", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
