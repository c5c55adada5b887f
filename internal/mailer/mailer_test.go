package mailer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danchettos12/EntrevistIA/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func TestSendConfirmation(t *testing.T) {
	s := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Pass: "p", From: "noreply@example.com"}, zap.NewNop())

	var sent []*gomail.Message
	s.send = func(m ...*gomail.Message) error {
		sent = append(sent, m...)
		return nil
	}

	if err := s.SendConfirmation("ana@example.com", "Ana", "http://localhost:8080/api/v1/auth/confirm?token=tok123xyz"); err != nil {
		t.Fatalf("SendConfirmation returned error: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	if to := sent[0].GetHeader("To"); len(to) != 1 || to[0] != "ana@example.com" {
		t.Fatalf("unexpected recipient %v", to)
	}

	var buf bytes.Buffer
	if _, err := sent[0].WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}
	// body is quoted-printable, so only the token value survives verbatim
	if !strings.Contains(buf.String(), "tok123xyz") {
		t.Fatalf("expected confirmation token in body")
	}
	if subject := sent[0].GetHeader("Subject"); len(subject) != 1 || !strings.Contains(subject[0], "EntrevistIA") {
		t.Fatalf("unexpected subject %v", subject)
	}
}

func TestSendConfirmationError(t *testing.T) {
	s := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, zap.NewNop())
	s.send = func(m ...*gomail.Message) error { return errors.New("dial failed") }

	if err := s.SendConfirmation("ana@example.com", "Ana", "link"); err == nil {
		t.Fatal("expected send error")
	}
}
