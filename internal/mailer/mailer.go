package mailer

import (
	"fmt"
	"html"

	"github.com/danchettos12/EntrevistIA/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender delivers account confirmation mail over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
	send   func(m ...*gomail.Message) error
}

func New(cfg config.SMTPConfig, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &Sender{
		dialer: d,
		from:   cfg.From,
		logger: logger,
		send:   d.DialAndSend,
	}
}

func (s *Sender) SendConfirmation(to, name, link string) error {
	m := s.confirmationMessage(to, name, link)
	if err := s.send(m); err != nil {
		s.logger.Error("Failed to send confirmation email", zap.String("to", to), zap.Error(err))
		return err
	}
	s.logger.Info("Confirmation email sent", zap.String("to", to))
	return nil
}

func (s *Sender) confirmationMessage(to, name, link string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "EntrevistIA"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Confirma tu cuenta de EntrevistIA")

	m.SetBody("text/plain", fmt.Sprintf("Hola %s,\n\nConfirma tu cuenta abriendo este enlace:\n%s\n\nSi no creaste esta cuenta, ignora este mensaje.\n", name, link))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hola %s</h2>
			<p>Confirma tu cuenta para empezar a entrenar tus entrevistas:</p>
			<a href="%s" style="background-color: #4f46e5; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Confirmar cuenta</a>
			<p>O copia este enlace:</p>
			<p>%s</p>
		</div>
	`, html.EscapeString(name), html.EscapeString(link), html.EscapeString(link)))
	return m
}
