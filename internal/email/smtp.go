package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers plain-text mail over SMTP. Port 465 uses implicit TLS,
// other ports negotiate STARTTLS when the server offers it.
type Sender struct {
	dialer   dialer
	from     string
	fromName string
}

func NewSender(s Settings) (*Sender, error) {
	if strings.TrimSpace(s.Host) == "" {
		return nil, errors.New("smtp host required")
	}
	if strings.TrimSpace(s.From) == "" {
		return nil, errors.New("smtp from address required")
	}
	port := s.Port
	if port <= 0 {
		port = 587
	}
	return &Sender{
		dialer:   gomail.NewDialer(s.Host, port, s.Username, s.Password),
		from:     s.From,
		fromName: s.FromName,
	}, nil
}

func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if s == nil {
		return errors.New("smtp sender not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("recipient required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	if s.fromName != "" {
		m.SetAddressHeader("From", s.from, s.fromName)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
