// Package mail sends plain-text notifications over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/config"
)

// ErrNotConfigured is returned by Send when no SMTP credentials are set.
var ErrNotConfigured = errors.New("mail sender not configured")

// DefaultTimeout bounds one delivery when the config sets none.
const DefaultTimeout = 30 * time.Second

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Sender delivers messages through one SMTP relay.
type Sender struct {
	cfg  config.MailConfig
	dial dialFunc
}

// NewSender creates a sender for cfg. From defaults to the username.
func NewSender(cfg config.MailConfig) *Sender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &net.Dialer{Timeout: cfg.Timeout}
	return &Sender{cfg: cfg, dial: d.DialContext}
}

// Configured reports whether credentials are present.
func (s *Sender) Configured() bool {
	return s.cfg.Configured()
}

// Send delivers one message to one recipient. The whole SMTP exchange is
// bounded by ctx and the configured timeout, whichever ends first.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if to == "" {
		return errors.New("recipient address is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.deliver(ctx, to, buildMessage(s.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func (s *Sender) deliver(ctx context.Context, to string, msg []byte) error {
	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	// unblocks a pending read or write as soon as ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
