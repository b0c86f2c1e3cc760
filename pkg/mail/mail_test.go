package mail

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay is an in-memory SMTP server that advertises no extensions.
type relay struct {
	mu   sync.Mutex
	addr string
	from string
	to   []string
	msg  string
}

func (r *relay) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 relay ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 relay")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.mu.Lock()
			r.from = strings.Trim(line[len("MAIL FROM:"):], "<>")
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			r.mu.Lock()
			r.to = append(r.to, strings.Trim(line[len("RCPT TO:"):], "<>"))
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.msg = strings.Join(lines, "\n")
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func newTestSender(cfg config.MailConfig) (*Sender, *relay) {
	s := NewSender(cfg)
	r := &relay{}
	s.dial = func(_ context.Context, _, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		r.mu.Lock()
		r.addr = addr
		r.mu.Unlock()
		go r.serve(server)
		return client, nil
	}
	return s, r
}

var configured = config.MailConfig{
	Host:     "smtp.example.com",
	Port:     587,
	Username: "alerts@example.com",
	Password: "secret",
}

func TestSend_DeliversMessage(t *testing.T) {
	s, r := newTestSender(configured)

	err := s.Send(context.Background(), "pharmacist@example.com", "Low stock notification", "line1\nline2")
	require.NoError(t, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, "smtp.example.com:587", r.addr)
	assert.Equal(t, "alerts@example.com", r.from)
	assert.Equal(t, []string{"pharmacist@example.com"}, r.to)
	assert.Contains(t, r.msg, "Subject: Low stock notification\n")
	assert.True(t, strings.HasSuffix(r.msg, "line1\nline2"))
}

func TestSend_NotConfigured(t *testing.T) {
	s, r := newTestSender(config.MailConfig{Host: "smtp.example.com", Port: 587})

	assert.False(t, s.Configured())
	assert.ErrorIs(t, s.Send(context.Background(), "a@example.com", "s", "b"), ErrNotConfigured)
	assert.Empty(t, r.addr)
}

func TestSend_WrapsTransportError(t *testing.T) {
	s := NewSender(configured)
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	err := s.Send(context.Background(), "a@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a@example.com")
}

func TestSend_RejectsEmptyRecipient(t *testing.T) {
	s, _ := newTestSender(configured)
	assert.Error(t, s.Send(context.Background(), "", "s", "b"))
}

// silentDial connects to a relay that accepts and never answers.
func silentDial(t *testing.T) dialFunc {
	return func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		t.Cleanup(func() { server.Close() })
		return client, nil
	}
}

func TestSend_HungRelayIsBoundedByTimeout(t *testing.T) {
	cfg := configured
	cfg.Timeout = 50 * time.Millisecond
	s := NewSender(cfg)
	s.dial = silentDial(t)

	start := time.Now()
	err := s.Send(context.Background(), "a@example.com", "s", "b")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSend_HungRelayStopsOnCancel(t *testing.T) {
	s := NewSender(configured)
	s.dial = silentDial(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	err := s.Send(ctx, "a@example.com", "s", "b")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewSender_Defaults(t *testing.T) {
	s := NewSender(configured)
	assert.Equal(t, DefaultTimeout, s.cfg.Timeout)
	assert.Equal(t, "alerts@example.com", s.cfg.From)
}
