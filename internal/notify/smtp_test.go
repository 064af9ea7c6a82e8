package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gymaccess/internal/config"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer accepts a single plaintext session and records the envelope.
type fakeSMTPServer struct {
	ln         net.Listener
	mu         sync.Mutex
	from       string
	recipients []string
	data       string
	rejectRcpt bool
	done       chan struct{}
}

func startFakeSMTP(t *testing.T, rejectRcpt bool) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{ln: ln, rejectRcpt: rejectRcpt, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-localhost")
			reply("250 HELP")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			if s.rejectRcpt {
				reply("550 mailbox unavailable")
				continue
			}
			s.mu.Lock()
			s.recipients = append(s.recipients, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			s.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			reply("250 OK queued")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPNotifierSend(t *testing.T) {
	srv := startFakeSMTP(t, false)
	logger := zerolog.Nop()
	n := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "portal@example.com"}, 5*time.Second, &logger)
	n.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }

	msg, err := Compose("ops@example.com", "", sampleRequest())
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), msg))
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "portal@example.com", srv.from)
	assert.Equal(t, []string{"ops@example.com", "ada@example.com"}, srv.recipients)
	assert.Contains(t, srv.data, "Subject: GYM ACCESS REQUEST - AV-10023")
	assert.Contains(t, srv.data, "Cc: ada@example.com")
	assert.Contains(t, srv.data, "Content-Type: text/html")
	assert.Contains(t, srv.data, "AV/004217")
}

func TestSMTPNotifierRecipientRejected(t *testing.T) {
	srv := startFakeSMTP(t, true)
	logger := zerolog.Nop()
	n := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "portal@example.com"}, 5*time.Second, &logger)

	err := n.Send(context.Background(), &models.Notification{To: "ops@example.com", Subject: "s", HTMLBody: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rcpt")
}

func TestSMTPNotifierDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	logger := zerolog.Nop()
	n := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: port}, time.Second, &logger)
	err = n.Send(context.Background(), &models.Notification{To: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial 127.0.0.1:"+strconv.Itoa(port))
}

func TestSMTPNotifierRequiresRecipient(t *testing.T) {
	logger := zerolog.Nop()
	n := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: 25}, 0, &logger)
	assert.Equal(t, 30*time.Second, n.timeout)
	assert.Error(t, n.Send(context.Background(), &models.Notification{}))
}

func TestRecipientsSkipsDuplicateCc(t *testing.T) {
	got := recipients(&models.Notification{To: "ops@example.com", Cc: "OPS@example.com"})
	assert.Equal(t, []string{"ops@example.com"}, got)
}
