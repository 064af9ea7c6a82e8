package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"gymaccess/internal/config"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// SMTPNotifier sends booking requests by mail using STARTTLS when offered.
type SMTPNotifier struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewSMTPNotifier(cfg config.SMTPConfig, timeout time.Duration, logger *zerolog.Logger) *SMTPNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPNotifier{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg *models.Notification) error {
	if msg == nil || msg.To == "" {
		return errors.New("smtp: recipient is required")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range recipients(msg) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(n.buildMessage(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	if err := client.Quit(); err != nil {
		n.logger.Warn().Err(err).Msg("smtp quit failed after delivery")
	}

	n.logger.Info().Str("to", msg.To).Str("cc", msg.Cc).Str("subject", msg.Subject).Msg("booking notification sent")
	return nil
}

func recipients(msg *models.Notification) []string {
	out := []string{msg.To}
	if msg.Cc != "" && !strings.EqualFold(msg.Cc, msg.To) {
		out = append(out, msg.Cc)
	}
	return out
}

func (n *SMTPNotifier) buildMessage(msg *models.Notification) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	if msg.Cc != "" {
		fmt.Fprintf(&buf, "Cc: %s\r\n", msg.Cc)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(msg.HTMLBody, "\n", "\r\n"))
	return buf.Bytes()
}
