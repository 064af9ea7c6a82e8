package notify

import (
	"bytes"
	"context"
	"testing"

	"gymaccess/internal/config"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(&logger)

	err := n.Send(context.Background(), &models.Notification{To: "ops@example.com", Subject: "GYM ACCESS REQUEST - M-1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "GYM ACCESS REQUEST - M-1")
}

func TestNew(t *testing.T) {
	logger := zerolog.Nop()

	n, err := New(config.NotificationConfig{Channel: config.ChannelLog}, &logger)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New(config.NotificationConfig{Channel: config.ChannelSMTP, SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587}}, &logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPNotifier{}, n)

	_, err = New(config.NotificationConfig{Channel: "pigeon"}, &logger)
	assert.Error(t, err)
}
