package notify

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/config"
)

func TestSMTPNotifier(t *testing.T) {
	n := NewSMTPNotifier(&config.NotifyConfig{SMTPHost: "mail.local", SMTPPort: 25, From: "hub@verivid.local"})
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), "alice@example.com", "Video Flagged", "body text"))
	require.Equal(t, "mail.local:25", gotAddr)
	require.Equal(t, []string{"alice@example.com"}, gotTo)
	require.Contains(t, gotMsg, "Subject: Video Flagged\r\n")
	require.Contains(t, gotMsg, "\r\n\r\nbody text")

	require.Error(t, n.Notify(context.Background(), "a@b.c\r\nBcc: x@y.z", "s", "b"))
}

func TestNewNotifierDefaultsToLog(t *testing.T) {
	n := NewNotifier(&config.NotifyConfig{})
	_, ok := n.(*LogNotifier)
	require.True(t, ok)
}
