package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetreport/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "imap.example.com", IMAPUser: "reportes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_PASSWORD")
}

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		Envelope: &imap.Envelope{
			Subject: "Reporte diario",
			From: []*imap.Address{
				{PersonalName: "GPS", MailboxName: "noreply", HostName: "flota.example"},
				{MailboxName: "ops", HostName: "flota.example"},
			},
		},
	}
	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "Reporte diario", got.Subject)
	assert.Equal(t, "GPS <noreply@flota.example>, ops@flota.example", got.From)
	assert.Equal(t, 2024, got.ReceivedAt.Year())
}
