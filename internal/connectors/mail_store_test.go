package connectors

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetreport/internal"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	labels   []string
}

func (f *fakeConnector) FetchInbox(_ context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	f.labels = append(f.labels, label)
	if f.err != nil {
		return nil, f.err
	}
	if max > 0 && len(f.messages) > max {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func mailMsg(id, body string) internal.FetchedMailMessage {
	return internal.FetchedMailMessage{Provider: "imap", MessageID: id, ReceivedAt: time.Now(), Raw: []byte(body)}
}

func TestMailStoreDedupAndPending(t *testing.T) {
	store := NewMailStore(t.TempDir())

	a, isNew, err := store.Store(mailMsg("<a@x>", "Subject: a\r\n\r\nhola"))
	require.NoError(t, err)
	assert.True(t, isNew)

	again, isNew, err := store.Store(mailMsg("<a-resent@x>", "Subject: a\r\n\r\nhola"))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, a.Path, again.Path)

	_, _, err = store.Store(mailMsg("<b@x>", "Subject: b\r\n\r\nchau"))
	require.NoError(t, err)

	pending, err := store.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, store.MarkDone(a.Hash))
	pending, err = store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEqual(t, a.Hash, pending[0].Hash)

	raw, err := os.ReadFile(pending[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "chau")
}

func TestMailStorePendingMissingDir(t *testing.T) {
	store := NewMailStore(t.TempDir() + "/nope")
	pending, err := store.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFetchAndStore(t *testing.T) {
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{
		mailMsg("<1@x>", "uno"),
		mailMsg("<2@x>", "dos"),
		mailMsg("<1-dup@x>", "uno"),
	}}
	svc := NewFetchService(t.TempDir(), conn, nil)

	res, err := svc.FetchAndStore(context.Background(), "Reportes", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Stored: 2}, res)
	assert.Equal(t, []string{"Reportes"}, conn.labels)

	res, err = svc.FetchAndStore(context.Background(), "Reportes", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stored)
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewFetchService(t.TempDir(), &fakeConnector{err: boom}, nil)
	_, err := svc.FetchAndStore(context.Background(), "INBOX", 5)
	assert.ErrorIs(t, err, boom)
}
