package mailbox

import (
	"context"
	"net"
	"testing"
	"time"

	imap "github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/config"
)

func TestParseQuery(t *testing.T) {
	c, err := ParseQuery(`UNSEEN SINCE 1-May-2024 FROM "Jane Doe" keyword Urgent`)
	require.NoError(t, err)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, c.NotFlag)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), c.Since)
	assert.Equal(t, []imap.SearchCriteriaHeaderField{{Key: "From", Value: "Jane Doe"}}, c.Header)
	assert.Equal(t, []imap.Flag{"Urgent"}, c.Flag)
}

func TestParseQueryAll(t *testing.T) {
	c, err := ParseQuery("ALL")
	require.NoError(t, err)
	assert.Empty(t, c.Flag)
	assert.Empty(t, c.NotFlag)

	c, err = ParseQuery("")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestParseQueryErrors(t *testing.T) {
	for _, q := range []string{"SINCE", "SINCE yesterday", "BOGUS", `SUBJECT "open`} {
		_, err := ParseQuery(q)
		assert.Error(t, err, q)
	}
}

func TestParseUID(t *testing.T) {
	uid, err := ParseUID("42")
	require.NoError(t, err)
	assert.Equal(t, imap.UID(42), uid)

	for _, id := range []string{"", "0", "abc", "-1"} {
		_, err := ParseUID(id)
		assert.Error(t, err, id)
	}
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "Jane <jane@example.com>", FormatAddress(imap.Address{Name: "Jane", Mailbox: "jane", Host: "example.com"}))
	assert.Equal(t, "jane@example.com", FormatAddress(imap.Address{Mailbox: "jane", Host: "example.com"}))
}

func TestOperationsRequireConnection(t *testing.T) {
	c := NewClient(config.IMAPConfig{Server: "localhost", Port: 993}, "pw", nil)
	ctx := context.Background()

	_, err := c.ListCandidates(ctx, "ALL", "AIProcessed", false)
	assert.ErrorIs(t, err, errNotConnected)
	_, err = c.FetchBody(ctx, "1")
	assert.ErrorIs(t, err, errNotConnected)
	assert.ErrorIs(t, c.MarkProcessed(ctx, "1", "AIProcessed"), errNotConnected)
	assert.NoError(t, c.Disconnect())
}

func TestConnectHonoursContextDuringHandshake(t *testing.T) {
	// The listener never accepts, so the TLS handshake stalls until the
	// context expires.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	c := NewClient(config.IMAPConfig{
		Server:         "127.0.0.1",
		Port:           port,
		Username:       "me",
		UseTLS:         true,
		TimeoutSeconds: 30,
	}, "secret", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectCancelledBeforeDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(config.IMAPConfig{Server: "127.0.0.1", Port: 1}, "", nil)
	assert.ErrorIs(t, c.Connect(ctx), context.Canceled)
}
