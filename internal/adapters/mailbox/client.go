package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	imap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

var errNotConnected = errors.New("imap client is not connected")

// Client is an implementation of the MailClient interface on top of go-imap v2.
// Message identifiers are mailbox UIDs rendered as decimal strings.
type Client struct {
	cfg      config.IMAPConfig
	password string
	logger   *zap.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewClient creates a new IMAP mail client
func NewClient(cfg config.IMAPConfig, password string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, password: password, logger: logger}
}

// Connect dials the server, authenticates and selects the configured mailbox
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(c.cfg.Server, strconv.Itoa(c.cfg.Port))
	client, err := c.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("authentication failed for %s: %w", c.cfg.Username, err)
	}

	mailbox := c.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	data, err := client.Select(mailbox, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	c.logger.Info("Connected to mailbox",
		zap.String("server", addr),
		zap.String("mailbox", mailbox),
		zap.Uint32("messages", data.NumMessages))

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *Client) dial(ctx context.Context, addr string) (*imapclient.Client, error) {
	timeout := c.cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	if !c.cfg.UseTLS {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return imapclient.New(conn, nil), nil
	}

	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: c.cfg.Server}}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return imapclient.New(conn, nil), nil
}

// Disconnect logs out and closes the connection
func (c *Client) Disconnect() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Logout().Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return client.Close()
}

func (c *Client) session() (*imapclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, errNotConnected
	}
	return c.client, nil
}

// ListCandidates searches the mailbox and returns envelope data for every
// match. Bodies are fetched lazily.
func (c *Client) ListCandidates(ctx context.Context, query, excludeTag string, force bool) ([]*core.Message, error) {
	client, err := c.session()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if !force && excludeTag != "" {
		criteria.NotFlag = append(criteria.NotFlag, imap.Flag(excludeTag))
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
	})
	defer fetchCmd.Close()

	var messages []*core.Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("Skipping unreadable message", zap.Error(err))
			continue
		}
		messages = append(messages, messageFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching envelopes: %w", err)
	}

	c.logger.Debug("Listed candidates",
		zap.String("query", query),
		zap.Int("count", len(messages)))
	return messages, nil
}

// FetchBody returns the text body of a message without setting \Seen
func (c *Client) FetchBody(ctx context.Context, messageID string) (string, error) {
	client, err := c.session()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	uid, err := ParseUID(messageID)
	if err != nil {
		return "", err
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return "", fmt.Errorf("message UID %d not found", uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return "", fmt.Errorf("collecting message data: %w", err)
	}
	if err := fetchCmd.Close(); err != nil {
		return "", fmt.Errorf("closing fetch: %w", err)
	}

	return ExtractText(buf.FindBodySection(section)), nil
}

// MarkProcessed adds tag as a keyword on a message
func (c *Client) MarkProcessed(ctx context.Context, messageID, tag string) error {
	return c.storeFlags(ctx, messageID, imap.StoreFlagsAdd, []string{tag})
}

// RemoveTags removes keywords from a message
func (c *Client) RemoveTags(ctx context.Context, messageID string, tags []string) error {
	return c.storeFlags(ctx, messageID, imap.StoreFlagsDel, tags)
}

func (c *Client) storeFlags(ctx context.Context, messageID string, op imap.StoreFlagsOp, tags []string) error {
	client, err := c.session()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := ParseUID(messageID)
	if err != nil {
		return err
	}

	flags := make([]imap.Flag, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			flags = append(flags, imap.Flag(t))
		}
	}
	if len(flags) == 0 {
		return nil
	}

	storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("storing flags on UID %d: %w", uid, err)
	}
	return nil
}

// ParseUID converts a message identifier back into a mailbox UID
func ParseUID(messageID string) (imap.UID, error) {
	n, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message id %q", messageID)
	}
	return imap.UID(n), nil
}

func messageFromBuffer(buf *imapclient.FetchMessageBuffer) *core.Message {
	msg := &core.Message{
		ID:      strconv.FormatUint(uint64(buf.UID), 10),
		Date:    buf.InternalDate,
		Headers: map[string][]string{},
	}
	if env := buf.Envelope; env != nil {
		msg.Subject = env.Subject
		if !env.Date.IsZero() {
			msg.Date = env.Date
		}
		if len(env.From) > 0 {
			msg.Sender = FormatAddress(env.From[0])
		}
		if env.MessageID != "" {
			msg.Headers["Message-Id"] = []string{env.MessageID}
		}
	}
	return msg
}

// FormatAddress renders an envelope address as "Name <addr>" or "addr"
func FormatAddress(addr imap.Address) string {
	if addr.Name == "" {
		return addr.Addr()
	}
	return fmt.Sprintf("%s <%s>", addr.Name, addr.Addr())
}
