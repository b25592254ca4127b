package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
)

const (
	dialTimeout    = 10 * time.Second
	sessionTimeout = 30 * time.Second
)

// SMTPNotifier sends the account summary by email
type SMTPNotifier struct {
	cfg      config.NotifyConfig
	password string
	logger   *zap.Logger
	now      func() time.Time
	// tlsConfig is the base STARTTLS configuration, ServerName is filled in
	tlsConfig *tls.Config
}

// NewSMTPNotifier creates a new SMTP notifier. password is only used when
// cfg.Username is set.
func NewSMTPNotifier(cfg config.NotifyConfig, password string, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{cfg: cfg, password: password, logger: logger, now: time.Now}
}

// Notify sends summary to the configured recipients
func (n *SMTPNotifier) Notify(ctx context.Context, summary *orchestrator.RunSummary) error {
	data, err := n.compose(summary)
	if err != nil {
		return err
	}
	if err := n.send(ctx, data); err != nil {
		return err
	}
	n.logger.Info("Sent account summary",
		zap.String("account", summary.AccountID),
		zap.Strings("to", n.cfg.To))
	return nil
}

func (n *SMTPNotifier) compose(summary *orchestrator.RunSummary) ([]byte, error) {
	from, err := mail.ParseAddress(n.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid notify sender %q: %w", n.cfg.From, err)
	}
	var to []*mail.Address
	for _, raw := range n.cfg.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid notify recipient %q: %w", raw, err)
		}
		to = append(to, addr)
	}

	var h mail.Header
	h.SetDate(n.now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(Subject(summary))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary message: %w", err)
	}
	if _, err := w.Write([]byte(Body(summary))); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write summary message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write summary message: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *SMTPNotifier) send(ctx context.Context, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.cfg.SMTPAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(sessionTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c, err := n.newClient(conn, hostname)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if n.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.cfg.Username, n.password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	from, err := mail.ParseAddress(n.cfg.From)
	if err != nil {
		return fmt.Errorf("invalid notify sender %q: %w", n.cfg.From, err)
	}
	if err := c.Mail(from.Address, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, raw := range n.cfg.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			continue
		}
		if err := c.Rcpt(addr.Address, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", addr.Address),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send summary data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// newClient greets the server and, when configured, upgrades the
// connection with STARTTLS
func (n *SMTPNotifier) newClient(conn net.Conn, hostname string) (*smtp.Client, error) {
	if !n.cfg.StartTLS {
		c := smtp.NewClient(conn)
		if err := c.Hello(hostname); err != nil {
			c.Close()
			return nil, fmt.Errorf("EHLO failed: %w", err)
		}
		return c, nil
	}

	cfg := &tls.Config{}
	if n.tlsConfig != nil {
		cfg = n.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName, _, _ = net.SplitHostPort(n.cfg.SMTPAddress)
	}
	c, err := smtp.NewClientStartTLS(conn, cfg)
	if err != nil {
		return nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	return c, nil
}
