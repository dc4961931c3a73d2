// Package smtp implements the relay transport used by the dispatch engine.
// Each call performs one full SMTP transaction: connect, STARTTLS upgrade,
// AUTH, MAIL/RCPT/DATA, QUIT. Failures are classified into coarse categories
// so callers can report per-recipient outcomes without parsing server replies.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	netsmtp "net/smtp"
	"net/textproto"
	"strings"
	"syscall"
	"time"
)

// ErrorCategory is a best-effort classification of a failed transaction.
type ErrorCategory string

const (
	CategoryAuthFailed       ErrorCategory = "auth_failed"
	CategoryRecipientRefused ErrorCategory = "recipient_refused"
	CategorySenderRefused    ErrorCategory = "sender_refused"
	CategoryDataRejected     ErrorCategory = "data_rejected"
	CategoryConnectFailed    ErrorCategory = "connect_failed"
	CategoryConnectionLost   ErrorCategory = "connection_lost"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryUnknown          ErrorCategory = "unknown"
)

// SendError wraps a transport failure with its classification and the SMTP
// stage that produced it.
type SendError struct {
	Category ErrorCategory
	Stage    string // "connect", "starttls", "auth", "mail", "rcpt", "data", "quit"
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("smtp %s: %v", e.Stage, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// CategoryOf extracts the classification from err, or CategoryUnknown when
// err did not originate from this package.
func CategoryOf(err error) ErrorCategory {
	var se *SendError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryUnknown
}

// Transport is the relay contract consumed by the dispatch engine.
type Transport interface {
	// Send transmits one message to all envelope recipients in a single
	// scoped session. The session is always closed, on success and failure.
	Send(ctx context.Context, host string, port int, username, password, from string, recipients []string, msg []byte) error

	// Verify opens and authenticates a session without sending anything.
	Verify(ctx context.Context, host string, port int, username, password string) error
}

// Client is the production Transport over net/smtp with STARTTLS.
type Client struct {
	timeout time.Duration
}

// NewClient creates a transport with the given per-connection timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{timeout: timeout}
}

// Send performs the full transaction described on Transport.
func (c *Client) Send(ctx context.Context, host string, port int, username, password, from string, recipients []string, msg []byte) error {
	client, err := c.dial(ctx, host, port, username, password)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return classify("mail", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return classify("rcpt", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := w.Write(msg); err != nil {
		return classify("data", err)
	}
	if err := w.Close(); err != nil {
		return classify("data", err)
	}

	if err := client.Quit(); err != nil {
		// The message was accepted at DATA close; a failed QUIT is not a
		// delivery failure.
		return nil
	}
	return nil
}

// Verify dials, upgrades, and authenticates, then quits. Used by the
// connection-test endpoint.
func (c *Client) Verify(ctx context.Context, host string, port int, username, password string) error {
	client, err := c.dial(ctx, host, port, username, password)
	if err != nil {
		return err
	}
	defer client.Close()
	client.Quit()
	return nil
}

// dial establishes the connection, upgrades to TLS, and authenticates.
func (c *Client) dial(ctx context.Context, host string, port int, username, password string) (*netsmtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	dialer := &net.Dialer{Timeout: c.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify("connect", fmt.Errorf("connect to %s: %w", addr, err))
	}
	conn.SetDeadline(time.Now().Add(c.timeout))

	client, err := netsmtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, classify("connect", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			client.Close()
			return nil, classify("starttls", err)
		}
	}

	if username != "" {
		auth := netsmtp.PlainAuth("", username, password, host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, classify("auth", err)
		}
	}
	return client, nil
}

// classify maps err to a SendError whose category is derived first from the
// error shape (timeouts and dropped connections look the same at every stage)
// and then from the protocol stage that failed.
func classify(stage string, err error) *SendError {
	se := &SendError{Stage: stage, Err: err, Category: CategoryUnknown}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		se.Category = CategoryTimeout
		return se
	case errors.Is(err, context.DeadlineExceeded):
		se.Category = CategoryTimeout
		return se
	case isConnectionDropped(err):
		se.Category = CategoryConnectionLost
		return se
	}

	switch stage {
	case "connect", "starttls":
		se.Category = CategoryConnectFailed
	case "auth":
		se.Category = CategoryAuthFailed
	case "mail":
		se.Category = CategorySenderRefused
	case "rcpt":
		se.Category = CategoryRecipientRefused
	case "data":
		se.Category = CategoryDataRejected
	}

	// Server reply codes win over the stage when they are unambiguous.
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch {
		case proto.Code == 535 || proto.Code == 534 || proto.Code == 530:
			se.Category = CategoryAuthFailed
		case proto.Code == 421:
			se.Category = CategoryConnectionLost
		}
	}
	return se
}

func isConnectionDropped(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net/smtp surfaces some drops as plain string errors.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}
