package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		stage    string
		err      error
		expected ErrorCategory
	}{
		{"rcpt refused", "rcpt", &textproto.Error{Code: 550, Msg: "mailbox unavailable"}, CategoryRecipientRefused},
		{"sender refused", "mail", &textproto.Error{Code: 553, Msg: "bad sender"}, CategorySenderRefused},
		{"data rejected", "data", &textproto.Error{Code: 554, Msg: "rejected"}, CategoryDataRejected},
		{"auth failure", "auth", &textproto.Error{Code: 535, Msg: "bad credentials"}, CategoryAuthFailed},
		{"auth code wins over stage", "rcpt", &textproto.Error{Code: 535, Msg: "auth required"}, CategoryAuthFailed},
		{"service closing", "data", &textproto.Error{Code: 421, Msg: "closing channel"}, CategoryConnectionLost},
		{"dial refused", "connect", errors.New("dial tcp: connection refused"), CategoryConnectFailed},
		{"starttls failed", "starttls", errors.New("tls handshake failed"), CategoryConnectFailed},
		{"timeout", "rcpt", timeoutErr{}, CategoryTimeout},
		{"context deadline", "data", fmt.Errorf("write: %w", context.DeadlineExceeded), CategoryTimeout},
		{"eof mid transaction", "data", io.EOF, CategoryConnectionLost},
		{"reset by peer", "mail", errors.New("read: connection reset by peer"), CategoryConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classify(tt.stage, tt.err)
			if se.Category != tt.expected {
				t.Errorf("classify(%q, %v) = %s, want %s", tt.stage, tt.err, se.Category, tt.expected)
			}
			if se.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", se.Stage, tt.stage)
			}
			if !errors.Is(se, tt.err) && se.Err != tt.err {
				t.Errorf("wrapped error lost: %v", se.Err)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	err := classify("rcpt", &textproto.Error{Code: 550, Msg: "no"})
	if got := CategoryOf(err); got != CategoryRecipientRefused {
		t.Errorf("CategoryOf = %s, want %s", got, CategoryRecipientRefused)
	}
	if got := CategoryOf(fmt.Errorf("wrapped: %w", err)); got != CategoryRecipientRefused {
		t.Errorf("CategoryOf(wrapped) = %s, want %s", got, CategoryRecipientRefused)
	}
	if got := CategoryOf(errors.New("other")); got != CategoryUnknown {
		t.Errorf("CategoryOf(foreign) = %s, want %s", got, CategoryUnknown)
	}
}

func TestSendConnectFailure(t *testing.T) {
	// Reserve a port and close the listener so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := NewClient(2 * time.Second)
	err = c.Send(context.Background(), "127.0.0.1", port, "u", "p", "a@b.c", []string{"d@e.f"}, []byte("x"))
	if err == nil {
		t.Fatal("expected connect error")
	}
	if got := CategoryOf(err); got != CategoryConnectFailed && got != CategoryTimeout {
		t.Errorf("CategoryOf = %s, want connect_failed or timeout", got)
	}
}

func TestSendErrorMessage(t *testing.T) {
	se := &SendError{Category: CategoryAuthFailed, Stage: "auth", Err: errors.New("535 denied")}
	if se.Error() != "smtp auth: 535 denied" {
		t.Errorf("unexpected message %q", se.Error())
	}
}
