package dispatch

import (
	"github.com/Two-Jay/email-auto-sender/internal/template"
)

// Provider identifies a supported SMTP relay. The set is closed; adding a
// relay means adding a constant and a DefaultRelays entry, call sites do not
// change.
type Provider string

const (
	ProviderNaver Provider = "naver"
	ProviderGmail Provider = "gmail"
)

// Relay is the server/port pair for a provider's SMTP submission endpoint.
type Relay struct {
	Host string
	Port int
}

// DefaultRelays returns the fixed endpoints for the supported providers.
func DefaultRelays() map[Provider]Relay {
	return map[Provider]Relay{
		ProviderNaver: {Host: "smtp.naver.com", Port: 587},
		ProviderGmail: {Host: "smtp.gmail.com", Port: 587},
	}
}

// SenderIdentity selects the relay and carries its credentials.
type SenderIdentity struct {
	Provider    Provider `json:"provider"`
	Address     string   `json:"email"`
	Credential  string   `json:"password"`
	DisplayName string   `json:"name,omitempty"`
}

// Recipient is one destination address with its merge variables.
type Recipient struct {
	Address   string             `json:"email"`
	Variables template.Variables `json:"variables"`
}

// Template is the shared subject/body pair placeholders are rendered into.
type Template struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_content"`
}

// Outcome is the per-recipient result of one send attempt.
type Outcome struct {
	Recipient string `json:"recipient"`
	Succeeded bool   `json:"success"`
	Category  string `json:"error_category,omitempty"`
	Message   string `json:"message"`
}

// Failure is the address/reason pair recorded for each failed recipient.
type Failure struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// BulkResult summarizes a whole bulk run. Details preserves input order and
// always has one entry per attempted recipient; a bulk call returns a
// complete summary even when every recipient failed.
type BulkResult struct {
	Total        int       `json:"total"`
	SuccessCount int       `json:"success"`
	FailureCount int       `json:"failed"`
	Failures     []Failure `json:"failed_recipients"`
	Details      []Outcome `json:"details"`
}
