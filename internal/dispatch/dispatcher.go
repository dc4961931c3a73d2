// Package dispatch orchestrates mail-merge sending: render the template for
// one recipient, compile the MIME document, hand it to the SMTP transport,
// and for bulk requests pace the sends in fixed-size batches while isolating
// per-recipient failures.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Two-Jay/email-auto-sender/internal/message"
	"github.com/Two-Jay/email-auto-sender/internal/smtp"
	"github.com/Two-Jay/email-auto-sender/internal/template"
)

// CategoryConfig marks a configuration failure (unsupported provider) as
// opposed to the transport categories defined by the smtp package.
const CategoryConfig = "config_error"

// Config holds the pacing and relay settings for a Dispatcher.
type Config struct {
	BatchSize int
	SendDelay time.Duration
	Relays    map[Provider]Relay // nil means DefaultRelays()
}

// Dispatcher is the sending engine. One Dispatcher serves many concurrent
// bulk calls; each call keeps its own accumulating result and no state is
// shared between them.
type Dispatcher struct {
	transport smtp.Transport
	compiler  *message.Compiler
	batchSize int
	delay     time.Duration
	relays    map[Provider]Relay
}

// New creates a dispatcher from its collaborators and configuration.
func New(transport smtp.Transport, compiler *message.Compiler, cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	relays := cfg.Relays
	if relays == nil {
		relays = DefaultRelays()
	}
	return &Dispatcher{
		transport: transport,
		compiler:  compiler,
		batchSize: cfg.BatchSize,
		delay:     cfg.SendDelay,
		relays:    relays,
	}
}

// SendOne renders, compiles, and transmits one message for one recipient.
// It never returns an error: every failure mode is folded into the Outcome.
func (d *Dispatcher) SendOne(ctx context.Context, sender SenderIdentity, rcpt Recipient, tmpl Template, cc []string, attachments []string) (outcome Outcome) {
	outcome = Outcome{Recipient: rcpt.Address}

	// The per-recipient boundary must hold even against defects below it.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] panic sending to %s: %v", rcpt.Address, r)
			outcome.Succeeded = false
			outcome.Category = string(smtp.CategoryUnknown)
			outcome.Message = fmt.Sprintf("internal error sending to %s: %v", rcpt.Address, r)
		}
	}()

	relay, ok := d.relays[sender.Provider]
	if !ok {
		outcome.Category = CategoryConfig
		outcome.Message = fmt.Sprintf("unsupported mail provider: %s", sender.Provider)
		return outcome
	}

	subject := template.Render(tmpl.Subject, rcpt.Variables)
	htmlBody := template.Render(tmpl.HTMLBody, rcpt.Variables)

	raw, err := d.compiler.Compile(message.Message{
		From:        sender.Address,
		FromName:    sender.DisplayName,
		To:          rcpt.Address,
		CC:          cc,
		Subject:     subject,
		HTMLBody:    htmlBody,
		Attachments: attachments,
	})
	if err != nil {
		outcome.Category = string(smtp.CategoryUnknown)
		outcome.Message = fmt.Sprintf("compile message for %s: %v", rcpt.Address, err)
		return outcome
	}

	// Envelope = To + CC; the session is scoped to this one transaction.
	envelope := append([]string{rcpt.Address}, cc...)
	err = d.transport.Send(ctx, relay.Host, relay.Port, sender.Address, sender.Credential, sender.Address, envelope, raw)
	if err != nil {
		outcome.Category = string(smtp.CategoryOf(err))
		outcome.Message = fmt.Sprintf("send to %s failed: %v", rcpt.Address, err)
		log.Printf("[dispatch] %s", outcome.Message)
		return outcome
	}

	outcome.Succeeded = true
	outcome.Message = fmt.Sprintf("sent to %s", rcpt.Address)
	return outcome
}

// SendBulk processes recipients strictly sequentially in input order,
// grouped into fixed-size batches, waiting the configured delay after every
// send except the last. A failed recipient never stops the run. Context
// cancellation stops scheduling further recipients and returns the
// accumulated partial result; Total always reflects the requested count.
func (d *Dispatcher) SendBulk(ctx context.Context, sender SenderIdentity, recipients []Recipient, tmpl Template, cc []string, attachments []string) BulkResult {
	result := BulkResult{
		Total:    len(recipients),
		Failures: []Failure{},
		Details:  make([]Outcome, 0, len(recipients)),
	}

	log.Printf("[dispatch] bulk send: %d recipients, batch size %d, delay %s",
		len(recipients), d.batchSize, d.delay)

	for start := 0; start < len(recipients); start += d.batchSize {
		end := start + d.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		for i, rcpt := range recipients[start:end] {
			if ctx.Err() != nil {
				log.Printf("[dispatch] bulk send cancelled after %d of %d", len(result.Details), result.Total)
				return result
			}

			outcome := d.SendOne(ctx, sender, rcpt, tmpl, cc, attachments)
			result.Details = append(result.Details, outcome)
			if outcome.Succeeded {
				result.SuccessCount++
			} else {
				result.FailureCount++
				result.Failures = append(result.Failures, Failure{
					Address: rcpt.Address,
					Reason:  outcome.Message,
				})
			}

			last := start+i == len(recipients)-1
			if !last && d.delay > 0 {
				select {
				case <-ctx.Done():
					log.Printf("[dispatch] bulk send cancelled after %d of %d", len(result.Details), result.Total)
					return result
				case <-time.After(d.delay):
				}
			}
		}
	}

	log.Printf("[dispatch] bulk send complete: %d sent, %d failed", result.SuccessCount, result.FailureCount)
	return result
}

// Verify opens and authenticates a relay session for sender without sending
// anything, for connection testing.
func (d *Dispatcher) Verify(ctx context.Context, sender SenderIdentity) error {
	relay, ok := d.relays[sender.Provider]
	if !ok {
		return fmt.Errorf("unsupported mail provider: %s", sender.Provider)
	}
	return d.transport.Verify(ctx, relay.Host, relay.Port, sender.Address, sender.Credential)
}
