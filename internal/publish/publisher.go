// Package publish forwards emitted manifests to NATS.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/retry"
)

// Header names set on every published message.
const (
	HeaderPassID   = "Assetmanifest-Pass-Id"
	HeaderComplete = "Assetmanifest-Complete"
)

// Message is the JSON body published for every emitted manifest.
type Message struct {
	PassID     string          `json:"pass_id"`
	FileName   string          `json:"file_name"`
	OutputPath string          `json:"output_path"`
	Complete   bool            `json:"complete"`
	Members    []string        `json:"members"`
	Manifest   json.RawMessage `json:"manifest"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Sender delivers one message. NATSSender is the production implementation.
type Sender interface {
	Send(ctx context.Context, subject, msgID string, data []byte, headers map[string]string) error
	Close() error
}

// Publisher turns afterEmit events into messages.
type Publisher struct {
	sender  Sender
	subject string
	timeout time.Duration
	retry   retry.Policy
	logger  *slog.Logger
}

// NewPublisher creates a publisher sending to subject.
func NewPublisher(sender Sender, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sender: sender, subject: subject, timeout: 5 * time.Second, retry: retry.None(), logger: logger}
}

// SetRetry retries failed sends with policy. Sends through JetStream are
// de-duplicated by pass ID, core NATS subscribers may see a message twice.
func (p *Publisher) SetRetry(policy retry.Policy) { p.retry = policy }

// Publish sends the message for one emitted manifest.
func (p *Publisher) Publish(ctx context.Context, e hooks.Emitted) error {
	msg := Message{
		PassID:     e.PassID,
		FileName:   e.FileName,
		OutputPath: e.OutputPath,
		Complete:   e.Complete,
		Members:    e.Members,
		Manifest:   json.RawMessage(e.Bytes),
		Timestamp:  time.Now().UTC(),
	}
	if !json.Valid(e.Bytes) {
		// Custom serializers may emit non-JSON; ship it as a string.
		quoted, _ := json.Marshal(string(e.Bytes))
		msg.Manifest = quoted
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapError(err, errors.CategoryPublish, "failed to marshal manifest message").Build()
	}

	headers := map[string]string{HeaderPassID: e.PassID, HeaderComplete: boolString(e.Complete)}
	attempt := 0
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			p.logger.Warn("Retrying manifest publish", logfields.PassID(e.PassID), slog.Int("attempt", attempt))
		}
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.sender.Send(ctx, p.subject, e.PassID, data, headers)
	})
	if err != nil {
		p.logger.Error("Failed to publish manifest",
			logfields.Subject(p.subject),
			logfields.PassID(e.PassID),
			logfields.Error(err))
		return errors.WrapError(err, errors.CategoryPublish, "failed to publish manifest").
			WithContext("subject", p.subject).Build()
	}
	p.logger.Debug("Published manifest", logfields.Subject(p.subject), logfields.PassID(e.PassID))
	return nil
}

// AfterEmit returns Publish as an afterEmit tap.
func (p *Publisher) AfterEmit() hooks.AfterEmitFunc {
	return p.Publish
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
