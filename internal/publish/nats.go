package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
)

// NATSOptions configure a NATSSender.
type NATSOptions struct {
	URL     string
	Subject string
	// JetStream publishes through a stream with message de-duplication by pass ID.
	JetStream bool
	Stream    string
	Name      string
}

// NATSSender publishes over core NATS or JetStream.
type NATSSender struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewNATSSender connects and, for JetStream, creates or updates the stream.
func NewNATSSender(ctx context.Context, opts NATSOptions) (*NATSSender, error) {
	name := opts.Name
	if name == "" {
		name = "assetmanifest"
	}
	conn, err := nats.Connect(opts.URL, nats.Name(name))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryPublish, "failed to connect to NATS").
			WithContext("url", opts.URL).Build()
	}
	s := &NATSSender{conn: conn}
	if !opts.JetStream {
		slog.Info("NATS publisher initialized", "url", opts.URL, logfields.Subject(opts.Subject))
		return s, nil
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryPublish, "failed to create JetStream context").Build()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        opts.Stream,
		Description: "Emitted asset manifests",
		Subjects:    []string{opts.Subject},
		MaxMsgs:     1000,
		Duplicates:  10 * time.Minute,
	}); err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryPublish, "failed to create manifest stream").
			WithContext("stream", opts.Stream).Build()
	}
	s.js = js
	slog.Info("NATS JetStream publisher initialized",
		"url", opts.URL,
		"stream", opts.Stream,
		logfields.Subject(opts.Subject))
	return s, nil
}

// Send implements Sender.
func (s *NATSSender) Send(ctx context.Context, subject, msgID string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	if s.js != nil {
		_, err := s.js.PublishMsg(ctx, msg, jetstream.WithMsgID(msgID))
		return err
	}
	if err := s.conn.PublishMsg(msg); err != nil {
		return err
	}
	return s.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (s *NATSSender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
