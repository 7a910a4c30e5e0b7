package delivery

import (
	"context"
	"errors"
	"log/slog"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/ports"
)

// Encoder turns a payload into the wire bytes shared by webhook and fallback.
type Encoder func(domain.Payload) ([]byte, error)

// Sink delivers a digest through the webhook, falling back to a local file.
// Exactly one of the two channels receives the digest per call.
type Sink struct {
	encode   Encoder
	webhook  ports.WebhookSender
	fallback ports.FallbackStore
	logger   *slog.Logger
}

var _ ports.Deliverer = (*Sink)(nil)

// NewSink wires the channels. A nil webhook sends every digest straight to
// the fallback store.
func NewSink(encode Encoder, webhook ports.WebhookSender, fallback ports.FallbackStore, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sink{encode: encode, webhook: webhook, fallback: fallback, logger: logger}
}

// Deliver makes one webhook attempt. On failure the same bytes are written
// through the fallback store. A returned error is always a
// *domain.FallbackWriteError and means the digest reached neither channel.
func (s *Sink) Deliver(ctx context.Context, payload domain.Payload) (domain.DeliveryResult, error) {
	body, err := s.encode(payload)
	if err != nil {
		// Nothing can be persisted without an encoding.
		werr := &domain.FallbackWriteError{Err: err}
		return domain.DeliveryResult{Outcome: domain.OutcomeFailed, Err: err}, werr
	}

	var sendErr error
	if s.webhook != nil {
		sendErr = s.webhook.Send(ctx, body)
		if sendErr == nil {
			s.logger.Info("digest delivered", "entries", len(payload.Entries))
			return domain.DeliveryResult{Outcome: domain.OutcomeDelivered}, nil
		}
		sendErr = &domain.DeliveryError{Err: sendErr}
		s.logger.Warn("webhook delivery failed, writing fallback", "error", sendErr)
	} else {
		sendErr = &domain.DeliveryError{Err: errors.New("no webhook configured")}
		s.logger.Info("no webhook configured, writing fallback")
	}

	if s.fallback == nil {
		werr := &domain.FallbackWriteError{Err: errors.New("no fallback store configured")}
		return domain.DeliveryResult{Outcome: domain.OutcomeFailed, Err: sendErr}, werr
	}

	// The fallback must land even when the run context was cancelled mid-send.
	path, err := s.fallback.WritePayload(context.WithoutCancel(ctx), payload.GeneratedAt, body)
	if err != nil {
		werr := &domain.FallbackWriteError{Path: path, Err: err}
		s.logger.Error("fallback write failed", "error", werr)
		return domain.DeliveryResult{Outcome: domain.OutcomeFailed, Err: sendErr}, werr
	}

	s.logger.Info("digest written to fallback", "path", path)
	return domain.DeliveryResult{
		Outcome:      domain.OutcomeFallbackWritten,
		FallbackPath: path,
		Err:          sendErr,
	}, nil
}
