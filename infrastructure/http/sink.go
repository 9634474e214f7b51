package http

import (
	"context"
	"fmt"

	"studyrooms/domain"
)

// ChannelSink bridges the router's fan-out to one streaming connection.
// Deliver must never block the send path: a full buffer means the
// connection is not keeping up, and the router treats that copy as
// undeliverable so it degrades to the pending queue.
type ChannelSink struct {
	Events chan domain.Message
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan domain.Message, bufferSize)}
}

func (s *ChannelSink) Deliver(ctx context.Context, msg domain.Message) error {
	select {
	case s.Events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("stream buffer full")
	}
}
