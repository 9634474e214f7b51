package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studyrooms/contract"
	"studyrooms/domain"
	"studyrooms/errors"
)

// MessageRouter accepts a send request, assigns it a sequence number,
// appends it durably to history, fans it out to live members, and queues a
// pending copy for every roster user without a live session.
//
// The whole decision runs under the room's serialization point (see
// RoomDirectory.Reserve), which is what gives observers a single total
// order per room whether they read the live stream or the history log.
type MessageRouter struct {
	registry  *SessionRegistry
	directory *RoomDirectory
	history   contract.IHistoryStore
	pending   contract.IPendingStore
	log       *slog.Logger
}

func NewMessageRouter(
	log *slog.Logger,
	registry *SessionRegistry,
	directory *RoomDirectory,
	history contract.IHistoryStore,
	pending contract.IPendingStore,
) *MessageRouter {
	return &MessageRouter{
		registry:  registry,
		directory: directory,
		history:   history,
		pending:   pending,
		log:       log,
	}
}

// Send relays one message to a room. The durable history append happens
// before the caller is acknowledged; live fan-out is best effort and a
// failed individual delivery degrades to the pending queue without
// affecting the overall send. A retried send gets a fresh sequence number:
// the router does not deduplicate caller retries.
func (r *MessageRouter) Send(ctx context.Context, sessionID string, key domain.RoomKey, msgType domain.MessageType, payload []byte) (domain.Message, error) {
	sender, err := r.registry.Get(sessionID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:              uuid.New(),
		Room:            key,
		SenderSessionID: sessionID,
		Type:            msgType,
		Payload:         json.RawMessage(payload),
		CreatedAt:       time.Now().UTC(),
	}

	err = r.directory.Reserve(key, sessionID, func(seq uint64, members map[string]string, roster []string) error {
		msg.Sequence = seq
		if err := r.history.Append(sender.EstablishmentID, msg); err != nil {
			// The counter already advanced; the gap is accepted rather
			// than rewound, to avoid renumbering races.
			return fmt.Errorf("%w: appending message %s: %v", errors.ErrPersistence, msg.ID, err)
		}
		r.fanout(ctx, msg, sender.UserID, members, roster)
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	return msg, nil
}

// fanout delivers the accepted message to every roster user except the
// sender. A user is delivered live when at least one of their member
// sessions has a working transport sink; otherwise one pending copy is
// queued for them. Delivery failures are absorbed here and never reach the
// sender.
func (r *MessageRouter) fanout(ctx context.Context, msg domain.Message, senderUserID string, members map[string]string, roster []string) {
	for _, userID := range roster {
		if userID == senderUserID {
			continue
		}

		delivered := false
		for sessionID, memberUserID := range members {
			if memberUserID != userID {
				continue
			}
			sink := r.registry.LiveSink(sessionID)
			if sink == nil {
				continue
			}
			if err := sink.Deliver(ctx, msg); err != nil {
				r.log.Debug("Live delivery failed, falling back to pending",
					"session_id", sessionID, "room", msg.Room.String(), "error", err)
				continue
			}
			delivered = true
		}

		if !delivered {
			if err := r.pending.Enqueue(userID, msg); err != nil {
				r.log.Error("Failed to queue pending delivery",
					"user_id", userID, "message_id", msg.ID, "error", err)
			}
		}
	}
}
