//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history_repository.go -package=mocks
package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"studyrooms/domain"
)

// HistoryRepository persists the per-room append-only message log in
// BadgerDB.
//
// Data keys are formatted as "hist:{roomType}:{roomID}:{seq_padded}" so
// that a prefix scan walks one room's log in sequence order: the 19-digit
// zero padding makes lexicographical order match numeric order.
//
// Each append also writes a time-index key
// "histidx:{establishment}:{timestamp_padded}:{uuid}" with an empty value,
// so establishment-wide counts over a trailing window are a single bounded
// prefix scan instead of a walk over every room.
type HistoryRepository struct {
	db       *badger.DB
	log      *slog.Logger
	maxLimit int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, maxLimit int) *HistoryRepository {
	return &HistoryRepository{db: db, log: log, maxLimit: maxLimit}
}

// diskMessage is the stored representation of a domain.Message.
type diskMessage struct {
	ID              string          `json:"id"`
	RoomType        string          `json:"room_type"`
	RoomID          string          `json:"room_id"`
	Sequence        uint64          `json:"sequence"`
	SenderSessionID string          `json:"sender_session_id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAt       int64           `json:"created_at"`
}

const seqPadding = "9999999999999999999"

func historyKey(key domain.RoomKey, seq uint64) []byte {
	return []byte(fmt.Sprintf("hist:%s:%s:%019d", key.Type, key.ID, seq))
}

func historyPrefix(key domain.RoomKey) []byte {
	return []byte(fmt.Sprintf("hist:%s:%s:", key.Type, key.ID))
}

func timeIndexKey(establishmentID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("histidx:%s:%019d:%s", establishmentID, at.UnixNano(), id))
}

// Append durably records an accepted message. Both the data key and the
// establishment time index are written in one transaction.
func (r *HistoryRepository) Append(establishmentID string, msg domain.Message) error {
	data, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(historyKey(msg.Room, msg.Sequence), data); err != nil {
			return err
		}
		return txn.Set(timeIndexKey(establishmentID, msg.CreatedAt, msg.ID), nil)
	})
}

// Page reads one page of a room's log, newest first. beforeSequence is an
// exclusive cursor; nil starts from the latest message. The limit is
// clamped to the repository's configured maximum.
func (r *HistoryRepository) Page(key domain.RoomKey, beforeSequence *uint64, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > r.maxLimit {
		limit = r.maxLimit
	}

	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := historyPrefix(key)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch beforeSequence {
		case nil:
			seekKey = append(append([]byte{}, prefix...), []byte(seqPadding)...)
		default:
			seekKey = historyKey(key, *beforeSequence)
		}

		it.Seek(seekKey)
		// The cursor itself is excluded from the page. A reverse seek on a
		// sequence absent from the log (a gap) already lands on the next
		// older message, which belongs in the page.
		if beforeSequence != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(raw) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			raw = append(raw, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		msg, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// LastSequence returns the highest sequence recorded for the room, or 0
// when the room has no history. The directory uses it to seed a recreated
// room's counter.
func (r *HistoryRepository) LastSequence(key domain.RoomKey) (uint64, error) {
	var last uint64
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := historyPrefix(key)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), []byte(seqPadding)...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		k := it.Item().Key()
		seq, err := strconv.ParseUint(string(k[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("malformed history key %q: %w", string(k), err)
		}
		last = seq
		return nil
	})
	return last, err
}

// CountSince counts the establishment's messages recorded at or after the
// given instant, via the time index.
func (r *HistoryRepository) CountSince(establishmentID string, since time.Time) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("histidx:%s:", establishmentID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := []byte(fmt.Sprintf("histidx:%s:%019d", establishmentID, since.UnixNano()))
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:              msg.ID.String(),
		RoomType:        msg.Room.Type,
		RoomID:          msg.Room.ID,
		Sequence:        msg.Sequence,
		SenderSessionID: msg.SenderSessionID,
		Type:            string(msg.Type),
		Payload:         msg.Payload,
		CreatedAt:       msg.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:              parsedID,
		Room:            domain.RoomKey{Type: dm.RoomType, ID: dm.RoomID},
		Sequence:        dm.Sequence,
		SenderSessionID: dm.SenderSessionID,
		Type:            domain.MessageType(dm.Type),
		Payload:         dm.Payload,
		CreatedAt:       time.Unix(0, dm.CreatedAt).UTC(),
	}, nil
}

func toMessages(dms []diskMessage) ([]domain.Message, error) {
	var firstErr error
	messages := lo.FilterMap(dms, func(dm diskMessage, _ int) (domain.Message, bool) {
		msg, err := toMessage(dm)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return msg, err == nil
	})
	return messages, firstErr
}
