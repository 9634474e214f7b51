//go:generate go run go.uber.org/mock/mockgen -source=pending.go -destination=../mocks/mock_pending_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"studyrooms/domain"
)

// PendingRepository persists per-recipient queues of messages awaiting a
// reconnect or poll.
//
// Keys are formatted as "pend:{user_id}:{timestamp_padded}:{uuid}" so a
// forward prefix scan yields entries in enqueue order; the UUID breaks
// ties between two enqueues in the same nanosecond.
type PendingRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPendingRepository(db *badger.DB, log *slog.Logger) *PendingRepository {
	return &PendingRepository{db: db, log: log}
}

type pendingRecord struct {
	Message  diskMessage `json:"message"`
	QueuedAt int64       `json:"queued_at"`
}

func pendingKey(userID string, queuedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("pend:%s:%019d:%s", userID, queuedAt.UnixNano(), id))
}

// Enqueue appends one deliverable copy for the recipient. There is no
// deduplication: each enqueue produces a separate entry.
func (r *PendingRepository) Enqueue(recipientUserID string, msg domain.Message) error {
	queuedAt := time.Now().UTC()
	data, err := json.Marshal(pendingRecord{Message: fromMessage(msg), QueuedAt: queuedAt.UnixNano()})
	if err != nil {
		return err
	}
	// A fresh UUID per entry: the same message enqueued twice must produce
	// two deliverable entries, even within the same nanosecond.
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(recipientUserID, queuedAt, uuid.NewString()), data)
	})
}

// Drain returns every queued message for the recipient in enqueue order
// and deletes them in the same transaction, so each entry is handed out at
// most once. An empty result is not an error.
func (r *PendingRepository) Drain(recipientUserID string) ([]domain.Message, error) {
	var records []diskMessage
	err := r.db.Update(func(txn *badger.Txn) error {
		records = records[:0]
		prefix := []byte(fmt.Sprintf("pend:%s:", recipientUserID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			var record pendingRecord
			if err := json.Unmarshal(value, &record); err != nil {
				it.Close()
				return err
			}
			records = append(records, record.Message)
			keys = append(keys, item.KeyCopy(nil))
		}
		it.Close()

		// Deletion happens in the same transaction as the read: the
		// fetch is destructive or it did not happen at all.
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		r.log.Debug("Pending queue drained", "user_id", recipientUserID, "count", len(records))
	}
	return toMessages(records)
}
