// Command inspect scans the relay's BadgerDB and renders history or
// pending entries as a table. Operator tooling only; it opens the store
// read-only and never mutates it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type storedMessage struct {
	ID              string          `json:"id"`
	RoomType        string          `json:"room_type"`
	RoomID          string          `json:"room_id"`
	Sequence        uint64          `json:"sequence"`
	SenderSessionID string          `json:"sender_session_id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAt       int64           `json:"created_at"`
}

type pendingRecord struct {
	Message  storedMessage `json:"message"`
	QueuedAt int64         `json:"queued_at"`
}

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "hist:", "Prefix to scan (hist: or pend:)")
	limit := flag.Int("limit", 100, "Maximum rows to print")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db flag")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Room", "Seq", "Type", "Sender", "Created At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if rows == *limit {
				break
			}
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				msg, ok := decode(key, v)
				if !ok {
					// Index keys carry no value; skip quietly.
					return nil
				}
				table.Append([]string{
					key,
					msg.RoomType + "/" + msg.RoomID,
					fmt.Sprintf("%d", msg.Sequence),
					msg.Type,
					msg.SenderSessionID,
					time.Unix(0, msg.CreatedAt).UTC().Format(time.RFC3339),
				})
				rows++
				return nil
			})
			if err != nil {
				color.Red.Printf("Error reading key %s: %v\n", key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	color.Green.Printf("%d rows\n", rows)
}

func decode(key string, value []byte) (storedMessage, bool) {
	if len(value) == 0 {
		return storedMessage{}, false
	}
	if len(key) >= 5 && key[:5] == "pend:" {
		var record pendingRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return storedMessage{}, false
		}
		return record.Message, true
	}
	var msg storedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return storedMessage{}, false
	}
	return msg, true
}
