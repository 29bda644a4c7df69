package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Row is a human readable view of one stored key.
type Row struct {
	Key      string
	Type     string
	EntityID string
	At       time.Time
	Detail   string
}

// Inspect decodes up to limit records under prefix, limit <= 0 meaning all.
// Password hashes are never part of a row.
func (s *Store) Inspect(prefix string, limit int) ([]Row, error) {
	var rows []Row
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(rows) >= limit {
				return nil
			}
			key := string(it.Item().Key())
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rows = append(rows, describe(key, value))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inspect %q: %w", prefix, err)
	}
	return rows, nil
}

func describe(key string, value []byte) Row {
	row := Row{Key: key, Type: strings.SplitN(key, ":", 2)[0]}
	var err error
	switch row.Type {
	case "user":
		var r userRecord
		if err = decode(value, &r); err == nil {
			row.EntityID, row.At, row.Detail = r.ID, fromNanos(r.At), r.Username
		}
	case "group":
		var r groupRecord
		if err = decode(value, &r); err == nil {
			row.EntityID, row.At = r.ID, fromNanos(r.At)
			row.Detail = fmt.Sprintf("%s (by %s, active=%t)", r.Name, r.CreatedBy, r.IsActive)
		}
	case "member", "membership":
		var r membershipRecord
		if err = decode(value, &r); err == nil {
			row.EntityID, row.At = strings.TrimPrefix(key, row.Type+":"), fromNanos(r.At)
		}
	case "dm", "gm":
		var r messageRecord
		if err = decode(value, &r); err == nil {
			row.EntityID, row.At = fmt.Sprintf("#%d", r.Seq), fromNanos(r.At)
			row.Detail = fmt.Sprintf("%s: %s", r.SenderID, r.Content)
		}
	default:
		row.Detail = fmt.Sprintf("%d bytes", len(value))
	}
	if err != nil {
		row.Detail = "undecodable: " + err.Error()
	}
	return row
}
