package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	entriesBucketName = "export_entries"
	dataBucketName    = "export_data"
)

// Entry describes one archived export.
type Entry struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// BoltSink implements the Sink interface as an archive of exports in BoltDB.
// Writing an existing name replaces it.
type BoltSink struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltSink opens or creates the archive at path
func NewBoltSink(path string) (*BoltSink, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(entriesBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(dataBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltSink{db: db, now: time.Now}, nil
}

// WriteText archives a text export
func (b *BoltSink) WriteText(name, contentType, text string) error {
	return b.WriteBinary(name, contentType, []byte(text))
}

// WriteBinary archives a binary export
func (b *BoltSink) WriteBinary(name, contentType string, data []byte) error {
	entry := Entry{
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		CreatedAt:   b.now().UTC(),
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		meta, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		if err := tx.Bucket([]byte(entriesBucketName)).Put([]byte(name), meta); err != nil {
			return fmt.Errorf("saving entry: %w", err)
		}
		if err := tx.Bucket([]byte(dataBucketName)).Put([]byte(name), data); err != nil {
			return fmt.Errorf("saving data: %w", err)
		}
		return nil
	})
}

// List returns all archived exports, newest first
func (b *BoltSink) List() ([]Entry, error) {
	entries := make([]Entry, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(entriesBucketName)).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Get returns an archived export and its data
func (b *BoltSink) Get(name string) (*Entry, []byte, error) {
	var (
		entry Entry
		data  []byte
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(entriesBucketName)).Get([]byte(name))
		if meta == nil {
			return fmt.Errorf("getting %s: %w", name, ErrNotFound)
		}
		if err := json.Unmarshal(meta, &entry); err != nil {
			return fmt.Errorf("unmarshaling entry: %w", err)
		}
		// Values are only valid inside the transaction.
		data = append([]byte(nil), tx.Bucket([]byte(dataBucketName)).Get([]byte(name))...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &entry, data, nil
}

// Delete removes an archived export
func (b *BoltSink) Delete(name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(entriesBucketName)).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket([]byte(dataBucketName)).Delete([]byte(name))
	})
}

// Close closes the database connection
func (b *BoltSink) Close() error {
	return b.db.Close()
}
