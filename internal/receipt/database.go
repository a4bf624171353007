package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	recordBucketName = "receipts"
	nameBucketName   = "item_names"
	aliasBucketName  = "item_aliases"
)

// DB defines the interface for database operations.
type DB interface {
	// SaveRecord saves a record to the database
	SaveRecord(record *Record) error

	// GetRecord retrieves a record by ID
	GetRecord(id string) (*Record, error)

	// ListRecords returns all records
	ListRecords() ([]*Record, error)

	// DeleteRecord removes a record from the database
	DeleteRecord(id string) error

	// CanonicalName resolves a raw item name to its canonical form. The
	// second return is false when the name is unknown.
	CanonicalName(name string) (string, bool, error)

	// SaveCanonicalName records a canonical name and, when alias differs
	// from it, the alias mapping
	SaveCanonicalName(alias, canonical string) error

	// Close closes the database connection
	Close() error
}

// nameAlias is the stored mapping from a raw OCR item name to its canonical
// name, with an occurrence counter.
type nameAlias struct {
	Canonical string `json:"canonical"`
	Count     int    `json:"count"`
}

// BoltDB implements the DB interface using BoltDB.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{recordBucketName, nameBucketName, aliasBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveRecord saves a record to the database.
func (b *BoltDB) SaveRecord(record *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetRecord retrieves a record by ID.
func (b *BoltDB) GetRecord(id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("record not found: %s", id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns all records.
func (b *BoltDB) ListRecords() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecord removes a record from the database.
func (b *BoltDB) DeleteRecord(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		return bucket.Delete([]byte(id))
	})
}

// CanonicalName resolves a raw item name. A name stored as canonical maps
// to itself; a known alias bumps its occurrence counter and maps to its
// canonical form.
func (b *BoltDB) CanonicalName(name string) (string, bool, error) {
	var (
		canonical string
		found     bool
	)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(nameBucketName)).Get([]byte(name)) != nil {
			canonical, found = name, true
			return nil
		}

		aliases := tx.Bucket([]byte(aliasBucketName))
		data := aliases.Get([]byte(name))
		if data == nil {
			return nil
		}

		var alias nameAlias
		if err := json.Unmarshal(data, &alias); err != nil {
			return fmt.Errorf("unmarshaling alias: %w", err)
		}
		alias.Count++
		updated, err := json.Marshal(alias)
		if err != nil {
			return fmt.Errorf("marshaling alias: %w", err)
		}
		if err := aliases.Put([]byte(name), updated); err != nil {
			return err
		}
		canonical, found = alias.Canonical, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return canonical, found, nil
}

// SaveCanonicalName stores canonical in the name bucket and, when the alias
// differs, the alias mapping with an initial count of one.
func (b *BoltDB) SaveCanonicalName(alias, canonical string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(nameBucketName)).Put([]byte(canonical), []byte{1}); err != nil {
			return err
		}
		if alias == canonical {
			return nil
		}
		data, err := json.Marshal(nameAlias{Canonical: canonical, Count: 1})
		if err != nil {
			return fmt.Errorf("marshaling alias: %w", err)
		}
		return tx.Bucket([]byte(aliasBucketName)).Put([]byte(alias), data)
	})
}

// Close closes the database connection.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
