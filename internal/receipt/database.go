package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const scansBucket = "scans"

// DB defines the persistence interface for the scan history.
type DB interface {
	// SaveScan stores a scan keyed by its job id.
	SaveScan(scan *Scan) error

	// GetScan retrieves a scan by job id.
	GetScan(id string) (*Scan, error)

	// ListScans returns all stored scans, newest first.
	ListScans() ([]*Scan, error)

	// DeleteScan removes a scan.
	DeleteScan(id string) error

	// Close closes the database.
	Close() error
}

// BoltDB implements DB on a local bbolt file.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the scan history database.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(scansBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveScan stores a scan keyed by its job id.
func (b *BoltDB) SaveScan(scan *Scan) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scansBucket))
		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return bucket.Put([]byte(scan.ID), data)
	})
}

// GetScan retrieves a scan by job id.
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var scan *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scansBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("scan not found: %s", id)
		}
		return json.Unmarshal(data, &scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// ListScans returns all stored scans, newest first.
func (b *BoltDB) ListScans() ([]*Scan, error) {
	scans := make([]*Scan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scansBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var scan Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

// DeleteScan removes a scan.
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scansBucket))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
