package controlplane

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"artemis-core/internal/config"
	"artemis-core/internal/prefixtree"
)

const bucketConfig = "last_config"
const keyConfig = "document"

// Snapshot persists the last successfully applied configuration document so
// a restarted control plane can answer /health honestly before a fresh
// configuration arrives over the wire (spec §6 notes the core itself owns
// no persisted state; this is purely a restart convenience).
type Snapshot struct {
	db *bbolt.DB
}

// OpenSnapshot opens or creates the snapshot database at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), config.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := bbolt.Open(path, config.DBFilePermissions, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketConfig))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot bucket: %w", err)
	}

	return &Snapshot{db: db}, nil
}

// Close closes the underlying database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Save persists doc as the last-applied configuration.
func (s *Snapshot) Save(doc prefixtree.ConfigDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketConfig)).Put([]byte(keyConfig), body)
	})
}

// Load returns the last-persisted configuration document, if any.
func (s *Snapshot) Load() (prefixtree.ConfigDocument, bool, error) {
	var doc prefixtree.ConfigDocument
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		body := tx.Bucket([]byte(bucketConfig)).Get([]byte(keyConfig))
		if body == nil {
			return nil
		}
		found = true
		return json.Unmarshal(body, &doc)
	})
	if err != nil {
		return prefixtree.ConfigDocument{}, false, fmt.Errorf("failed to load configuration snapshot: %w", err)
	}
	return doc, found, nil
}
