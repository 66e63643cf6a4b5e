package services

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

var conversationsBucket = []byte("conversations")

// BoltCache keeps the most recent conversation summaries on disk so the
// sidebar can render before the first round-trip to the agent service. It is
// a cache, not a source of truth; the service listing always wins.
type BoltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (or creates) the cache database at path. The database
// file is created with 0600 permissions if it doesn't exist.
func NewBoltCache(path string) (BoltCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltCache{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})

	return BoltCache{db: db}, err
}

// Conversations returns the cached summaries in unspecified order; callers
// are expected to sort by last activity.
func (c BoltCache) Conversations() ([]models.Conversation, error) {
	var convs []models.Conversation
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var conv models.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// SaveConversations replaces the cached summaries with the given snapshot.
func (c BoltCache) SaveConversations(convs []models.Conversation) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(conversationsBucket); err != nil {
			return fmt.Errorf("failed to clear conversations bucket: %w", err)
		}
		b, err := tx.CreateBucket(conversationsBucket)
		if err != nil {
			return fmt.Errorf("failed to recreate conversations bucket: %w", err)
		}

		for _, conv := range convs {
			v, err := json.Marshal(conv)
			if err != nil {
				return fmt.Errorf("failed to marshal conversation: %w", err)
			}
			if err := b.Put([]byte(conv.ID), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying database file.
func (c BoltCache) Close() error {
	return c.db.Close()
}
