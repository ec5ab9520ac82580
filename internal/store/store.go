// Package store persists campaign aggregates in BoltDB, one JSON document
// per campaign. All mutations go through Update, which runs load -> mutate
// -> save inside a single write transaction: the campaign is the unit of
// concurrency and its queue is never mutated concurrently.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ptrelli/wadrip/internal/campaign"
)

var bucketCampaigns = []byte("campaigns")

// ErrNotFound is returned when a campaign does not exist
var ErrNotFound = errors.New("campaign not found")

// Store is a BoltDB-backed campaign store
type Store struct {
	db *bolt.DB
}

// Open opens the campaign database at path
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCampaigns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Put stores a campaign document
func (s *Store) Put(c *campaign.Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).Put([]byte(c.ID), data)
	})
}

// Get loads a campaign by id
func (s *Store) Get(id string) (*campaign.Campaign, error) {
	var c *campaign.Campaign
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCampaigns).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		c = &campaign.Campaign{}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to unmarshal campaign %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.Reindex()
	return c, nil
}

// Update applies fn to the campaign inside one write transaction. The
// mutated aggregate is saved only when fn returns nil, and the saved copy
// is returned.
func (s *Store) Update(id string, fn func(c *campaign.Campaign) error) (*campaign.Campaign, error) {
	var c *campaign.Campaign
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCampaigns)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		c = &campaign.Campaign{}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to unmarshal campaign %s: %w", id, err)
		}
		c.Reindex()

		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now()

		updated, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal campaign: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all campaigns
func (s *Store) List() ([]*campaign.Campaign, error) {
	var campaigns []*campaign.Campaign
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).ForEach(func(k, v []byte) error {
			c := &campaign.Campaign{}
			if err := json.Unmarshal(v, c); err != nil {
				return fmt.Errorf("failed to unmarshal campaign %s: %w", k, err)
			}
			c.Reindex()
			campaigns = append(campaigns, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// ListByStatus returns campaigns with the given lifecycle status
func (s *Store) ListByStatus(status campaign.Status) ([]*campaign.Campaign, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, c := range all {
		if c.Status == status {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Delete removes a campaign document
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).Delete([]byte(id))
	})
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
