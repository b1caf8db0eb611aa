package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"entitlement-manager/core/blobstore"
)

const lockStripes = 64

// Store persists entitlement records as JSON blobs keyed by user and product.
// Writers use Update for per-key read-modify-write.
type Store struct {
	backing blobstore.Backing
	prefix  string
	locks   [lockStripes]sync.Mutex
}

// NewStore creates a Store over backing. Keys are prefix/userID/productID.
func NewStore(backing blobstore.Backing, prefix string) *Store {
	return &Store{backing: backing, prefix: prefix}
}

// Key returns the blob key of a record.
func (s *Store) Key(userID, productID string) string {
	if s.prefix == "" {
		return userID + "/" + productID
	}
	return s.prefix + "/" + userID + "/" + productID
}

// Get returns the stored record, or nil when none exists.
func (s *Store) Get(ctx context.Context, userID, productID string) (*EntitlementRecord, error) {
	data, err := s.backing.Get(ctx, s.Key(userID, productID))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec EntitlementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", s.Key(userID, productID), err)
	}
	return &rec, nil
}

// Put overwrites the record under its key.
func (s *Store) Put(ctx context.Context, rec *EntitlementRecord) error {
	mu := s.lock(rec.UserID, rec.ProductID)
	mu.Lock()
	defer mu.Unlock()
	return s.put(ctx, rec)
}

func (s *Store) put(ctx context.Context, rec *EntitlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.backing.Put(ctx, s.Key(rec.UserID, rec.ProductID), data)
}

// Update applies mutate to the stored record under the key lock. mutate reports
// whether it changed the record; unchanged or missing records are not written.
func (s *Store) Update(ctx context.Context, userID, productID string, mutate func(rec *EntitlementRecord) bool) (*EntitlementRecord, error) {
	mu := s.lock(userID, productID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.Get(ctx, userID, productID)
	if err != nil || rec == nil {
		return rec, err
	}
	if !mutate(rec) {
		return rec, nil
	}
	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Load returns the stored records of userID for productIDs, keyed by product.
func (s *Store) Load(ctx context.Context, userID string, productIDs []string) (map[string]*EntitlementRecord, error) {
	records := make(map[string]*EntitlementRecord, len(productIDs))
	for _, productID := range productIDs {
		rec, err := s.Get(ctx, userID, productID)
		if err != nil {
			return nil, storageError(userID, productID, err)
		}
		if rec != nil {
			records[productID] = rec
		}
	}
	return records, nil
}

func (s *Store) lock(userID, productID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(productID))
	return &s.locks[h.Sum32()%lockStripes]
}
