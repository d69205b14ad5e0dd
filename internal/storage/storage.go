package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

var (
	// ErrNotFound is returned when no fingerprint or record exists for a key.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record was written by someone else
	// between read and write (version mismatch or duplicate insert).
	ErrConflict = errors.New("version conflict")
)

// Store persists fingerprints and the current ProcessingRecord per
// (fingerprint, kind).
type Store interface {
	// GetFingerprint returns the fingerprint entry for hash.
	GetFingerprint(ctx context.Context, hash string) (*models.ImageFingerprint, error)

	// TouchFingerprint records one upload of hash: it creates the entry on
	// first sight and otherwise bumps LastSeen and UploadCount.
	TouchFingerprint(ctx context.Context, hash string, kind models.Kind, now time.Time) (*models.ImageFingerprint, error)

	// GetRecord returns the current record for key.
	GetRecord(ctx context.Context, key models.RecordKey) (*models.ProcessingRecord, error)

	// PutRecord inserts or replaces the record for rec.Key(). rec.Version must
	// equal the stored version (0 when absent); on success rec.Version is
	// incremented.
	PutRecord(ctx context.Context, rec *models.ProcessingRecord) error

	// ListRecords returns every current record ordered by creation time.
	ListRecords(ctx context.Context) ([]*models.ProcessingRecord, error)

	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	fingerprints map[string]*models.ImageFingerprint
	records      map[models.RecordKey]*models.ProcessingRecord
	mu           sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fingerprints: make(map[string]*models.ImageFingerprint),
		records:      make(map[models.RecordKey]*models.ProcessingRecord),
	}
}

func (s *MemoryStore) GetFingerprint(ctx context.Context, hash string) (*models.ImageFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, exists := s.fingerprints[hash]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *fp
	return &cp, nil
}

func (s *MemoryStore) TouchFingerprint(ctx context.Context, hash string, kind models.Kind, now time.Time) (*models.ImageFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, exists := s.fingerprints[hash]
	if !exists {
		fp = &models.ImageFingerprint{Hash: hash, Kind: kind, FirstSeen: now}
		s.fingerprints[hash] = fp
	}
	fp.LastSeen = now
	fp.UploadCount++

	cp := *fp
	return &cp, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, key models.RecordKey) (*models.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.records[key]
	if !exists {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) PutRecord(ctx context.Context, rec *models.ProcessingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.records[rec.Key()]; ok {
		current = existing.Version
	}
	if rec.Version != current {
		return ErrConflict
	}

	rec.Version++
	s.records[rec.Key()] = rec.Clone()
	return nil
}

func (s *MemoryStore) ListRecords(ctx context.Context) ([]*models.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ProcessingRecord, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec.Clone())
	}
	sortRecords(result)
	return result, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortRecords(recs []*models.ProcessingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Key().String() < recs[j].Key().String()
	})
}
