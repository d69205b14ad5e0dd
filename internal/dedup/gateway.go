// Package dedup decides whether an uploaded sheet can reuse a previous
// extraction.
//
// Uploads are keyed by a content digest. A prior ProcessingRecord is only
// offered for reuse after every artifact it references has been found on the
// storage backend; otherwise the candidate is reported as stale together with
// the missing paths and the caller decides whether to reprocess. The gateway
// never falls back on its own.
//
// Lookups and upserts for the same fingerprint are serialized. Different
// fingerprints never block each other.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fizic37/Delcampe-sub011/internal/boundary"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
)

var (
	// ErrPersistenceConflict is returned when an upsert lost the race twice.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrNotReusable is returned when restoring from a stale or empty candidate.
	ErrNotReusable = errors.New("candidate is not reusable")
)

// Status classifies a reuse candidate.
type Status string

const (
	// StatusReusable means every recorded artifact still exists.
	StatusReusable Status = "reusable"
	// StatusStale means at least one recorded artifact is gone.
	StatusStale Status = "stale"
)

// ReuseCandidate is a prior record offered to the caller for reuse.
type ReuseCandidate struct {
	Record  *models.ProcessingRecord `json:"record"`
	Status  Status                   `json:"status"`
	Missing []string                 `json:"missing,omitempty"`
}

// Upload is the outcome of registering one upload.
type Upload struct {
	Fingerprint *models.ImageFingerprint `json:"fingerprint"`
	Candidate   *ReuseCandidate          `json:"reuse_candidate,omitempty"`
}

// Restored is a reusable record turned back into boundary sets.
type Restored struct {
	H             boundary.Set
	V             boundary.Set
	ArtifactPaths []string
}

// Gateway is the deduplication and reuse front door.
type Gateway struct {
	store   storage.Store
	checker storage.ArtifactChecker
	locks   *keyedMutex
	now     func() time.Time
}

// NewGateway creates a gateway over store, checking artifacts with checker.
func NewGateway(store storage.Store, checker storage.ArtifactChecker) *Gateway {
	return &Gateway{
		store:   store,
		checker: checker,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Register counts one upload of hash and looks up a prior record for kind.
// The upload counter moves on every call, whether the caller later reuses or
// reprocesses.
func (g *Gateway) Register(ctx context.Context, hash string, kind models.Kind) (*Upload, error) {
	unlock := g.locks.Lock(hash)
	defer unlock()

	fp, err := g.store.TouchFingerprint(ctx, hash, kind, g.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	upload := &Upload{Fingerprint: fp}

	rec, found, err := g.lookup(ctx, hash, kind)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Info("No prior extraction", "fingerprint", hash, "kind", kind, "uploads", fp.UploadCount)
		return upload, nil
	}

	cand, err := g.Evaluate(ctx, rec)
	if err != nil {
		return nil, err
	}
	upload.Candidate = cand
	return upload, nil
}

// Lookup returns the current record for (hash, kind), if any.
func (g *Gateway) Lookup(ctx context.Context, hash string, kind models.Kind) (*models.ProcessingRecord, bool, error) {
	unlock := g.locks.Lock(hash)
	defer unlock()
	return g.lookup(ctx, hash, kind)
}

func (g *Gateway) lookup(ctx context.Context, hash string, kind models.Kind) (*models.ProcessingRecord, bool, error) {
	rec, err := g.store.GetRecord(ctx, models.RecordKey{Hash: hash, Kind: kind})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up %s/%s: %w", hash, kind, err)
	}
	return rec, true, nil
}

// ValidateArtifacts returns the recorded artifact paths that no longer
// exist. Empty slots of a partial extraction were never produced and are not
// reported.
func (g *Gateway) ValidateArtifacts(ctx context.Context, rec *models.ProcessingRecord) ([]string, error) {
	var missing []string
	for _, p := range rec.ArtifactPaths {
		if p == "" {
			continue
		}
		ok, err := g.checker.Exists(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to check artifact %s: %w", p, err)
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// Evaluate turns a found record into a reuse candidate.
func (g *Gateway) Evaluate(ctx context.Context, rec *models.ProcessingRecord) (*ReuseCandidate, error) {
	missing, err := g.ValidateArtifacts(ctx, rec)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		slog.Warn("Stale reuse candidate", "fingerprint", rec.FingerprintHash, "kind", rec.Kind,
			"missing", len(missing), "recorded", len(rec.Produced()))
		return &ReuseCandidate{Record: rec, Status: StatusStale, Missing: missing}, nil
	}

	slog.Info("Reuse candidate found", "fingerprint", rec.FingerprintHash, "kind", rec.Kind,
		"grid", fmt.Sprintf("%dx%d", rec.GridRows, rec.GridCols), "complete", rec.Complete)
	return &ReuseCandidate{Record: rec, Status: StatusReusable}, nil
}

// RestoreBoundaries returns the exact persisted boundary sets and artifact
// paths of a reusable candidate. The sets are never re-derived from the grid
// counts.
func RestoreBoundaries(cand *ReuseCandidate) (*Restored, error) {
	if cand == nil || cand.Record == nil || cand.Status != StatusReusable {
		return nil, ErrNotReusable
	}
	rec := cand.Record

	h, err := boundary.Restore(models.AxisH, rec.BoundariesH, rec.NaturalH)
	if err != nil {
		return nil, err
	}
	v, err := boundary.Restore(models.AxisV, rec.BoundariesV, rec.NaturalW)
	if err != nil {
		return nil, err
	}
	if h.Cells() != rec.GridRows || v.Cells() != rec.GridCols {
		// stored counts are informational; the arrays win
		slog.Warn("Stored grid counts disagree with boundaries", "fingerprint", rec.FingerprintHash,
			"stored", fmt.Sprintf("%dx%d", rec.GridRows, rec.GridCols),
			"derived", fmt.Sprintf("%dx%d", h.Cells(), v.Cells()))
	}

	return &Restored{H: h, V: v, ArtifactPaths: append([]string(nil), rec.ArtifactPaths...)}, nil
}

// Upsert stores rec as the current record of its (fingerprint, kind),
// replacing any previous one. A lost race is retried once before
// ErrPersistenceConflict is returned.
func (g *Gateway) Upsert(ctx context.Context, rec *models.ProcessingRecord) error {
	_, err := g.Replace(ctx, rec)
	return err
}

// Replace is Upsert that also returns the record it replaced, or nil when
// rec is the first for its key.
func (g *Gateway) Replace(ctx context.Context, rec *models.ProcessingRecord) (*models.ProcessingRecord, error) {
	unlock := g.locks.Lock(rec.FingerprintHash)
	defer unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var current *models.ProcessingRecord
		current, err = g.store.GetRecord(ctx, rec.Key())
		switch {
		case errors.Is(err, storage.ErrNotFound):
			current = nil
			rec.Version = 0
		case err != nil:
			return nil, fmt.Errorf("failed to read current record: %w", err)
		default:
			rec.Version = current.Version
		}

		err = g.store.PutRecord(ctx, rec)
		if err == nil {
			slog.Info("Processing record stored", "fingerprint", rec.FingerprintHash, "kind", rec.Kind,
				"version", rec.Version, "complete", rec.Complete)
			return current, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("failed to store record: %w", err)
		}
		slog.Warn("Record upsert conflict", "fingerprint", rec.FingerprintHash, "kind", rec.Kind, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: %s", ErrPersistenceConflict, rec.Key())
}

// Fingerprint returns the stored fingerprint entry for hash.
func (g *Gateway) Fingerprint(ctx context.Context, hash string) (*models.ImageFingerprint, error) {
	return g.store.GetFingerprint(ctx, hash)
}
