// Package session is the editing surface for one uploaded sheet: upload,
// reuse decision, viewport resizes, boundary drags and extraction.
//
// A Session serializes every edit under its own mutex. Only extraction runs
// outside the lock; uploading a new sheet cancels it and bumps the session
// generation so its result is never persisted.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fizic37/Delcampe-sub011/internal/boundary"
	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/detector"
	"github.com/fizic37/Delcampe-sub011/internal/extraction"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/viewport"
)

var (
	ErrNoImage     = errors.New("no image loaded")
	ErrNoCandidate = errors.New("no reuse candidate pending")
	// ErrStaleBounds means the caller converted a drag with bounds that do
	// not match the current image and container.
	ErrStaleBounds = errors.New("viewport bounds are stale")
	ErrBadIndex    = errors.New("boundary index out of range")
	ErrBadAction   = errors.New("unknown decision")
)

// Action is the caller's answer to a reuse candidate.
type Action string

const (
	ActionReuse     Action = "reuse"
	ActionReprocess Action = "reprocess"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Gateway      *dedup.Gateway
	Orchestrator *extraction.Orchestrator
	Detector     detector.Detector
	Cleaner      detector.Cleaner
	UploadsDir   string
	DefaultRows  int
	DefaultCols  int
	Strict       bool

	// OutputDir returns the artifact directory of a fingerprint and kind.
	OutputDir func(hash string, kind models.Kind) string
}

// Session is one editing session.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps *Deps

	mu         sync.Mutex
	sheet      *Sheet
	kind       models.Kind
	grid       *boundary.Grid
	resizer    *viewport.Coalescer
	candidate  *dedup.ReuseCandidate
	record     *models.ProcessingRecord
	missing    []int
	generation uint64
	cancel     context.CancelFunc
	updatedAt  time.Time
}

// New creates an empty session.
func New(deps *Deps) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		updatedAt: now,
		deps:      deps,
	}
}

// UploadResult is returned by OnUpload.
type UploadResult struct {
	SessionID   string                   `json:"session_id"`
	Fingerprint *models.ImageFingerprint `json:"fingerprint"`
	Sheet       *Sheet                   `json:"sheet"`
	Candidate   *dedup.ReuseCandidate    `json:"reuse_candidate,omitempty"`
	Snapshot    Snapshot                 `json:"session"`
}

// OnUpload stores data, registers the upload and seeds a fresh grid. Any
// reuse candidate is returned for the caller to decide on; the session does
// not reuse on its own. An upload replaces the current sheet and discards
// any extraction still running for it.
func (s *Session) OnUpload(ctx context.Context, data []byte, filename string, kind models.Kind) (*UploadResult, error) {
	sheet, err := SaveSheet(s.deps.UploadsDir, data, filename)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, sheet, kind)
}

// Load is OnUpload for a sheet that is already on disk.
func (s *Session) Load(ctx context.Context, sheet *Sheet, kind models.Kind) (*UploadResult, error) {
	resizer, err := viewport.NewCoalescer(sheet.NaturalW, sheet.NaturalH)
	if err != nil {
		return nil, err
	}

	up, err := s.deps.Gateway.Register(ctx, sheet.Hash, kind)
	if err != nil {
		return nil, err
	}

	grid, err := s.seed(ctx, sheet)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.supersede()
	s.sheet = sheet
	s.kind = kind
	s.grid = grid
	s.resizer = resizer
	s.candidate = up.Candidate
	s.record = nil
	s.missing = nil
	s.touch()
	snap := s.snapshot()
	s.mu.Unlock()

	slog.Info("Sheet loaded", "session_id", s.ID, "fingerprint", sheet.Hash, "kind", kind,
		"width", sheet.NaturalW, "height", sheet.NaturalH, "candidate", up.Candidate != nil)

	return &UploadResult{
		SessionID:   s.ID,
		Fingerprint: up.Fingerprint,
		Sheet:       sheet,
		Candidate:   up.Candidate,
		Snapshot:    snap,
	}, nil
}

// seed builds the initial grid from the detector, or an even grid when the
// detector finds nothing or fails.
func (s *Session) seed(ctx context.Context, sheet *Sheet) (*boundary.Grid, error) {
	if s.deps.Detector != nil {
		lines, err := s.deps.Detector.Detect(ctx, sheet.Path)
		if err != nil {
			slog.Warn("Detector failed, using even grid", "fingerprint", sheet.Hash, "error", err)
		} else {
			lines = s.deps.Cleaner.Apply(lines, sheet.NaturalW, sheet.NaturalH)
			if !lines.Empty() {
				return boundary.NewGridFromDetector(sheet.NaturalW, sheet.NaturalH, lines.H, lines.V)
			}
		}
	}
	return boundary.NewGrid(sheet.NaturalW, sheet.NaturalH, max(1, s.deps.DefaultRows), max(1, s.deps.DefaultCols))
}

// supersede cancels in-flight extraction. Callers hold s.mu.
func (s *Session) supersede() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

// Decide answers the pending reuse candidate. Reuse restores the stored
// boundaries and artifacts exactly; a stale candidate cannot be reused.
// Reprocess drops the candidate and keeps the freshly seeded grid.
func (s *Session) Decide(action Action) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheet == nil {
		return Snapshot{}, ErrNoImage
	}
	if s.candidate == nil {
		return Snapshot{}, ErrNoCandidate
	}

	switch action {
	case ActionReuse:
		restored, err := dedup.RestoreBoundaries(s.candidate)
		if err != nil {
			return Snapshot{}, err
		}
		grid, err := boundary.RestoreGrid(s.sheet.NaturalW, s.sheet.NaturalH, restored.H.Values(), restored.V.Values())
		if err != nil {
			return Snapshot{}, err
		}
		s.grid = grid
		s.record = s.candidate.Record
		s.missing = missingSlots(s.record.ArtifactPaths)
		slog.Info("Reusing previous extraction", "session_id", s.ID, "fingerprint", s.sheet.Hash)
	case ActionReprocess:
		slog.Info("Reprocessing sheet", "session_id", s.ID, "fingerprint", s.sheet.Hash,
			"stale", s.candidate.Status == dedup.StatusStale)
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrBadAction, action)
	}

	s.candidate = nil
	s.touch()
	return s.snapshot(), nil
}

// OnResize records a container size and returns the recomputed layout.
// Repeated sizes do not trigger a recompute.
func (s *Session) OnResize(containerW, containerH float64) (models.ViewportState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheet == nil {
		return models.ViewportState{}, ErrNoImage
	}
	s.resizer.Request(containerW, containerH)
	s.resizer.Flush()
	b, ok := s.resizer.Current()
	if !ok {
		return models.ViewportState{}, fmt.Errorf("%w: %vx%v", viewport.ErrInvalidDimension, containerW, containerH)
	}
	return b.State(), nil
}

// Bounds returns the layout of the last resize.
func (s *Session) Bounds() (viewport.Bounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resizer == nil {
		return viewport.Bounds{}, false
	}
	return s.resizer.Current()
}

// DragResult is the state after a boundary drag.
type DragResult struct {
	Set   boundary.Set `json:"boundaries"`
	Rows  int          `json:"rows"`
	Cols  int          `json:"cols"`
	State string       `json:"state"`
}

// OnDragBoundary converts a viewport coordinate to original space with b and
// moves boundary index of axis there. The fixed first and last boundaries
// cannot be dragged. b must describe the current sheet in the current
// container.
func (s *Session) OnDragBoundary(axis models.Axis, index int, viewportCoord float64, b viewport.Bounds) (DragResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheet == nil {
		return DragResult{}, ErrNoImage
	}
	current, ok := s.resizer.Current()
	if !ok || !b.Matches(s.sheet.NaturalW, s.sheet.NaturalH, current.ContainerW, current.ContainerH) {
		return DragResult{}, ErrStaleBounds
	}
	if b.Degenerate() {
		// no inverse through a collapsed container
		return DragResult{}, fmt.Errorf("%w: container %vx%v shows no image", viewport.ErrInvalidDimension,
			b.ContainerW, b.ContainerH)
	}

	set := s.grid.Set(axis)
	if index < 0 || index >= set.Len() {
		return DragResult{}, fmt.Errorf("%w: %d not in [0,%d)", ErrBadIndex, index, set.Len())
	}
	if set.IsFixed(index) {
		return DragResult{}, fmt.Errorf("%w: index %d", boundary.ErrFixedBoundary, index)
	}

	coord := viewport.ToOriginal(viewportCoord, axis, b)
	updated := s.grid.Move(axis, index, coord)
	if err := boundary.Validate(updated.Values(), updated.Extent()); err != nil {
		s.violation("drag broke boundary invariant", err)
	}
	if updated.Len() < set.Len() {
		slog.Info("Boundaries collided, grid shrank", "session_id", s.ID, "axis", axis,
			"before", set.Cells(), "after", updated.Cells())
	}
	s.touch()

	return DragResult{Set: updated, Rows: s.grid.Rows(), Cols: s.grid.Cols(), State: s.grid.State().String()}, nil
}

// SetGridDimensions resets the grid to rows x cols unless hand edits already
// match that size.
func (s *Session) SetGridDimensions(rows, cols int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheet == nil {
		return Snapshot{}, ErrNoImage
	}
	if err := s.grid.SetGridDimensions(rows, cols); err != nil {
		return Snapshot{}, err
	}
	s.touch()
	return s.snapshot(), nil
}

// OnExtract crops the current grid and persists the record. It returns
// extraction.ErrSuperseded when a new sheet was loaded meanwhile.
func (s *Session) OnExtract(ctx context.Context) (*extraction.Result, error) {
	s.mu.Lock()
	if s.sheet == nil {
		s.mu.Unlock()
		return nil, ErrNoImage
	}
	if s.cancel != nil {
		// a second extract of the same sheet replaces the first
		s.cancel()
	}
	gen := s.generation + 1
	s.generation = gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	sheet := s.sheet
	job := extraction.Job{
		FingerprintHash: sheet.Hash,
		Kind:            s.kind,
		SourcePath:      sheet.Path,
		OutputDir:       s.deps.OutputDir(sheet.Hash, s.kind),
		NaturalW:        sheet.NaturalW,
		NaturalH:        sheet.NaturalH,
		H:               s.grid.H(),
		V:               s.grid.V(),
	}
	s.mu.Unlock()
	defer cancel()

	job.Commit = func(persist func() error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return extraction.ErrSuperseded
		}
		return persist()
	}

	res, err := s.deps.Orchestrator.Extract(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.cancel = nil
	}
	if err != nil {
		return nil, err
	}
	if s.generation == gen {
		s.record = res.Record
		s.missing = res.Missing
		s.touch()
	}
	return res, nil
}

// Close cancels any running extraction.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersede()
}

func (s *Session) violation(msg string, err error) {
	slog.Error(msg, "session_id", s.ID, "error", err)
	if s.deps.Strict {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}

func missingSlots(paths []string) []int {
	var out []int
	for i, p := range paths {
		if p == "" {
			out = append(out, i)
		}
	}
	return out
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string                   `json:"id"`
	Sheet     *Sheet                   `json:"sheet,omitempty"`
	Kind      models.Kind              `json:"kind,omitempty"`
	H         *boundary.Set            `json:"boundaries_h,omitempty"`
	V         *boundary.Set            `json:"boundaries_v,omitempty"`
	Rows      int                      `json:"rows"`
	Cols      int                      `json:"cols"`
	State     string                   `json:"state,omitempty"`
	Viewport  *models.ViewportState    `json:"viewport,omitempty"`
	Candidate *dedup.ReuseCandidate    `json:"reuse_candidate,omitempty"`
	Record    *models.ProcessingRecord `json:"record,omitempty"`
	Missing   []int                    `json:"missing,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Sheet:     s.sheet,
		Kind:      s.kind,
		Candidate: s.candidate,
		Record:    s.record,
		Missing:   append([]int(nil), s.missing...),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
	if s.grid != nil {
		h, v := s.grid.H(), s.grid.V()
		snap.H, snap.V = &h, &v
		snap.Rows, snap.Cols = s.grid.Rows(), s.grid.Cols()
		snap.State = s.grid.State().String()
	}
	if s.resizer != nil {
		if b, ok := s.resizer.Current(); ok {
			st := b.State()
			snap.Viewport = &st
		}
	}
	return snap
}

// Grid returns copies of the current boundary sets.
func (s *Session) Grid() (boundary.Set, boundary.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return boundary.Set{}, boundary.Set{}, ErrNoImage
	}
	return s.grid.H(), s.grid.V(), nil
}

// Sheet returns the current sheet.
func (s *Session) Sheet() (*Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheet == nil {
		return nil, ErrNoImage
	}
	return s.sheet, nil
}
