// Package extraction turns a pair of boundary sets into crop rectangles,
// hands them to a cropper and records the outcome.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fizic37/Delcampe-sub011/internal/boundary"
	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// ManifestName is the sidecar written next to the crops.
const ManifestName = "manifest.yaml"

// ErrSuperseded is returned when the source image was replaced while the
// extraction was running. Nothing is persisted in that case.
var ErrSuperseded = errors.New("extraction superseded")

// Cropper writes one file per rectangle. The returned slice is in rectangle
// order; it may be shorter than rects or hold empty strings for cells that
// could not be written.
type Cropper interface {
	Crop(ctx context.Context, imagePath string, rects []models.Rect, outputDir string) ([]string, error)
}

// Persister stores the finished record and returns the one it replaced, if
// any. *dedup.Gateway implements it.
type Persister interface {
	Replace(ctx context.Context, rec *models.ProcessingRecord) (*models.ProcessingRecord, error)
}

// runPrefix names committed run directories under a job's OutputDir. Runs
// still cropping live in the same directory with a leading dot.
const runPrefix = "run-"

// Job describes one extraction.
//
// Every run crops into its own staging directory under OutputDir. Only a run
// that commits has it renamed to a visible run directory, so files referenced
// by a stored record are never rewritten by a later or superseded run.
type Job struct {
	FingerprintHash string
	Kind            models.Kind
	SourcePath      string
	OutputDir       string
	NaturalW        int
	NaturalH        int
	H               boundary.Set
	V               boundary.Set

	// Commit, when set, runs the persist step and must refuse with
	// ErrSuperseded if the job no longer owns its image.
	Commit func(persist func() error) error
}

// Result is the outcome of a finished extraction.
type Result struct {
	Record       *models.ProcessingRecord `json:"record"`
	Rects        []models.Rect            `json:"rectangles"`
	Missing      []int                    `json:"missing,omitempty"`
	ManifestPath string                   `json:"manifest_path,omitempty"`
}

// Partial reports whether some cells were not produced.
func (r *Result) Partial() bool {
	return len(r.Missing) > 0
}

// Orchestrator runs extraction jobs.
type Orchestrator struct {
	cropper   Cropper
	persister Persister
	strict    bool
	now       func() time.Time
}

// NewOrchestrator wires a cropper and a persister. In strict mode contract
// violations panic instead of aborting the job.
func NewOrchestrator(cropper Cropper, persister Persister, strict bool) *Orchestrator {
	return &Orchestrator{
		cropper:   cropper,
		persister: persister,
		strict:    strict,
		now:       time.Now,
	}
}

// Extract computes rectangles, crops them and upserts the record. A cropper
// that produced only some cells yields an incomplete record and a Result
// listing the missing cell indices; that is not an error.
func (o *Orchestrator) Extract(ctx context.Context, job Job) (*Result, error) {
	hv, vv := job.H.Values(), job.V.Values()
	if job.H.Extent() != job.NaturalH || job.V.Extent() != job.NaturalW {
		return nil, o.violation(job, fmt.Errorf("%w: boundaries span %dx%d, image is %dx%d",
			ErrDegenerateRectangle, job.V.Extent(), job.H.Extent(), job.NaturalW, job.NaturalH))
	}

	rects, err := Rectangles(hv, vv)
	if err != nil {
		return nil, o.violation(job, err)
	}

	slog.Info("Starting extraction", "fingerprint", job.FingerprintHash, "kind", job.Kind,
		"rows", job.H.Cells(), "cols", job.V.Cells(), "output", job.OutputDir)

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	stage, err := os.MkdirTemp(job.OutputDir, "."+runPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	// Gone after a successful commit; removes the crops of any other outcome.
	defer os.RemoveAll(stage)
	runDir := filepath.Join(job.OutputDir, strings.TrimPrefix(filepath.Base(stage), "."))

	paths, cropErr := o.cropper.Crop(ctx, job.SourcePath, rects, stage)
	if ctx.Err() != nil {
		slog.Info("Discarding superseded extraction", "fingerprint", job.FingerprintHash, "kind", job.Kind)
		return nil, ErrSuperseded
	}
	if cropErr != nil {
		return nil, fmt.Errorf("crop failed: %w", cropErr)
	}

	aligned, missing := align(paths, len(rects))
	for i, p := range aligned {
		aligned[i] = rebase(p, stage, runDir)
	}
	if len(paths) > len(rects) {
		slog.Error("Cropper returned extra paths", "fingerprint", job.FingerprintHash,
			"requested", len(rects), "returned", len(paths))
	}
	if len(missing) > 0 {
		slog.Warn("Partial extraction", "fingerprint", job.FingerprintHash, "kind", job.Kind,
			"requested", len(rects), "missing", len(missing))
	}

	rec := &models.ProcessingRecord{
		FingerprintHash: job.FingerprintHash,
		Kind:            job.Kind,
		GridRows:        job.H.Cells(),
		GridCols:        job.V.Cells(),
		BoundariesH:     hv,
		BoundariesV:     vv,
		ArtifactPaths:   aligned,
		Complete:        len(missing) == 0,
		SourcePath:      job.SourcePath,
		OutputDir:       runDir,
		NaturalW:        job.NaturalW,
		NaturalH:        job.NaturalH,
		CreatedAt:       o.now().UTC(),
	}

	var replaced *models.ProcessingRecord
	persist := func() error {
		if ctx.Err() != nil {
			return ErrSuperseded
		}
		if err := os.Rename(stage, runDir); err != nil {
			return fmt.Errorf("failed to commit crops: %w", err)
		}
		prev, err := o.persister.Replace(ctx, rec)
		if err != nil {
			os.RemoveAll(runDir)
			return err
		}
		replaced = prev
		return nil
	}
	if job.Commit != nil {
		err = job.Commit(persist)
	} else {
		err = persist()
	}
	if errors.Is(err, ErrSuperseded) {
		slog.Info("Discarding superseded extraction", "fingerprint", job.FingerprintHash, "kind", job.Kind)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	pruneRun(job.OutputDir, replaced, runDir)

	result := &Result{Record: rec, Rects: rects, Missing: missing}
	if path, err := writeManifest(runDir, result); err != nil {
		slog.Warn("Failed to write manifest", "dir", runDir, "error", err)
	} else {
		result.ManifestPath = path
	}

	slog.Info("Extraction finished", "fingerprint", job.FingerprintHash, "kind", job.Kind,
		"produced", len(rec.Produced()), "complete", rec.Complete)
	return result, nil
}

func (o *Orchestrator) violation(job Job, err error) error {
	slog.Error("Extraction contract violation", "fingerprint", job.FingerprintHash, "kind", job.Kind,
		"h", job.H.Values(), "v", job.V.Values(), "error", err)
	if o.strict {
		panic(err)
	}
	return err
}

// align pads paths to n entries and lists the indices left empty.
func align(paths []string, n int) ([]string, []int) {
	aligned := make([]string, n)
	copy(aligned, paths)

	var missing []int
	for i, p := range aligned {
		if p == "" {
			missing = append(missing, i)
		}
	}
	return aligned, missing
}

// rebase moves p from the staging directory to the committed run directory.
// Paths the cropper wrote elsewhere are kept as they are.
func rebase(p, stage, runDir string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(stage, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.Join(runDir, rel)
}

// pruneRun deletes the run directory of the record that was just replaced.
// Only committed run directories directly under outputDir are touched.
func pruneRun(outputDir string, prev *models.ProcessingRecord, current string) {
	if prev == nil || prev.OutputDir == "" || prev.OutputDir == current {
		return
	}
	dir := filepath.Clean(prev.OutputDir)
	if filepath.Dir(dir) != filepath.Clean(outputDir) || !strings.HasPrefix(filepath.Base(dir), runPrefix) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove replaced run", "dir", dir, "error", err)
		return
	}
	slog.Debug("Removed replaced run", "dir", dir)
}

type manifest struct {
	Fingerprint string        `yaml:"fingerprint"`
	Kind        models.Kind   `yaml:"kind"`
	Rows        int           `yaml:"rows"`
	Cols        int           `yaml:"cols"`
	BoundariesH []int         `yaml:"boundaries_h,flow"`
	BoundariesV []int         `yaml:"boundaries_v,flow"`
	Rectangles  []models.Rect `yaml:"rectangles"`
	Paths       []string      `yaml:"paths"`
	Missing     []int         `yaml:"missing,flow,omitempty"`
	Complete    bool          `yaml:"complete"`
	CreatedAt   time.Time     `yaml:"created_at"`
}

func writeManifest(dir string, r *Result) (string, error) {
	m := manifest{
		Fingerprint: r.Record.FingerprintHash,
		Kind:        r.Record.Kind,
		Rows:        r.Record.GridRows,
		Cols:        r.Record.GridCols,
		BoundariesH: r.Record.BoundariesH,
		BoundariesV: r.Record.BoundariesV,
		Rectangles:  r.Rects,
		Paths:       r.Record.ArtifactPaths,
		Missing:     r.Missing,
		Complete:    r.Record.Complete,
		CreatedAt:   r.Record.CreatedAt,
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the sidecar written by a previous extraction.
func ReadManifest(dir string) (*models.ProcessingRecord, []models.Rect, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	rec := &models.ProcessingRecord{
		FingerprintHash: m.Fingerprint,
		Kind:            m.Kind,
		GridRows:        m.Rows,
		GridCols:        m.Cols,
		BoundariesH:     m.BoundariesH,
		BoundariesV:     m.BoundariesV,
		ArtifactPaths:   m.Paths,
		Complete:        m.Complete,
		OutputDir:       dir,
		CreatedAt:       m.CreatedAt,
	}
	return rec, m.Rectangles, nil
}
