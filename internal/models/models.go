package models

import (
	"fmt"
	"time"
)

// Kind identifies which side of a sheet an upload shows
type Kind string

const (
	KindFace  Kind = "face"  // primary side
	KindVerso Kind = "verso" // secondary side
)

// ParseKind accepts the API spellings of a sheet side
func ParseKind(s string) (Kind, error) {
	switch s {
	case "face", "primary", "":
		return KindFace, nil
	case "verso", "secondary":
		return KindVerso, nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be 'face' or 'verso'", s)
	}
}

// Axis selects the boundary array being edited. H boundaries are row edges
// (y offsets), V boundaries are column edges (x offsets).
type Axis string

const (
	AxisH Axis = "h"
	AxisV Axis = "v"
)

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "h", "H":
		return AxisH, nil
	case "v", "V":
		return AxisV, nil
	default:
		return "", fmt.Errorf("invalid axis %q: must be 'h' or 'v'", s)
	}
}

// ImageFingerprint tracks every upload of a distinct piece of content
type ImageFingerprint struct {
	Hash        string    `json:"hash" yaml:"hash"`
	Kind        Kind      `json:"kind" yaml:"kind"`
	FirstSeen   time.Time `json:"first_seen" yaml:"first_seen"`
	LastSeen    time.Time `json:"last_seen" yaml:"last_seen"`
	UploadCount int       `json:"upload_count" yaml:"upload_count"`
}

// Rect is a crop rectangle in original pixel space. X1 and Y1 are exclusive.
type Rect struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
	X0  int `json:"x0" yaml:"x0"`
	Y0  int `json:"y0" yaml:"y0"`
	X1  int `json:"x1" yaml:"x1"`
	Y1  int `json:"y1" yaml:"y1"`
}

func (r Rect) Dx() int { return r.X1 - r.X0 }
func (r Rect) Dy() int { return r.Y1 - r.Y0 }

func (r Rect) String() string {
	return fmt.Sprintf("r%dc%d(%d,%d)-(%d,%d)", r.Row, r.Col, r.X0, r.Y0, r.X1, r.Y1)
}

// ProcessingRecord is the persisted result of the latest extraction for a
// (fingerprint, kind) pair. ArtifactPaths is row-major and may contain empty
// strings for cells the cropper failed to produce.
type ProcessingRecord struct {
	FingerprintHash string    `json:"fingerprint_hash" yaml:"fingerprint_hash"`
	Kind            Kind      `json:"kind" yaml:"kind"`
	GridRows        int       `json:"grid_rows" yaml:"grid_rows"`
	GridCols        int       `json:"grid_cols" yaml:"grid_cols"`
	BoundariesH     []int     `json:"boundaries_h" yaml:"boundaries_h"`
	BoundariesV     []int     `json:"boundaries_v" yaml:"boundaries_v"`
	ArtifactPaths   []string  `json:"artifact_paths" yaml:"artifact_paths"`
	Complete        bool      `json:"complete" yaml:"complete"`
	SourcePath      string    `json:"source_path,omitempty" yaml:"source_path,omitempty"`
	OutputDir       string    `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	NaturalW        int       `json:"natural_w" yaml:"natural_w"`
	NaturalH        int       `json:"natural_h" yaml:"natural_h"`
	Version         int64     `json:"version" yaml:"version"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// Key returns the persistence key of the record
func (r *ProcessingRecord) Key() RecordKey {
	return RecordKey{Hash: r.FingerprintHash, Kind: r.Kind}
}

// Produced returns the artifact paths that were actually written, in order
func (r *ProcessingRecord) Produced() []string {
	out := make([]string, 0, len(r.ArtifactPaths))
	for _, p := range r.ArtifactPaths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy so stored records never alias caller slices
func (r *ProcessingRecord) Clone() *ProcessingRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.BoundariesH = append([]int(nil), r.BoundariesH...)
	cp.BoundariesV = append([]int(nil), r.BoundariesV...)
	cp.ArtifactPaths = append([]string(nil), r.ArtifactPaths...)
	return &cp
}

// RecordKey identifies one current ProcessingRecord
type RecordKey struct {
	Hash string
	Kind Kind
}

func (k RecordKey) String() string {
	return k.Hash + "/" + string(k.Kind)
}

// ViewportState is the ephemeral on-screen layout of a sheet. It is never
// persisted.
type ViewportState struct {
	DisplayW float64 `json:"display_w"`
	DisplayH float64 `json:"display_h"`
	NaturalW int     `json:"natural_w"`
	NaturalH int     `json:"natural_h"`
}
