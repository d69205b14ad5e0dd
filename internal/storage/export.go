package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// recordRow is the flat export layout of a ProcessingRecord.
type recordRow struct {
	FingerprintHash string   `parquet:"fingerprint_hash" json:"fingerprint_hash"`
	Kind            string   `parquet:"kind" json:"kind"`
	GridRows        int64    `parquet:"grid_rows" json:"grid_rows"`
	GridCols        int64    `parquet:"grid_cols" json:"grid_cols"`
	BoundariesH     []int64  `parquet:"boundaries_h,list" json:"boundaries_h"`
	BoundariesV     []int64  `parquet:"boundaries_v,list" json:"boundaries_v"`
	ArtifactPaths   []string `parquet:"artifact_paths,list" json:"artifact_paths"`
	Complete        bool     `parquet:"complete" json:"complete"`
	SourcePath      string   `parquet:"source_path" json:"source_path"`
	OutputDir       string   `parquet:"output_dir" json:"output_dir"`
	NaturalW        int64    `parquet:"natural_w" json:"natural_w"`
	NaturalH        int64    `parquet:"natural_h" json:"natural_h"`
	CreatedAtUnixNs int64    `parquet:"created_at_unix_ns" json:"created_at_unix_ns"`
}

func toRow(r *models.ProcessingRecord) recordRow {
	return recordRow{
		FingerprintHash: r.FingerprintHash,
		Kind:            string(r.Kind),
		GridRows:        int64(r.GridRows),
		GridCols:        int64(r.GridCols),
		BoundariesH:     toInt64s(r.BoundariesH),
		BoundariesV:     toInt64s(r.BoundariesV),
		ArtifactPaths:   append([]string(nil), r.ArtifactPaths...),
		Complete:        r.Complete,
		SourcePath:      r.SourcePath,
		OutputDir:       r.OutputDir,
		NaturalW:        int64(r.NaturalW),
		NaturalH:        int64(r.NaturalH),
		CreatedAtUnixNs: r.CreatedAt.UnixNano(),
	}
}

func fromRow(row recordRow) *models.ProcessingRecord {
	return &models.ProcessingRecord{
		FingerprintHash: row.FingerprintHash,
		Kind:            models.Kind(row.Kind),
		GridRows:        int(row.GridRows),
		GridCols:        int(row.GridCols),
		BoundariesH:     toInts(row.BoundariesH),
		BoundariesV:     toInts(row.BoundariesV),
		ArtifactPaths:   append([]string(nil), row.ArtifactPaths...),
		Complete:        row.Complete,
		SourcePath:      row.SourcePath,
		OutputDir:       row.OutputDir,
		NaturalW:        int(row.NaturalW),
		NaturalH:        int(row.NaturalH),
		CreatedAt:       time.Unix(0, row.CreatedAtUnixNs).UTC(),
	}
}

// ExportRecords writes records to path as Parquet or JSONL, chosen by the
// file extension.
func ExportRecords(path string, records []*models.ProcessingRecord) error {
	rows := make([]recordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(r))
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet":
		return writeParquet(path, rows)
	case ".jsonl", ".json":
		return writeJSONL(path, rows)
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

// LoadRecords reads records previously written by ExportRecords.
func LoadRecords(path string) ([]*models.ProcessingRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var rows []recordRow
	var err error
	switch ext {
	case ".parquet":
		rows, err = readParquet(path)
	case ".jsonl", ".json":
		rows, err = readJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*models.ProcessingRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func writeParquet(path string, rows []recordRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[recordRow](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	slog.Debug("Wrote parquet export", "path", path, "rows", len(rows))
	return file.Close()
}

func readParquet(path string) ([]recordRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[recordRow](pf)
	defer reader.Close()

	var records []recordRow
	batch := make([]recordRow, 128)
	for {
		n, err := reader.Read(batch)
		if n > 0 {
			records = append(records, batch[:n]...)
		}
		if err != nil {
			break
		}
	}

	slog.Debug("Finished reading parquet file", "path", path, "total_records", len(records))
	return records, nil
}

func writeJSONL(path string, rows []recordRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create jsonl file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", row.FingerprintHash, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func readJSONL(path string) ([]recordRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open jsonl file: %w", err)
	}
	defer file.Close()

	var rows []recordRow
	scanner := bufio.NewScanner(file)

	const maxCapacity = 10 * 1024 * 1024 // 10MB per line
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row recordRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}
	return rows, nil
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
