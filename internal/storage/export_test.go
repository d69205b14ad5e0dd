package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

func TestExportLoadRecords(t *testing.T) {
	records := []*models.ProcessingRecord{sampleRecord("one"), sampleRecord("two")}
	records[1].Kind = models.KindVerso
	records[1].Complete = true

	for _, ext := range []string{".parquet", ".jsonl"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "records"+ext)

			if err := ExportRecords(path, records); err != nil {
				t.Fatalf("ExportRecords failed: %v", err)
			}

			loaded, err := LoadRecords(path)
			if err != nil {
				t.Fatalf("LoadRecords failed: %v", err)
			}
			if len(loaded) != 2 {
				t.Fatalf("Expected 2 records, got %d", len(loaded))
			}

			for i, want := range records {
				got := loaded[i]
				if got.Key() != want.Key() {
					t.Errorf("record %d: Expected key %s, got %s", i, want.Key(), got.Key())
				}
				if !reflect.DeepEqual(got.BoundariesV, want.BoundariesV) {
					t.Errorf("record %d: Expected V %v, got %v", i, want.BoundariesV, got.BoundariesV)
				}
				if !reflect.DeepEqual(got.ArtifactPaths, want.ArtifactPaths) {
					t.Errorf("record %d: Expected paths %v, got %v", i, want.ArtifactPaths, got.ArtifactPaths)
				}
				if got.Complete != want.Complete || !got.CreatedAt.Equal(want.CreatedAt) {
					t.Errorf("record %d: metadata mismatch", i)
				}
			}
		})
	}
}

func TestExportRecords_UnsupportedFormat(t *testing.T) {
	if err := ExportRecords(filepath.Join(t.TempDir(), "records.csv"), nil); err == nil {
		t.Error("Expected error for unsupported extension")
	}
	if _, err := LoadRecords("records.xml"); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}
