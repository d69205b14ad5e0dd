package handlers

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/fizic37/Delcampe-sub011/internal/cropper"
	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/detector"
	"github.com/fizic37/Delcampe-sub011/internal/extraction"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/session"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	newTestHandler(t).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewMemoryStore()
	gw := dedup.NewGateway(store, storage.FSChecker{})
	artifacts := filepath.Join(dir, "artifacts")
	uploads := filepath.Join(dir, "uploads")

	return New(Options{
		Deps: &session.Deps{
			Gateway:      gw,
			Orchestrator: extraction.NewOrchestrator(cropper.New(), gw, false),
			Detector:     detector.None{},
			UploadsDir:   uploads,
			DefaultRows:  1,
			DefaultCols:  1,
			OutputDir: func(hash string, kind models.Kind) string {
				return filepath.Join(artifacts, hash, string(kind))
			},
		},
		Store:          store,
		MaxUploadBytes: 1 << 20,
		UploadsDir:     uploads,
		ArtifactsDir:   artifacts,
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 40, A: 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadFile(t *testing.T, srv *httptest.Server, data []byte, kind string) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "sheet.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.WriteField("kind", kind)
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode upload response: %v", err)
		}
	}
	return resp, out
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadResizeDragExtract(t *testing.T) {
	srv := newTestServer(t)

	resp, out := uploadFile(t, srv, pngBytes(t, 400, 200), "face")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from upload, got %d", resp.StatusCode)
	}
	id, _ := out["session_id"].(string)
	if id == "" {
		t.Fatalf("Expected session_id in %v", out)
	}
	base := srv.URL + "/api/sessions/" + id

	if r := postJSON(t, base+"/grid", map[string]int{"rows": 2, "cols": 2}); r.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from grid, got %d", r.StatusCode)
	}

	r := postJSON(t, base+"/resize", map[string]float64{"width": 200, "height": 200})
	if r.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from resize, got %d", r.StatusCode)
	}
	var vs models.ViewportState
	if err := json.NewDecoder(r.Body).Decode(&vs); err != nil {
		t.Fatal(err)
	}
	if vs.NaturalW != 400 || vs.NaturalH != 200 {
		t.Errorf("Expected natural 400x200, got %dx%d", vs.NaturalW, vs.NaturalH)
	}

	// Scale 0.5, image centered at y offset 50: viewport x=75 is original 150.
	r = postJSON(t, base+"/drag", map[string]any{"axis": "v", "index": 1, "coord": 75})
	if r.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from drag, got %d", r.StatusCode)
	}
	var drag struct {
		Boundaries struct {
			Values []int `json:"values"`
		} `json:"boundaries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&drag); err != nil {
		t.Fatal(err)
	}
	if got := drag.Boundaries.Values; len(got) != 3 || got[1] != 150 {
		t.Errorf("Expected V [0 150 400], got %v", got)
	}

	r = postJSON(t, base+"/extract", struct{}{})
	if r.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from extract, got %d", r.StatusCode)
	}
	var result extraction.Result
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Record == nil || !result.Record.Complete || len(result.Record.ArtifactPaths) != 4 {
		t.Fatalf("Expected a complete record with 4 artifacts, got %+v", result.Record)
	}

	rec, err := http.Get(srv.URL + "/api/records/" + result.Record.FingerprintHash + "/face")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Body.Close()
	var cand dedup.ReuseCandidate
	if err := json.NewDecoder(rec.Body).Decode(&cand); err != nil {
		t.Fatal(err)
	}
	if cand.Status != dedup.StatusReusable {
		t.Errorf("Expected reusable record, got %q", cand.Status)
	}
}

func TestDragErrors(t *testing.T) {
	srv := newTestServer(t)
	_, out := uploadFile(t, srv, pngBytes(t, 100, 100), "face")
	base := srv.URL + "/api/sessions/" + out["session_id"].(string)

	// No resize yet.
	if r := postJSON(t, base+"/drag", map[string]any{"axis": "h", "index": 1, "coord": 10}); r.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 before resize, got %d", r.StatusCode)
	}

	postJSON(t, base+"/grid", map[string]int{"rows": 2, "cols": 1})
	postJSON(t, base+"/resize", map[string]float64{"width": 100, "height": 100})

	tests := []struct {
		name    string
		payload map[string]any
		want    int
	}{
		{"fixed first boundary", map[string]any{"axis": "h", "index": 0, "coord": 10}, http.StatusBadRequest},
		{"index out of range", map[string]any{"axis": "h", "index": 7, "coord": 10}, http.StatusBadRequest},
		{"bad axis", map[string]any{"axis": "z", "index": 1, "coord": 10}, http.StatusBadRequest},
		{"explicit container", map[string]any{"axis": "h", "index": 1, "coord": 40, "container_w": 100, "container_h": 100}, http.StatusOK},
		{"container differs from last resize", map[string]any{"axis": "h", "index": 1, "coord": 40, "container_w": 300, "container_h": 100}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := postJSON(t, base+"/drag", tt.payload); r.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, r.StatusCode)
			}
		})
	}
}

func TestUploadRejects(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		data []byte
		kind string
		want int
	}{
		{"not an image", []byte("plain text"), "face", http.StatusBadRequest},
		{"bad kind", pngBytes(t, 10, 10), "spine", http.StatusBadRequest},
		{"too large", bytes.Repeat([]byte{0}, 1<<20), "face", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := uploadFile(t, srv, tt.data, tt.kind)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestDecisionWithoutCandidate(t *testing.T) {
	srv := newTestServer(t)
	_, out := uploadFile(t, srv, pngBytes(t, 50, 50), "verso")
	base := srv.URL + "/api/sessions/" + out["session_id"].(string)

	if r := postJSON(t, base+"/decision", map[string]string{"action": "reuse"}); r.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", r.StatusCode)
	}
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t)
	_, out := uploadFile(t, srv, pngBytes(t, 300, 150), "face")
	base := srv.URL + "/api/sessions/" + out["session_id"].(string)

	resp, err := http.Get(base + "/preview?width=120&height=90")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Expected PNG body: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 90 {
		t.Errorf("Expected 120x90 preview, got %dx%d", b.Dx(), b.Dy())
	}

	bad, err := http.Get(base + "/preview?width=-3")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative width, got %d", bad.StatusCode)
	}
}

func TestSessionsListAndDelete(t *testing.T) {
	srv := newTestServer(t)
	_, out := uploadFile(t, srv, pngBytes(t, 20, 20), "face")
	id := out["session_id"].(string)

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatal(err)
	}
	var list []session.Snapshot
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("Expected one session %s, got %+v", id, list)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", del.StatusCode)
	}

	gone, err := http.Get(srv.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatal(err)
	}
	gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", gone.StatusCode)
	}
}

func TestStaticTraversal(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		path string
		want int
	}{
		{"/static/uploads/../secret", http.StatusBadRequest},
		{"/static/artifacts/a/../../x.jpg", http.StatusBadRequest},
		{"/static/other/file.jpg", http.StatusNotFound},
		{"/static/uploads/missing.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			// Called directly so the mux does not clean the path first.
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h.HandleStatic(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
