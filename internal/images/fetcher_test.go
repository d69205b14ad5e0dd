package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sheets/lot42.jpg":
			w.Write([]byte("jpegbytes"))
		case "/big.png":
			w.Write([]byte(strings.Repeat("x", 64)))
		case "/noext":
			w.Write([]byte("data"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tests := []struct {
		name     string
		path     string
		wantName string
		wantData string
		wantErr  error
		anyErr   bool
	}{
		{name: "ok", path: "/sheets/lot42.jpg", wantName: "lot42.jpg", wantData: "jpegbytes"},
		{name: "no extension", path: "/noext", wantName: "image.jpg", wantData: "data"},
		{name: "not found", path: "/missing.jpg", anyErr: true},
		{name: "too large", path: "/big.png", wantErr: ErrTooLarge},
	}

	f := NewFetcher(32)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, name, err := f.Fetch(context.Background(), server.URL+tt.path)
			if tt.wantErr != nil || tt.anyErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if string(data) != tt.wantData || name != tt.wantName {
				t.Errorf("Expected %q/%s, got %q/%s", tt.wantData, tt.wantName, data, name)
			}
		})
	}
}

func TestFetcher_RejectsNonHTTP(t *testing.T) {
	if _, _, err := NewFetcher(0).Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Error("Expected error for file URL")
	}
}
