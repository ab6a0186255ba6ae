package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmarsden/fabricstash/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newAcquirer(t *testing.T) *Acquirer {
	t.Helper()
	cfg := &config.ImagesConfig{
		Dir:             t.TempDir(),
		MaxSizeMB:       10,
		Concurrency:     4,
		DownloadTimeout: 10 * time.Second,
	}
	a, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new acquirer: %v", err)
	}
	return a
}

func TestFilename(t *testing.T) {
	name := Filename("Linen Blend", "https://cdn.example.com/img/front.jpg")

	if !strings.HasPrefix(name, "linen_blend_") {
		t.Errorf("expected slug prefix, got %q", name)
	}
	if !strings.HasSuffix(name, ".jpg") {
		t.Errorf("expected .jpg suffix, got %q", name)
	}

	// Same URL, same filename.
	if again := Filename("Linen Blend", "https://cdn.example.com/img/front.jpg"); again != name {
		t.Errorf("filename not stable: %q vs %q", name, again)
	}

	// Different URL, different filename.
	other := Filename("Linen Blend", "https://cdn.example.com/img/back.jpg")
	if other == name {
		t.Error("different source URLs produced the same filename")
	}

	// Query strings don't leak into the extension.
	if got := Filename("X", "https://cdn.example.com/img/a.png?v=2"); !strings.HasSuffix(got, ".png") {
		t.Errorf("expected .png, got %q", got)
	}

	// Unknown extension falls back to .jpg.
	if got := Filename("X", "https://cdn.example.com/img/a.php"); !strings.HasSuffix(got, ".jpg") {
		t.Errorf("expected .jpg fallback, got %q", got)
	}

	// Empty name still produces a usable filename.
	if got := Filename("!!!", "https://cdn.example.com/a.jpg"); !strings.HasPrefix(got, "fabric_") {
		t.Errorf("expected 'fabric' fallback slug, got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Linen Blend", "linen_blend"},
		{"  Wool/Silk Coating!  ", "woolsilk_coating"},
		{"already_slugged", "already_slugged"},
		{"___", ""},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}

	long := Slug(strings.Repeat("ab ", 60))
	if len([]rune(long)) > 50 {
		t.Errorf("slug not capped at 50 runes: %d", len([]rune(long)))
	}
}

func TestAcquireDownloadsOnce(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpegbytes")
	}))
	defer srv.Close()

	a := newAcquirer(t)
	imageURL := srv.URL + "/front.jpg"

	rel, err := a.Acquire(context.Background(), imageURL, "Linen Blend")
	if err != nil {
		t.Fatalf("acquire error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(a.Dir(), rel))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("unexpected file content %q", data)
	}

	// Second acquire hits the existing file, not the network.
	again, err := a.Acquire(context.Background(), imageURL, "Linen Blend")
	if err != nil {
		t.Fatalf("second acquire error: %v", err)
	}
	if again != rel {
		t.Errorf("expected same path %q, got %q", rel, again)
	}
	if hits != 1 {
		t.Errorf("expected 1 network hit, got %d", hits)
	}
}

func TestAcquireConcurrentSameURL(t *testing.T) {
	// Each request streams a distinct fill byte in flushed chunks, so
	// overlapping writers sharing one destination file would interleave
	// bytes from both responses.
	const chunks, chunkSize = 64, 512
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fill := byte('A' + requests.Add(1) - 1)
		flusher := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			w.Write(bytes.Repeat([]byte{fill}, chunkSize))
			flusher.Flush()
			time.Sleep(time.Millisecond)
		}
	}))
	defer srv.Close()

	a := newAcquirer(t)
	imageURL := srv.URL + "/swatch.jpg"

	var wg sync.WaitGroup
	paths := make([]string, 2)
	errs := make([]error, 2)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = a.Acquire(context.Background(), imageURL, "Linen Blend")
		}(i)
	}
	wg.Wait()

	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("acquire %d: %v", i, errs[i])
		}
	}
	if paths[0] != paths[1] {
		t.Fatalf("same URL produced different paths: %q vs %q", paths[0], paths[1])
	}

	data, err := os.ReadFile(filepath.Join(a.Dir(), paths[0]))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if len(data) != chunks*chunkSize {
		t.Fatalf("stored file truncated: %d bytes", len(data))
	}
	for i, b := range data {
		if b != data[0] {
			t.Fatalf("stored image mixes bytes from two writers at offset %d", i)
		}
	}

	entries, err := os.ReadDir(a.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 stored file, found %d (temp files left behind?)", len(entries))
	}
}

func TestAcquireAllSoftFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.jpg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data")
	})
	mux.HandleFunc("/gone.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newAcquirer(t)
	paths := a.AcquireAll(context.Background(), []string{
		srv.URL + "/ok.jpg",
		srv.URL + "/gone.jpg",
	}, "Wool Twill")

	if len(paths) != 1 {
		t.Fatalf("expected 1 stored image, got %d: %v", len(paths), paths)
	}
	if !strings.HasPrefix(paths[0], "wool_twill_") {
		t.Errorf("unexpected stored path %q", paths[0])
	}
}

func TestAcquireErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	a := newAcquirer(t)
	if _, err := a.Acquire(context.Background(), srv.URL+"/x.jpg", "X"); err == nil {
		t.Fatal("expected error for 403 response")
	}
	if entries, _ := os.ReadDir(a.Dir()); len(entries) != 0 {
		t.Errorf("failed download left %d files behind", len(entries))
	}
}

func TestRemove(t *testing.T) {
	a := newAcquirer(t)

	file := filepath.Join(a.Dir(), "linen_12345678.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Remove("linen_12345678.jpg"); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("expected file to be deleted")
	}

	// Removing a missing file is fine.
	if err := a.Remove("linen_12345678.jpg"); err != nil {
		t.Errorf("remove of missing file: %v", err)
	}

	// Path traversal is rejected.
	if err := a.Remove("../outside.jpg"); err == nil {
		t.Error("expected traversal path to be rejected")
	}
	if err := a.Remove("/etc/passwd"); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}
