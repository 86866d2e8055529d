package app

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

func TestSanitizePortalURL(t *testing.T) {
	got := SanitizePortalURL("http://portal.example.com:8080")
	want := "http_portal_example_com_8080"
	if got != want {
		t.Fatalf("SanitizePortalURL: want %q, got %q", want, got)
	}
}

func TestPlaylistFileName(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := PlaylistFileName("http://p.example.com:80", ts)
	want := "http_p_example_com_80_2026-03-14_15-09-26.m3u"
	if got != want {
		t.Fatalf("PlaylistFileName: want %q, got %q", want, got)
	}
}

func TestPlaylistWriter_UTF16Output(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPlaylistWriter(dir, "http://p:80", time.Now())
	if err != nil {
		t.Fatalf("NewPlaylistWriter: %v", err)
	}

	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	// Deuxième appel: no-op.
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader again: %v", err)
	}

	entry := domain.Entry{Name: "TF1", Logo: "http://p/logo.png", Group: "General", URL: "http://p/stream/1.ts"}
	if err := w.WriteEntry(entry); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close should be idempotent: %v", err)
	}

	raw, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) {
		t.Fatalf("expected UTF-16 LE BOM, got % x", raw[:2])
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	text, err := dec.Bytes(raw)
	if err != nil {
		t.Fatalf("decode utf-16: %v", err)
	}
	content := string(text)
	if strings.Count(content, "#EXTM3U") != 1 {
		t.Fatalf("expected exactly one header, got:\n%s", content)
	}
	wantLine := `#EXTINF:-1 tvg-logo="http://p/logo.png" group-title="General",TF1`
	if !strings.Contains(content, wantLine+"\nhttp://p/stream/1.ts\n") {
		t.Fatalf("missing entry record in:\n%s", content)
	}
}

func TestPlaylistWriter_SeriesEntry(t *testing.T) {
	e := domain.Entry{
		Name:  "Show S2 E07",
		Logo:  "http://p/l.png",
		Group: "Drama",
		URL:   "http://p/ep.ts",
		Series: &domain.SeriesMeta{
			SeriesID:    "99",
			SeriesTitle: "Show",
			Season:      2,
			Episode:     7,
		},
	}
	got := formatEntry(e)
	want := "#EXTINF:-1 tvg-type=\"serie\" tvg-serie=\"99\" tvg-season=\"2\" tvg-episode=\"7\" serie-title=\"Show\" tvg-logo=\"http://p/l.png\" group-title=\"Drama\",Show S2 E07\nhttp://p/ep.ts\n"
	if got != want {
		t.Fatalf("formatEntry:\nwant %q\ngot  %q", want, got)
	}
}

func TestPlaylistWriter_RejectsInvalidEntry(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPlaylistWriter(dir, "http://p:80", time.Now())
	if err != nil {
		t.Fatalf("NewPlaylistWriter: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteEntry(domain.Entry{Name: "no url"}); err == nil {
		t.Fatalf("expected error for entry without url")
	}
	if err := w.WriteEntry(domain.Entry{URL: "http://x"}); err == nil {
		t.Fatalf("expected error for entry without name")
	}
	if w.Entries() != 0 {
		t.Fatalf("invalid entries must not be counted, got %d", w.Entries())
	}
}

func TestPlaylistWriter_ConcurrentWritesDoNotInterleave(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPlaylistWriter(dir, "http://p:80", time.Now())
	if err != nil {
		t.Fatalf("NewPlaylistWriter: %v", err)
	}
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := domain.Entry{
				Name:  fmt.Sprintf("chan-%d", i),
				Group: "G",
				URL:   fmt.Sprintf("http://p/%d.ts", i),
			}
			if err := w.WriteEntry(e); err != nil {
				t.Errorf("WriteEntry(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Entries() != n {
		t.Fatalf("entries: want %d, got %d", n, w.Entries())
	}

	raw, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	text, err := dec.Bytes(raw)
	if err != nil {
		t.Fatalf("decode utf-16: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	if len(lines) != 1+2*n {
		t.Fatalf("expected %d lines, got %d", 1+2*n, len(lines))
	}
	// Chaque #EXTINF doit être immédiatement suivi de son URL.
	for i := 1; i < len(lines); i += 2 {
		if !strings.HasPrefix(lines[i], "#EXTINF:-1 ") {
			t.Fatalf("line %d: expected EXTINF, got %q", i, lines[i])
		}
		name := lines[i][strings.LastIndex(lines[i], ",")+1:]
		wantURL := fmt.Sprintf("http://p/%s.ts", strings.TrimPrefix(name, "chan-"))
		if lines[i+1] != wantURL {
			t.Fatalf("line %d: entry interleaved, name %q followed by %q", i, name, lines[i+1])
		}
	}
}
