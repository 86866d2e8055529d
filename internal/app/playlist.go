package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

var ErrInvalidEntry = errors.New("invalid playlist entry")

// SanitizePortalURL flattens a base URL into a filename-safe token.
func SanitizePortalURL(baseURL string) string {
	return strings.NewReplacer("://", "_", "/", "_", ".", "_", ":", "_").Replace(baseURL)
}

// PlaylistFileName derives the output name from the portal URL and a run
// timestamp, so successive runs against the same server never collide.
func PlaylistFileName(baseURL string, t time.Time) string {
	return fmt.Sprintf("%s_%s.m3u", SanitizePortalURL(baseURL), t.Format("2006-01-02_15-04-05"))
}

// PlaylistWriter serializes resolved entries into an UTF-16 M3U file.
// WriteEntry is safe for concurrent use: a record is written under the lock
// as a single unit, so entries never interleave.
type PlaylistWriter struct {
	mu      sync.Mutex
	file    *os.File
	enc     io.WriteCloser
	path    string
	header  bool
	entries int
	closed  bool
}

func NewPlaylistWriter(dir, baseURL string, now time.Time) (*PlaylistWriter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, PlaylistFileName(baseURL, now))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := transform.NewWriter(f, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())
	return &PlaylistWriter{file: f, enc: enc, path: path}, nil
}

func (w *PlaylistWriter) Path() string { return w.path }

func (w *PlaylistWriter) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// WriteHeader writes the #EXTM3U line. Calling it more than once is a no-op.
func (w *PlaylistWriter) WriteHeader() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if w.header {
		return nil
	}
	if _, err := io.WriteString(w.enc, "#EXTM3U\n"); err != nil {
		return err
	}
	w.header = true
	return nil
}

func (w *PlaylistWriter) WriteEntry(e domain.Entry) error {
	if !e.Valid() {
		return ErrInvalidEntry
	}
	record := formatEntry(e)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if !w.header {
		return errors.New("playlist header not written")
	}
	if _, err := io.WriteString(w.enc, record); err != nil {
		return err
	}
	w.entries++
	return nil
}

func formatEntry(e domain.Entry) string {
	if e.Series != nil {
		return fmt.Sprintf(
			"#EXTINF:-1 tvg-type=\"serie\" tvg-serie=\"%s\" tvg-season=\"%d\" tvg-episode=\"%d\" serie-title=\"%s\" tvg-logo=\"%s\" group-title=\"%s\",%s\n%s\n",
			e.Series.SeriesID, e.Series.Season, e.Series.Episode, e.Series.SeriesTitle,
			e.Logo, e.Group, e.Name, e.URL,
		)
	}
	return fmt.Sprintf("#EXTINF:-1 tvg-logo=\"%s\" group-title=\"%s\",%s\n%s\n", e.Logo, e.Group, e.Name, e.URL)
}

// Close flushes the encoder and closes the file. Idempotent.
func (w *PlaylistWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}
