package domain

import (
	"fmt"
	"strings"
)

// ContentKind identifie une des trois familles de catalogue du portail.
type ContentKind string

const (
	KindChannels ContentKind = "channels"
	KindMovies   ContentKind = "movies"
	KindSeries   ContentKind = "series"
)

func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindChannels, "itv", "live":
		return KindChannels, nil
	case KindMovies, "vod", "movie":
		return KindMovies, nil
	case KindSeries, "serie", "show":
		return KindSeries, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// Entry est une unité de playlist résolue. Immuable une fois créée;
// URL vide = entrée invalide, jamais écrite.
type Entry struct {
	Name  string
	Logo  string
	Group string
	URL   string

	// Métadonnées série, nil pour channels/movies.
	Series *SeriesMeta
}

type SeriesMeta struct {
	SeriesID    string
	SeriesTitle string
	Season      int
	Episode     int
}

func (e Entry) Valid() bool {
	return strings.TrimSpace(e.URL) != "" && strings.TrimSpace(e.Name) != ""
}
