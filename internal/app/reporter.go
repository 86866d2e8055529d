package app

import "github.com/rs/zerolog"

// Reporter reçoit la progression d'un export: messages libres et bilan par
// catégorie. Les composants du crawl ne touchent jamais un terminal
// directement — le CLI branche un reporter console, le serveur un logger.
type Reporter interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	CategoryDone(title string, entries, unresolved int)
}

type NopReporter struct{}

func (NopReporter) Infof(string, ...any)          {}
func (NopReporter) Warnf(string, ...any)          {}
func (NopReporter) Errorf(string, ...any)         {}
func (NopReporter) CategoryDone(string, int, int) {}

// LogReporter route les messages vers zerolog (mode serveur).
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Infof(format string, args ...any)  { r.Logger.Info().Msgf(format, args...) }
func (r LogReporter) Warnf(format string, args ...any)  { r.Logger.Warn().Msgf(format, args...) }
func (r LogReporter) Errorf(format string, args ...any) { r.Logger.Error().Msgf(format, args...) }

func (r LogReporter) CategoryDone(title string, entries, unresolved int) {
	r.Logger.Info().
		Str("category", title).
		Int("entries", entries).
		Int("unresolved", unresolved).
		Msg("category exported")
}
