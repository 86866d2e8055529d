package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

const defaultResolveWorkers = 10

type ExporterOptions struct {
	// Workers dimensionne le pool de résolution par catégorie. Défaut: 10.
	Workers int
	// Limiter borne les résolutions en vol pour la traversée séries; s'il est
	// nil, un limiteur local de la taille du pool est créé.
	Limiter  *RequestLimiter
	Reporter Reporter

	ProxyHostMarker  string
	ProxyPathPattern string

	// OnCategoryDone est appelé après chaque catégorie (done, total),
	// typiquement pour la progression d'un job.
	OnCategoryDone func(done, total int)
}

// Exporter traverse le catalogue d'un portail authentifié et écrit les
// entrées résolues dans une playlist. La traversée est séquentielle au niveau
// des catégories (les entrées d'une catégorie restent contiguës dans le
// fichier); la résolution des items est parallélisée à largeur bornée.
type Exporter struct {
	portal   *PortalClient
	logger   zerolog.Logger
	opts     ExporterOptions
	rewriter *LocalProxyRewriter
}

func NewExporter(portal *PortalClient, logger zerolog.Logger, opts ExporterOptions) (*Exporter, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultResolveWorkers
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRequestLimiter(opts.Workers)
	}
	rw, err := NewLocalProxyRewriter(opts.ProxyHostMarker, opts.ProxyPathPattern)
	if err != nil {
		return nil, err
	}
	return &Exporter{portal: portal, logger: logger, opts: opts, rewriter: rw}, nil
}

type CategoryReport struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Entries    int    `json:"entries"`
	Unresolved int    `json:"unresolved"`
}

type Report struct {
	Categories []CategoryReport `json:"categories"`
	Entries    int              `json:"entries"`
	Unresolved int              `json:"unresolved"`
}

// Export parcourt toutes les catégories du type demandé. Les échecs par page
// ou par item sont journalisés et comptés, jamais fatals; seule l'énumération
// initiale des catégories ou une erreur d'écriture arrête le run. Une
// annulation interrompt proprement: ce qui est écrit reste écrit, l'appelant
// ferme le writer.
func (e *Exporter) Export(ctx context.Context, kind domain.ContentKind, w *PlaylistWriter) (Report, error) {
	var genres map[string]string
	var cats []Category
	var err error

	if kind == domain.KindChannels {
		cats, genres, err = e.portal.Genres(ctx)
	} else {
		cats, err = e.portal.Categories(ctx, kind)
	}
	if err != nil {
		return Report{}, fmt.Errorf("list %s categories: %w", kind, err)
	}

	if err := w.WriteHeader(); err != nil {
		return Report{}, fmt.Errorf("write playlist header: %w", err)
	}

	rep := Report{}
	total := len(cats)
	for i, cat := range cats {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		var cr CategoryReport
		switch kind {
		case domain.KindSeries:
			cr = e.exportSeriesCategory(ctx, cat, w)
		default:
			cr = e.exportFlatCategory(ctx, kind, cat, genres, w)
		}

		rep.Categories = append(rep.Categories, cr)
		rep.Entries += cr.Entries
		rep.Unresolved += cr.Unresolved
		e.opts.Reporter.CategoryDone(cat.Title, cr.Entries, cr.Unresolved)
		if e.opts.OnCategoryDone != nil {
			e.opts.OnCategoryDone(i+1, total)
		}
	}

	return rep, ctx.Err()
}

// exportFlatCategory: pagination séquentielle, résolution par un pool de
// workers, écriture au fil des complétions.
func (e *Exporter) exportFlatCategory(ctx context.Context, kind domain.ContentKind, cat Category, genres map[string]string, w *PlaylistWriter) CategoryReport {
	var entries, unresolved atomic.Int64

	jobs := make(chan CatalogItem)
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if ctx.Err() != nil {
					continue
				}
				e.resolveFlatItem(ctx, kind, cat, genres, item, w, &entries, &unresolved)
			}
		}()
	}

	pager := e.portal.ListCategory(kind, cat.ID)
feed:
	for {
		items, err := pager.Next(ctx)
		if err != nil {
			e.opts.Reporter.Warnf("category %s: page fetch failed: %v", cat.Title, err)
			e.logger.Warn().Err(err).Str("category", cat.Title).Msg("page fetch failed, category truncated")
			break
		}
		if items == nil {
			break
		}
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(jobs)
	wg.Wait()

	return CategoryReport{
		ID:         cat.ID,
		Title:      cat.Title,
		Entries:    int(entries.Load()),
		Unresolved: int(unresolved.Load()),
	}
}

func (e *Exporter) resolveFlatItem(ctx context.Context, kind domain.ContentKind, cat Category, genres map[string]string, item CatalogItem, w *PlaylistWriter, entries, unresolved *atomic.Int64) {
	var entry domain.Entry

	switch kind {
	case domain.KindChannels:
		streamURL := e.rewriter.ChannelStreamURL(e.portal.BaseURL(), e.portal.MAC(), item.CommandURL())
		entry = domain.Entry{
			Name:  item.Name,
			Logo:  item.LogoURI(),
			Group: channelGroup(item, cat, genres),
			URL:   streamURL,
		}
	case domain.KindMovies:
		link, err := e.portal.MovieLink(ctx, item.Cmd)
		if err != nil {
			e.logger.Debug().Err(err).Str("movie", item.Name).Msg("link resolution failed")
			unresolved.Add(1)
			return
		}
		entry = domain.Entry{
			Name:  item.Name,
			Logo:  item.LogoURI(),
			Group: cat.Title,
			URL:   link,
		}
	}

	if !entry.Valid() {
		unresolved.Add(1)
		return
	}
	if err := w.WriteEntry(entry); err != nil {
		e.logger.Error().Err(err).Str("item", item.Name).Msg("playlist write failed")
		unresolved.Add(1)
		return
	}
	entries.Add(1)
}

// channelGroup: table des genres d'abord, titre de la catégorie sinon,
// "General" en dernier recours.
func channelGroup(item CatalogItem, cat Category, genres map[string]string) string {
	if id := item.TvGenreID.String(); id != "" {
		if title, ok := genres[id]; ok && title != "" {
			return title
		}
	}
	if cat.Title != "" {
		return cat.Title
	}
	return "General"
}

// exportSeriesCategory marche la hiérarchie série -> saisons -> épisodes.
// L'éventail étant combinatoire, chaque résolution d'épisode passe par le
// limiteur partagé plutôt que par un pool par niveau.
func (e *Exporter) exportSeriesCategory(ctx context.Context, cat Category, w *PlaylistWriter) CategoryReport {
	var entries, unresolved atomic.Int64
	var wg sync.WaitGroup

	pager := e.portal.ListCategory(domain.KindSeries, cat.ID)
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			e.opts.Reporter.Warnf("category %s: page fetch failed: %v", cat.Title, err)
			e.logger.Warn().Err(err).Str("category", cat.Title).Msg("page fetch failed, category truncated")
			break
		}
		if page == nil {
			break
		}

		for _, series := range page {
			if ctx.Err() != nil {
				break
			}
			e.exportSeries(ctx, cat, series, w, &wg, &entries, &unresolved)
		}
	}
	wg.Wait()

	return CategoryReport{
		ID:         cat.ID,
		Title:      cat.Title,
		Entries:    int(entries.Load()),
		Unresolved: int(unresolved.Load()),
	}
}

func (e *Exporter) exportSeries(ctx context.Context, cat Category, series CatalogItem, w *PlaylistWriter, wg *sync.WaitGroup, entries, unresolved *atomic.Int64) {
	seriesID := series.SeriesID()
	categoryID := series.CategoryID.String()
	if categoryID == "" {
		categoryID = cat.ID
	}

	seasons, err := e.portal.Seasons(ctx, seriesID, categoryID)
	if err != nil {
		e.logger.Warn().Err(err).Str("series", series.Name).Msg("season listing failed")
		unresolved.Add(1)
		return
	}

	for _, season := range seasons {
		seasonNum, ok := season.SeasonNumber()
		if !ok {
			continue
		}
		totalEpisodes := len(season.Series)
		for _, episode := range season.Series {
			if err := e.opts.Limiter.Acquire(ctx); err != nil {
				return
			}
			wg.Add(1)
			go func(seasonNum, episode, totalEpisodes int) {
				defer wg.Done()
				defer e.opts.Limiter.Release()
				e.resolveEpisode(ctx, cat, series, seriesID, seasonNum, episode, totalEpisodes, w, entries, unresolved)
			}(seasonNum, episode, totalEpisodes)
		}
	}
}

func (e *Exporter) resolveEpisode(ctx context.Context, cat Category, series CatalogItem, seriesID string, season, episode, totalEpisodes int, w *PlaylistWriter, entries, unresolved *atomic.Int64) {
	link, err := e.portal.EpisodeLink(ctx, seriesID, season, episode)
	if err != nil {
		e.logger.Debug().Err(err).
			Str("series", series.Name).
			Int("season", season).
			Int("episode", episode).
			Msg("episode link resolution failed")
		unresolved.Add(1)
		return
	}

	entry := domain.Entry{
		Name:  fmt.Sprintf("%s %s", series.Name, FormatEpisodeNumber(season, episode, totalEpisodes)),
		Logo:  series.LogoURI(),
		Group: cat.Title,
		URL:   link,
		Series: &domain.SeriesMeta{
			SeriesID:    seriesID,
			SeriesTitle: series.Name,
			Season:      season,
			Episode:     episode,
		},
	}
	if err := w.WriteEntry(entry); err != nil {
		e.logger.Error().Err(err).Str("item", entry.Name).Msg("playlist write failed")
		unresolved.Add(1)
		return
	}
	entries.Add(1)
}

// FormatEpisodeNumber pads the episode index to the width of the season's
// episode count: S2 E07.
func FormatEpisodeNumber(season, episode, totalEpisodes int) string {
	width := len(fmt.Sprint(totalEpisodes))
	return fmt.Sprintf("S%d E%0*d", season, width, episode)
}
