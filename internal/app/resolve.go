package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const commandPrefix = "ffmpeg "

// DefaultProxyHostMarker and DefaultProxyPathPattern describe the common case
// where a portal self-references a local relay that is unreachable to clients.
const (
	DefaultProxyHostMarker  = "localhost"
	DefaultProxyPathPattern = `/ch/(\d+)_`
)

// LocalProxyRewriter rewrites stream commands that point at the portal's own
// local proxy, reconstructing a portal-relative URL the client can reach.
type LocalProxyRewriter struct {
	marker  string
	pattern *regexp.Regexp
}

func NewLocalProxyRewriter(marker, pattern string) (*LocalProxyRewriter, error) {
	if marker == "" {
		marker = DefaultProxyHostMarker
	}
	if pattern == "" {
		pattern = DefaultProxyPathPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy path pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("proxy path pattern %q must capture the stream id", pattern)
	}
	return &LocalProxyRewriter{marker: marker, pattern: re}, nil
}

// Rewrite returns the command URL untouched unless both the host marker and
// the stream-id pattern are present. The rewritten form never matches the
// pattern again, so feeding it back through Rewrite is a no-op.
func (r *LocalProxyRewriter) Rewrite(baseURL, mac, cmdURL string) string {
	if !strings.Contains(cmdURL, r.marker) {
		return cmdURL
	}
	m := r.pattern.FindStringSubmatch(cmdURL)
	if len(m) < 2 {
		return cmdURL
	}
	return fmt.Sprintf("%s/play/live.php?mac=%s&stream=%s&extension=ts", baseURL, mac, m[1])
}

// ChannelStreamURL turns a raw channel command into a playable URL:
// strip the "ffmpeg " launcher token, then apply the local-proxy rewrite.
func (r *LocalProxyRewriter) ChannelStreamURL(baseURL, mac, rawCmd string) string {
	u := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rawCmd), commandPrefix))
	if u == "" {
		return ""
	}
	return r.Rewrite(baseURL, mac, u)
}

type seriesCmd struct {
	SeriesID  string `json:"series_id"`
	SeasonNum int    `json:"season_num"`
	Type      string `json:"type"`
}

// EncodeSeriesCmd builds the composite command a portal expects for episode
// link resolution: base64 over a small JSON document.
func EncodeSeriesCmd(seriesID string, season int) string {
	b, _ := json.Marshal(seriesCmd{SeriesID: seriesID, SeasonNum: season, Type: "series"})
	return base64.StdEncoding.EncodeToString(b)
}

// MovieLink resolves a movie cmd token into a playable URL.
func (c *PortalClient) MovieLink(ctx context.Context, cmd string) (string, error) {
	return c.CreateLink(ctx, cmd, 0)
}

// EpisodeLink resolves one episode of a series season.
func (c *PortalClient) EpisodeLink(ctx context.Context, seriesID string, season, episode int) (string, error) {
	return c.CreateLink(ctx, EncodeSeriesCmd(seriesID, season), episode)
}
