package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

var (
	// ErrHandshakeFailed: le portail n'a pas délivré de token. Fatal pour le run.
	ErrHandshakeFailed = errors.New("portal handshake failed")
	// ErrSubscriptionInvalid: le contrôle d'abonnement a échoué. Fatal pour le run.
	ErrSubscriptionInvalid = errors.New("subscription check failed")
)

// statusError distingue les statuts HTTP non-200 des erreurs de transport,
// pour décider ce qui est retriable.
type statusError struct {
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("portal returned http %d", e.Status)
}

type decodeError struct {
	Path string
	Err  error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Path, e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }

const (
	defaultPortalTimeout = 10 * time.Second
	defaultPageRetries   = 3
	defaultLinkRetries   = 2
)

type PortalOptions struct {
	// Timeout par appel. Défaut: 10s.
	Timeout time.Duration
	// RequestsPerSecond borne le débit vers le portail. 0 = illimité.
	RequestsPerSecond float64
	Logger            zerolog.Logger
	// HTTPClient permet d'injecter un client (tests). S'il est nil, un client
	// avec cookie jar est construit.
	HTTPClient *http.Client
}

// PortalClient parle le dialecte "Stalker" d'un portail IPTV: handshake,
// contrôle d'abonnement, listing paginé du catalogue et résolution de liens.
// Après authentification, la session (token + cookies) est en lecture seule
// et partageable entre goroutines.
type PortalClient struct {
	baseURL string
	mac     string
	token   string

	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  zerolog.Logger
}

// NormalizePortalURL réduit l'entrée utilisateur à "http://host:port"
// (port 80 implicite), comme attendu par les portails.
func NormalizePortalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty portal url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid portal url %q", raw)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	return "http://" + u.Hostname() + ":" + port, nil
}

func NewPortalClient(rawURL, mac string, opts PortalOptions) (*PortalClient, error) {
	base, err := NormalizePortalURL(rawURL)
	if err != nil {
		return nil, err
	}
	mac = strings.ToUpper(strings.TrimSpace(mac))
	if mac == "" {
		return nil, errors.New("empty mac address")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPortalTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			// Les portails renvoient parfois des redirections piégées;
			// on ne les suit pas, comme le ferait une STB.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	u, _ := url.Parse(base)
	client.Jar.SetCookies(u, []*http.Cookie{{Name: "mac", Value: mac}})

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &PortalClient{
		baseURL: base,
		mac:     mac,
		http:    client,
		limiter: limiter,
		timeout: timeout,
		logger:  opts.Logger,
	}, nil
}

func (c *PortalClient) BaseURL() string { return c.baseURL }
func (c *PortalClient) MAC() string     { return c.mac }
func (c *PortalClient) Token() string   { return c.token }

func (c *PortalClient) getJSON(ctx context.Context, path string, q url.Values, auth bool, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	q.Set("JsHttpRequest", "1-xml")
	reqURL := c.baseURL + path + "?" + q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{Status: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &decodeError{Path: path, Err: err}
	}
	return nil
}

// retriable: erreur de transport ou 5xx. Un 4xx ou un JSON invalide ne l'est pas.
func retriable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	// Un timeout par appel est transitoire et se retente; une annulation du
	// run est prise en charge par retry.Context.
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func (c *PortalClient) getJSONRetry(ctx context.Context, path string, q url.Values, auth bool, out any, attempts uint) error {
	return retry.Do(
		func() error {
			return c.getJSON(ctx, path, cloneValues(q), auth, out)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.RetryIf(retriable),
		retry.LastErrorOnly(true),
	)
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Handshake obtient le token bearer initial. Aucun header d'auth.
func (c *PortalClient) Handshake(ctx context.Context) error {
	q := url.Values{
		"type":   {"stb"},
		"action": {"handshake"},
		"token":  {""},
	}
	var res handshakeResponse
	if err := c.getJSON(ctx, "/portal.php", q, false, &res); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if strings.TrimSpace(res.Js.Token) == "" {
		return fmt.Errorf("%w: empty token", ErrHandshakeFailed)
	}
	c.token = res.Js.Token
	return nil
}

// AccountInfo vérifie que l'abonnement est actif. Tout statut non-200 ou
// corps malformé est fatal.
func (c *PortalClient) AccountInfo(ctx context.Context) (AccountInfo, error) {
	q := url.Values{
		"type":   {"account_info"},
		"action": {"get_main_info"},
	}
	var res accountInfoResponse
	if err := c.getJSON(ctx, "/portal.php", q, true, &res); err != nil {
		return AccountInfo{}, fmt.Errorf("%w: %v", ErrSubscriptionInvalid, err)
	}
	return AccountInfo{MAC: res.Js.Mac, Expiry: res.Js.Phone}, nil
}

// Authenticate enchaîne handshake puis contrôle d'abonnement.
func (c *PortalClient) Authenticate(ctx context.Context) (AccountInfo, error) {
	if err := c.Handshake(ctx); err != nil {
		return AccountInfo{}, err
	}
	return c.AccountInfo(ctx)
}

// Genres renvoie les genres live filtrés (sans le bucket "*") ainsi que la
// table id -> titre complète, consommée au formatage des chaînes.
func (c *PortalClient) Genres(ctx context.Context) ([]Category, map[string]string, error) {
	q := url.Values{
		"type":   {"itv"},
		"action": {"get_genres"},
	}
	var res categoryListResponse
	if err := c.getJSON(ctx, "/server/load.php", q, true, &res); err != nil {
		return nil, nil, err
	}

	titles := make(map[string]string, len(res.Js))
	cats := make([]Category, 0, len(res.Js))
	for _, g := range res.Js {
		id := g.ID.String()
		titles[id] = g.Title
		if id == "*" {
			continue
		}
		cats = append(cats, Category{ID: id, Title: g.Title})
	}
	return cats, titles, nil
}

func portalType(kind domain.ContentKind) string {
	switch kind {
	case domain.KindChannels:
		return "itv"
	case domain.KindMovies:
		return "vod"
	case domain.KindSeries:
		return "series"
	default:
		return ""
	}
}

// Categories liste les catégories d'un type de contenu, bucket "*" exclu.
func (c *PortalClient) Categories(ctx context.Context, kind domain.ContentKind) ([]Category, error) {
	if kind == domain.KindChannels {
		cats, _, err := c.Genres(ctx)
		return cats, err
	}

	q := url.Values{
		"type":   {portalType(kind)},
		"action": {"get_categories"},
	}
	var res categoryListResponse
	if err := c.getJSON(ctx, "/portal.php", q, true, &res); err != nil {
		return nil, err
	}

	cats := make([]Category, 0, len(res.Js))
	for _, raw := range res.Js {
		if raw.ID.String() == "*" {
			continue
		}
		cats = append(cats, Category{ID: raw.ID.String(), Title: raw.Title})
	}
	return cats, nil
}

func orderedListQuery(kind domain.ContentKind, categoryID string, page int) url.Values {
	if kind == domain.KindChannels {
		return url.Values{
			"type":   {"itv"},
			"action": {"get_ordered_list"},
			"genre":  {categoryID},
			"fav":    {"0"},
			"sortby": {"number"},
			"p":      {strconv.Itoa(page)},
		}
	}
	return url.Values{
		"type":       {portalType(kind)},
		"action":     {"get_ordered_list"},
		"movie_id":   {"0"},
		"season_id":  {"0"},
		"episode_id": {"0"},
		"row":        {"0"},
		"category":   {categoryID},
		"sortby":     {"added"},
		"fav":        {"0"},
		"hd":         {"0"},
		"not_ended":  {"0"},
		"abc":        {"*"},
		"genre":      {"*"},
		"years":      {"*"},
		"search":     {""},
		"p":          {strconv.Itoa(page)},
	}
}

// Page récupère une page d'items d'une catégorie. Les erreurs de transport
// et les 5xx sont retentés un nombre borné de fois.
func (c *PortalClient) Page(ctx context.Context, kind domain.ContentKind, categoryID string, page int) ([]CatalogItem, error) {
	var res pageResponse
	q := orderedListQuery(kind, categoryID, page)
	if err := c.getJSONRetry(ctx, "/portal.php", q, true, &res, defaultPageRetries); err != nil {
		return nil, err
	}
	return res.Js.Data, nil
}

// Paginator énumère les pages d'une catégorie. La séquence est finie et non
// redémarrable: une page vide — ou une erreur — la termine.
type Paginator struct {
	c          *PortalClient
	kind       domain.ContentKind
	categoryID string
	page       int
	done       bool
}

func (c *PortalClient) ListCategory(kind domain.ContentKind, categoryID string) *Paginator {
	return &Paginator{c: c, kind: kind, categoryID: categoryID}
}

// Next renvoie la page suivante, ou (nil, nil) quand la séquence est épuisée.
// Après une erreur, la séquence est également terminée.
func (p *Paginator) Next(ctx context.Context) ([]CatalogItem, error) {
	if p.done {
		return nil, nil
	}
	p.page++
	items, err := p.c.Page(ctx, p.kind, p.categoryID, p.page)
	if err != nil {
		p.done = true
		return nil, err
	}
	if len(items) == 0 {
		p.done = true
		return nil, nil
	}
	return items, nil
}

// Seasons liste la structure saisons/épisodes d'une série (appel mono-page).
func (c *PortalClient) Seasons(ctx context.Context, seriesID, categoryID string) ([]CatalogItem, error) {
	q := url.Values{
		"type":       {"series"},
		"action":     {"get_ordered_list"},
		"movie_id":   {seriesID},
		"season_id":  {"0"},
		"episode_id": {"0"},
		"row":        {"0"},
		"category":   {categoryID},
		"sortby":     {"added"},
		"fav":        {"0"},
		"hd":         {"0"},
		"not_ended":  {"0"},
		"abc":        {"*"},
		"genre":      {"*"},
		"years":      {"*"},
		"search":     {""},
		"p":          {"1"},
	}
	var res pageResponse
	if err := c.getJSONRetry(ctx, "/portal.php", q, true, &res, defaultPageRetries); err != nil {
		return nil, err
	}
	return res.Js.Data, nil
}

// CreateLink échange un cmd opaque contre une URL lisible. Le champ js.cmd
// est une chaîne "ffmpeg http://..." dont le deuxième token est l'URL réelle.
func (c *PortalClient) CreateLink(ctx context.Context, cmd string, episode int) (string, error) {
	q := url.Values{
		"type":   {"vod"},
		"action": {"create_link"},
		"cmd":    {cmd},
	}
	if episode > 0 {
		q.Set("series", strconv.Itoa(episode))
	}
	var res createLinkResponse
	if err := c.getJSONRetry(ctx, "/portal.php", q, true, &res, defaultLinkRetries); err != nil {
		return "", err
	}
	fields := strings.Fields(res.Js.Cmd)
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected create_link payload %q", res.Js.Cmd)
	}
	return fields[1], nil
}
