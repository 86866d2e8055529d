package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*PortalClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewPortalClient(srv.URL, "00:1a:79:12:34:56", PortalOptions{})
	if err != nil {
		t.Fatalf("NewPortalClient: %v", err)
	}
	return c, srv
}

func TestNormalizePortalURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"portal.example.com", "http://portal.example.com:80"},
		{"http://portal.example.com", "http://portal.example.com:80"},
		{"https://portal.example.com:8080/c/", "http://portal.example.com:8080"},
		{"  portal.example.com:88  ", "http://portal.example.com:88"},
	}
	for _, c := range cases {
		got, err := NormalizePortalURL(c.in)
		if err != nil {
			t.Fatalf("NormalizePortalURL(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("NormalizePortalURL(%q): want %q, got %q", c.in, c.want, got)
		}
	}

	if _, err := NormalizePortalURL(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestPortalClient_HandshakeAndAccountInfo(t *testing.T) {
	var sawBearer atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("JsHttpRequest") != "1-xml" {
			t.Errorf("missing JsHttpRequest param")
		}
		switch q.Get("action") {
		case "handshake":
			if r.Header.Get("Authorization") != "" {
				t.Errorf("handshake must not carry auth header")
			}
			if c, err := r.Cookie("mac"); err != nil || c.Value != "00:1A:79:12:34:56" {
				t.Errorf("expected uppercase mac cookie, got %v (%v)", c, err)
			}
			fmt.Fprint(w, `{"js":{"token":"tok-123"}}`)
		case "get_main_info":
			if r.Header.Get("Authorization") == "Bearer tok-123" {
				sawBearer.Store(true)
			}
			fmt.Fprint(w, `{"js":{"mac":"00:1A:79:12:34:56","phone":"2027-01-01"}}`)
		default:
			t.Errorf("unexpected action %q", q.Get("action"))
		}
	})

	c, _ := newTestClient(t, mux)
	account, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if c.Token() != "tok-123" {
		t.Fatalf("token: want tok-123, got %q", c.Token())
	}
	if !sawBearer.Load() {
		t.Fatalf("account_info should carry bearer token")
	}
	if account.MAC != "00:1A:79:12:34:56" || account.Expiry != "2027-01-01" {
		t.Fatalf("unexpected account info: %+v", account)
	}
}

func TestPortalClient_HandshakeEmptyToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"js":{"token":""}}`)
	})

	c, _ := newTestClient(t, mux)
	err := c.Handshake(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
}

func TestPortalClient_AccountInfoForbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "handshake" {
			fmt.Fprint(w, `{"js":{"token":"tok"}}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	c, _ := newTestClient(t, mux)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrSubscriptionInvalid) {
		t.Fatalf("expected ErrSubscriptionInvalid, got %v", err)
	}
}

func TestPortalClient_GenresFiltersWildcard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/server/load.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "itv" || q.Get("action") != "get_genres" {
			t.Errorf("unexpected query %v", q)
		}
		fmt.Fprint(w, `{"js":[{"id":"*","title":"All"},{"id":1,"title":"News"},{"id":"2","title":"Sports"}]}`)
	})

	c, _ := newTestClient(t, mux)
	cats, titles, err := c.Genres(context.Background())
	if err != nil {
		t.Fatalf("Genres: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected wildcard filtered out, got %d categories", len(cats))
	}
	if cats[0].ID != "1" || cats[0].Title != "News" {
		t.Fatalf("numeric id should be stringified, got %+v", cats[0])
	}
	// La table complète garde le bucket "*".
	if titles["*"] != "All" || titles["2"] != "Sports" {
		t.Fatalf("unexpected titles map: %v", titles)
	}
}

func TestPaginator_StopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("p") {
		case "1":
			fmt.Fprint(w, `{"js":{"data":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}}`)
		case "2":
			fmt.Fprint(w, `{"js":{"data":[{"id":3,"name":"C"}]}}`)
		default:
			fmt.Fprint(w, `{"js":{"data":[]}}`)
		}
	})

	c, _ := newTestClient(t, mux)
	pager := c.ListCategory(domain.KindMovies, "10")

	total := 0
	for {
		items, err := pager.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if items == nil {
			break
		}
		total += len(items)
	}
	if total != 3 {
		t.Fatalf("expected 3 items, got %d", total)
	}
	// Pages 1, 2 et la page vide 3 — pas de relecture après épuisement.
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 page fetches, got %d", got)
	}
	if items, err := pager.Next(context.Background()); items != nil || err != nil {
		t.Fatalf("exhausted paginator should return (nil, nil), got (%v, %v)", items, err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("exhausted paginator must not refetch, got %d calls", got)
	}
}

func TestPortalClient_PageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"js":{"data":[{"id":1,"name":"A"}]}}`)
	})

	c, _ := newTestClient(t, mux)
	items, err := c.Page(context.Background(), domain.KindChannels, "5", 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(items) != 1 || items[0].Name != "A" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 1 retry, got %d calls", calls.Load())
	}
}

func TestPortalClient_PageDoesNotRetryMalformedJSON(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `<html>not json</html>`)
	})

	c, _ := newTestClient(t, mux)
	if _, err := c.Page(context.Background(), domain.KindMovies, "5", 1); err == nil {
		t.Fatalf("expected decode error")
	}
	if calls.Load() != 1 {
		t.Fatalf("malformed payload must not be retried, got %d calls", calls.Load())
	}
}

func TestPortalClient_CreateLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "vod" || q.Get("action") != "create_link" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("cmd") != "/media/999.mpg" {
			t.Errorf("cmd: got %q", q.Get("cmd"))
		}
		if q.Get("series") != "4" {
			t.Errorf("series: got %q", q.Get("series"))
		}
		fmt.Fprint(w, `{"js":{"cmd":"ffmpeg http://cdn.example.com/vod/999.mpg"}}`)
	})

	c, _ := newTestClient(t, mux)
	link, err := c.CreateLink(context.Background(), "/media/999.mpg", 4)
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link != "http://cdn.example.com/vod/999.mpg" {
		t.Fatalf("link: got %q", link)
	}
}

func TestPortalClient_CreateLinkRejectsShortPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"js":{"cmd":"broken"}}`)
	})

	c, _ := newTestClient(t, mux)
	if _, err := c.CreateLink(context.Background(), "/media/1.mpg", 0); err == nil {
		t.Fatalf("expected error for payload without url token")
	}
}
