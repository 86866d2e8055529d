package app

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Toutes les réponses du portail sont enveloppées dans {"js": ...}.
// Les ids arrivent tantôt en nombre, tantôt en chaîne selon les installations,
// d'où flexID.

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

type handshakeResponse struct {
	Js struct {
		Token string `json:"token"`
	} `json:"js"`
}

type accountInfoResponse struct {
	Js struct {
		Mac   string `json:"mac"`
		Phone string `json:"phone"`
	} `json:"js"`
}

// AccountInfo est le résultat du contrôle d'abonnement, affiché à l'utilisateur.
type AccountInfo struct {
	MAC    string
	Expiry string
}

type Category struct {
	ID    string
	Title string
}

type categoryListResponse struct {
	Js []struct {
		ID    flexID `json:"id"`
		Title string `json:"title"`
	} `json:"js"`
}

type createLinkResponse struct {
	Js struct {
		Cmd string `json:"cmd"`
	} `json:"js"`
}

type pageResponse struct {
	Js struct {
		Data []CatalogItem `json:"data"`
	} `json:"js"`
}

type ChannelCmd struct {
	URL string `json:"url"`
}

// CatalogItem couvre les trois variantes (chaîne, film, série) ainsi que les
// lignes saison renvoyées par le listing d'une série.
type CatalogItem struct {
	ID         flexID       `json:"id"`
	Name       string       `json:"name"`
	Logo       string       `json:"logo"`
	Screenshot string       `json:"screenshot_uri"`
	Cmd        string       `json:"cmd"`
	Cmds       []ChannelCmd `json:"cmds"`
	TvGenreID  flexID       `json:"tv_genre_id"`
	CategoryID flexID       `json:"category_id"`

	// Numéros d'épisodes quand l'item représente une saison.
	Series []int `json:"series"`
}

// CommandURL renvoie la commande de lecture brute d'une chaîne.
func (it CatalogItem) CommandURL() string {
	if len(it.Cmds) > 0 && strings.TrimSpace(it.Cmds[0].URL) != "" {
		return it.Cmds[0].URL
	}
	return it.Cmd
}

func (it CatalogItem) LogoURI() string {
	if it.Logo != "" {
		return it.Logo
	}
	return it.Screenshot
}

// SeriesID extrait l'id de série d'un id composite "1234:0".
func (it CatalogItem) SeriesID() string {
	id := it.ID.String()
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}

// SeasonNumber extrait le numéro de saison d'un id composite "1234:2".
func (it CatalogItem) SeasonNumber() (int, bool) {
	id := it.ID.String()
	i := strings.IndexByte(id, ':')
	if i < 0 || i+1 >= len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
