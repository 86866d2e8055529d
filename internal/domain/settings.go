package domain

type Settings struct {
	// Répertoire de destination des playlists produites.
	Destination string `json:"destination"`

	// Concurrence.
	MaxWorkers            int `json:"maxWorkers"`
	MaxConcurrentRequests int `json:"maxConcurrentRequests"`

	// Timeout par requête portail, en secondes.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`

	// Réécriture des URLs de proxy local renvoyées par certains portails.
	// Marker: sous-chaîne de host déclenchante. Pattern: regex extrayant l'id de stream.
	ProxyHostMarker  string `json:"proxyHostMarker"`
	ProxyPathPattern string `json:"proxyPathPattern"`
}

func DefaultSettings() Settings {
	return Settings{
		Destination:           "playlists",
		MaxWorkers:            2,
		MaxConcurrentRequests: 10,
		RequestTimeoutSeconds: 10,
		ProxyHostMarker:       "localhost",
		ProxyPathPattern:      `/ch/(\d+)_`,
	}
}
