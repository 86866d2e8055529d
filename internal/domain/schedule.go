package domain

import "time"

// Schedule décrit un export récurrent d'un portail.
type Schedule struct {
	ID string

	PortalURL string
	MAC       string
	Kind      ContentKind

	// Label est un nom libre pour affichage.
	Label string

	IntervalHours int

	NextRunAt time.Time
	LastRunAt time.Time

	// Résultat du dernier export terminé.
	LastFile       string
	LastEntryCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
