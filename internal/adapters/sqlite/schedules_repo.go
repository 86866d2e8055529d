package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
)

type SchedulesRepository struct {
	db *sql.DB
}

func NewSchedulesRepository(db *sql.DB) *SchedulesRepository {
	return &SchedulesRepository{db: db}
}

func (r *SchedulesRepository) Create(ctx context.Context, sched domain.Schedule) (domain.Schedule, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules(
			id, portal_url, mac, kind, label,
			interval_hours,
			next_run_at, last_run_at, last_file, last_entry_count,
			created_at, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sched.ID, sched.PortalURL, sched.MAC, string(sched.Kind), sched.Label,
		sched.IntervalHours,
		sched.NextRunAt.UTC().Format(time.RFC3339), sched.LastRunAt.UTC().Format(time.RFC3339),
		sched.LastFile, sched.LastEntryCount,
		sched.CreatedAt.UTC().Format(time.RFC3339), sched.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		// modernc.org/sqlite retourne une erreur texte du type:
		// "constraint failed: UNIQUE constraint failed: schedules.portal_url, ... (2067)"
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint failed") && strings.Contains(msg, "schedules.") {
			return domain.Schedule{}, ports.ErrConflict
		}
		return domain.Schedule{}, err
	}
	return r.Get(ctx, sched.ID)
}

func (r *SchedulesRepository) Get(ctx context.Context, id string) (domain.Schedule, error) {
	var sched domain.Schedule
	var kind string
	var nextRun, lastRun, created, updated string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, portal_url, mac, kind, label,
			interval_hours,
			next_run_at, last_run_at, last_file, last_entry_count,
			created_at, updated_at
		FROM schedules
		WHERE id = ?
	`, id).Scan(
		&sched.ID, &sched.PortalURL, &sched.MAC, &kind, &sched.Label,
		&sched.IntervalHours,
		&nextRun, &lastRun, &sched.LastFile, &sched.LastEntryCount,
		&created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Schedule{}, ports.ErrNotFound
		}
		return domain.Schedule{}, err
	}
	sched.Kind = domain.ContentKind(kind)
	if t, err := time.Parse(time.RFC3339, nextRun); err == nil {
		sched.NextRunAt = t
	}
	if t, err := time.Parse(time.RFC3339, lastRun); err == nil {
		sched.LastRunAt = t
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		sched.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updated); err == nil {
		sched.UpdatedAt = t
	}
	return sched, nil
}

func (r *SchedulesRepository) List(ctx context.Context, limit int) ([]domain.Schedule, error) {
	q := `
		SELECT id FROM schedules
		ORDER BY updated_at DESC
	`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Schedule, 0, len(ids))
	for _, id := range ids {
		sched, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, nil
}

func (r *SchedulesRepository) Update(ctx context.Context, sched domain.Schedule) (domain.Schedule, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET portal_url = ?, mac = ?, kind = ?, label = ?,
			interval_hours = ?,
			next_run_at = ?, last_run_at = ?, last_file = ?, last_entry_count = ?,
			updated_at = ?
		WHERE id = ?
	`,
		sched.PortalURL, sched.MAC, string(sched.Kind), sched.Label,
		sched.IntervalHours,
		sched.NextRunAt.UTC().Format(time.RFC3339), sched.LastRunAt.UTC().Format(time.RFC3339),
		sched.LastFile, sched.LastEntryCount,
		sched.UpdatedAt.UTC().Format(time.RFC3339),
		sched.ID,
	)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint failed") && strings.Contains(msg, "schedules.") {
			return domain.Schedule{}, ports.ErrConflict
		}
		return domain.Schedule{}, err
	}
	return r.Get(ctx, sched.ID)
}

func (r *SchedulesRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *SchedulesRepository) Due(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	q := `
		SELECT id FROM schedules
		WHERE next_run_at <= ?
		ORDER BY next_run_at ASC
	`
	args := []any{now.UTC().Format(time.RFC3339)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Schedule, 0, len(ids))
	for _, id := range ids {
		sched, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, nil
}

func (r *SchedulesRepository) RecordResult(ctx context.Context, id string, file string, entries int) (domain.Schedule, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET last_file = ?, last_entry_count = ?, updated_at = ?
		WHERE id = ?
	`, file, entries, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return domain.Schedule{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Schedule{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}
