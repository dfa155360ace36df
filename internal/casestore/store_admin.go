package casestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"khoj/internal/services"
)

// GetReport fetches a single sighting report by id.
func (s *Store) GetReport(ctx context.Context, id int64) (*SightingReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, person_id, reporter_name, reporter_contact, location_text,
                description_text, photo_path, photo_url, embedding, created_at
         FROM sighting_reports WHERE id = ?`, id)

	var (
		report       SightingReport
		embeddingRaw string
		createdRaw   string
	)
	err := row.Scan(&report.ID, &report.PersonID, &report.ReporterName, &report.ReporterContact,
		&report.LocationText, &report.DescriptionText, &report.PhotoPath, &report.PhotoURL,
		&embeddingRaw, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "casestore", "get report", fmt.Sprintf("report %d", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "get report", "scan", err)
	}
	decodeJSON(embeddingRaw, &report.Embedding)
	report.CreatedAt = parseTime(createdRaw)
	return &report, nil
}

// MarkFound closes out a case as found.
func (s *Store) MarkFound(ctx context.Context, id int64) error {
	return s.UpdatePersonStatus(ctx, id, PersonFound)
}

// Stats counts cases per status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM persons GROUP BY status")
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "stats", "query", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "casestore", "stats", "scan", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "stats", "iterate", err)
	}
	return stats, nil
}

// CheckHealth verifies the database answers queries.
func (s *Store) CheckHealth(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "health", "ping", err)
	}
	return nil
}
