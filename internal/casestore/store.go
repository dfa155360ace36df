// Package casestore persists missing-person cases, sighting reports, and
// verification results in SQLite.
package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"khoj/internal/config"
	"khoj/internal/services"
	"khoj/internal/verification"
)

// Store manages case persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the case database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "cases.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// SavePerson inserts a new case record and returns its id.
func (s *Store) SavePerson(ctx context.Context, person *Person) (int64, error) {
	now := time.Now().UTC()
	person.Status = statusOrDefault(person.Status)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (
            name, age, description, last_seen_location, contact,
            photo_path, photo_url, status, predicted_locations, risk_factors,
            search_priority, narrative, embedding, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		person.Name, person.Age, person.Description, person.LastSeenLocation, person.Contact,
		person.PhotoPath, person.PhotoURL, person.Status,
		encodeJSON(person.PredictedLocations), encodeJSON(person.RiskFactors),
		person.SearchPriority, person.Narrative, encodeJSON(person.Embedding),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "casestore", "save person", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "casestore", "save person", "last insert id", err)
	}
	person.ID = id
	person.CreatedAt = now
	person.UpdatedAt = now
	return id, nil
}

// GetPerson fetches one case by id.
func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, age, description, last_seen_location, contact,
                photo_path, photo_url, status, predicted_locations, risk_factors,
                search_priority, narrative, embedding, created_at, updated_at
         FROM persons WHERE id = ?`, id)
	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "casestore", "get person", fmt.Sprintf("case %d", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "get person", "scan", err)
	}
	return person, nil
}

// ListPersons returns all cases in insertion order.
func (s *Store) ListPersons(ctx context.Context) ([]*Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, age, description, last_seen_location, contact,
                photo_path, photo_url, status, predicted_locations, risk_factors,
                search_priority, narrative, embedding, created_at, updated_at
         FROM persons ORDER BY id`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "list persons", "query", err)
	}
	defer rows.Close()

	var persons []*Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "casestore", "list persons", "scan", err)
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "list persons", "iterate", err)
	}
	return persons, nil
}

// UpdatePersonStatus transitions a case to a new status.
func (s *Store) UpdatePersonStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE persons SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "update status", "update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "update status", "rows affected", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "casestore", "update status", fmt.Sprintf("case %d", id), nil)
	}
	return nil
}

// UpdatePersonPhoto records the local path and optional public URL of the
// case reference photo.
func (s *Store) UpdatePersonPhoto(ctx context.Context, id int64, photoPath, photoURL string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE persons SET photo_path = ?, photo_url = ?, updated_at = ? WHERE id = ?",
		photoPath, photoURL, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "update photo", "update", err)
	}
	return nil
}

// SaveReport inserts a sighting report and returns its id. The embedding is
// optional and may be nil when the model collaborator is unavailable.
func (s *Store) SaveReport(ctx context.Context, report *SightingReport) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sighting_reports (
            person_id, reporter_name, reporter_contact, location_text,
            description_text, photo_path, photo_url, embedding, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.PersonID, report.ReporterName, report.ReporterContact, report.LocationText,
		report.DescriptionText, report.PhotoPath, report.PhotoURL,
		encodeJSON(report.Embedding), now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "casestore", "save report", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "casestore", "save report", "last insert id", err)
	}
	report.ID = id
	report.CreatedAt = now
	return id, nil
}

// ListReports returns the sighting reports for a case in insertion order.
func (s *Store) ListReports(ctx context.Context, personID int64) ([]*SightingReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, person_id, reporter_name, reporter_contact, location_text,
                description_text, photo_path, photo_url, embedding, created_at
         FROM sighting_reports WHERE person_id = ? ORDER BY id`, personID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "list reports", "query", err)
	}
	defer rows.Close()

	var reports []*SightingReport
	for rows.Next() {
		var (
			report       SightingReport
			embeddingRaw string
			createdRaw   string
		)
		if err := rows.Scan(&report.ID, &report.PersonID, &report.ReporterName, &report.ReporterContact,
			&report.LocationText, &report.DescriptionText, &report.PhotoPath, &report.PhotoURL,
			&embeddingRaw, &createdRaw); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "casestore", "list reports", "scan", err)
		}
		decodeJSON(embeddingRaw, &report.Embedding)
		report.CreatedAt = parseTime(createdRaw)
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "list reports", "iterate", err)
	}
	return reports, nil
}

// SaveVerificationResult attaches a fusion result to a report, replacing any
// earlier result for the same report.
func (s *Store) SaveVerificationResult(ctx context.Context, reportID int64, result verification.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_results (
            report_id, final_confidence, verified, status, resolution,
            weights, breakdown, analysis_text, gait_signature, error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(report_id) DO UPDATE SET
            final_confidence=excluded.final_confidence,
            verified=excluded.verified,
            status=excluded.status,
            resolution=excluded.resolution,
            weights=excluded.weights,
            breakdown=excluded.breakdown,
            analysis_text=excluded.analysis_text,
            gait_signature=excluded.gait_signature,
            error=excluded.error`,
		reportID, result.FinalConfidence, boolToInt(result.Verified), string(result.Status),
		string(result.Resolution), encodeJSON(result.Weights), encodeJSON(result.Breakdown),
		result.AnalysisText, result.GaitSignature, result.Error,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "save verification", "upsert", err)
	}
	return nil
}

// GetVerificationResult fetches the fusion result attached to a report.
func (s *Store) GetVerificationResult(ctx context.Context, reportID int64) (*verification.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT final_confidence, verified, status, resolution, weights,
                breakdown, analysis_text, gait_signature, error
         FROM verification_results WHERE report_id = ?`, reportID)
	var (
		result      verification.Result
		verifiedInt int
		status      string
		resolution  string
		weightsRaw  string
		breakRaw    string
	)
	err := row.Scan(&result.FinalConfidence, &verifiedInt, &status, &resolution,
		&weightsRaw, &breakRaw, &result.AnalysisText, &result.GaitSignature, &result.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "casestore", "get verification", fmt.Sprintf("report %d", reportID), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "get verification", "scan", err)
	}
	result.Verified = verifiedInt != 0
	result.Status = verification.Status(status)
	result.Resolution = verification.ResolutionProfile(resolution)
	decodeJSON(weightsRaw, &result.Weights)
	decodeJSON(breakRaw, &result.Breakdown)
	return &result, nil
}

// UpsertSearchStatus records sweep progress for a case.
func (s *Store) UpsertSearchStatus(ctx context.Context, status SearchStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_status (person_id, state, cameras_swept, matches_found, last_sweep_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(person_id) DO UPDATE SET
            state=excluded.state,
            cameras_swept=excluded.cameras_swept,
            matches_found=excluded.matches_found,
            last_sweep_at=excluded.last_sweep_at,
            updated_at=excluded.updated_at`,
		status.PersonID, status.State, status.CamerasSwept, status.MatchesFound,
		status.LastSweepAt, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "casestore", "save search status", "upsert", err)
	}
	return nil
}

// GetSearchStatus fetches sweep progress for a case. A case that has never
// been swept reports the idle state rather than not-found.
func (s *Store) GetSearchStatus(ctx context.Context, personID int64) (*SearchStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT person_id, state, cameras_swept, matches_found, last_sweep_at, updated_at
         FROM search_status WHERE person_id = ?`, personID)
	var (
		status     SearchStatus
		updatedRaw string
	)
	err := row.Scan(&status.PersonID, &status.State, &status.CamerasSwept,
		&status.MatchesFound, &status.LastSweepAt, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return &SearchStatus{PersonID: personID, State: SearchIdle}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "casestore", "get search status", "scan", err)
	}
	status.UpdatedAt = parseTime(updatedRaw)
	return &status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*Person, error) {
	var (
		person       Person
		predictedRaw string
		riskRaw      string
		embeddingRaw string
		createdRaw   string
		updatedRaw   string
	)
	if err := row.Scan(&person.ID, &person.Name, &person.Age, &person.Description,
		&person.LastSeenLocation, &person.Contact, &person.PhotoPath, &person.PhotoURL,
		&person.Status, &predictedRaw, &riskRaw, &person.SearchPriority, &person.Narrative,
		&embeddingRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	decodeJSON(predictedRaw, &person.PredictedLocations)
	decodeJSON(riskRaw, &person.RiskFactors)
	decodeJSON(embeddingRaw, &person.Embedding)
	person.CreatedAt = parseTime(createdRaw)
	person.UpdatedAt = parseTime(updatedRaw)
	return &person, nil
}

func statusOrDefault(status string) string {
	if status == "" {
		return PersonMissing
	}
	return status
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func encodeJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSON(raw string, target any) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), target)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
