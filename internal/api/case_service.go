package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"khoj/internal/alerts"
	"khoj/internal/analysis"
	"khoj/internal/casestore"
	"khoj/internal/fileutil"
	"khoj/internal/logging"
	"khoj/internal/search"
	"khoj/internal/services"
	"khoj/internal/storage"
	"khoj/internal/verification"
	"khoj/internal/vision"
)

// Deps bundles the collaborators behind the case service.
type Deps struct {
	Store    *casestore.Store
	Analyzer vision.Analyzer
	Engine   *verification.Engine
	Profiler *analysis.Profiler
	Network  *search.Network
	Semantic *search.Semantic
	Uploads  storage.Client
	Alerts   alerts.Service
	Logger   *slog.Logger

	// EvidenceDir is where accepted photos move after staging. Empty means
	// photos stay at their staged paths.
	EvidenceDir string
}

// CaseService orchestrates case intake, sighting verification, sweeps, and
// search. It is the single entry point for the HTTP handlers.
type CaseService struct {
	store    *casestore.Store
	analyzer vision.Analyzer
	engine   *verification.Engine
	profiler *analysis.Profiler
	network  *search.Network
	semantic *search.Semantic
	uploads  storage.Client
	alerts   alerts.Service
	evidence string
	persons  *gocache.Cache
	logger   *slog.Logger
}

// NewCaseService wires the service from its dependencies.
func NewCaseService(deps Deps) *CaseService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CaseService{
		store:    deps.Store,
		analyzer: deps.Analyzer,
		engine:   deps.Engine,
		profiler: deps.Profiler,
		network:  deps.Network,
		semantic: deps.Semantic,
		uploads:  deps.Uploads,
		alerts:   deps.Alerts,
		evidence: deps.EvidenceDir,
		persons:  gocache.New(5*time.Minute, 10*time.Minute),
		logger:   logger.With(logging.String(logging.FieldComponent, "api")),
	}
}

// NewCaseRequest carries the fields needed to open a case.
type NewCaseRequest struct {
	Name             string `json:"name"`
	Age              int    `json:"age"`
	Description      string `json:"description"`
	LastSeenLocation string `json:"lastSeenLocation"`
	Contact          string `json:"contact"`
}

// SightingRequest carries the fields of a citizen sighting report.
type SightingRequest struct {
	ReporterName    string `json:"reporterName"`
	ReporterContact string `json:"reporterContact"`
	LocationText    string `json:"locationText"`
	DescriptionText string `json:"descriptionText"`
}

// CreateCase opens a case: it derives the intake profile, stores the record,
// uploads the reference photo when storage is enabled, and alerts field
// teams. photoPath may be empty when no reference photo was provided.
func (s *CaseService) CreateCase(ctx context.Context, req NewCaseRequest, photoPath string) (*Case, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, services.Wrap(services.ErrInput, "api", "create case", "name is required", nil)
	}
	if req.Age <= 0 {
		return nil, services.Wrap(services.ErrInput, "api", "create case", "age must be positive", nil)
	}

	photoPath = s.promotePhoto(photoPath, "cases")
	profile := s.profiler.Intake(ctx, req.Name, req.Age, req.Description)
	embedding, err := s.analyzer.Embedding(ctx, req.Description)
	if err != nil {
		s.logger.Warn("description embedding unavailable", logging.Error(err))
		embedding = nil
	}

	person := &casestore.Person{
		Name:               req.Name,
		Age:                req.Age,
		Description:        req.Description,
		LastSeenLocation:   req.LastSeenLocation,
		Contact:            req.Contact,
		PhotoPath:          photoPath,
		PredictedLocations: profile.PredictedLocations,
		RiskFactors:        profile.RiskFactors,
		SearchPriority:     profile.SearchPriority,
		Narrative:          profile.Narrative,
		Embedding:          embedding,
	}
	id, err := s.store.SavePerson(ctx, person)
	if err != nil {
		return nil, err
	}
	ctx = services.WithCaseID(ctx, id)

	if photoPath != "" && s.uploads.Enabled() {
		url, uploadErr := s.uploads.Upload(ctx, photoPath, "cases")
		if uploadErr != nil {
			s.logger.Warn("reference photo upload failed", logging.Error(uploadErr))
		} else if url != "" {
			person.PhotoURL = url
			if updateErr := s.store.UpdatePersonPhoto(ctx, id, photoPath, url); updateErr != nil {
				s.logger.Warn("photo url not recorded", logging.Error(updateErr))
			}
		}
	}

	if alertErr := s.alerts.NotifyCaseOpened(ctx, person.Name, person.SearchPriority); alertErr != nil {
		s.logger.Warn("case opened alert failed", logging.Error(alertErr))
	}

	s.cachePerson(person)
	s.logger.Info("case opened",
		logging.Int64(logging.FieldCaseID, id),
		logging.String("priority", person.SearchPriority))
	dto := FromPerson(person)
	return &dto, nil
}

// ListCases returns every case in insertion order.
func (s *CaseService) ListCases(ctx context.Context) ([]Case, error) {
	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	return FromPersons(persons), nil
}

// GetCase fetches one case.
func (s *CaseService) GetCase(ctx context.Context, id int64) (*Case, error) {
	person, err := s.getPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromPerson(person)
	return &dto, nil
}

// Status aggregates the case record, sighting count, and sweep progress.
func (s *CaseService) Status(ctx context.Context, id int64) (*CaseStatus, error) {
	person, err := s.getPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx, id)
	if err != nil {
		return nil, err
	}
	sweep, err := s.store.GetSearchStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CaseStatus{
		Case:         FromPerson(person),
		Sightings:    len(reports),
		SearchState:  sweep.State,
		CamerasSwept: sweep.CamerasSwept,
		MatchesFound: sweep.MatchesFound,
		LastSweepAt:  sweep.LastSweepAt,
	}, nil
}

// SubmitSighting verifies a citizen report against the case and persists
// both. A non-nil Sighting accompanies every verification outcome, including
// fail-closed results and persistence failures, so callers always see the
// computed confidence/verified/status alongside any error.
func (s *CaseService) SubmitSighting(ctx context.Context, personID int64, req SightingRequest, photoPath string) (*Sighting, error) {
	person, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithCaseID(ctx, personID)

	result, err := s.engine.Verify(ctx, verification.Evidence{
		ImagePath:       photoPath,
		LocationText:    req.LocationText,
		DescriptionText: req.DescriptionText,
		TargetPrompt:    targetPrompt(person),
	})
	if err != nil {
		// The engine fails closed with a populated result. Surface it so the
		// response still carries confidence/verified/status.
		failed := FromReport(&casestore.SightingReport{
			PersonID:        personID,
			ReporterName:    req.ReporterName,
			LocationText:    req.LocationText,
			DescriptionText: req.DescriptionText,
		}, &result)
		return &failed, err
	}

	photoPath = s.promotePhoto(photoPath, "sightings")
	embedding, embedErr := s.analyzer.Embedding(ctx, req.DescriptionText)
	if embedErr != nil {
		s.logger.Warn("sighting embedding unavailable", logging.Error(embedErr))
		embedding = nil
	}

	report := &casestore.SightingReport{
		PersonID:        personID,
		ReporterName:    req.ReporterName,
		ReporterContact: req.ReporterContact,
		LocationText:    req.LocationText,
		DescriptionText: req.DescriptionText,
		PhotoPath:       photoPath,
		Embedding:       embedding,
	}
	sighting := FromReport(report, &result)
	reportID, err := s.store.SaveReport(ctx, report)
	if err != nil {
		return &sighting, err
	}
	sighting.ID = reportID
	sighting.CreatedAt = report.CreatedAt.Format(time.RFC3339)
	if err := s.store.SaveVerificationResult(ctx, reportID, result); err != nil {
		return &sighting, err
	}

	if result.Verified {
		if err := s.store.UpdatePersonStatus(ctx, personID, casestore.PersonSighted); err != nil {
			s.logger.Warn("case status not updated", logging.Error(err))
		}
		s.persons.Delete(cacheKey(personID))
		if alertErr := s.alerts.NotifyVerifiedSighting(ctx, person.Name, req.LocationText, result.FinalConfidence); alertErr != nil {
			s.logger.Warn("verified sighting alert failed", logging.Error(alertErr))
		}
	}
	return &sighting, nil
}

// ListSightings returns the reports for a case with their verifications.
func (s *CaseService) ListSightings(ctx context.Context, personID int64) ([]Sighting, error) {
	if _, err := s.getPerson(ctx, personID); err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx, personID)
	if err != nil {
		return nil, err
	}
	sightings := make([]Sighting, 0, len(reports))
	for _, report := range reports {
		result, err := s.store.GetVerificationResult(ctx, report.ID)
		if err != nil {
			result = nil
		}
		sightings = append(sightings, FromReport(report, result))
	}
	return sightings, nil
}

// Sweep runs the camera network over the case and records progress.
func (s *CaseService) Sweep(ctx context.Context, personID int64) (*SweepResponse, error) {
	person, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithCaseID(ctx, personID)

	running := casestore.SearchStatus{PersonID: personID, State: casestore.SearchRunning}
	if err := s.store.UpsertSearchStatus(ctx, running); err != nil {
		return nil, err
	}
	matches, err := s.network.Sweep(ctx, person)
	if err != nil {
		idle := casestore.SearchStatus{PersonID: personID, State: casestore.SearchIdle}
		if resetErr := s.store.UpsertSearchStatus(context.WithoutCancel(ctx), idle); resetErr != nil {
			s.logger.Warn("sweep state not reset", logging.Error(resetErr))
		}
		if alertErr := s.alerts.NotifyError(ctx, err, fmt.Sprintf("camera sweep for case %d", personID)); alertErr != nil {
			s.logger.Warn("sweep failure alert failed", logging.Error(alertErr))
		}
		return nil, err
	}
	if err := s.store.UpsertSearchStatus(ctx, search.SweepSummary(personID, s.network.Cameras(), matches)); err != nil {
		return nil, err
	}

	for _, match := range matches {
		if match.MatchType != "facial_recognition" {
			continue
		}
		if alertErr := s.alerts.NotifyMatchFound(ctx, person.Name, match.CameraID, match.Confidence); alertErr != nil {
			s.logger.Warn("match alert failed", logging.Error(alertErr))
		}
	}
	return &SweepResponse{CamerasSwept: s.network.Cameras(), Matches: matches}, nil
}

// CloseCase resolves a case as found or closed and alerts field teams.
func (s *CaseService) CloseCase(ctx context.Context, personID int64, found bool) (*Case, error) {
	person, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithCaseID(ctx, personID)

	status := casestore.PersonClosed
	if found {
		err = s.store.MarkFound(ctx, personID)
		status = casestore.PersonFound
	} else {
		err = s.store.UpdatePersonStatus(ctx, personID, status)
	}
	if err != nil {
		return nil, err
	}
	s.persons.Delete(cacheKey(personID))

	if alertErr := s.alerts.NotifyCaseClosed(ctx, person.Name, status); alertErr != nil {
		s.logger.Warn("case closed alert failed", logging.Error(alertErr))
	}
	s.logger.Info("case closed",
		logging.Int64(logging.FieldCaseID, personID),
		logging.String("status", status))

	person.Status = status
	dto := FromPerson(person)
	return &dto, nil
}

// SearchCases runs a semantic search over case descriptions.
func (s *CaseService) SearchCases(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrInput, "api", "search", "query is required", nil)
	}
	scored, err := s.semantic.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(scored))
	for _, hit := range scored {
		results = append(results, SearchResult{Case: FromPerson(hit.Person), Similarity: hit.Similarity})
	}
	return results, nil
}

// AgeProgression generates a projected appearance description for the case.
func (s *CaseService) AgeProgression(ctx context.Context, personID int64, targetAge int) (*AgeProgressionResponse, error) {
	person, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if targetAge <= person.Age {
		return nil, services.Wrap(services.ErrInput, "api", "age progression",
			fmt.Sprintf("target age %d must exceed current age %d", targetAge, person.Age), nil)
	}
	description, err := s.profiler.AgeProgression(ctx, person.Name, person.Age, targetAge, person.Description)
	if err != nil {
		return nil, err
	}
	return &AgeProgressionResponse{PersonID: personID, TargetAge: targetAge, Description: description}, nil
}

func (s *CaseService) getPerson(ctx context.Context, id int64) (*casestore.Person, error) {
	if cached, ok := s.persons.Get(cacheKey(id)); ok {
		return cached.(*casestore.Person), nil
	}
	person, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePerson(person)
	return person, nil
}

func (s *CaseService) cachePerson(person *casestore.Person) {
	s.persons.Set(cacheKey(person.ID), person, gocache.DefaultExpiration)
}

// promotePhoto moves a staged upload into the evidence directory with an
// integrity-checked copy, so a truncated write can never replace the
// original. Promotion failures keep the staged path; the photo is still
// reachable either way.
func (s *CaseService) promotePhoto(stagedPath, folder string) string {
	if stagedPath == "" || s.evidence == "" {
		return stagedPath
	}
	dir := filepath.Join(s.evidence, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("evidence directory not created", logging.Error(err))
		return stagedPath
	}
	dst := filepath.Join(dir, filepath.Base(stagedPath))
	if err := fileutil.CopyFileVerified(stagedPath, dst); err != nil {
		s.logger.Warn("photo not promoted to evidence", logging.Error(err))
		return stagedPath
	}
	if err := os.Remove(stagedPath); err != nil {
		s.logger.Warn("staged photo not removed", logging.String("path", stagedPath), logging.Error(err))
	}
	return dst
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func targetPrompt(person *casestore.Person) string {
	return fmt.Sprintf(
		"Compare the person in this image against a missing person: %s, age %d. Known appearance: %s. State whether they could be the same person and give a match confidence percentage.",
		person.Name, person.Age, person.Description)
}
