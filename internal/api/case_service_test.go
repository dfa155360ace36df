package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"khoj/internal/alerts"
	"khoj/internal/analysis"
	"khoj/internal/api"
	"khoj/internal/casestore"
	"khoj/internal/config"
	"khoj/internal/gait"
	"khoj/internal/scoring"
	"khoj/internal/search"
	"khoj/internal/services"
	"khoj/internal/storage"
	"khoj/internal/testsupport"
	"khoj/internal/verification"
	"khoj/internal/vision"
)

func newTestService(t *testing.T) (*api.CaseService, *casestore.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	analyzer := vision.New(cfg, nil)
	engine := verification.NewEngine(analyzer, gait.New(nil, cfg.Gait.Seed, nil),
		scoring.NewLocationScorer(scoring.DefaultTables()), verification.PolicyResolution, nil)
	svc := api.NewCaseService(api.Deps{
		Store:       store,
		Analyzer:    analyzer,
		Engine:      engine,
		Profiler:    analysis.NewProfiler(analyzer, nil),
		Network:     search.NewNetwork(nil, cfg.Gait.Seed, cfg.Search.SweepConcurrency, nil),
		Semantic:    search.NewSemantic(analyzer, store, 0.99, cfg.Search.SemanticLimit, nil),
		Uploads:     storage.Disabled{},
		Alerts:      alerts.NewService(cfg),
		EvidenceDir: filepath.Join(cfg.Paths.DataDir, "evidence"),
	})
	return svc, store, cfg
}

func TestCreateCaseValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "", Age: 9}, ""); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty name, got %v", err)
	}
	if _, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 0}, ""); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for zero age, got %v", err)
	}
}

func TestCreateCaseBuildsProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{
		Name:             "Arjun Kumar",
		Age:              9,
		Description:      "boy in a red shirt with a blue school bag",
		LastSeenLocation: "Dadar West, Mumbai",
		Contact:          "+91 98000 00000",
	}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected an assigned id")
	}
	if created.Status != casestore.PersonMissing {
		t.Fatalf("status = %q", created.Status)
	}
	if created.SearchPriority != analysis.PriorityHigh {
		t.Fatalf("priority = %q", created.SearchPriority)
	}
	if len(created.PredictedLocations) == 0 || len(created.RiskFactors) == 0 {
		t.Fatalf("profile missing: %+v", created)
	}
	if created.Narrative == "" {
		t.Fatal("simulation mode should produce a narrative")
	}

	fetched, err := svc.GetCase(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if fetched.Name != created.Name {
		t.Fatalf("fetched %+v", fetched)
	}
}

func TestCreateCasePromotesPhotoToEvidence(t *testing.T) {
	svc, store, cfg := newTestService(t)
	staged := filepath.Join(cfg.Paths.StagingDir, "uploads", "ref.png")
	testsupport.WritePNG(t, staged, 64, 64)

	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 9}, staged)
	if err != nil {
		t.Fatalf("create case: %v", err)
	}

	person, err := store.GetPerson(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	want := filepath.Join(cfg.Paths.DataDir, "evidence", "cases", "ref.png")
	if person.PhotoPath != want {
		t.Fatalf("photo path = %q, want %q", person.PhotoPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("evidence copy missing: %v", err)
	}
	if _, err := os.Stat(staged); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged copy should be removed, stat err = %v", err)
	}
}

func TestSubmitSightingVerifiesAndPersists(t *testing.T) {
	svc, store, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{
		Name: "Arjun Kumar", Age: 9, Description: "boy in a red shirt",
	}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}

	photo := filepath.Join(t.TempDir(), "sighting.png")
	testsupport.WritePNG(t, photo, 640, 480)

	sighting, err := svc.SubmitSighting(context.Background(), created.ID, api.SightingRequest{
		ReporterName:    "Concerned citizen",
		LocationText:    "Dadar Railway Station, Mumbai",
		DescriptionText: "boy matching the photo waiting near platform two",
	}, photo)
	if err != nil {
		t.Fatalf("submit sighting: %v", err)
	}
	if sighting.Verification == nil {
		t.Fatal("expected a verification result")
	}
	if sighting.Verification.Resolution != string(verification.HighRes) {
		t.Fatalf("resolution = %q", sighting.Verification.Resolution)
	}
	if sighting.Verification.Breakdown["location"] != 80.0 {
		t.Fatalf("location score = %v", sighting.Verification.Breakdown["location"])
	}

	stored, err := store.GetVerificationResult(context.Background(), sighting.ID)
	if err != nil {
		t.Fatalf("get stored verification: %v", err)
	}
	if stored.FinalConfidence != sighting.Verification.Confidence {
		t.Fatalf("stored confidence %v differs from response %v", stored.FinalConfidence, sighting.Verification.Confidence)
	}

	listed, err := svc.ListSightings(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("list sightings: %v", err)
	}
	if len(listed) != 1 || listed[0].Verification == nil {
		t.Fatalf("listed %+v", listed)
	}
}

func TestSubmitSightingUnknownCase(t *testing.T) {
	svc, _, _ := newTestService(t)
	photo := filepath.Join(t.TempDir(), "sighting.png")
	testsupport.WritePNG(t, photo, 200, 200)
	if _, err := svc.SubmitSighting(context.Background(), 42, api.SightingRequest{}, photo); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSubmitSightingMissingPhotoFailsClosed(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 9}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	sighting, err := svc.SubmitSighting(context.Background(), created.ID, api.SightingRequest{},
		filepath.Join(t.TempDir(), "absent.jpg"))
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if sighting == nil || sighting.Verification == nil {
		t.Fatalf("fail-closed result must accompany the error: %+v", sighting)
	}
	if sighting.Verification.Verified || sighting.Verification.Confidence != 0.0 {
		t.Fatalf("verification = %+v", sighting.Verification)
	}
	if sighting.Verification.Error == "" {
		t.Fatal("expected an error marker in the verification payload")
	}
}

func TestSweepRecordsStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 9}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}

	sweep, err := svc.Sweep(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sweep.CamerasSwept != len(search.DefaultCameras()) {
		t.Fatalf("cameras swept = %d", sweep.CamerasSwept)
	}

	status, err := svc.Status(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SearchState != casestore.SearchDone {
		t.Fatalf("search state = %q", status.SearchState)
	}
	if status.MatchesFound != len(sweep.Matches) {
		t.Fatalf("matches found = %d, sweep returned %d", status.MatchesFound, len(sweep.Matches))
	}
}

func TestSearchCasesRequiresQuery(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.SearchCases(context.Background(), "   "); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestCloseCase(t *testing.T) {
	svc, store, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 9}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}

	closed, err := svc.CloseCase(context.Background(), created.ID, true)
	if err != nil {
		t.Fatalf("close case: %v", err)
	}
	if closed.Status != casestore.PersonFound {
		t.Fatalf("status = %q", closed.Status)
	}
	fetched, err := store.GetPerson(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if fetched.Status != casestore.PersonFound {
		t.Fatalf("persisted status = %q", fetched.Status)
	}

	other, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Meena", Age: 13}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	closed, err = svc.CloseCase(context.Background(), other.ID, false)
	if err != nil {
		t.Fatalf("close case: %v", err)
	}
	if closed.Status != casestore.PersonClosed {
		t.Fatalf("status = %q", closed.Status)
	}

	if _, err := svc.CloseCase(context.Background(), 999, true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestAgeProgressionValidatesTargetAge(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun", Age: 9}, "")
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if _, err := svc.AgeProgression(context.Background(), created.ID, 9); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	resp, err := svc.AgeProgression(context.Background(), created.ID, 12)
	if err != nil {
		t.Fatalf("age progression: %v", err)
	}
	if resp.Description == "" {
		t.Fatal("expected a generated description")
	}
}
