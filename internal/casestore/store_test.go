package casestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"khoj/internal/casestore"
	"khoj/internal/services"
	"khoj/internal/testsupport"
	"khoj/internal/verification"
)

func TestPersonRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := &casestore.Person{
		Name:               "Arjun Kumar",
		Age:                9,
		Description:        "boy in a red shirt, blue school bag",
		LastSeenLocation:   "Dadar West, Mumbai",
		Contact:            "+91 98000 00000",
		PredictedLocations: []string{"schools", "railway stations"},
		RiskFactors:        []string{"High trafficking risk", "Risk increases with time"},
		SearchPriority:     "HIGH",
		Embedding:          []float32{0.25, -0.5, 0.125},
	}
	id, err := store.SavePerson(context.Background(), person)
	if err != nil {
		t.Fatalf("save person: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero id")
	}
	if person.Status != casestore.PersonMissing {
		t.Fatalf("saved record should carry the default status, got %q", person.Status)
	}

	fetched, err := store.GetPerson(context.Background(), id)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if fetched.Name != person.Name || fetched.Age != person.Age {
		t.Fatalf("fetched %+v", fetched)
	}
	if fetched.Status != casestore.PersonMissing {
		t.Fatalf("new case status = %q", fetched.Status)
	}
	if diff := cmp.Diff(person.PredictedLocations, fetched.PredictedLocations); diff != "" {
		t.Fatalf("predicted locations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(person.Embedding, fetched.Embedding); diff != "" {
		t.Fatalf("embedding mismatch (-want +got):\n%s", diff)
	}
}

func TestGetPersonNotFound(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := store.GetPerson(context.Background(), 999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListPersonsInsertionOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	first := testsupport.SeedPerson(t, store, "First", 8)
	second := testsupport.SeedPerson(t, store, "Second", 12)

	persons, err := store.ListPersons(context.Background())
	if err != nil {
		t.Fatalf("list persons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("listed %d persons", len(persons))
	}
	if persons[0].ID != first.ID || persons[1].ID != second.ID {
		t.Fatalf("listing out of order: %d then %d", persons[0].ID, persons[1].ID)
	}
}

func TestUpdatePersonStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Meena", 13)
	if err := store.UpdatePersonStatus(context.Background(), person.ID, casestore.PersonSighted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	fetched, err := store.GetPerson(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if fetched.Status != casestore.PersonSighted {
		t.Fatalf("status = %q", fetched.Status)
	}
	if err := store.UpdatePersonStatus(context.Background(), 12345, casestore.PersonFound); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown case, got %v", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Arjun", 9)

	report := &casestore.SightingReport{
		PersonID:        person.ID,
		ReporterName:    "Concerned citizen",
		LocationText:    "Dadar Railway Station, Mumbai",
		DescriptionText: "boy matching the photo near platform two",
		PhotoPath:       "/tmp/sighting.jpg",
		Embedding:       []float32{0.5, 0.25},
	}
	reportID, err := store.SaveReport(context.Background(), report)
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	reports, err := store.ListReports(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != reportID {
		t.Fatalf("listed %+v", reports)
	}
	if reports[0].LocationText != report.LocationText {
		t.Fatalf("location = %q", reports[0].LocationText)
	}
	if diff := cmp.Diff(report.Embedding, reports[0].Embedding); diff != "" {
		t.Fatalf("embedding mismatch (-want +got):\n%s", diff)
	}
}

func TestVerificationResultRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Arjun", 9)
	reportID, err := store.SaveReport(context.Background(), &casestore.SightingReport{PersonID: person.ID})
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	result := verification.Fuse(verification.ScoreComponents{
		VisionConfidence: 90,
		GaitScore:        80,
		LocationScore:    70,
		DescriptionScore: 85,
	}, verification.LowRes, verification.PolicyResolution)
	result.AnalysisText = "match 90%"
	result.GaitSignature = "abc123"

	if err := store.SaveVerificationResult(context.Background(), reportID, result); err != nil {
		t.Fatalf("save verification: %v", err)
	}
	fetched, err := store.GetVerificationResult(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if fetched.FinalConfidence != result.FinalConfidence {
		t.Fatalf("confidence %v != %v", fetched.FinalConfidence, result.FinalConfidence)
	}
	if fetched.Verified != result.Verified || fetched.Status != result.Status {
		t.Fatalf("verdict changed across round trip: %+v", fetched)
	}
	if diff := cmp.Diff(result.Breakdown, fetched.Breakdown); diff != "" {
		t.Fatalf("breakdown mismatch (-want +got):\n%s", diff)
	}
	if fetched.Weights != result.Weights {
		t.Fatalf("weights %+v != %+v", fetched.Weights, result.Weights)
	}
}

func TestSaveVerificationResultReplaces(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Arjun", 9)
	reportID, err := store.SaveReport(context.Background(), &casestore.SightingReport{PersonID: person.ID})
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	first := verification.FailClosed("image missing")
	if err := store.SaveVerificationResult(context.Background(), reportID, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second := verification.Fuse(verification.ScoreComponents{VisionConfidence: 90, GaitScore: 90, LocationScore: 90}, verification.HighRes, verification.PolicyResolution)
	if err := store.SaveVerificationResult(context.Background(), reportID, second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	fetched, err := store.GetVerificationResult(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if fetched.FinalConfidence != second.FinalConfidence || fetched.Error != "" {
		t.Fatalf("replacement not applied: %+v", fetched)
	}
}

func TestSearchStatusUpsert(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Arjun", 9)

	idle, err := store.GetSearchStatus(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("get idle status: %v", err)
	}
	if idle.State != casestore.SearchIdle {
		t.Fatalf("fresh case state = %q", idle.State)
	}

	if err := store.UpsertSearchStatus(context.Background(), casestore.SearchStatus{
		PersonID:     person.ID,
		State:        casestore.SearchRunning,
		CamerasSwept: 2,
	}); err != nil {
		t.Fatalf("upsert running: %v", err)
	}
	if err := store.UpsertSearchStatus(context.Background(), casestore.SearchStatus{
		PersonID:     person.ID,
		State:        casestore.SearchDone,
		CamerasSwept: 4,
		MatchesFound: 1,
	}); err != nil {
		t.Fatalf("upsert done: %v", err)
	}

	status, err := store.GetSearchStatus(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.State != casestore.SearchDone || status.CamerasSwept != 4 || status.MatchesFound != 1 {
		t.Fatalf("status = %+v", status)
	}
}
