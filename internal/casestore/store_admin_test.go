package casestore_test

import (
	"context"
	"errors"
	"testing"

	"khoj/internal/casestore"
	"khoj/internal/services"
	"khoj/internal/testsupport"
)

func TestGetReport(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Arjun", 9)

	report := &casestore.SightingReport{
		PersonID:        person.ID,
		ReporterName:    "Concerned citizen",
		LocationText:    "Dadar Railway Station, Mumbai",
		DescriptionText: "boy matching the photo near platform two",
		Embedding:       []float32{0.5, 0.25},
	}
	reportID, err := store.SaveReport(context.Background(), report)
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	fetched, err := store.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if fetched.PersonID != person.ID || fetched.LocationText != report.LocationText {
		t.Fatalf("fetched %+v", fetched)
	}
	if len(fetched.Embedding) != 2 {
		t.Fatalf("embedding = %v", fetched.Embedding)
	}

	if _, err := store.GetReport(context.Background(), 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMarkFound(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	person := testsupport.SeedPerson(t, store, "Meena", 13)

	if err := store.MarkFound(context.Background(), person.ID); err != nil {
		t.Fatalf("mark found: %v", err)
	}
	fetched, err := store.GetPerson(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if fetched.Status != casestore.PersonFound {
		t.Fatalf("status = %q", fetched.Status)
	}
}

func TestStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats on empty store: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("stats = %v", stats)
	}

	testsupport.SeedPerson(t, store, "First", 8)
	second := testsupport.SeedPerson(t, store, "Second", 12)
	if err := store.MarkFound(context.Background(), second.ID); err != nil {
		t.Fatalf("mark found: %v", err)
	}

	stats, err = store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[casestore.PersonMissing] != 1 || stats[casestore.PersonFound] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestCheckHealth(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := store.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
