package testsupport

import (
	"context"
	"testing"

	"khoj/internal/casestore"
	"khoj/internal/config"
)

// MustOpenStore opens a casestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *casestore.Store {
	t.Helper()

	store, err := casestore.Open(cfg)
	if err != nil {
		t.Fatalf("casestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedPerson creates a case record for tests using the provided store.
func SeedPerson(t testing.TB, store *casestore.Store, name string, age int) *casestore.Person {
	t.Helper()

	person := &casestore.Person{
		Name:             name,
		Age:              age,
		Description:      "seeded test case",
		LastSeenLocation: "Connaught Place, Delhi",
		Contact:          "helpline",
	}
	if _, err := store.SavePerson(context.Background(), person); err != nil {
		t.Fatalf("store.SavePerson: %v", err)
	}
	return person
}
