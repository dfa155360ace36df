package search_test

import (
	"context"
	"testing"

	"khoj/internal/casestore"
	"khoj/internal/search"
	"khoj/internal/testsupport"
	"khoj/internal/vision"
)

func TestSweepDeterministicForSeed(t *testing.T) {
	person := &casestore.Person{ID: 7, Name: "Arjun"}
	network := search.NewNetwork(nil, 42, 4, nil)
	first, err := network.Sweep(context.Background(), person)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	second, err := network.Sweep(context.Background(), person)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("sweep not reproducible: %d vs %d matches", len(first), len(second))
	}
	for i := range first {
		if first[i].CameraID != second[i].CameraID || first[i].Confidence != second[i].Confidence {
			t.Fatalf("match %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSweepMatchShape(t *testing.T) {
	network := search.NewNetwork(nil, 1, 2, nil)
	var matches []search.Match
	for id := int64(1); id < 50 && len(matches) == 0; id++ {
		var err error
		matches, err = network.Sweep(context.Background(), &casestore.Person{ID: id})
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one simulated match across 50 cases")
	}
	for _, match := range matches {
		if match.Confidence < 70.0 || match.Confidence > 95.0 {
			t.Fatalf("confidence %v outside [70, 95]", match.Confidence)
		}
		if match.MatchType != "facial_recognition" && match.MatchType != "gait_analysis" {
			t.Fatalf("match type %q", match.MatchType)
		}
		if match.CameraID == "" || match.Location == "" {
			t.Fatalf("degenerate match %+v", match)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Fatal("matches must be sorted by confidence descending")
		}
	}
}

func TestSweepCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	network := search.NewNetwork(nil, 1, 2, nil)
	if _, err := network.Sweep(ctx, &casestore.Person{ID: 1}); err == nil {
		t.Fatal("cancelled context must abort the sweep")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	if got := search.CosineSimilarity(a, []float32{1, 0, 0}); got < 0.999 {
		t.Fatalf("identical vectors similarity = %v", got)
	}
	if got := search.CosineSimilarity(a, []float32{0, 1, 0}); got != 0 {
		t.Fatalf("orthogonal vectors similarity = %v", got)
	}
	if got := search.CosineSimilarity(a, []float32{0, 1}); got != 0 {
		t.Fatalf("mismatched dimensions similarity = %v", got)
	}
	if got := search.CosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("empty vectors similarity = %v", got)
	}
}

func TestSemanticSearchFindsIdenticalDescription(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	analyzer := vision.NewSimulator()

	description := "boy in a red shirt near the railway station"
	embedding, err := analyzer.Embedding(context.Background(), description)
	if err != nil {
		t.Fatalf("embedding: %v", err)
	}
	person := &casestore.Person{Name: "Arjun", Age: 9, Description: description, Embedding: embedding}
	if _, err := store.SavePerson(context.Background(), person); err != nil {
		t.Fatalf("save person: %v", err)
	}
	testsupport.SeedPerson(t, store, "Unrelated", 15)

	semantic := search.NewSemantic(analyzer, store, 0.99, 10, nil)
	results, err := semantic.Search(context.Background(), description)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly the matching case, got %d results", len(results))
	}
	if results[0].Person.Name != "Arjun" {
		t.Fatalf("matched %q", results[0].Person.Name)
	}
	if results[0].Similarity < 0.99 {
		t.Fatalf("similarity = %v", results[0].Similarity)
	}
}

func TestSemanticSearchLexicalFallback(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	match := &casestore.Person{
		Name:        "Arjun",
		Age:         9,
		Description: "boy in a red shirt with a blue school bag",
	}
	if _, err := store.SavePerson(context.Background(), match); err != nil {
		t.Fatalf("save person: %v", err)
	}
	testsupport.SeedPerson(t, store, "Unrelated", 15)

	semantic := search.NewSemantic(vision.NewSimulator(), store, 0.99, 10, nil)
	results, err := semantic.Search(context.Background(), "red shirt school bag")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Person.Name != "Arjun" {
		t.Fatalf("results = %+v", results)
	}

	none, err := semantic.Search(context.Background(), "elderly woman green sari")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no lexical matches, got %d", len(none))
	}
}
