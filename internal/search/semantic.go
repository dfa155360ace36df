package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"khoj/internal/casestore"
	"khoj/internal/logging"
	"khoj/internal/textutil"
	"khoj/internal/vision"
)

// lexicalThreshold gates TF-IDF fallback matches. Lexical scores sit on a
// different scale than embedding cosine similarity, so the embedding
// threshold does not apply to them.
const lexicalThreshold = 0.15

// ScoredCase pairs a case with its similarity to the query text.
type ScoredCase struct {
	Person     *casestore.Person `json:"person"`
	Similarity float64           `json:"similarity"`
}

// Semantic matches free-text queries against case descriptions using model
// embeddings. Query vectors are cached so repeated searches do not burn
// model quota.
type Semantic struct {
	analyzer  vision.Analyzer
	store     *casestore.Store
	cache     *gocache.Cache
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewSemantic builds a semantic searcher.
func NewSemantic(analyzer vision.Analyzer, store *casestore.Store, threshold float64, limit int, logger *slog.Logger) *Semantic {
	if threshold <= 0 {
		threshold = 0.7
	}
	if limit <= 0 {
		limit = 10
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Semantic{
		analyzer:  analyzer,
		store:     store,
		cache:     gocache.New(15*time.Minute, 30*time.Minute),
		threshold: threshold,
		limit:     limit,
		logger:    logger.With(logging.String(logging.FieldComponent, "search")),
	}
}

// Search embeds the query and ranks all cases by cosine similarity. Cases
// without a stored embedding fall back to TF-IDF matching over their
// description text instead of being dropped.
func (s *Semantic) Search(ctx context.Context, query string) ([]ScoredCase, error) {
	queryVector, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}

	var scored []ScoredCase
	var unembedded []*casestore.Person
	for _, person := range persons {
		if len(person.Embedding) == 0 {
			unembedded = append(unembedded, person)
			continue
		}
		similarity := CosineSimilarity(queryVector, person.Embedding)
		if similarity < s.threshold {
			continue
		}
		scored = append(scored, ScoredCase{Person: person, Similarity: similarity})
	}
	scored = append(scored, s.lexicalMatches(query, unembedded)...)
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > s.limit {
		scored = scored[:s.limit]
	}
	s.logger.Debug("semantic search complete",
		logging.Int("candidates", len(persons)),
		logging.Int("results", len(scored)))
	return scored, nil
}

// lexicalMatches ranks embedding-less cases by TF-IDF cosine similarity
// between the query and the case description.
func (s *Semantic) lexicalMatches(query string, persons []*casestore.Person) []ScoredCase {
	if len(persons) == 0 {
		return nil
	}
	queryPrint := textutil.NewFingerprint(query)
	if queryPrint == nil {
		return nil
	}

	corpus := textutil.NewCorpus()
	prints := make([]*textutil.Fingerprint, len(persons))
	for i, person := range persons {
		prints[i] = textutil.NewFingerprint(person.Description)
		corpus.Add(prints[i])
	}
	idf := corpus.IDF()
	weightedQuery := queryPrint.WithIDF(idf)

	var scored []ScoredCase
	for i, person := range persons {
		similarity := textutil.CosineSimilarity(weightedQuery, prints[i].WithIDF(idf))
		if similarity < lexicalThreshold {
			continue
		}
		scored = append(scored, ScoredCase{Person: person, Similarity: similarity})
	}
	return scored
}

func (s *Semantic) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := s.cache.Get(query); ok {
		return cached.([]float32), nil
	}
	vector, err := s.analyzer.Embedding(ctx, query)
	if err != nil {
		return nil, err
	}
	s.cache.Set(query, vector, gocache.DefaultExpiration)
	return vector, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either vector is empty, zero, or the dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
