package domain

import "sort"

// Passage is an indexed unit of source text. Instances are created by the
// ingestion pipeline and are read-only inside this service.
type Passage struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// Common metadata keys attached by ingestion.
const (
	MetaSource  = "source"
	MetaPage    = "page"
	MetaTopic   = "topic"
	MetaSummary = "summary"
)

// RetrievalCandidate is a Passage plus the scores assigned by the pipeline
// stages. Values are updated via copy-with methods, never mutated in place,
// so candidates can be shared across requests safely.
type RetrievalCandidate struct {
	Passage Passage

	// IndexScore is the similarity reported by the vector index
	// (provider-defined scale).
	IndexScore float64

	// CosineScore is the locally recomputed cosine similarity in [-1, 1].
	CosineScore float64
	HasCosine   bool

	// RerankScore is the cross-encoder output (unbounded, higher = more
	// relevant).
	RerankScore float64
	HasRerank   bool
}

// WithCosineScore returns a copy carrying the locally recomputed score.
func (c RetrievalCandidate) WithCosineScore(score float64) RetrievalCandidate {
	c.CosineScore = score
	c.HasCosine = true
	return c
}

// WithRerankScore returns a copy carrying the cross-encoder score.
func (c RetrievalCandidate) WithRerankScore(score float64) RetrievalCandidate {
	c.RerankScore = score
	c.HasRerank = true
	return c
}

// GoverningScore is the ordering key: rerank when present, else cosine,
// else the index score.
func (c RetrievalCandidate) GoverningScore() float64 {
	switch {
	case c.HasRerank:
		return c.RerankScore
	case c.HasCosine:
		return c.CosineScore
	default:
		return c.IndexScore
	}
}

// RankedResult is the pipeline output, best candidate first. No two elements
// share a passage ID.
type RankedResult []RetrievalCandidate

// SortCandidates orders candidates by governing score descending, breaking
// ties by cosine score descending, then ascending passage ID so the final
// ordering is deterministic.
func SortCandidates(candidates []RetrievalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		gi, gj := candidates[i].GoverningScore(), candidates[j].GoverningScore()
		if gi != gj {
			return gi > gj
		}
		if candidates[i].CosineScore != candidates[j].CosineScore {
			return candidates[i].CosineScore > candidates[j].CosineScore
		}
		return candidates[i].Passage.ID < candidates[j].Passage.ID
	})
}

// OutcomeStatus distinguishes "found candidates" from "nothing relevant".
// An empty index result is a first-class outcome, not a failure.
type OutcomeStatus string

const (
	OutcomeOK    OutcomeStatus = "ok"
	OutcomeEmpty OutcomeStatus = "empty"
)

// RetrievalOutcome is the tagged result of a retrieval run. Degraded is set
// when the cross-encoder failed and the ordering fell back to cosine scores.
type RetrievalOutcome struct {
	Status     OutcomeStatus
	Candidates RankedResult
	Degraded   bool
}

// EmptyOutcome reports a retrieval run that found no candidates.
func EmptyOutcome() *RetrievalOutcome {
	return &RetrievalOutcome{Status: OutcomeEmpty}
}
