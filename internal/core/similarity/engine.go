package similarity

import (
	"math"
	"sort"

	"github.com/akarpov/visearch/internal/core/domain"
)

// Weights controls how sub-method scores combine into one value. An
// unset (zero) weight disables the method; it never causes an error.
type Weights struct {
	Structural float64 `yaml:"structural"`
	Perceptual float64 `yaml:"perceptual"`
	Color      float64 `yaml:"color"`
}

// DefaultWeights scores on the embedding alone, matching the behavior
// of the plain compare path.
func DefaultWeights() Weights {
	return Weights{Structural: 1.0}
}

// Engine computes bounded similarity scores between embeddings and
// ranks a corpus against a query vector. Pure: no I/O, no state beyond
// configuration.
type Engine struct {
	topK    int
	weights Weights
}

func NewEngine(topK int, weights Weights) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Engine{topK: topK, weights: weights}
}

// Weights returns the configured filter weights, used when a caller
// enables the multi-method comparison.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Cosine computes cosine similarity between two vectors of equal
// length. A zero-magnitude vector yields 0 rather than dividing by
// zero; mismatched lengths fail, never truncate.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Score combines the enabled sub-methods into one weighted score with a
// per-method breakdown. The structural method compares embeddings; the
// perceptual and color methods compare the normalized images and are
// computed only when their weight is set and both images are present.
// If every weight is zero the structural score is returned alone.
func (e *Engine) Score(a, b domain.Embedding, imgA, imgB *domain.NormalizedImage, w Weights) (domain.SimilarityScore, error) {
	structural, err := Cosine(a.Vector, b.Vector)
	if err != nil {
		return domain.SimilarityScore{}, err
	}

	details := domain.SimilarityDetails{Structural: structural}

	weighted := 0.0
	total := 0.0
	if w.Structural > 0 {
		weighted += w.Structural * structural
		total += w.Structural
	}
	if w.Perceptual > 0 && imgA != nil && imgB != nil {
		p, err := histogramSimilarity(imgA.Data, imgB.Data)
		if err != nil {
			return domain.SimilarityScore{}, domain.WrapError(domain.ErrInvalidImage, "perceptual comparison", err)
		}
		details.Perceptual = p
		weighted += w.Perceptual * p
		total += w.Perceptual
	}
	if w.Color > 0 && imgA != nil && imgB != nil {
		c, err := colorSimilarity(imgA.Data, imgB.Data)
		if err != nil {
			return domain.SimilarityScore{}, domain.WrapError(domain.ErrInvalidImage, "color comparison", err)
		}
		details.Color = c
		weighted += w.Color * c
		total += w.Color
	}

	if total == 0 {
		return domain.SimilarityScore{Score: structural, Details: details}, nil
	}
	return domain.SimilarityScore{Score: weighted / total, Details: details}, nil
}

// Candidate is one corpus vector offered to Rank. Callers are expected
// to have filtered candidates to the query's embedding space.
type Candidate struct {
	Filename string
	Path     string
	Vector   []float32
}

// Rank orders candidates by cosine similarity to the query, descending,
// truncated to the engine's top-K. Ties keep first-seen order so runs
// over identical inputs are deterministic. Candidates whose vector
// cannot be compared are skipped.
func (e *Engine) Rank(query []float32, candidates []Candidate) []domain.RankedMatch {
	matches := make([]domain.RankedMatch, 0, len(candidates))
	for _, c := range candidates {
		score, err := Cosine(query, c.Vector)
		if err != nil {
			continue
		}
		matches = append(matches, domain.RankedMatch{
			Filename: c.Filename,
			Path:     c.Path,
			Score:    score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > e.topK {
		matches = matches[:e.topK]
	}
	return matches
}
