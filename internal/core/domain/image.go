package domain

import "time"

// ImagePurpose selects the normalization profile applied to an upload.
type ImagePurpose string

const (
	// PurposeEmbedding keeps enough fidelity for the provider's embedding
	// model: fit inside a large bounding box, lossy re-encode.
	PurposeEmbedding ImagePurpose = "embedding"
	// PurposeClassification trades fidelity for payload size: small
	// bounding box, grayscale, contrast stretch, aggressive compression.
	PurposeClassification ImagePurpose = "classification"
)

// ImageAsset is the immutable upload as received: raw bytes plus the
// declared content type. It lives for the duration of one request.
type ImageAsset struct {
	Data     []byte
	MimeType string
	Size     int64
}

// NormalizedImage is a disposable transform of an ImageAsset for one
// downstream purpose. It is recomputed on demand and never persisted on
// its own.
type NormalizedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
	Purpose  ImagePurpose
}

// Embedding pairs a provider vector with the model that produced it.
// Vectors from different models are never compared.
type Embedding struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
}

type ClassificationResult struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// SimilarityDetails breaks a combined score down by comparison method.
type SimilarityDetails struct {
	Structural float64 `json:"structural"`
	Perceptual float64 `json:"perceptual"`
	Color      float64 `json:"color"`
}

type SimilarityScore struct {
	Score   float64           `json:"score"`
	Details SimilarityDetails `json:"details"`
}

// CompareOptions carries the optional knobs of the compare endpoint.
// Method and Threshold are advisory; UseFilters enables the perceptual
// and color sub-methods in addition to the structural one.
type CompareOptions struct {
	Method     string  `json:"method"`
	Threshold  float64 `json:"threshold"`
	UseFilters bool    `json:"useFilters"`
}

// CorpusEntry is the unit owned by the corpus store: a stored image and
// its cached embedding. Entries are replaced wholesale, never mutated.
type CorpusEntry struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"filepath"`
	Embedding Embedding `json:"embedding"`
	StoredAt  time.Time `json:"stored_at"`
}

// HasEmbedding reports whether the entry carries a cached vector.
func (e CorpusEntry) HasEmbedding() bool {
	return len(e.Embedding.Vector) > 0
}

type RankedMatch struct {
	Filename string  `json:"filename"`
	Path     string  `json:"filepath"`
	Score    float64 `json:"score"`
}

// SimilaritySearch is the find-similar result: ranked matches plus
// warnings for corpus entries that had to be excluded.
type SimilaritySearch struct {
	Matches  []RankedMatch `json:"matches"`
	Warnings []string      `json:"warnings"`
}
