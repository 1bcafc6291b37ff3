package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/core/ports"
	"github.com/akarpov/visearch/internal/observability/metrics"
)

type Router struct {
	uploader   ports.ImageUploader
	classifier ports.ImageClassifier
	comparer   ports.ImageComparer
	finder     ports.SimilarImageFinder
	corpus     ports.CorpusStore
	metrics    *metrics.PipelineMetrics

	service        string
	maxUploadBytes int64
}

func NewRouter(
	uploader ports.ImageUploader,
	classifier ports.ImageClassifier,
	comparer ports.ImageComparer,
	finder ports.SimilarImageFinder,
	corpus ports.CorpusStore,
	m *metrics.PipelineMetrics,
	service string,
	maxUploadBytes int64,
) *Router {
	return &Router{
		uploader:       uploader,
		classifier:     classifier,
		comparer:       comparer,
		finder:         finder,
		corpus:         corpus,
		metrics:        m,
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/api/upload", rt.upload)
	mux.HandleFunc("/api/classify", rt.classify)
	mux.HandleFunc("/api/compare", rt.compare)
	mux.HandleFunc("/api/similar", rt.similar)
	mux.HandleFunc("/api/images", rt.listImages)
	mux.HandleFunc("/api/images/", rt.deleteImage)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	asset, ok := rt.readImageFile(w, r, "file")
	if !ok {
		return
	}

	entry, err := rt.uploader.Upload(r.Context(), asset)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"filename":  entry.Filename,
		"filepath":  entry.Path,
		"embedding": entry.Embedding.Vector,
	})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	asset, ok := rt.readImageFile(w, r, "file")
	if !ok {
		return
	}

	result, err := rt.classifier.Classify(r.Context(), asset)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"classification": result})
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	first, ok := rt.readImageFile(w, r, "file1")
	if !ok {
		return
	}
	second, ok := rt.readImageFile(w, r, "file2")
	if !ok {
		return
	}

	var opts domain.CompareOptions
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeBadRequest(w, "options must be valid JSON")
			return
		}
	}

	score, err := rt.comparer.Compare(r.Context(), first, second, opts)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"similarity": score})
}

func (rt *Router) similar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	asset, ok := rt.readImageFile(w, r, "file")
	if !ok {
		return
	}

	result, err := rt.finder.FindSimilar(r.Context(), asset)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.ObserveSearch(len(result.Matches), len(result.Warnings))

	if result.Matches == nil {
		result.Matches = []domain.RankedMatch{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	entries, err := rt.corpus.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.SetCorpusSize(len(entries))

	type listedImage struct {
		Filename string    `json:"filename"`
		Path     string    `json:"filepath"`
		StoredAt time.Time `json:"stored_at"`
	}
	images := make([]listedImage, 0, len(entries))
	for _, entry := range entries {
		images = append(images, listedImage{
			Filename: entry.Filename,
			Path:     entry.Path,
			StoredAt: entry.StoredAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (rt *Router) deleteImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if filename == "" {
		writeBadRequest(w, "filename is required")
		return
	}

	if err := rt.corpus.Delete(r.Context(), filename); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readImageFile pulls one multipart file field into an ImageAsset. The
// reader is capped one byte past the upload ceiling so the normalizer
// sees an oversized buffer and rejects it, instead of the handler
// silently truncating.
func (rt *Router) readImageFile(w http.ResponseWriter, r *http.Request, field string) (domain.ImageAsset, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		writeBadRequest(w, "multipart field '"+field+"' is required")
		return domain.ImageAsset{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, rt.maxUploadBytes+1))
	if err != nil {
		writeBadRequest(w, "could not read uploaded file")
		return domain.ImageAsset{}, false
	}

	size := header.Size
	if size < int64(len(data)) {
		size = int64(len(data))
	}
	return domain.ImageAsset{
		Data:     data,
		MimeType: header.Header.Get("Content-Type"),
		Size:     size,
	}, true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindLabel(err)
	status := mapErrorToHTTPStatus(err)

	slog.Error("request_failed",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"kind", kind,
		"error", err,
	)

	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": classifiedMessage(kind),
		},
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]string{
			"kind":    "invalid_request",
			"message": message,
		},
	})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"error": map[string]string{
			"kind":    "method_not_allowed",
			"message": "method not allowed",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
