// Package localfs persists the image corpus as a flat directory:
// accepted images plus one JSON embedding sidecar per image. The store
// exclusively owns the directory; nothing else writes into it.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/akarpov/visearch/internal/core/domain"
)

const sidecarSuffix = ".embedding.json"

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// sidecar is the on-disk shape of a cached embedding.
type sidecar struct {
	Model    string    `json:"model"`
	Vector   []float32 `json:"vector"`
	StoredAt time.Time `json:"stored_at"`
}

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "./data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "create corpus dir", err)
	}
	return &Store{dir: dir}, nil
}

// Put writes the image and its embedding sidecar. If the sidecar write
// fails the image is removed again: an entry either exists completely
// or not at all.
func (s *Store) Put(_ context.Context, img domain.NormalizedImage, filename string, emb domain.Embedding) (domain.CorpusEntry, error) {
	if err := validFilename(filename); err != nil {
		return domain.CorpusEntry{}, err
	}

	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return domain.CorpusEntry{}, domain.WrapError(domain.ErrStorage, "write image", err)
	}

	storedAt := time.Now().UTC()
	if err := s.writeSidecar(filename, emb, storedAt); err != nil {
		_ = os.Remove(path)
		return domain.CorpusEntry{}, err
	}

	return domain.CorpusEntry{
		Filename:  filename,
		Path:      path,
		Embedding: emb,
		StoredAt:  storedAt,
	}, nil
}

func (s *Store) Get(_ context.Context, filename string) (domain.CorpusEntry, error) {
	if err := validFilename(filename); err != nil {
		return domain.CorpusEntry{}, err
	}

	path := filepath.Join(s.dir, filename)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CorpusEntry{}, domain.WrapError(domain.ErrNotFound, "get", err)
		}
		return domain.CorpusEntry{}, domain.WrapError(domain.ErrStorage, "stat image", err)
	}

	return s.entryFor(filename, path, info.ModTime().UTC()), nil
}

// List returns every stored image, oldest first. Entries whose sidecar
// is missing or unreadable come back without a vector; find-similar
// recomputes those.
func (s *Store) List(_ context.Context) ([]domain.CorpusEntry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "read corpus dir", err)
	}

	entries := make([]domain.CorpusEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}

		storedAt := time.Time{}
		if info, err := de.Info(); err == nil {
			storedAt = info.ModTime().UTC()
		}
		entries = append(entries, s.entryFor(name, filepath.Join(s.dir, name), storedAt))
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StoredAt.Equal(entries[j].StoredAt) {
			return entries[i].Filename < entries[j].Filename
		}
		return entries[i].StoredAt.Before(entries[j].StoredAt)
	})
	return entries, nil
}

func (s *Store) Delete(_ context.Context, filename string) error {
	if err := validFilename(filename); err != nil {
		return err
	}

	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return domain.WrapError(domain.ErrNotFound, "delete", err)
		}
		return domain.WrapError(domain.ErrStorage, "delete image", err)
	}
	// A missing sidecar is fine; the image is the entry's anchor.
	_ = os.Remove(path + sidecarSuffix)
	return nil
}

func (s *Store) ReadImage(_ context.Context, filename string) ([]byte, error) {
	if err := validFilename(filename); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "read image", err)
		}
		return nil, domain.WrapError(domain.ErrStorage, "read image", err)
	}
	return data, nil
}

func (s *Store) SaveEmbedding(_ context.Context, filename string, emb domain.Embedding) error {
	if err := validFilename(filename); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(s.dir, filename)); err != nil {
		if os.IsNotExist(err) {
			return domain.WrapError(domain.ErrNotFound, "save embedding", err)
		}
		return domain.WrapError(domain.ErrStorage, "stat image", err)
	}
	return s.writeSidecar(filename, emb, time.Now().UTC())
}

func (s *Store) entryFor(filename, path string, storedAt time.Time) domain.CorpusEntry {
	entry := domain.CorpusEntry{
		Filename: filename,
		Path:     path,
		StoredAt: storedAt,
	}

	raw, err := os.ReadFile(path + sidecarSuffix)
	if err != nil {
		return entry
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return entry
	}

	entry.Embedding = domain.Embedding{Model: sc.Model, Vector: sc.Vector}
	if !sc.StoredAt.IsZero() {
		entry.StoredAt = sc.StoredAt
	}
	return entry
}

func (s *Store) writeSidecar(filename string, emb domain.Embedding, storedAt time.Time) error {
	raw, err := json.Marshal(sidecar{
		Model:    emb.Model,
		Vector:   emb.Vector,
		StoredAt: storedAt,
	})
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "encode sidecar", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename+sidecarSuffix), raw, 0o644); err != nil {
		return domain.WrapError(domain.ErrStorage, "write sidecar", err)
	}
	return nil
}

// validFilename rejects anything that could escape the corpus dir.
func validFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return domain.WrapError(domain.ErrNotFound, "filename", fmt.Errorf("invalid name %q", filename))
	}
	return nil
}
