package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"alphasmith/internal/domain"
	"alphasmith/internal/model"
)

const accuracyFile = "accuracy.json"

// Entry is one model's registered validation accuracy.
type Entry struct {
	Accuracy  float64   `json:"accuracy"`
	Std       float64   `json:"std"`
	Samples   int       `json:"samples"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists model artifacts and the shared accuracy document under one
// directory. Each artifact lives in its own file keyed by model kind and
// horizon and is never rewritten in place; the accuracy document is
// read-modify-written under a process-local lock with an atomic rename, so
// training runs updating different keys never lose each other's entries.
type Store struct {
	dir    string
	tracer trace.Tracer

	mu sync.Mutex
}

func NewStore(dir string, tracer trace.Tracer) *Store {
	return &Store{dir: dir, tracer: tracer}
}

// ArtifactPath is where the artifact for one (kind, horizon) pair lives.
func (s *Store) ArtifactPath(kind domain.ModelKind, horizonDays int) string {
	return filepath.Join(s.dir, domain.RegistryKey(kind, horizonDays)+".json")
}

// SaveArtifact writes the artifact to its keyed path and returns that path.
func (s *Store) SaveArtifact(ctx context.Context, a *model.Artifact) (string, error) {
	_, span := s.tracer.Start(ctx, "registry.save-artifact")
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	blob, err := a.Encode()
	if err != nil {
		return "", err
	}
	path := s.ArtifactPath(a.Kind, a.HorizonDays)
	if err := writeAtomic(path, blob); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	log.Info().Str("path", path).Str("model_kind", string(a.Kind)).
		Int("horizon_days", a.HorizonDays).Msg("artifact saved")
	return path, nil
}

// LoadArtifact reads one artifact back. A missing file surfaces as an
// fs.ErrNotExist-wrapped error so callers can distinguish "never trained"
// from a corrupt artifact.
func (s *Store) LoadArtifact(ctx context.Context, kind domain.ModelKind, horizonDays int) (*model.Artifact, error) {
	_, span := s.tracer.Start(ctx, "registry.load-artifact")
	defer span.End()

	path := s.ArtifactPath(kind, horizonDays)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", domain.RegistryKey(kind, horizonDays), err)
	}
	a, err := model.DecodeArtifact(b)
	if err != nil {
		return nil, err
	}
	// A renamed or copied file must not score as something it is not.
	if a.Kind != kind || a.HorizonDays != horizonDays {
		return nil, fmt.Errorf("artifact at %s is %s, expected %s",
			path, domain.RegistryKey(a.Kind, a.HorizonDays), domain.RegistryKey(kind, horizonDays))
	}
	return a, nil
}

// UpdateAccuracy upserts one key in the accuracy document, leaving every
// other key untouched.
func (s *Store) UpdateAccuracy(ctx context.Context, key string, accuracy, std float64, samples int) error {
	_, span := s.tracer.Start(ctx, "registry.update-accuracy")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAccuracies()
	if err != nil {
		return err
	}
	doc[key] = Entry{Accuracy: accuracy, Std: std, Samples: samples, Timestamp: time.Now().UTC()}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal accuracy registry: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, accuracyFile), b); err != nil {
		return fmt.Errorf("write accuracy registry: %w", err)
	}
	return nil
}

// Accuracies returns the whole accuracy document; a registry that has never
// been written reads as empty, not as an error.
func (s *Store) Accuracies(ctx context.Context) (map[string]Entry, error) {
	_, span := s.tracer.Start(ctx, "registry.accuracies")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAccuracies()
}

// Accuracy looks up one key; absent keys report ok=false and leave the
// caller to apply its default.
func (s *Store) Accuracy(ctx context.Context, key string) (Entry, bool, error) {
	doc, err := s.Accuracies(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := doc[key]
	return e, ok, nil
}

func (s *Store) readAccuracies() (map[string]Entry, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, accuracyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read accuracy registry: %w", err)
	}
	doc := map[string]Entry{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse accuracy registry: %w", err)
	}
	return doc, nil
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
