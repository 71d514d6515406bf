// Package scenario seeds fresh sessions with default state read from a
// scenario file.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/trip-planner/internal/state"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no scenario path is configured.
const DefaultPath = "scenarios/empty_default.json"

// ErrMalformedScenario wraps parse and validation failures of a scenario file.
var ErrMalformedScenario = errors.New("malformed scenario file")

// Outcome describes what a Load call did.
type Outcome string

// Load outcomes.
const (
	OutcomeAlreadyInitialized Outcome = "already_initialized"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeSeeded             Outcome = "seeded"
	OutcomeFailed             Outcome = "failed"
)

// ReadFileFunc reads a whole file.
type ReadFileFunc func(name string) ([]byte, error)

// Loader applies a scenario file to live state at most once per state.
type Loader struct {
	path     string
	readFile ReadFileFunc
	logger   *slog.Logger
}

// NewLoader creates a loader for path. An empty path uses DefaultPath.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, readFile: os.ReadFile, logger: logger}
}

// WithReadFile replaces the file reader. Intended for tests.
func (l *Loader) WithReadFile(fn ReadFileFunc) *Loader {
	l.readFile = fn
	return l
}

// Path returns the scenario file path.
func (l *Loader) Path() string {
	return l.path
}

// Load seeds s from the scenario file unless s is already initialized.
//
// A missing file is logged and leaves is_initialized unset so the next
// turn tries again. Any other read or parse failure is returned.
func (l *Loader) Load(s *state.State) (Outcome, error) {
	if s.Bool(state.KeyIsInitialized) {
		return OutcomeAlreadyInitialized, nil
	}

	data, err := l.readFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Scenario file not found", "path", l.path)
		return OutcomeNotFound, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read scenario %s: %w", l.path, err)
	}

	seed, err := l.parse(data)
	if err != nil {
		return OutcomeFailed, err
	}

	added := s.SetDefaults(seed)
	if err := s.Set(state.KeyIsInitialized, true); err != nil {
		return OutcomeFailed, fmt.Errorf("mark initialized: %w", err)
	}

	l.logger.Info("Loaded initial state", "path", l.path, "keys_added", added)
	return OutcomeSeeded, nil
}

type document struct {
	State map[string]any `json:"state" yaml:"state"`
}

func (l *Loader) parse(data []byte) (*state.State, error) {
	var doc document
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedScenario, l.path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedScenario, l.path, err)
		}
	}

	seed, err := state.FromMap(doc.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedScenario, l.path, err)
	}
	return seed, nil
}
