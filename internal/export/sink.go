package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives finished export artifacts.
type Sink interface {
	// WriteText stores a text artifact under name
	WriteText(name, contentType, text string) error

	// WriteBinary stores a binary artifact under name
	WriteBinary(name, contentType string, data []byte) error
}

// ErrNotFound is returned when an archived export does not exist.
var ErrNotFound = errors.New("export not found")

// LocalSink implements the Sink interface using a local directory
type LocalSink struct {
	basePath string
}

// NewLocalSink creates a new LocalSink instance
func NewLocalSink(basePath string) (*LocalSink, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalSink{
		basePath: basePath,
	}, nil
}

// WriteText writes a text export to the directory
func (l *LocalSink) WriteText(name, contentType, text string) error {
	return l.WriteBinary(name, contentType, []byte(text))
}

// WriteBinary writes a binary export to the directory
func (l *LocalSink) WriteBinary(name, contentType string, data []byte) error {
	path := filepath.Join(l.basePath, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Get reads an export back from the directory
func (l *LocalSink) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

type teeSink []Sink

// Tee returns a Sink that writes to every sink in order, stopping at the
// first failure. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	var t teeSink
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	return t
}

func (t teeSink) WriteText(name, contentType, text string) error {
	for _, s := range t {
		if err := s.WriteText(name, contentType, text); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) WriteBinary(name, contentType string, data []byte) error {
	for _, s := range t {
		if err := s.WriteBinary(name, contentType, data); err != nil {
			return err
		}
	}
	return nil
}
