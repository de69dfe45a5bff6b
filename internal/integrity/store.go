// Package integrity persists serialized documents inside hash-sealed
// envelopes and reads them back, rejecting anything that fails the seal.
//
// A read never fails loudly: missing, oversized, malformed or tampered files
// all resolve to "no data", and callers keep their current state.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IronFox/AVS-sub001/internal/codec"
)

const instrumentationName = "github.com/IronFox/AVS-sub001/internal/integrity"

// DefaultMaxPayloadBytes bounds the serialized data of one document.
const DefaultMaxPayloadBytes = 100 * 1024 * 1024

// envelopeOverhead is the room allowed on top of the payload for the hash
// member and punctuation when sizing a file before reading it.
const envelopeOverhead = 4096

var (
	// ErrPayloadTooLarge is returned when serialized data exceeds the limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNoCandidate is returned when no candidate path accepted a write.
	ErrNoCandidate = errors.New("no candidate path accepted the write")
)

// Config controls where documents live and how large they may be.
type Config struct {
	Root            string
	FallbackSuffix  string
	MaxPayloadBytes int64
}

// Store reads and writes sealed documents on an afero filesystem.
type Store struct {
	fs     afero.Fs
	cfg    Config
	codec  *codec.Codec
	logger *slog.Logger

	reads  metric.Int64Counter
	writes metric.Int64Counter
}

// New creates a Store. Zero config values fall back to "-fb" and
// DefaultMaxPayloadBytes.
func New(fs afero.Fs, cfg Config, c *codec.Codec, logger *slog.Logger) (*Store, error) {
	if cfg.FallbackSuffix == "" {
		cfg.FallbackSuffix = "-fb"
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{fs: fs, cfg: cfg, codec: c, logger: logger}

	m := otel.Meter(instrumentationName)
	var err error
	s.reads, err = m.Int64Counter(
		"integrity.reads",
		metric.WithDescription("Document reads by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reads counter: %w", err)
	}
	s.writes, err = m.Int64Counter(
		"integrity.writes",
		metric.WithDescription("Document writes by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating writes counter: %w", err)
	}
	return s, nil
}

// Paths returns the candidate files for key, primary first.
func (s *Store) Paths(key Key) []string {
	return candidatePaths(s.cfg.Root, s.cfg.FallbackSuffix, key)
}

// Write serializes payload and stores it under every candidate path. It
// succeeds when at least one candidate accepted the document.
func (s *Store) Write(key Key, payload any) error {
	if err := key.validate(); err != nil {
		return err
	}
	tok, err := s.codec.Encode(payload)
	if err != nil {
		s.count(s.writes, "encode_error")
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	data, err := codec.MarshalJSON(tok)
	if err != nil {
		s.count(s.writes, "encode_error")
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if int64(len(data)) > s.cfg.MaxPayloadBytes {
		s.count(s.writes, "too_large")
		return fmt.Errorf("%w: %s is %s, limit %s", ErrPayloadTooLarge, key,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(s.cfg.MaxPayloadBytes)))
	}
	env, err := Seal(data)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}

	var errs []error
	accepted := 0
	for _, path := range s.Paths(key) {
		if err := s.writeFile(path, env); err != nil {
			s.logger.Warn("Candidate write failed", "key", key.String(), "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		s.count(s.writes, "failed")
		return fmt.Errorf("%w: %s: %w", ErrNoCandidate, key, errors.Join(errs...))
	}
	s.count(s.writes, "ok")
	s.logger.Debug("Document written", "key", key.String(), "size", humanize.IBytes(uint64(len(env))), "candidates", accepted)
	return nil
}

// writeFile writes through a temporary file so a crashed write never leaves
// a truncated document at path.
func (s *Store) writeFile(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Read returns the token stored under key from the first candidate whose
// seal verifies. The second result is false when no candidate is usable.
func (s *Store) Read(key Key) (codec.Token, bool) {
	if err := key.validate(); err != nil {
		s.logger.Warn("Rejected read key", "error", err)
		s.count(s.reads, "nodata")
		return nil, false
	}
	for _, path := range s.Paths(key) {
		tok, err := s.readFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				s.logger.Debug("Candidate missing", "key", key.String(), "path", path)
			} else {
				s.logger.Warn("Candidate rejected", "key", key.String(), "path", path, "error", err)
			}
			continue
		}
		s.count(s.reads, "ok")
		return tok, true
	}
	s.count(s.reads, "nodata")
	return nil, false
}

func (s *Store) readFile(path string) (codec.Token, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.cfg.MaxPayloadBytes+envelopeOverhead {
		return nil, fmt.Errorf("%w: file is %s", ErrPayloadTooLarge, humanize.IBytes(uint64(info.Size())))
	}
	env, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	data, err := Open(env)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: data is %s", ErrPayloadTooLarge, humanize.IBytes(uint64(len(data))))
	}
	return codec.UnmarshalJSON(data)
}

// ReadValue reads key and decodes it into out. It returns false, leaving out
// untouched, when there is no usable document or it does not decode.
func (s *Store) ReadValue(key Key, out any) bool {
	tok, ok := s.Read(key)
	if !ok {
		return false
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		s.logger.Error("ReadValue needs a non-nil pointer", "key", key.String(), "type", fmt.Sprintf("%T", out))
		return false
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := s.codec.Decode(tok, fresh.Interface()); err != nil {
		s.logger.Warn("Stored document does not decode", "key", key.String(), "error", err)
		return false
	}
	rv.Elem().Set(fresh.Elem())
	return true
}

func (s *Store) count(c metric.Int64Counter, result string) {
	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}
