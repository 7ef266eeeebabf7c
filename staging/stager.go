package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/mailqa/core"
)

// DefaultDir is the staging directory used when none is configured.
const DefaultDir = "files-attachments"

// DefaultExtensions is the attachment allow-list.
var DefaultExtensions = []string{".pdf", ".docx", ".doc"}

// ErrDirRequired is returned when a Stager is created without a directory.
var ErrDirRequired = errors.New("staging directory required")

// ErrInvalidFilename is returned for names that reduce to nothing usable.
var ErrInvalidFilename = errors.New("invalid attachment filename")

// Stager writes allow-listed attachments into a directory.
type Stager struct {
	dir        string
	extensions map[string]bool
	logger     *slog.Logger
}

// Option configures a Stager.
type Option func(*Stager) error

// WithExtensions replaces the allow-list. Extensions are matched
// case-insensitively and may be given with or without the leading dot.
func WithExtensions(exts ...string) Option {
	return func(s *Stager) error {
		s.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions[ext] = true
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Stager writing into dir.
func New(dir string, opts ...Option) (*Stager, error) {
	if dir == "" {
		return nil, ErrDirRequired
	}
	s := &Stager{dir: dir, logger: slog.Default()}
	if err := WithExtensions(DefaultExtensions...)(s); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "stager", "dir", dir)
	return s, nil
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Accepts reports whether filename has an allow-listed extension.
func (s *Stager) Accepts(filename string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(filename))]
}

// Stage writes att into the staging directory. Attachments outside the
// allow-list are ignored and return ok=false. An existing file with the same
// name is replaced atomically.
func (s *Stager) Stage(att core.Attachment) (path string, ok bool, err error) {
	if !s.Accepts(att.Filename) {
		s.logger.Debug("ignoring attachment", "filename", att.Filename)
		return "", false, nil
	}

	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(att.Filename, `\`, "/")))
	if name == "/" || name == "." || name == ".." {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidFilename, att.Filename)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", false, fmt.Errorf("creating staging dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return "", false, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(att.Data); err != nil {
		tmp.Close()
		return "", false, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", false, fmt.Errorf("closing %s: %w", name, err)
	}

	path = filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", false, fmt.Errorf("staging %s: %w", name, err)
	}

	s.logger.Info("staged attachment", "filename", name, "bytes", len(att.Data))
	return path, true, nil
}
