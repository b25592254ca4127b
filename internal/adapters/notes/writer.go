package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const maxDisambiguation = 1000

// FileWriter is an implementation of the NoteWriter interface on the local filesystem
type FileWriter struct {
	logger *zap.Logger
}

// NewFileWriter creates a new file writer
func NewFileWriter(logger *zap.Logger) *FileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{logger: logger}
}

// Write stores text at path. Without overwrite an existing note is kept and
// the text goes to "<name> (2).md", "<name> (3).md" and so on.
func (w *FileWriter) Write(path, text string, overwrite bool) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create notes directory: %w", err)
	}

	if overwrite {
		if err := writeAtomic(path, text); err != nil {
			return "", err
		}
		w.logger.Debug("Wrote note", zap.String("path", path))
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; n <= maxDisambiguation; n++ {
		candidate := path
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create note: %w", err)
		}
		if _, err := f.WriteString(text); err != nil {
			f.Close()
			os.Remove(candidate)
			return "", fmt.Errorf("failed to write note: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(candidate)
			return "", fmt.Errorf("failed to write note: %w", err)
		}
		w.logger.Debug("Wrote note", zap.String("path", candidate))
		return candidate, nil
	}
	return "", fmt.Errorf("no free note name for %s", path)
}

func writeAtomic(path, text string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".note-*")
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write note: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write note: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write note: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace note: %w", err)
	}
	return nil
}
