package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// skipLog appends one line per skipped image to skipped_images.log under the
// run root. The file is the authoritative record of which inputs need manual
// attention and why.
type skipLog struct {
	path string
	file *os.File
}

func newSkipLog(root string) *skipLog {
	return &skipLog{path: filepath.Join(root, skipLogName)}
}

// Append records one skipped image. The file is opened lazily so runs with
// no skips leave no log behind.
func (s *skipLog) Append(imagePath, stageName, message string) error {
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open skip log: %w", err)
		}
		s.file = f
	}

	_, err := fmt.Fprintf(s.file, "%s | %s: %s\n", imagePath, stageName, message)
	if err != nil {
		return fmt.Errorf("failed to write skip log: %w", err)
	}

	return nil
}

func (s *skipLog) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil

	return err
}
