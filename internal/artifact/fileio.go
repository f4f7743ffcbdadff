package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moolen/primeline/internal/logging"
)

// FileReader handles opening artifact files with proper error handling.
type FileReader struct {
	logger *logging.Logger
}

// NewFileReader creates a new file reader.
func NewFileReader() *FileReader {
	return &FileReader{logger: logging.GetLogger("artifact.fileio")}
}

// Open returns a reader for the given path. The caller is responsible
// for closing the returned ReadCloser.
func (r *FileReader) Open(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	// Artifact paths are intentionally user-configurable.
	// #nosec G304
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	r.logger.Debug("Opened artifact file: %s (size: %d bytes)", path, info.Size())
	return file, nil
}

// DirectoryWalker discovers JSON artifacts under a directory tree.
type DirectoryWalker struct {
	logger *logging.Logger
}

// NewDirectoryWalker creates a new directory walker.
func NewDirectoryWalker() *DirectoryWalker {
	return &DirectoryWalker{logger: logging.GetLogger("artifact.fileio")}
}

// WalkJSON recursively collects every .json file under dirPath. Files
// that cannot be accessed are logged and skipped; the walk continues.
func (w *DirectoryWalker) WalkJSON(dirPath string) ([]string, error) {
	if dirPath == "" {
		return nil, fmt.Errorf("directory path cannot be empty")
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var files []string
	err = filepath.Walk(dirPath, func(path string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn("Error walking path %s: %v", path, err)
			return nil
		}
		if fileInfo.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	w.logger.Debug("Found %d JSON files under %s", len(files), dirPath)
	return files, nil
}

// WriteFileAtomic writes data to path via a temporary sibling file and a
// rename, so readers and watchers never observe a partial artifact.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}
