// Package fileutil holds small filesystem helpers shared by config and
// report persistence.
package fileutil

import (
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a half-written file.
//
// Implementation details:
//   - Ensures parent directory exists (dirPerm).
//   - Syncs and closes the temp file before chmod/rename.
//   - Final file permissions are filePerm.
func WriteAtomic(path string, data []byte, dirPerm, filePerm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
