package unmeld

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// zipDir archives the files under dir into zipPath. Entry names are relative
// to dir and use forward slashes. Hidden temp files are left out.
func zipDir(dir, zipPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".unmeld-*.zip")
	if err != nil {
		return fmt.Errorf("creating zip: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := writeZip(tmp, dir)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing zip: %w", closeErr)
	}
	if err := os.Rename(tmpPath, zipPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming zip: %w", err)
	}
	return nil
}

func writeZip(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(entry, f); err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("zipping %s: %w", dir, err)
	}
	return zw.Close()
}
