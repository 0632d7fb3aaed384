package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/menta2k/seedtray-annotator/internal/utils"
)

// Entry names inside a bundle, relative to the export base name
const (
	imageSuffix    = ".png"
	recordSuffix   = ".json"
	originalSuffix = "_original.png"
)

// Bundle writes the export as a deflated zip archive holding
// {base}.png, {base}.json and, when present, {base}_original.png
func (e *Export) Bundle(w io.Writer) error {
	zw := zip.NewWriter(w)

	entries := []struct {
		name string
		data []byte
	}{
		{e.BaseName + imageSuffix, e.Image},
		{e.BaseName + recordSuffix, e.JSON},
	}
	if len(e.Original) > 0 {
		entries = append(entries, struct {
			name string
			data []byte
		}{e.BaseName + originalSuffix, e.Original})
	}

	for _, entry := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.name,
			Method:   zip.Deflate,
			Modified: e.Record.SavedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", entry.name, err)
		}
		if _, err := f.Write(entry.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}
	return zw.Close()
}

// BundleBytes returns the zip archive in memory
func (e *Export) BundleBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Bundle(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BundleName returns the archive file name
func (e *Export) BundleName() string {
	return e.BaseName + ".zip"
}

// WriteFiles stores the image, record and optional original as separate
// files in dir and returns their paths
func (e *Export) WriteFiles(dir string) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := map[string][]byte{
		e.BaseName + imageSuffix:  e.Image,
		e.BaseName + recordSuffix: e.JSON,
	}
	if len(e.Original) > 0 {
		files[e.BaseName+originalSuffix] = e.Original
	}

	var paths []string
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadBundle extracts the record and clean image bytes from a bundle
func ReadBundle(r io.ReaderAt, size int64) (record, img []byte, err error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bundle: %w", err)
	}

	for _, f := range zr.File {
		switch ext := filepath.Ext(f.Name); {
		case ext == recordSuffix:
			record, err = readEntry(f)
		case ext == imageSuffix && !strings.HasSuffix(f.Name, originalSuffix):
			img, err = readEntry(f)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if record == nil {
		return nil, nil, fmt.Errorf("bundle has no %s record", recordSuffix)
	}
	return record, img, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
