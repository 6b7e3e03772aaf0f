package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Asset is one file placed in an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes the assets into an in-memory zip. Duplicate filenames
// get a numeric suffix.
func ArchiveAssets(assets []Asset, modified time.Time) ([]byte, error) {
	if len(assets) == 0 {
		return nil, errors.New("zip: no assets")
	}
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := asset.Filename
		if name == "" {
			name = "asset"
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%d-%s", n, name)
		} else {
			seen[name] = 1
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
