package pdf

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Document is a PDF found under a document directory.
type Document struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// FindDocuments walks root for .pdf files no larger than maxFileSize and
// returns them with paths relative to root. A non-empty query keeps only
// files whose relative path fuzzily matches it, best match first; otherwise
// files are ordered by path.
func FindDocuments(root, query string, maxFileSize int64) ([]Document, error) {
	if root == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}

	byPath := make(map[string]Document)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() == 0 || (maxFileSize > 0 && info.Size() > maxFileSize) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		byPath[rel] = Document{Path: rel, Name: d.Name(), Size: info.Size(), Modified: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}

	if q := strings.TrimSpace(query); q != "" {
		ranks := fuzzy.RankFindNormalizedFold(q, paths)
		sort.Stable(ranks)
		paths = paths[:0]
		for _, r := range ranks {
			paths = append(paths, r.Target)
		}
	} else {
		sort.Strings(paths)
	}

	docs := make([]Document, len(paths))
	for i, p := range paths {
		docs[i] = byPath[p]
	}
	return docs, nil
}
