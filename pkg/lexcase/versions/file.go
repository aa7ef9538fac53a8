package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

// FileRecord is the on-disk layout of one version.
type FileRecord struct {
	Metadata Version `json:"metadata"`
	Text     string  `json:"text"`
}

// FileStore writes each version to <dir>/<doc>_<version>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create version directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(docID, versionID string) (string, error) {
	if docID == "" || strings.ContainsAny(docID, `/\`) || strings.Contains(docID, "..") {
		return "", fmt.Errorf("doc id %q: %w", docID, internalerr.ErrInvalidInput)
	}
	return filepath.Join(s.dir, docID+"_"+versionID+".json"), nil
}

func (s *FileStore) Put(ctx context.Context, v Version, text string) error {
	path, err := s.path(v.DocID, v.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(FileRecord{Metadata: v, Text: text}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("version %s: %w", v.ID, internalerr.ErrDuplicate)
		}
		return fmt.Errorf("create version file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write version file: %w", err)
	}
	return f.Close()
}

func (s *FileStore) Get(ctx context.Context, docID, versionID string) (Version, string, error) {
	path, err := s.path(docID, versionID)
	if err != nil {
		return Version{}, "", err
	}
	rec, err := readRecord(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Version{}, "", fmt.Errorf("version %s/%s: %w", docID, versionID, internalerr.ErrNotFound)
		}
		return Version{}, "", err
	}
	return rec.Metadata, rec.Text, nil
}

func (s *FileStore) List(ctx context.Context, docID string) ([]Version, error) {
	if _, err := s.path(docID, ""); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, globEscape(docID)+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list version files: %w", err)
	}
	var out []Version
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(path)
		if err != nil {
			return nil, err
		}
		// doc ids may share a prefix ending in '_'
		if rec.Metadata.DocID != docID {
			continue
		}
		out = append(out, rec.Metadata)
	}
	Sort(out)
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, docID, versionID string) error {
	path, err := s.path(docID, versionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove version file: %w", err)
	}
	return nil
}

func readRecord(path string) (FileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileRecord{}, err
	}
	var rec FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return FileRecord{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
