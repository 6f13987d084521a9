package kv

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"studio-session/internal/log"
)

type persistedFile struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
	SavedAt int64             `json:"savedAt"`
}

// File is a Memory store mirrored to a JSON snapshot on every commit.
type File struct {
	*Memory
	path string
}

// OpenFile loads the snapshot at path, if any, and keeps it up to date.
func OpenFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(), path: path}
	if err := f.load(); err != nil {
		return nil, err
	}
	f.Memory.onCommit = f.persist
	return f, nil
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported kv snapshot version")
	}
	for k, v := range file.Entries {
		f.Memory.data[k] = v
	}
	return nil
}

func (f *File) persist(entries map[string]string) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("kv persistence: mkdir failed")
		return
	}

	file := persistedFile{Version: 1, Entries: entries, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("kv persistence: marshal failed")
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		log.Warn().Err(err).Msg("kv persistence: create temp failed")
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.Warn().Err(err).Msg("kv persistence: chmod temp failed")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.Warn().Err(err).Msg("kv persistence: write temp failed")
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.Warn().Err(err).Msg("kv persistence: sync temp failed")
		return
	}
	if err := tmp.Close(); err != nil {
		log.Warn().Err(err).Msg("kv persistence: close temp failed")
		return
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		log.Warn().Err(err).Msg("kv persistence: rename failed")
	}
}
