package workflowmgr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore is the default BlobStore: one directory holding a pair of
// files per workflow name (<name>.ir.json, <name>.meta.json), written with
// temp-file-then-rename semantics so a crash mid-write never leaves a torn
// read (spec §4.J: "Storage MUST be atomic").
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) irPath(name string) string   { return filepath.Join(fs.dir, name+".ir.json") }
func (fs *FileStore) metaPath(name string) string { return filepath.Join(fs.dir, name+".meta.json") }

func (fs *FileStore) Put(ctx context.Context, name string, irBytes, metaBytes []byte, force bool) error {
	if !force {
		if _, err := os.Stat(fs.irPath(name)); err == nil {
			return ErrAlreadyExists
		}
	}
	if err := atomicWrite(fs.irPath(name), irBytes); err != nil {
		return err
	}
	return atomicWrite(fs.metaPath(name), metaBytes)
}

func (fs *FileStore) Get(ctx context.Context, name string) ([]byte, []byte, error) {
	irBytes, err := os.ReadFile(fs.irPath(name))
	if os.IsNotExist(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	metaBytes, err := os.ReadFile(fs.metaPath(name))
	if os.IsNotExist(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return irBytes, metaBytes, nil
}

func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".ir.json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".ir.json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (fs *FileStore) Delete(ctx context.Context, name string) error {
	if err := os.Remove(fs.irPath(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := os.Remove(fs.metaPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes data to a temp file in the same directory as path
// then renames it into place, so readers never observe a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
