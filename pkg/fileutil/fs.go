package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem is the engine's abstract FileDialog-adjacent collaborator
// (§10.5): resolve a name to bytes, case-insensitively, relative to a base
// directory.
type FileSystem interface {
	Open(name string) (fs.File, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	FindFile(dir, filename string) (string, error)
	BasePath() string
	IsEmbedded() bool
}

// RealFS resolves names against a real directory on disk.
type RealFS struct {
	basePath string
}

// NewRealFS returns a RealFS rooted at basePath.
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	path := r.resolvePath(name)
	actualPath, err := r.findFileCaseInsensitive(path)
	if err != nil {
		return nil, err
	}
	return os.Open(actualPath)
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	path := r.resolvePath(name)
	actualPath, err := r.findFileCaseInsensitive(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actualPath)
}

func (r *RealFS) ReadDir(name string) ([]fs.DirEntry, error) {
	path := r.resolvePath(name)
	return os.ReadDir(path)
}

func (r *RealFS) FindFile(dir, filename string) (string, error) {
	searchDir := dir
	if r.basePath != "" && !filepath.IsAbs(dir) {
		searchDir = filepath.Join(r.basePath, dir)
	}
	return FindFileCaseInsensitive(searchDir, filename)
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) IsEmbedded() bool {
	return false
}

func (r *RealFS) resolvePath(name string) string {
	cleanName := strings.TrimPrefix(strings.TrimPrefix(name, "/"), "\\")
	if r.basePath != "" {
		return filepath.Join(r.basePath, cleanName)
	}
	return cleanName
}

func (r *RealFS) findFileCaseInsensitive(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	return FindFileCaseInsensitive(dir, filename)
}
