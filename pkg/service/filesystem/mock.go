// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filesystem

import (
	"context"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFileSystem is an in-memory implementation of Service. Files are added with
// WithFile/WithDir; the XxxFunc fields override single operations.
type MockFileSystem struct {
	ReadDirFunc  func(ctx context.Context, path string) ([]os.DirEntry, error)
	StatFunc     func(ctx context.Context, path string) (os.FileInfo, error)
	ReadFileFunc func(ctx context.Context, path string) ([]byte, error)

	mutex sync.Mutex
	files map[string]*memFile
	calls map[string]int
}

type memFile struct {
	info *memFileInfo
	data []byte
}

// NewMockFileSystem creates a new MockFileSystem instance.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: make(map[string]*memFile),
		calls: make(map[string]int),
	}
}

// WithFile adds or replaces a regular file.
func (m *MockFileSystem) WithFile(name string, data []byte, modTime time.Time) *MockFileSystem {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name = path.Clean(name)
	m.files[name] = &memFile{
		info: &memFileInfo{name: path.Base(name), size: int64(len(data)), mode: 0o644, mtime: modTime},
		data: data,
	}

	return m
}

// WithDir adds a directory.
func (m *MockFileSystem) WithDir(name string, modTime time.Time) *MockFileSystem {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name = path.Clean(name)
	m.files[name] = &memFile{
		info: &memFileInfo{name: path.Base(name), mode: fs.ModeDir | 0o755, mtime: modTime, dir: true},
	}

	return m
}

// Remove deletes a file or directory entry.
func (m *MockFileSystem) Remove(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.files, path.Clean(name))
}

// Calls returns how often an operation was invoked.
func (m *MockFileSystem) Calls(op string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.calls[op]
}

func (m *MockFileSystem) record(op string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls[op]++
}

// ReadDir lists the direct children of a directory in lexical order.
func (m *MockFileSystem) ReadDir(ctx context.Context, dir string) ([]os.DirEntry, error) {
	m.record("ReadDir")

	if m.ReadDirFunc != nil {
		return m.ReadDirFunc(ctx, dir)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	dir = path.Clean(dir)
	if f, ok := m.files[dir]; !ok || !f.info.dir {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}

	var entries []os.DirEntry

	for name, f := range m.files {
		if name != dir && path.Dir(name) == dir {
			entries = append(entries, fs.FileInfoToDirEntry(f.info))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.Compare(entries[i].Name(), entries[j].Name()) < 0
	})

	return entries, nil
}

// Stat returns file info.
func (m *MockFileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	m.record("Stat")

	if m.StatFunc != nil {
		return m.StatFunc(ctx, name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	f, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}

	return f.info, nil
}

// ReadFile returns the contents of a regular file.
func (m *MockFileSystem) ReadFile(ctx context.Context, name string) ([]byte, error) {
	m.record("ReadFile")

	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(ctx, name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	f, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	if f.info.dir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}

	return append([]byte(nil), f.data...), nil
}

// WithReadDirFunc sets the function to be called by ReadDir.
func (m *MockFileSystem) WithReadDirFunc(fn func(ctx context.Context, path string) ([]os.DirEntry, error)) *MockFileSystem {
	m.ReadDirFunc = fn

	return m
}

// WithStatFunc sets the function to be called by Stat.
func (m *MockFileSystem) WithStatFunc(fn func(ctx context.Context, path string) (os.FileInfo, error)) *MockFileSystem {
	m.StatFunc = fn

	return m
}

// WithReadFileFunc sets the function to be called by ReadFile.
func (m *MockFileSystem) WithReadFileFunc(fn func(ctx context.Context, path string) ([]byte, error)) *MockFileSystem {
	m.ReadFileFunc = fn

	return m
}

// NewMockFileInfo creates a FileInfo for use in overridden functions.
func (m *MockFileSystem) NewMockFileInfo(name string, size int64, mode os.FileMode, modTime time.Time, isDir bool) os.FileInfo {
	if isDir {
		mode |= fs.ModeDir
	}

	return &memFileInfo{name: name, size: size, mode: mode, mtime: modTime, dir: isDir}
}

type memFileInfo struct {
	mtime time.Time
	name  string
	size  int64
	mode  os.FileMode
	dir   bool
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return fi.size }
func (fi *memFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *memFileInfo) ModTime() time.Time { return fi.mtime }
func (fi *memFileInfo) IsDir() bool        { return fi.dir }
func (fi *memFileInfo) Sys() interface{}   { return nil }
