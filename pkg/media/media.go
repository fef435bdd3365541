/*
Copyright 2017 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package media provides the namespace storage behind the simulated
// NVMe device: plain files, qcow2 images, or Ceph RBD volumes.
package media

import (
	"fmt"
	"io"
)

// Store is the block medium the simulated device reads and writes.
type Store interface {
	Open(path string) error
	Close() error
	Size() uint64
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
}

// BaseStore carries the fields shared by every backend.
type BaseStore struct {
	Name     string
	DataSize uint64
}

// StoreFunc constructs a registered backend.
type StoreFunc func() (Store, error)

var registeredStores = map[string]StoreFunc{}

// RegisterStore adds a backend under name; called from init.
func RegisterStore(name string, f StoreFunc) {
	registeredStores[name] = f
}

// NewStore builds the named backend.
func NewStore(name string) (Store, error) {
	f, ok := registeredStores[name]
	if !ok {
		return nil, fmt.Errorf("media backend %s is not found", name)
	}
	return f()
}

// MemStore is a volatile medium used by tests and the default sim
// configuration.
type MemStore struct {
	BaseStore
	buf []byte
}

// NewMemStore allocates size bytes of zeroed media.
func NewMemStore(size uint64) *MemStore {
	return &MemStore{
		BaseStore: BaseStore{Name: "mem", DataSize: size},
		buf:       make([]byte, size),
	}
}

func init() {
	RegisterStore("mem", func() (Store, error) {
		return NewMemStore(10 * 1024 * 1024), nil
	})
}

func (m *MemStore) Open(path string) error { return nil }
func (m *MemStore) Close() error           { return nil }
func (m *MemStore) Size() uint64           { return m.DataSize }
func (m *MemStore) Sync() error            { return nil }

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("write beyond media end at %d", off)
	}
	return copy(m.buf[off:], p), nil
}
