// Copyright 2020 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
package device

import (
	"sync"
)

// MemoryAdapter is an in-memory stand-in for UnixAdapter, used by the
// cache engine's tests so that invariants, eviction order, and
// round-trip behaviour can be verified without real unbuffered I/O or
// root/raw-device access. Every path opened against the same Adapter
// shares the same backing bytes, as a real device would.
type MemoryAdapter struct {
	mu    sync.Mutex
	files map[string]*memBacking
}

type memBacking struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{files: make(map[string]*memBacking)}
}

func (a *MemoryAdapter) Open(path string) (File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.files[path]
	if !ok {
		b = &memBacking{}
		a.files[path] = b
	}
	return &memFile{backing: b}, nil
}

type memFile struct {
	backing *memBacking
	closed  bool
}

func (f *memFile) ReadBlockAt(buf []byte, alignedOffset int64) (int, error) {
	f.backing.mu.Lock()
	defer f.backing.mu.Unlock()

	if alignedOffset >= int64(len(f.backing.data)) {
		return 0, nil
	}
	n := copy(buf, f.backing.data[alignedOffset:])
	return n, nil
}

func (f *memFile) WriteBlockAt(buf []byte, alignedOffset int64) error {
	f.backing.mu.Lock()
	defer f.backing.mu.Unlock()

	end := alignedOffset + int64(len(buf))
	if end > int64(len(f.backing.data)) {
		grown := make([]byte, end)
		copy(grown, f.backing.data)
		f.backing.data = grown
	}
	copy(f.backing.data[alignedOffset:end], buf)
	return nil
}

func (f *memFile) Size() (int64, error) {
	f.backing.mu.Lock()
	defer f.backing.mu.Unlock()
	return int64(len(f.backing.data)), nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}
