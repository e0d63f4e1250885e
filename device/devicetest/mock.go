// Copyright 2017 Northern.tech AS
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

// Package devicetest provides testify-mock based test doubles for
// device.Adapter/device.File, in the style of the teacher's
// store/mockstore.go, for engine tests that need to inject I/O
// failures (eviction write-back errors, read-ahead errors) that the
// in-memory device.MemoryAdapter cannot produce.
package devicetest

import (
	"sync"

	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device"
	"github.com/stretchr/testify/mock"
)

// MockAdapter wraps a real device.Adapter (usually a device.MemoryAdapter)
// and lets a test arrange specific calls to fail via testify's mock
// expectations on the returned MockFile, without reimplementing the
// whole backing store. Like device.MemoryAdapter, every Open of the
// same path returns the same *MockFile, so a test can grab a reference
// via Open and set expectations that the engine's own, separately
// obtained handle to that path will also observe.
type MockAdapter struct {
	mock.Mock
	Inner device.Adapter

	mu    sync.Mutex
	files map[string]*MockFile
}

func NewMockAdapter(inner device.Adapter) *MockAdapter {
	return &MockAdapter{Inner: inner, files: make(map[string]*MockFile)}
}

func (a *MockAdapter) Open(path string) (device.File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f, ok := a.files[path]; ok {
		return f, nil
	}
	inner, err := a.Inner.Open(path)
	if err != nil {
		return nil, err
	}
	f := &MockFile{Mock: mock.Mock{}, Inner: inner}
	a.files[path] = f
	return f, nil
}

// MockFile delegates to Inner unless a matching expectation was set via
// On(...), in which case that expectation's return values are used
// instead. This lets a test fail exactly one WriteBlockAt call (e.g. the
// eviction write-back during a subsequent miss) while every other call
// behaves like the real in-memory backing.
type MockFile struct {
	mock.Mock
	Inner device.File
}

func (f *MockFile) ReadBlockAt(buf []byte, alignedOffset int64) (int, error) {
	if f.hasExpectation("ReadBlockAt") {
		ret := f.Called(buf, alignedOffset)
		return ret.Int(0), ret.Error(1)
	}
	return f.Inner.ReadBlockAt(buf, alignedOffset)
}

func (f *MockFile) WriteBlockAt(buf []byte, alignedOffset int64) error {
	if f.hasExpectation("WriteBlockAt") {
		ret := f.Called(buf, alignedOffset)
		return ret.Error(0)
	}
	return f.Inner.WriteBlockAt(buf, alignedOffset)
}

func (f *MockFile) Size() (int64, error) {
	if f.hasExpectation("Size") {
		ret := f.Called()
		return ret.Get(0).(int64), ret.Error(1)
	}
	return f.Inner.Size()
}

func (f *MockFile) Close() error {
	if f.hasExpectation("Close") {
		ret := f.Called()
		return ret.Error(0)
	}
	return f.Inner.Close()
}

func (f *MockFile) hasExpectation(method string) bool {
	for _, call := range f.ExpectedCalls {
		// Repeatability is -1 once a .Once()/.Times(n) expectation is
		// used up; later calls of that method go back to Inner.
		if call.Method == method && call.Repeatability > -1 {
			return true
		}
	}
	return false
}
