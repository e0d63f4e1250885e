// Copyright 2016 Mender Software AS
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
package pagecache

import "github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device"

// handleEntry is the per-handle state the engine must track outside of
// the cached blocks themselves: the underlying device file, the
// caller's logical file position, and the logical file size (the
// device's size at Open, extended by every Write that reaches past it
// -- tracked independently of the device because a write is visible to
// Read as soon as it lands in the cache, before any fsync reaches the
// device).
type handleEntry struct {
	file device.File
	pos  int64
	size int64
}

// handleTable maps the opaque handles issued by Open to their device
// file and logical position. Handle allocation is a dense, monotonic
// int32 counter -- not a reinterpretation of an OS-level handle value,
// per the portable scheme the spec recommends over the source's
// raw-handle-bit-pattern approach.
type handleTable struct {
	next    int32
	entries map[Handle]*handleEntry
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[Handle]*handleEntry)}
}

func (t *handleTable) register(f device.File, size int64) Handle {
	h := Handle(t.next)
	t.next++
	t.entries[h] = &handleEntry{file: f, size: size}
	return h
}

func (t *handleTable) lookup(h Handle) (*handleEntry, bool) {
	e, ok := t.entries[h]
	return e, ok
}

func (t *handleTable) unregister(h Handle) {
	delete(t.entries, h)
}
