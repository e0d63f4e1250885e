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

// blockStore owns the pool of in-memory block buffers. It does not know
// about the index or the eviction queue -- those are the engine's
// concern (pagecache/index.go, pagecache/queue.go). Keeping allocation
// separate from indexing/ordering mirrors the source's component split
// (spec component B vs. C/D).
type blockStore struct {
	blockSize int
	capacity  int
	live      int
}

func newBlockStore(blockSize, capacity int) *blockStore {
	return &blockStore{blockSize: blockSize, capacity: capacity}
}

// allocate returns a fresh, zero-initialised, device-aligned block for
// handle/offset. The caller publishes it into the index and queue (or
// fills it from the device first, for a read miss) before it becomes
// resident. allocate only counts the block in live; it does not enforce
// capacity -- the engine's publish does that, against the index's length.
func (s *blockStore) allocate(h Handle, offset int64) *block {
	s.live++
	return &block{
		handle: h,
		offset: offset,
		data:   device.AllocAligned(s.blockSize),
	}
}

// release frees a block's buffer. The caller must already have removed
// b from the index and the eviction queue, and written it back if it
// was dirty -- the store never does either.
func (s *blockStore) release(b *block) {
	b.data = nil
	b.elem = nil
	s.live--
}
