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

import "container/list"

// Handle is the opaque, process-unique identifier issued by Open. It is
// never reused while the handle it names is still open.
type Handle int32

// indexKey identifies a cached block: the handle that owns it and the
// block-size-aligned byte offset within that handle's file.
type indexKey struct {
	handle Handle
	offset int64
}

// block is a single cached, fixed-size buffer together with its metadata.
// A block lives in exactly one of: nowhere (Fresh, not yet published),
// or both the index and the eviction queue (Resident-Clean or
// Resident-Dirty). It is never indexed without also being queued, and
// vice versa -- see queue.go and index.go.
type block struct {
	handle Handle
	offset int64
	data   []byte
	dirty  bool

	// elem is this block's node in the eviction queue, set once the
	// block is published (engine.publish). nil while Fresh.
	elem *list.Element
}

func (b *block) key() indexKey {
	return indexKey{handle: b.handle, offset: b.offset}
}
