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

// index maps (handle, aligned offset) to a resident block. Average-case
// constant time lookup is required by spec; a Go map is the natural
// shape for that (spec component C).
type index struct {
	blocks map[indexKey]*block
}

func newIndex() *index {
	return &index{blocks: make(map[indexKey]*block)}
}

// insert requires that key is not already present; the engine always
// calls lookup first, so a duplicate insert is a programming error.
func (ix *index) insert(b *block) {
	key := b.key()
	if _, exists := ix.blocks[key]; exists {
		panic("pagecache: duplicate index insert")
	}
	ix.blocks[key] = b
}

func (ix *index) lookup(h Handle, offset int64) (*block, bool) {
	b, ok := ix.blocks[indexKey{handle: h, offset: offset}]
	return b, ok
}

func (ix *index) remove(b *block) {
	delete(ix.blocks, b.key())
}

// forHandle returns every block currently owned by h. It snapshots into
// a slice rather than returning a live iterator so that callers (close,
// fsync) may freely remove entries from ix while ranging over the
// result.
func (ix *index) forHandle(h Handle) []*block {
	var out []*block
	for key, b := range ix.blocks {
		if key.handle == h {
			out = append(out, b)
		}
	}
	return out
}

func (ix *index) len() int {
	return len(ix.blocks)
}
