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

// evictionQueue orders resident blocks by insertion time: strict FIFO.
// Re-accessing a resident block never reorders it -- this is not an LRU.
// container/list gives O(1) append, head removal, and removal of an
// arbitrary element (needed when a block is destroyed early at Close,
// before it would naturally reach the head) without the engine having
// to maintain its own linked list.
type evictionQueue struct {
	l *list.List
}

func newEvictionQueue() *evictionQueue {
	return &evictionQueue{l: list.New()}
}

// append inserts b at the tail and records its element on the block
// itself, so removeElem can later find it in O(1).
func (q *evictionQueue) append(b *block) {
	b.elem = q.l.PushBack(b)
}

func (q *evictionQueue) peekHead() *block {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*block)
}

func (q *evictionQueue) popHead() *block {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	q.l.Remove(front)
	b := front.Value.(*block)
	b.elem = nil
	return b
}

func (q *evictionQueue) removeElem(b *block) {
	if b.elem == nil {
		return
	}
	q.l.Remove(b.elem)
	b.elem = nil
}

func (q *evictionQueue) len() int {
	return q.l.Len()
}
