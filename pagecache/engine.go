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

// Package pagecache is the public API of the block cache: a small
// POSIX-flavoured Open/Close/Read/Write/Lseek/Fsync surface backed by
// an in-memory pool of fixed-size, block-aligned buffers. See
// SPEC_FULL.md for the full design; this file implements component F
// (the cache engine).
package pagecache

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/internal/log"
)

// DefaultBlockSize and DefaultCapacity match the original implementation
// this cache is modelled on: 4 KiB blocks, 256 resident blocks.
const (
	DefaultBlockSize = 4096
	DefaultCapacity  = 256
)

// Seek anchors, mirroring io.Seeker / POSIX whence values.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

var engineLog = log.WithComponent("engine")

// Engine is the cache. The zero value is not usable; construct one with
// New. A single Engine instance owns one process-wide mutex guarding
// the handle table, the index, the eviction queue, and every block's
// metadata and data -- see SPEC_FULL.md §5.
type Engine struct {
	mu sync.Mutex

	blockSize int

	adapter device.Adapter
	handles *handleTable
	index   *index
	queue   *evictionQueue
	store   *blockStore
}

// New constructs an Engine with the given adapter, block size and
// capacity. cfg.BlockSize/Capacity of zero fall back to the package
// defaults.
func New(adapter device.Adapter, cfg Config) *Engine {
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Engine{
		blockSize: blockSize,
		adapter:   adapter,
		handles:   newHandleTable(),
		index:     newIndex(),
		queue:     newEvictionQueue(),
		store:     newBlockStore(blockSize, capacity),
	}
}

// BlockSize returns the fixed block size this engine was constructed
// with.
func (e *Engine) BlockSize() int { return e.blockSize }

// ResidentBlockCount returns the number of blocks currently resident
// across every open handle. Exposed for tests asserting the capacity
// invariant (spec.md §8 invariant 2); production callers have no need
// for it.
func (e *Engine) ResidentBlockCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.len()
}

func (e *Engine) alignedOffset(pos int64) int64 {
	b := int64(e.blockSize)
	return pos - (pos % b)
}

// Open opens path through the device adapter with read-write,
// unbuffered semantics and registers a fresh handle for it, with the
// logical position initialised to zero.
func (e *Engine) Open(path string) (Handle, error) {
	f, err := e.adapter.Open(path)
	if err != nil {
		engineLog.Errorf("open %q: %v", path, err)
		return 0, errors.Wrapf(ErrOpen, "open %q: %v", path, err)
	}
	size, err := f.Size()
	if err != nil {
		engineLog.Errorf("open %q: stat: %v", path, err)
		return 0, errors.Wrapf(ErrOpen, "open %q: stat: %v", path, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.handles.register(f, size)
	engineLog.Debugf("open %q -> handle %d", path, h)
	return h, nil
}

// Close writes back every dirty block owned by h, evicts h's blocks
// from the index and eviction queue, closes the underlying device file,
// and removes h from the handle table.
func (e *Engine) Close(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.handles.lookup(h)
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "close: handle %d", h)
	}

	// writeBackAndEvictLocked unconditionally evicts every block it
	// touches from the index, queue, and store even when a write-back
	// fails -- the cache state for h is gone either way. So the
	// underlying file must still be closed and h unregistered below
	// regardless of writeBackErr, the way POSIX close() always
	// invalidates the fd even when it reports EIO. The first error
	// encountered (write-back, then file close) is what Close reports.
	writeBackErr := e.writeBackAndEvictLocked(h)

	closeErr := entry.file.Close()
	if closeErr != nil {
		engineLog.Errorf("close handle %d: %v", h, closeErr)
	}
	e.handles.unregister(h)

	if writeBackErr != nil {
		return writeBackErr
	}
	if closeErr != nil {
		return errors.Wrapf(ErrIO, "close handle %d: %v", h, closeErr)
	}
	engineLog.Debugf("closed handle %d", h)
	return nil
}

// writeBackAndEvictLocked writes back and destroys every block owned by
// h. Called with e.mu held, from Close.
func (e *Engine) writeBackAndEvictLocked(h Handle) error {
	blocks := e.index.forHandle(h)
	var firstErr error
	for _, b := range blocks {
		if b.dirty {
			entry, _ := e.handles.lookup(h)
			if err := entry.file.WriteBlockAt(b.data, b.offset); err != nil {
				engineLog.Errorf("write-back handle %d offset %d: %v", h, b.offset, err)
				if firstErr == nil {
					firstErr = errors.Wrapf(ErrIO, "write-back handle %d offset %d: %v", h, b.offset, err)
				}
			}
		}
		e.index.remove(b)
		e.queue.removeElem(b)
		e.store.release(b)
	}
	return firstErr
}

// positionLocked returns h's current logical position without
// acquiring e.mu -- it must only be called while e.mu is already held.
// This is the internal helper SPEC_FULL.md/spec.md §9 calls for: the
// source re-enters its own lock by having Read/Write call its exported
// Lseek(..., SEEK_CUR), which this design forbids.
func (e *Engine) positionLocked(h Handle) (int64, error) {
	entry, ok := e.handles.lookup(h)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	return entry.pos, nil
}

// Lseek repositions h's logical file position and returns the new
// absolute position. SeekSet and SeekCur do not touch the cache; SeekEnd
// first writes back h's dirty blocks (they stay resident, now clean).
func (e *Engine) Lseek(h Handle, offset int64, whence int) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lseekLocked(h, offset, whence)
}

func (e *Engine) lseekLocked(h Handle, offset int64, whence int) (int64, error) {
	entry, ok := e.handles.lookup(h)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "lseek: handle %d", h)
	}

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = entry.pos
	case SeekEnd:
		// Flush dirty blocks before consulting the device for length,
		// so SEEK_END reflects data written through the cache but not
		// yet fsynced. This is the chosen resolution of the "End-anchor
		// seek" open question in SPEC_FULL.md §4.F / §9.
		if err := e.writeBackDirtyLocked(h); err != nil {
			return 0, err
		}
		size, err := entry.file.Size()
		if err != nil {
			return 0, errors.Wrapf(ErrSeek, "seek end: handle %d: %v", h, err)
		}
		base = size
	default:
		return 0, errors.Wrapf(ErrInvalidWhence, "whence=%d", whence)
	}

	newPos := base + offset
	if newPos < 0 {
		return 0, errors.Wrapf(ErrSeek, "negative resulting position %d", newPos)
	}
	entry.pos = newPos
	return newPos, nil
}

// writeBackDirtyLocked flushes every dirty block owned by h without
// evicting it -- unlike writeBackAndEvictLocked (Close), the blocks
// remain resident and clean. Shared by Fsync and the SEEK_END path.
func (e *Engine) writeBackDirtyLocked(h Handle) error {
	entry, ok := e.handles.lookup(h)
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	var firstErr error
	for _, b := range e.index.forHandle(h) {
		if !b.dirty {
			continue
		}
		if err := entry.file.WriteBlockAt(b.data, b.offset); err != nil {
			engineLog.Errorf("fsync handle %d offset %d: %v", h, b.offset, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(ErrIO, "fsync handle %d offset %d: %v", h, b.offset, err)
			}
			continue
		}
		b.dirty = false
	}
	return firstErr
}

// Fsync writes back every dirty block owned by h and clears their dirty
// flags. If any write-back fails, Fsync returns an error after
// attempting every block; blocks whose write-back succeeded are left
// clean.
func (e *Engine) Fsync(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handles.lookup(h); !ok {
		return errors.Wrapf(ErrUnknownHandle, "fsync: handle %d", h)
	}
	return e.writeBackDirtyLocked(h)
}

// fetchOrAllocate returns the resident block for (h, offset), loading it
// from the device (readFromDevice=true) or allocating it fresh without a
// device read (a write miss on a whole block, or one the caller will
// fill from the device itself) if it is not already resident. Either
// way the new block is published, which may evict the FIFO head.
func (e *Engine) fetchOrAllocate(h Handle, offset int64, readFromDevice bool) (*block, error) {
	if b, ok := e.index.lookup(h, offset); ok {
		return b, nil
	}

	b := e.store.allocate(h, offset)
	if readFromDevice {
		entry, ok := e.handles.lookup(h)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
		}
		n, err := entry.file.ReadBlockAt(b.data, offset)
		if err != nil {
			e.store.release(b)
			return nil, errors.Wrapf(ErrIO, "read handle %d offset %d: %v", h, offset, err)
		}
		// Short read at EOF: zero-pad the remainder (already zero from
		// AllocAligned, but be explicit in case of future reuse).
		for i := n; i < len(b.data); i++ {
			b.data[i] = 0
		}
	}

	if err := e.publish(b); err != nil {
		e.index.remove(b)
		e.queue.removeElem(b)
		e.store.release(b)
		return nil, err
	}
	return b, nil
}

// publish inserts a newly allocated block into the index and eviction
// queue, first evicting the FIFO head if the store is already holding
// capacity resident blocks. b itself has been allocated (store.live
// counts it) but not yet inserted, so the resident-count check below
// uses the index's length rather than store.live -- otherwise the new,
// not-yet-resident block would count against its own admission and
// eviction would trigger one block early. A write-back failure during
// eviction propagates to the caller, but the victim is discarded
// regardless (SPEC_FULL.md §4.F, spec.md §7).
func (e *Engine) publish(b *block) error {
	var evictErr error
	if e.index.len() >= e.store.capacity {
		victim := e.queue.popHead()
		if victim != nil {
			if victim.dirty {
				entry, ok := e.handles.lookup(victim.handle)
				if ok {
					if err := entry.file.WriteBlockAt(victim.data, victim.offset); err != nil {
						engineLog.Errorf("eviction write-back handle %d offset %d: %v",
							victim.handle, victim.offset, err)
						evictErr = errors.Wrapf(ErrIO, "eviction write-back handle %d offset %d: %v",
							victim.handle, victim.offset, err)
					}
				}
			}
			e.index.remove(victim)
			e.store.release(victim)
		}
	}

	e.index.insert(b)
	e.queue.append(b)
	return evictErr
}

// Read copies up to count bytes from h's current logical position into
// buf, advances the position by the number of bytes copied, and returns
// that count. A single call never returns more than BlockSize minus the
// in-block offset; callers wanting more must loop. Reading at or past
// the logical end of file returns zero bytes and no error (spec.md §8
// boundary behaviour), rather than the zero-padded filler that would
// otherwise fill an allocated-but-never-written block.
func (e *Engine) Read(h Handle, buf []byte, count int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.handles.lookup(h)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "read: handle %d", h)
	}
	pos := entry.pos
	if pos >= entry.size {
		return 0, nil
	}
	aligned := e.alignedOffset(pos)
	k := int(pos - aligned)

	b, err := e.fetchOrAllocate(h, aligned, true)
	if err != nil {
		return 0, err
	}

	n := count
	if max := e.blockSize - k; n > max {
		n = max
	}
	if n > len(buf) {
		n = len(buf)
	}
	if available := entry.size - pos; int64(n) > available {
		n = int(available)
	}
	if n < 0 {
		n = 0
	}
	copy(buf[:n], b.data[k:k+n])
	entry.pos = pos + int64(n)

	// Read-ahead: load the successor block if it is not already
	// resident and it holds data within the logical file. Failures here
	// are logged and discarded -- the read the caller asked for has
	// already succeeded (spec.md §4.F step 6).
	nextOffset := aligned + int64(e.blockSize)
	if nextOffset < entry.size {
		if _, resident := e.index.lookup(h, nextOffset); !resident {
			if _, err := e.fetchOrAllocate(h, nextOffset, true); err != nil {
				engineLog.Warnf("read-ahead handle %d offset %d: %v", h, nextOffset, err)
			}
		}
	}

	return n, nil
}

// Write copies up to count bytes from buf into h's current logical
// position, marks the containing block dirty, advances the position by
// the number of bytes copied, and returns that count. A write miss does
// not read the existing block from the device when the write covers the
// whole block; a write miss that only partially covers the block reads
// the existing content first so the untouched tail is not zeroed out
// (the chosen resolution of the "write-miss-without-read" open question,
// SPEC_FULL.md §4.F / §9).
func (e *Engine) Write(h Handle, buf []byte, count int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.positionLocked(h)
	if err != nil {
		return 0, err
	}
	aligned := e.alignedOffset(pos)
	k := int(pos - aligned)

	n := count
	if max := e.blockSize - k; n > max {
		n = max
	}
	if n > len(buf) {
		n = len(buf)
	}
	if n < 0 {
		n = 0
	}

	b, ok := e.index.lookup(h, aligned)
	if !ok {
		wholeBlock := k == 0 && n == e.blockSize
		b, err = e.writeMiss(h, aligned, wholeBlock)
		if err != nil {
			return 0, err
		}
	}

	copy(b.data[k:k+n], buf[:n])
	b.dirty = true

	entry, _ := e.handles.lookup(h)
	entry.pos = pos + int64(n)
	if entry.pos > entry.size {
		entry.size = entry.pos
	}

	return n, nil
}

// writeMiss allocates and publishes the block at (h, aligned) for a
// write that found no resident block there. When the write covers the
// whole block, the existing on-disk content is about to be overwritten
// in full, so it is not read first (a pure optimisation). Otherwise the
// existing content is read from the device before publishing, so that
// the untouched portion of the block is not later flushed to disk as
// zeros -- the "read-before-write on partial write-miss" resolution of
// the open question in SPEC_FULL.md §4.F / §9.
func (e *Engine) writeMiss(h Handle, aligned int64, wholeBlock bool) (*block, error) {
	b := e.store.allocate(h, aligned)

	if !wholeBlock {
		entry, ok := e.handles.lookup(h)
		if !ok {
			e.store.release(b)
			return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
		}
		got, err := entry.file.ReadBlockAt(b.data, aligned)
		if err != nil {
			e.store.release(b)
			return nil, errors.Wrapf(ErrIO, "read-before-write handle %d offset %d: %v", h, aligned, err)
		}
		for i := got; i < len(b.data); i++ {
			b.data[i] = 0
		}
	}

	if err := e.publish(b); err != nil {
		e.index.remove(b)
		e.queue.removeElem(b)
		e.store.release(b)
		return nil, err
	}
	return b, nil
}
