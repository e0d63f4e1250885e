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
package pagecache_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device/devicetest"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/pagecache"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestResidentBlockCountNeverExceedsCapacity drives a long randomised
// sequence of writes at scattered offsets across several handles and
// checks, after every operation, that the engine never holds more
// resident blocks than its configured capacity -- spec.md §8 invariant
// 2 ("resident block count across all open files never exceeds C").
func TestResidentBlockCountNeverExceedsCapacity(t *testing.T) {
	const blockSize, capacity = 4096, 8
	e, _ := newTestEngine(blockSize, capacity)

	rng := rand.New(rand.NewSource(1))
	handles := make([]pagecache.Handle, 3)
	for i := range handles {
		h, err := e.Open(string(rune('a' + i)))
		require.NoError(t, err)
		handles[i] = h
	}

	buf := make([]byte, 1)
	for i := 0; i < 500; i++ {
		h := handles[rng.Intn(len(handles))]
		off := int64(rng.Intn(20)) * blockSize
		_, err := e.Lseek(h, off, pagecache.SeekSet)
		require.NoError(t, err)
		_, err = e.Write(h, buf, 1)
		require.NoError(t, err)

		require.LessOrEqual(t, e.ResidentBlockCount(), capacity,
			"resident block count exceeded capacity after write #%d", i)
	}

	for _, h := range handles {
		require.NoError(t, e.Close(h))
	}
}

// TestFsyncLeavesNoDirtyBlocks checks spec.md §8 invariant 3: after
// Fsync returns successfully, no block belonging to that handle is
// dirty (re-confirmed via Close, whose write-back loop would otherwise
// re-write blocks Fsync claimed were already clean -- observed through
// the write-counting adapter).
func TestFsyncLeavesNoDirtyBlocks(t *testing.T) {
	counting := &countingAdapter{inner: device.NewMemoryAdapter()}
	e := pagecache.New(counting, pagecache.Config{BlockSize: 4096, Capacity: 8})

	h, err := e.Open("a")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := e.Lseek(h, int64(i)*4096, pagecache.SeekSet)
		require.NoError(t, err)
		_, err = e.Write(h, []byte{byte(i)}, 1)
		require.NoError(t, err)
	}

	require.NoError(t, e.Fsync(h))
	afterFsync := counting.writeCalls
	require.Equal(t, 5, afterFsync)

	require.NoError(t, e.Close(h))
	require.Equal(t, afterFsync, counting.writeCalls, "close must not re-write blocks fsync already flushed")
}

// TestCloseUnregistersHandleDespiteWriteBackFailure checks spec.md §8
// invariant 7 holds even on the failure path: writeBackAndEvictLocked
// unconditionally evicts every block it touches from the index, queue,
// and store, so once a dirty block's write-back fails there is no
// cache state left for the handle to hold -- Close must still close
// the underlying file and remove the handle from the table, the way
// POSIX close() always invalidates the fd even when it reports EIO.
func TestCloseUnregistersHandleDespiteWriteBackFailure(t *testing.T) {
	adapter := devicetest.NewMockAdapter(device.NewMemoryAdapter())
	e := pagecache.New(adapter, pagecache.Config{BlockSize: 4096, Capacity: 4})

	h, err := e.Open("a")
	require.NoError(t, err)

	mf, ok := mustGetMockFile(t, adapter, "a")
	require.True(t, ok)
	mf.On("WriteBlockAt", mock.Anything, mock.Anything).
		Return(errors.New("simulated write-back failure"))
	mf.On("Close").Return(nil)

	_, err = e.Write(h, []byte("dirty"), 5)
	require.NoError(t, err)

	closeErr := e.Close(h)
	require.Error(t, closeErr, "close must report the write-back failure")

	mf.AssertCalled(t, "Close")
	require.Equal(t, 0, e.ResidentBlockCount(),
		"the dirty block must still be evicted even though its write-back failed")

	err = e.Fsync(h)
	require.ErrorIs(t, err, pagecache.ErrUnknownHandle,
		"the handle must be unregistered even when close's write-back failed")
}

// TestCumulativeLseekCurMatchesBytesTransferred checks spec.md §8
// invariant 5: Lseek(h, 0, SeekCur) always reports base position plus
// every byte actually transferred so far, across an interleaved
// sequence of reads and writes.
func TestCumulativeLseekCurMatchesBytesTransferred(t *testing.T) {
	e, _ := newTestEngine(4096, 4)
	h, err := e.Open("a")
	require.NoError(t, err)

	var transferred int64
	payload := []byte("0123456789")

	n, err := e.Write(h, payload, len(payload))
	require.NoError(t, err)
	transferred += int64(n)

	pos, err := e.Lseek(h, 0, pagecache.SeekCur)
	require.NoError(t, err)
	require.Equal(t, transferred, pos)

	_, err = e.Lseek(h, 0, pagecache.SeekSet)
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err = e.Read(h, buf, 3)
	require.NoError(t, err)
	transferred = int64(n)

	pos, err = e.Lseek(h, 0, pagecache.SeekCur)
	require.NoError(t, err)
	require.Equal(t, transferred, pos)

	require.NoError(t, e.Close(h))
}
