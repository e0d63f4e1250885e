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

import "errors"

// Sentinel errors surfaced to callers. Use errors.Is to test for these;
// adapter and engine failures are wrapped with github.com/pkg/errors
// before they reach the caller, so a plain == comparison will not work.
var (
	// ErrUnknownHandle is returned when a handle argument is not (or is
	// no longer) registered in the handle table.
	ErrUnknownHandle = errors.New("pagecache: unknown handle")

	// ErrOpen is returned when the underlying device adapter failed to
	// open the requested path.
	ErrOpen = errors.New("pagecache: open failed")

	// ErrIO is returned when the device adapter reports a read or write
	// failure, including failures during eviction write-back.
	ErrIO = errors.New("pagecache: device I/O error")

	// ErrSeek is returned when a seek's resulting position is invalid,
	// or the device could not report its length for an end-anchor seek.
	ErrSeek = errors.New("pagecache: seek failed")

	// ErrInvalidWhence is returned for a whence value outside SeekSet,
	// SeekCur, SeekEnd.
	ErrInvalidWhence = errors.New("pagecache: invalid whence")
)
