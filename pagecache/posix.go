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

// Posix wraps an *Engine with the original six-operation, -1-sentinel
// surface described in spec.md §6 (and originally named lab2_open,
// lab2_close, lab2_read, lab2_write, lab2_lseek, lab2_fsync). Go callers
// should use the *Engine methods directly; this exists for callers that
// want byte-for-byte parity with that C-style API, such as
// cmd/pagecachebench.
type Posix struct {
	Engine *Engine
}

func NewPosix(e *Engine) *Posix {
	return &Posix{Engine: e}
}

func (p *Posix) Open(path string) int {
	h, err := p.Engine.Open(path)
	if err != nil {
		return -1
	}
	return int(h)
}

func (p *Posix) Close(fd int) int {
	if err := p.Engine.Close(Handle(fd)); err != nil {
		return -1
	}
	return 0
}

func (p *Posix) Read(fd int, buf []byte, count int) int {
	n, err := p.Engine.Read(Handle(fd), buf, count)
	if err != nil {
		return -1
	}
	return n
}

func (p *Posix) Write(fd int, buf []byte, count int) int {
	n, err := p.Engine.Write(Handle(fd), buf, count)
	if err != nil {
		return -1
	}
	return n
}

func (p *Posix) Lseek(fd int, offset int64, whence int) int64 {
	pos, err := p.Engine.Lseek(Handle(fd), offset, whence)
	if err != nil {
		return -1
	}
	return pos
}

func (p *Posix) Fsync(fd int) int {
	if err := p.Engine.Fsync(Handle(fd)); err != nil {
		return -1
	}
	return 0
}
