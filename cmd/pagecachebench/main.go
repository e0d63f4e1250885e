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

// Command pagecachebench drives the cache engine from the command line:
// "bench" reproduces the three-way throughput comparison the original
// implementation's benchmark harness ran (plain buffered I/O, raw
// unbuffered I/O, and the block cache), "cat"/"put" move data through a
// single cached file for ad-hoc inspection.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mendersoftware/progressbar"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/device"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/internal/log"
	"github.com/secs-dev-os-course/diy-page-cache-ahmadeev/pagecache"
)

var appLog = log.WithComponent("bench")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pagecachebench",
		Usage: "exercise and benchmark the user-space block cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warning, error",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return errors.Wrapf(err, "invalid --log-level %q", c.String("log-level"))
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			benchCommand(),
			catCommand(),
			putCommand(),
		},
	}
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "compare OS-buffered, raw unbuffered, and cached throughput",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "total-size", Value: 25 * 4096 * 1024, Usage: "total bytes written per mode"},
			&cli.IntFlag{Name: "block-size", Value: pagecache.DefaultBlockSize},
			&cli.IntFlag{Name: "capacity", Value: pagecache.DefaultCapacity, Usage: "resident block capacity for the cached mode"},
		},
		Action: func(c *cli.Context) error {
			return runBench(c.Args().First(), c.Int64("total-size"), c.Int("block-size"), c.Int("capacity"))
		},
	}
}

func runBench(path string, totalSize int64, blockSize, capacity int) error {
	if path == "" {
		return errors.New("bench: a target file path is required")
	}
	numBlocks := int(totalSize / int64(blockSize))

	osResult, err := benchOSBufferedWrite(path+".oscache", blockSize, numBlocks)
	if err != nil {
		return errors.Wrap(err, "os-buffered benchmark")
	}
	reportThroughput("WRITE", "OS Cache", osResult)

	rawResult, err := benchRawUnbufferedWrite(path+".rawcache", blockSize, numBlocks)
	if err != nil {
		return errors.Wrap(err, "raw-unbuffered benchmark")
	}
	reportThroughput("WRITE", "No Cache", rawResult)

	cachedResult, err := benchCachedWrite(path+".pagecache", blockSize, capacity, numBlocks)
	if err != nil {
		return errors.Wrap(err, "cached benchmark")
	}
	reportThroughput("WRITE", "Custom Cache", cachedResult)

	return nil
}

type benchResult struct {
	duration        time.Duration
	throughputMBs   float64
	totalSize       int64
}

func reportThroughput(op, mode string, r benchResult) {
	fmt.Printf("[%s] [%s] wrote %d MiB in %.6fs (%.4f MiB/s)\n",
		op, mode, r.totalSize/1024/1024, r.duration.Seconds(), r.throughputMBs)
}

// newBar picks a TTY-rendered or plain progress renderer, mirroring
// utils/progress_bar.go's unix.IoctlGetTermios terminal check but
// delegated to progressbar.New's internal isatty.IsTerminal gate.
func newBar(totalBlocks int) *progressbar.Bar {
	return progressbar.New(int64(totalBlocks))
}

// benchOSBufferedWrite writes through a plain *os.File -- the "OS Cache"
// leg of the comparison, grounded in original_source/app/app.cpp's
// benchmarkOSCacheWrite (std::ofstream, no special flags).
func benchOSBufferedWrite(path string, blockSize, numBlocks int) (benchResult, error) {
	f, err := os.Create(path)
	if err != nil {
		return benchResult{}, err
	}
	defer f.Close()
	defer os.Remove(path)

	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = 'A'
	}

	bar := newBar(numBlocks)
	start := time.Now()
	for i := 0; i < numBlocks; i++ {
		if _, err := f.Write(buf); err != nil {
			return benchResult{}, err
		}
		bar.Tick(1)
	}
	bar.Finish()
	return measure(start, int64(numBlocks)*int64(blockSize)), nil
}

// benchRawUnbufferedWrite writes through device.UnixAdapter directly,
// with no cache layer in front -- the "No Cache" leg, grounded in
// benchmarkNoCacheWrite's O_DIRECT-equivalent path.
func benchRawUnbufferedWrite(path string, blockSize, numBlocks int) (benchResult, error) {
	adapter := device.NewUnixAdapter()
	f, err := adapter.Open(path)
	if err != nil {
		return benchResult{}, err
	}
	defer f.Close()
	defer os.Remove(path)

	buf := device.AllocAligned(blockSize)
	for i := range buf {
		buf[i] = 'B'
	}

	bar := newBar(numBlocks)
	start := time.Now()
	for i := 0; i < numBlocks; i++ {
		if err := f.WriteBlockAt(buf, int64(i)*int64(blockSize)); err != nil {
			return benchResult{}, err
		}
		bar.Tick(1)
	}
	bar.Finish()
	return measure(start, int64(numBlocks)*int64(blockSize)), nil
}

// benchCachedWrite writes through the pagecache engine, fsyncing after
// every block the way original_source/app/app.cpp's
// benchmarkCustomCacheWrite does ("fix" comment, lab2_fsync per block) --
// the "Custom Cache" leg.
func benchCachedWrite(path string, blockSize, capacity, numBlocks int) (benchResult, error) {
	adapter := device.NewUnixAdapter()
	engine := pagecache.New(adapter, pagecache.Config{BlockSize: blockSize, Capacity: capacity})
	posix := pagecache.NewPosix(engine)

	fd := posix.Open(path)
	if fd == -1 {
		return benchResult{}, errors.New("cached benchmark: open failed")
	}
	defer posix.Close(fd)
	defer os.Remove(path)

	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = 'C'
	}

	bar := newBar(numBlocks)
	start := time.Now()
	for i := 0; i < numBlocks; i++ {
		if posix.Lseek(fd, int64(i)*int64(blockSize), pagecache.SeekSet) == -1 {
			return benchResult{}, errors.New("cached benchmark: seek failed")
		}
		if n := posix.Write(fd, buf, blockSize); n != blockSize {
			return benchResult{}, errors.New("cached benchmark: short write")
		}
		if posix.Fsync(fd) == -1 {
			return benchResult{}, errors.New("cached benchmark: fsync failed")
		}
		bar.Tick(1)
	}
	bar.Finish()
	return measure(start, int64(numBlocks)*int64(blockSize)), nil
}

func measure(start time.Time, totalSize int64) benchResult {
	d := time.Since(start)
	mbps := (float64(totalSize) / (1024 * 1024)) / d.Seconds()
	return benchResult{duration: d, throughputMBs: mbps, totalSize: totalSize}
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "read a cached file to stdout",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			return runCat(c.Args().First())
		},
	}
}

func runCat(path string) error {
	if path == "" {
		return errors.New("cat: a file path is required")
	}
	if err := confirmRawDevice(path); err != nil {
		return err
	}

	engine := pagecache.New(device.NewUnixAdapter(), pagecache.DefaultConfig())
	h, err := engine.Open(path)
	if err != nil {
		return err
	}
	defer engine.Close(h)

	buf := make([]byte, engine.BlockSize())
	for {
		n, err := engine.Read(h, buf, len(buf))
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "write stdin into a cached file",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			return runPut(c.Args().First())
		},
	}
}

func runPut(path string) error {
	if path == "" {
		return errors.New("put: a file path is required")
	}
	if err := confirmRawDevice(path); err != nil {
		return err
	}

	engine := pagecache.New(device.NewUnixAdapter(), pagecache.DefaultConfig())
	h, err := engine.Open(path)
	if err != nil {
		return err
	}
	defer engine.Close(h)

	buf := make([]byte, engine.BlockSize())
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if _, werr := engine.Write(h, buf[:n], n); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return engine.Fsync(h)
}

// confirmRawDevice asks for interactive confirmation, without echoing
// the keystroke, before cat/put touch a path under /dev -- writing
// through the cache to a live block device is destructive and a /dev/
// path is rare enough that a throwaway typo should not be silently
// accepted.
func confirmRawDevice(path string) error {
	if len(path) < 5 || path[:5] != "/dev/" {
		return nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil
	}
	appLog.Warnf("%s looks like a raw block device; press 'y' to continue", path)
	fd := int(os.Stdin.Fd())
	prevState, err := term.MakeRaw(fd)
	if err != nil {
		return errors.Wrap(err, "confirm raw device")
	}
	defer term.Restore(fd, prevState)

	answer := make([]byte, 1)
	if _, err := os.Stdin.Read(answer); err != nil {
		return errors.Wrap(err, "confirm raw device")
	}
	if answer[0] != 'y' && answer[0] != 'Y' {
		return errors.Errorf("aborted: %s not confirmed", path)
	}
	return nil
}
