// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package sampler

import (
	"fmt"
	"io"
	"time"

	"github.com/xtaci/bytesmith/internal/clock"
)

// Config configures one sampler run.
type Config struct {
	BufferBytes    int           // read buffer size, default 4096
	IdlePoll       time.Duration // idle wait before re-checking stdin, default 100ms
	GranularityMs  uint64        // bucket window, default 100ms
	RunTime        time.Duration // 0 means unlimited
	CheckIntegrity bool          // verify the monotonic byte-counter test stream

	Clock  clock.Source
	In     io.Reader
	Out    io.Writer // pass-through copy destination, may be io.Discard
	Log    io.Writer // bucketized sample log
	Report io.Writer // mean/stddev report, typically stderr
}

// readResult is one outcome of a background stdin read.
type readResult struct {
	n   int
	buf []byte
	err error
}

// Run drives the sample/bucketize/report pipeline until stdin reaches
// EOF, the configured run time elapses, or quit is closed (wired to
// SIGINT by the caller). It returns the total bytes read and the first
// fatal error encountered (an integrity violation or a read/write error).
func Run(cfg Config, quit <-chan struct{}) (totalBytes uint64, err error) {
	if cfg.BufferBytes <= 0 {
		cfg.BufferBytes = 4096
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 100 * time.Millisecond
	}
	if cfg.GranularityMs == 0 {
		cfg.GranularityMs = 100
	}

	fmt.Fprintln(cfg.Report, "Report granularity:", cfg.GranularityMs, "milliseconds")

	rec := NewRecorder(cfg.Clock)
	var checker IntegrityChecker

	reads := make(chan readResult)
	go func() {
		buf := make([]byte, cfg.BufferBytes)
		for {
			n, rerr := cfg.In.Read(buf)
			out := make([]byte, n)
			copy(out, buf[:n])
			reads <- readResult{n: n, buf: out, err: rerr}
			if rerr != nil {
				return
			}
		}
	}()

	start := cfg.Clock.Now()

loop:
	for {
		select {
		case <-quit:
			break loop
		case r := <-reads:
			if r.n > 0 {
				if cfg.CheckIntegrity {
					if cerr := checker.Check(r.buf); cerr != nil {
						return totalBytes, cerr
					}
				}
				if cfg.Out != nil {
					if _, werr := cfg.Out.Write(r.buf); werr != nil {
						return totalBytes, werr
					}
				}
				rec.Record(uint64(r.n))
				totalBytes += uint64(r.n)
			}
			if r.err != nil {
				if r.err == io.EOF {
					break loop
				}
				return totalBytes, r.err
			}
			if cfg.RunTime > 0 {
				elapsedMs := clock.DiffMillis(start, cfg.Clock.Now())
				if elapsedMs >= cfg.RunTime.Milliseconds() {
					break loop
				}
			}
		case <-time.After(cfg.IdlePoll):
			if cfg.RunTime > 0 {
				elapsedMs := clock.DiffMillis(start, cfg.Clock.Now())
				if elapsedMs >= cfg.RunTime.Milliseconds() {
					break loop
				}
			}
		}
	}

	fmt.Fprintln(cfg.Report, "Total", totalBytes, "bytes read")

	buckets := Bucketize(rec.Samples(), cfg.GranularityMs)
	if cfg.Log != nil {
		if werr := WriteLog(cfg.Log, buckets); werr != nil {
			return totalBytes, werr
		}
	}

	fmt.Fprintln(cfg.Report, "Total report", len(buckets), "samples")
	mean, stddev := MeanStdDev(buckets)
	fmt.Fprintf(cfg.Report, "Standard deviation (count=%d, mean=%.2f): %.2f\n", len(buckets), mean, stddev)

	return totalBytes, nil
}
