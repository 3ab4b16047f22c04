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

// Package clock provides the monotonic timestamp arithmetic shared by every
// filter in this module, plus a cached time source for the hot paths that
// sample the clock on every push or pacing tick.
package clock

import (
	"time"

	timecache "github.com/agilira/go-timecache"
)

// Timestamp is a wall-clock reading split into seconds and microseconds,
// mirroring the struct timeval fields the original C implementation
// subtracted directly.
type Timestamp struct {
	Sec   int64
	Micro int64
}

// Of converts a time.Time into a Timestamp.
func Of(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Micro: int64(t.Nanosecond()) / 1000}
}

// DiffMillis returns t2-t1 in whole milliseconds, borrowing 1s across the
// sub-second boundary when t2.Micro < t1.Micro so the subtraction never
// underflows. t1 must not be after t2.
func DiffMillis(t1, t2 Timestamp) int64 {
	diffMs := (t2.Sec - t1.Sec) * 1000
	if t2.Micro < t1.Micro {
		diffMs -= 1000
		diffMs += (t2.Micro + 1000000 - t1.Micro) / 1000
	} else {
		diffMs += (t2.Micro - t1.Micro) / 1000
	}
	return diffMs
}

// Source yields Timestamps for the caller's clock of choice.
type Source interface {
	Now() Timestamp
	Stop()
}

// Cached wraps github.com/agilira/go-timecache so hot loops (a push on
// every read, a tick on every consumer iteration) don't pay a time.Now()
// syscall each time; the cache refreshes itself on its own ticker.
type Cached struct {
	tc *timecache.TimeCache
}

// NewCached starts a cached clock refreshed at the given resolution.
func NewCached(resolution time.Duration) *Cached {
	return &Cached{tc: timecache.NewWithResolution(resolution)}
}

func (c *Cached) Now() Timestamp { return Of(c.tc.CachedTime()) }
func (c *Cached) Stop()          { c.tc.Stop() }

// Wall is a plain time.Now()-backed Source, used where cache granularity
// would be wrong (the test harness needs real inter-write gaps).
type Wall struct{}

func (Wall) Now() Timestamp { return Of(time.Now()) }
func (Wall) Stop()          {}
