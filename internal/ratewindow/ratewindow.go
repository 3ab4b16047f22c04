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

// Package ratewindow implements the sliding byte-rate estimate shared by the
// smoother's input-rate estimator (a ~1s window) and the live meter's
// report loop (a ~2s window): accumulate bytes since the window opened,
// and once the window has been open at least its target duration,
// recompute bytes-per-second and reset. Elapsed time is always computed
// with clock.DiffMillis, the same borrow-safe subtraction every other
// timed component in this module uses.
package ratewindow

import (
	"sync"

	"github.com/xtaci/bytesmith/internal/clock"
)

// Estimator tracks bytes seen over a rolling window of a configured
// duration in milliseconds. It is safe for concurrent use.
type Estimator struct {
	windowMs int64

	mu           sync.Mutex
	bytesSince   uint64
	windowStart  clock.Timestamp
	lastRateBps  float64
	windowClosed bool
	justClosed   bool
}

// New creates an Estimator whose window recomputes the rate every windowMs
// milliseconds, with the window opening at the given timestamp.
func New(windowMs int64, start clock.Timestamp) *Estimator {
	return &Estimator{windowMs: windowMs, windowStart: start}
}

// Add records n additional bytes observed at timestamp now. If the window
// has elapsed, the rate is recomputed and the window resets.
func (e *Estimator) Add(n int, now clock.Timestamp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bytesSince += uint64(n)
	elapsedMs := clock.DiffMillis(e.windowStart, now)
	if elapsedMs >= e.windowMs {
		if elapsedMs > 0 {
			e.lastRateBps = float64(e.bytesSince) * 1000 / float64(elapsedMs)
			e.windowClosed = true
			e.justClosed = true
		}
		e.bytesSince = 0
		e.windowStart = now
	}
}

// PollClosed reports the most recent rate and whether a window has closed
// since the last call to PollClosed, then clears that flag. Callers that
// want to emit exactly one report per window (rather than re-reading
// BytesPerSec on every byte processed) should drive their report loop off
// this instead of Ready/BytesPerSec.
func (e *Estimator) PollClosed() (bps float64, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	closed = e.justClosed
	e.justClosed = false
	return e.lastRateBps, closed
}

// BytesPerSec returns the most recently computed rate. Until the first
// window closes it returns 0, which callers should treat as "unknown, do
// not adjust".
func (e *Estimator) BytesPerSec() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRateBps
}

// Ready reports whether at least one window has closed.
func (e *Estimator) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.windowClosed
}

// Reset clears the accumulated byte count and restarts the window without
// touching the last computed rate.
func (e *Estimator) Reset(now clock.Timestamp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bytesSince = 0
	e.windowStart = now
}

// Seed forces the last computed rate, used once by the priming state
// machine to publish its derived initial rate.
func (e *Estimator) Seed(bps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastRateBps = bps
	e.windowClosed = true
}
