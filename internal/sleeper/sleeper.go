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

// Package sleeper provides a calibrated sleep primitive: at startup it
// measures the overshoot of a single sleep request and remembers it as the
// effective minimum pacing tick, since a time-shared OS typically sleeps
// longer than requested.
package sleeper

import "time"

// probeDuration is the length of the one-time calibration sleep.
const probeDuration = 10 * time.Millisecond

// Sleeper measures its own overshoot once, then offers that measurement as
// the calibrated tick for callers that need a pacing period.
type Sleeper struct {
	calibrated time.Duration
}

// New calibrates and returns a Sleeper. The probe sleep is synchronous;
// callers should create one Sleeper per process at startup.
func New() *Sleeper {
	start := time.Now()
	time.Sleep(probeDuration)
	elapsed := time.Since(start)
	if elapsed < probeDuration {
		// The runtime timer guarantees slept >= requested; this is
		// only a defensive floor in case of a clock anomaly.
		elapsed = probeDuration
	}
	return &Sleeper{calibrated: elapsed}
}

// Calibrated returns the measured effective minimum pacing tick.
func (s *Sleeper) Calibrated() time.Duration {
	return s.calibrated
}

// Sleep blocks for at least d.
func (s *Sleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
