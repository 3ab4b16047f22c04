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

package ratewindow

import (
	"testing"

	"github.com/xtaci/bytesmith/internal/clock"
)

func ts(sec, micro int64) clock.Timestamp {
	return clock.Timestamp{Sec: sec, Micro: micro}
}

func TestUnknownUntilWindowCloses(t *testing.T) {
	start := ts(0, 0)
	e := New(1000, start)
	e.Add(100, ts(0, 100000))
	if e.Ready() {
		t.Fatal("Ready() should be false before the first window closes")
	}
	if e.BytesPerSec() != 0 {
		t.Fatalf("BytesPerSec() = %v, want 0 before first window closes", e.BytesPerSec())
	}
}

func TestRateAfterWindowCloses(t *testing.T) {
	start := ts(0, 0)
	e := New(1000, start)
	e.Add(1000, ts(0, 100000))
	e.Add(1000, ts(1, 100000)) // 1100ms elapsed
	if !e.Ready() {
		t.Fatal("Ready() should be true after the window elapses")
	}
	got := e.BytesPerSec()
	// 2000 bytes over 1100ms ~= 1818 B/s
	if got < 1500 || got > 2200 {
		t.Fatalf("BytesPerSec() = %v, want ~1818", got)
	}
}

func TestPollClosedFiresOncePerWindow(t *testing.T) {
	e := New(1000, ts(0, 0))
	e.Add(100, ts(0, 500000))
	if _, closed := e.PollClosed(); closed {
		t.Fatal("PollClosed should not report closed before the window elapses")
	}
	e.Add(100, ts(1, 100000)) // 1100ms elapsed, closes the window
	bps, closed := e.PollClosed()
	if !closed {
		t.Fatal("PollClosed should report closed once the window elapses")
	}
	if bps <= 0 {
		t.Fatalf("PollClosed rate = %v, want > 0", bps)
	}
	if _, closed := e.PollClosed(); closed {
		t.Fatal("PollClosed should not report closed twice for the same window")
	}
}

func TestSeedPublishesRate(t *testing.T) {
	e := New(1000, ts(0, 0))
	e.Seed(5000)
	if !e.Ready() {
		t.Fatal("Ready() should be true after Seed")
	}
	if e.BytesPerSec() != 5000 {
		t.Fatalf("BytesPerSec() = %v, want 5000", e.BytesPerSec())
	}
}
