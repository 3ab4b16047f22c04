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

// Package smoother implements the adaptive traffic smoother: the priming
// state machine that seeds an initial output rate from the first ~700ms
// of input, and the output pacer + feedback controller that drains the
// segmented queue at a rate steered toward the measured input rate while
// bounding the buffer.
package smoother

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/queue"
	"github.com/xtaci/bytesmith/internal/ratewindow"
	"github.com/xtaci/bytesmith/internal/sleeper"
)

type primingState int32

const (
	stateInit primingState = iota
	statePriming
	stateNormal
)

// Config holds the tunable constants of the smoother as named parameters
// rather than inline magic numbers.
type Config struct {
	SegmentBytes      int           // ~40KiB, component C
	PrimingWindow     time.Duration // 700ms, component E
	ControllerPeriod  time.Duration // 500ms, component F
	EmptyQueueBackoff time.Duration // 10ms, component F
	RateWindow        time.Duration // 1s, component D
	ControllerGain    float64       // 1/20, component F

	Clock   clock.Source
	Sleeper *sleeper.Sleeper
	Out     io.Writer
}

// DefaultConfig returns the standard tuning constants, with
// Clock/Sleeper/Out left for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		SegmentBytes:      queue.DefaultSegmentBytes,
		PrimingWindow:     700 * time.Millisecond,
		ControllerPeriod:  500 * time.Millisecond,
		EmptyQueueBackoff: 10 * time.Millisecond,
		RateWindow:        time.Second,
		ControllerGain:    1.0 / 20,
	}
}

// Context owns the queue, the priming clock, the input-rate estimator and
// the pacing parameters for exactly one smoothed stream.
type Context struct {
	cfg   Config
	q     *queue.Queue
	clock clock.Source
	est   *ratewindow.Estimator

	state          atomic.Int32
	primingStartMs atomic.Int64
	primingStarted atomic.Bool

	targetRateBps   atomic.Int64
	chunkBytes      atomic.Int64
	writeIntervalMs atomic.Int64
	incomingBps     atomic.Int64

	consumerStarted atomic.Bool
	quit            chan struct{}
	done            chan struct{}
	fatal           chan error
}

// NewContext constructs a Context. Call Push for each chunk read by the
// producer; the consumer goroutine that drives the output side is started
// by Push itself once priming completes.
func NewContext(cfg Config) *Context {
	c := &Context{
		cfg:   cfg,
		q:     queue.New(cfg.SegmentBytes),
		clock: cfg.Clock,
		est:   ratewindow.New(cfg.RateWindow.Milliseconds(), cfg.Clock.Now()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		fatal: make(chan error, 1),
	}
	c.writeIntervalMs.Store(cfg.Sleeper.Calibrated().Milliseconds())
	return c
}

// Len reports the current buffer level (best-effort).
func (c *Context) Len() int { return c.q.Len() }

// Push accepts bytes read by the producer, advances the priming state
// machine (component E) and the input-rate estimator (component D), and
// enqueues the bytes. It starts the consumer goroutine exactly once, the
// instant priming completes.
func (c *Context) Push(p []byte) error {
	now := c.clock.Now()

	switch primingState(c.state.Load()) {
	case stateInit:
		c.primingStartMs.Store(encodeTimestamp(now))
		c.state.Store(int32(statePriming))
		if err := c.q.Push(p); err != nil {
			return err
		}
		c.est.Add(len(p), now)
		c.incomingBps.Store(int64(c.est.BytesPerSec()))
		return nil

	case statePriming:
		if err := c.q.Push(p); err != nil {
			return err
		}
		c.est.Add(len(p), now)
		c.incomingBps.Store(int64(c.est.BytesPerSec()))
		start := decodeTimestamp(c.primingStartMs.Load())
		if clock.DiffMillis(start, now) >= c.cfg.PrimingWindow.Milliseconds() {
			c.finishPriming(start, now)
		}
		return nil

	default: // stateNormal
		if err := c.q.Push(p); err != nil {
			return err
		}
		c.est.Add(len(p), now)
		c.incomingBps.Store(int64(c.est.BytesPerSec()))
		return nil
	}
}

// Primed reports whether priming has completed and the consumer goroutine
// has been spawned. While false, nothing drains the queue automatically:
// Push is only buffering bytes toward the initial rate estimate.
func (c *Context) Primed() bool {
	return primingState(c.state.Load()) == stateNormal
}

// Flush writes every byte currently queued to w. It is meant for the case
// where priming never completed (EOF arrived before the 700ms window
// elapsed): no consumer was ever spawned, so the caller must drain the
// queue itself instead of waiting on one.
func (c *Context) Flush(w io.Writer) (int, error) {
	return c.q.Drain(c.q.Len(), w)
}

// finishPriming derives the initial target rate from the buffer built up
// during priming, publishes it as both the controller's target and the
// estimator's seeded incoming rate, and spawns the consumer goroutine.
// This transition happens exactly once.
func (c *Context) finishPriming(start, now clock.Timestamp) {
	elapsedMs := clock.DiffMillis(start, now)
	if elapsedMs <= 0 {
		elapsedMs = 1
	}
	level := int64(c.q.Len())
	targetRateBps := level * 1000 / elapsedMs

	c.incomingBps.Store(targetRateBps)
	c.est.Seed(float64(targetRateBps))
	c.targetRateBps.Store(targetRateBps)

	writeIntervalMs := c.writeIntervalMs.Load()
	if writeIntervalMs <= 0 {
		writeIntervalMs = 1
	}
	c.chunkBytes.Store(targetRateBps * writeIntervalMs / 1000)

	c.state.Store(int32(stateNormal))

	if c.consumerStarted.CompareAndSwap(false, true) {
		go c.runConsumer()
	}
}

// Wait blocks until the consumer goroutine has exited (only meaningful
// once priming has completed and it has actually started).
func (c *Context) Wait() {
	if c.consumerStarted.Load() {
		<-c.done
	}
}

// Stop signals the consumer to exit after its current tick. If the queue
// runs dry during that tick, the consumer exits there instead of waiting
// for more bytes.
func (c *Context) Stop() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

// FatalErr returns the first fatal error reported by the consumer, if any.
// Non-blocking; returns nil if no fatal error has been recorded (yet).
func (c *Context) FatalErr() error {
	select {
	case err := <-c.fatal:
		return err
	default:
		return nil
	}
}

// runConsumer drives the output pacer: each tick it snapshots chunkBytes,
// sleeps one write interval, then drains exactly that many bytes from the
// queue to Out (retrying with a short backoff whenever the queue runs dry
// rather than spinning), accumulating the bytes actually written. Every
// ControllerPeriod of wall time it runs the feedback controller against
// that accumulated output before resetting it for the next period.
func (c *Context) runConsumer() {
	defer close(c.done)

	writeInterval := time.Duration(c.writeIntervalMs.Load()) * time.Millisecond
	if writeInterval <= 0 {
		writeInterval = c.cfg.Sleeper.Calibrated()
	}
	lastControl := c.clock.Now()
	var outBytes int64

	for {
		chunk := int(c.chunkBytes.Load())
		c.cfg.Sleeper.Sleep(writeInterval)

		for chunk > 0 {
			if c.q.Len() == 0 {
				// A dry queue could hold the tick here indefinitely,
				// so this is the one place a tick honours Stop early.
				select {
				case <-c.quit:
					return
				default:
				}
				c.cfg.Sleeper.Sleep(c.cfg.EmptyQueueBackoff)
				continue
			}

			n := chunk
			if n > c.q.Len() {
				n = c.q.Len()
			}
			written, err := c.q.Drain(n, c.cfg.Out)
			if err != nil {
				c.reportFatal(errors.Wrap(ErrFatalWrite, err.Error()))
				return
			}
			outBytes += int64(written)
			chunk -= written
		}

		now := c.clock.Now()
		elapsedMs := clock.DiffMillis(lastControl, now)
		if elapsedMs >= c.cfg.ControllerPeriod.Milliseconds() {
			c.adjust(outBytes, elapsedMs)
			lastControl = now
			outBytes = 0
		}

		select {
		case <-c.quit:
			return
		default:
		}
	}
}

// adjust runs one feedback-controller evaluation. avg_out is the rate
// actually drained over the period just ended (outBytes over elapsedMs);
// target_rate_bps is steered toward incoming_bps by avg_out's error
// against it, and independently nudged up further whenever the buffer has
// grown to at least half of incoming_bps, to drain the reservoir. Both
// adjustments share the same proportional gain and can apply together in
// the same evaluation.
func (c *Context) adjust(outBytes, elapsedMs int64) {
	if elapsedMs <= 0 {
		elapsedMs = 1
	}
	incomingBps := float64(c.incomingBps.Load())
	if incomingBps <= 0 {
		return
	}

	avgOut := float64(outBytes) * 1000 / float64(elapsedMs)
	level := float64(c.q.Len())
	newTarget := float64(c.targetRateBps.Load())

	if avgOut != incomingBps {
		newTarget += (incomingBps - avgOut) * c.cfg.ControllerGain
	}
	if level >= incomingBps/2 {
		newTarget += (level - incomingBps/2) * c.cfg.ControllerGain
	}
	if newTarget < 0 {
		newTarget = 0
	}

	c.targetRateBps.Store(int64(newTarget))

	writeIntervalMs := c.writeIntervalMs.Load()
	if writeIntervalMs <= 0 {
		writeIntervalMs = 1
	}
	newChunk := int64(newTarget) * writeIntervalMs / 1000
	if newChunk < 0 {
		newChunk = 0
	}
	c.chunkBytes.Store(newChunk)
}

func (c *Context) reportFatal(err error) {
	select {
	case c.fatal <- err:
	default:
	}
}

func encodeTimestamp(ts clock.Timestamp) int64 { return ts.Sec*1_000_000 + ts.Micro }
func decodeTimestamp(v int64) clock.Timestamp {
	return clock.Timestamp{Sec: v / 1_000_000, Micro: v % 1_000_000}
}

// ErrFatalWrite wraps a write error from the consumer's output. Write
// errors on the consumer side are always fatal: there is nowhere to
// buffer the bytes that could not be delivered.
var ErrFatalWrite = errors.New("smoother: fatal write error")
