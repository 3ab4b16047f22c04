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

// Package sampler records one (t_ms, bytes) sample per read off stdin,
// waking at a fixed idle poll interval to check its run-time deadline,
// bucketizes the samples to a user-chosen granularity at shutdown, and
// reports mean and standard deviation across the buckets.
// An optional integrity checker verifies a monotonic byte-counter stream
// produced by the test harness.
package sampler

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/xtaci/bytesmith/internal/clock"
)

// Sample is one (t_ms, bytes) observation, ordered by time.
type Sample struct {
	TimeMs uint64
	Bytes  uint64
}

// Bucket is one granularity-windowed aggregate ready for logging.
type Bucket struct {
	BucketTimeMs uint64
	Bytes        uint64
}

// ErrIntegrity reports a data-corruption mismatch found by IntegrityChecker.
var ErrIntegrity = errors.New("sampler: data integrity violation")

// IntegrityChecker verifies an incoming stream is a monotonic 8-bit
// counter, i.e. every byte equals (prev+1) mod 256 for the prior byte
// observed (any stream prefix is accepted as the first seen byte).
type IntegrityChecker struct {
	started bool
	prev    byte
	offset  uint64
}

// Check feeds the bytes of p, continuing from the byte offset reached by
// earlier calls, and returns a wrapped ErrIntegrity with the offending
// offset and the expected/actual bytes on the first mismatch.
func (c *IntegrityChecker) Check(p []byte) error {
	for _, b := range p {
		if c.started {
			want := byte((int(c.prev) + 1) % 256)
			if b != want {
				return errors.Wrapf(ErrIntegrity, "offset %d: want %d, got %d", c.offset, want, b)
			}
		}
		c.prev = b
		c.started = true
		c.offset++
	}
	return nil
}

// Recorder accumulates samples in memory. It is not safe for concurrent
// use; the periodic sampler binaries are single-goroutine by design.
type Recorder struct {
	start   clock.Timestamp
	clock   clock.Source
	samples []Sample
}

// NewRecorder creates a Recorder whose sample timestamps are measured
// relative to the moment it was created.
func NewRecorder(c clock.Source) *Recorder {
	return &Recorder{start: c.Now(), clock: c}
}

// Record appends one sample for n bytes observed at the current time.
func (r *Recorder) Record(n uint64) {
	now := r.clock.Now()
	r.samples = append(r.samples, Sample{
		TimeMs: uint64(clock.DiffMillis(r.start, now)),
		Bytes:  n,
	})
}

// Samples returns the recorded samples in observation order.
func (r *Recorder) Samples() []Sample { return r.samples }

// Bucketize re-groups samples into granularityMs windows, summing bytes
// within each window. Bucketization is associative: bucketizing an
// already-bucketized series at a coarser multiple of granularityMs yields
// the same result as bucketizing the original samples directly at that
// coarser granularity.
func Bucketize(samples []Sample, granularityMs uint64) []Bucket {
	if granularityMs == 0 {
		granularityMs = 1
	}
	var buckets []Bucket
	var cur *Bucket
	for _, s := range samples {
		bt := (s.TimeMs / granularityMs) * granularityMs
		if cur == nil || cur.BucketTimeMs != bt {
			buckets = append(buckets, Bucket{BucketTimeMs: bt})
			cur = &buckets[len(buckets)-1]
		}
		cur.Bytes += s.Bytes
	}
	return buckets
}

// MeanStdDev computes the mean and (population) standard deviation of the
// buckets' byte counts. The variance is accumulated as one
// (x-mean)^2/N term at a time, not as a running sum of squares, so it
// does not overflow on long runs.
func MeanStdDev(buckets []Bucket) (mean, stddev float64) {
	n := len(buckets)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, b := range buckets {
		sum += float64(b.Bytes)
	}
	mean = sum / float64(n)

	var variance float64
	for _, b := range buckets {
		d := float64(b.Bytes) - mean
		variance += (d * d) / float64(n)
	}
	stddev = math.Sqrt(variance)
	return mean, stddev
}

// WriteLog writes the bucketized header and lines in the format the
// analyzer's CLI documents: "time-in-ms bytes\n" followed by one
// "%d %d\n" line per bucket.
func WriteLog(w io.Writer, buckets []Bucket) error {
	if _, err := fmt.Fprintln(w, "time-in-ms bytes"); err != nil {
		return err
	}
	for _, b := range buckets {
		if _, err := fmt.Fprintf(w, "%d %d\n", b.BucketTimeMs, b.Bytes); err != nil {
			return err
		}
	}
	return nil
}
