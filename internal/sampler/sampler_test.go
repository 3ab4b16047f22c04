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
	"bytes"
	"strings"
	"testing"
)

func TestIntegrityCheckerAcceptsMonotonicCounter(t *testing.T) {
	var c IntegrityChecker
	seq := make([]byte, 300)
	for i := range seq {
		seq[i] = byte(i % 256)
	}
	if err := c.Check(seq); err != nil {
		t.Fatalf("Check error on valid sequence: %v", err)
	}
}

func TestIntegrityCheckerDetectsMismatch(t *testing.T) {
	var c IntegrityChecker
	if err := c.Check([]byte{10, 11, 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := c.Check([]byte{14}) // should be 13
	if err == nil {
		t.Fatal("expected an integrity error on a skipped byte")
	}
}

func TestBucketizeSumsWithinWindow(t *testing.T) {
	samples := []Sample{
		{TimeMs: 0, Bytes: 10},
		{TimeMs: 50, Bytes: 20},
		{TimeMs: 120, Bytes: 5},
		{TimeMs: 180, Bytes: 7},
		{TimeMs: 250, Bytes: 1},
	}
	buckets := Bucketize(samples, 100)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	if buckets[0].Bytes != 30 || buckets[1].Bytes != 12 || buckets[2].Bytes != 1 {
		t.Fatalf("bucket bytes = %+v", buckets)
	}
}

func TestBucketizeAssociativeAcrossGranularities(t *testing.T) {
	var samples []Sample
	for i := uint64(0); i < 40; i++ {
		samples = append(samples, Sample{TimeMs: i * 10, Bytes: i + 1})
	}
	fine := Bucketize(samples, 100)
	coarse := Bucketize(samples, 200)

	if len(fine) != 2*len(coarse) {
		t.Fatalf("got %d fine buckets and %d coarse buckets, want twice as many fine", len(fine), len(coarse))
	}
	for i := 0; i+1 < len(fine); i += 2 {
		pairedSum := fine[i].Bytes + fine[i+1].Bytes
		if pairedSum != coarse[i/2].Bytes {
			t.Fatalf("fine buckets %d+%d sum to %d, coarse bucket %d = %d", i, i+1, pairedSum, i/2, coarse[i/2].Bytes)
		}
	}
}

func TestMeanStdDevMatchesKnownValues(t *testing.T) {
	buckets := []Bucket{{Bytes: 2}, {Bytes: 4}, {Bytes: 4}, {Bytes: 4}, {Bytes: 5}, {Bytes: 5}, {Bytes: 7}, {Bytes: 9}}
	mean, stddev := MeanStdDev(buckets)
	if mean != 5 {
		t.Fatalf("mean = %v, want 5", mean)
	}
	if stddev < 1.9 || stddev > 2.1 {
		t.Fatalf("stddev = %v, want ~2.0", stddev)
	}
}

func TestWriteLogFormat(t *testing.T) {
	var buf bytes.Buffer
	buckets := []Bucket{{BucketTimeMs: 100, Bytes: 30}, {BucketTimeMs: 200, Bytes: 12}}
	if err := WriteLog(&buf, buckets); err != nil {
		t.Fatalf("WriteLog error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "time-in-ms bytes" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "100 30" || lines[2] != "200 12" {
		t.Fatalf("lines = %v", lines)
	}
}
