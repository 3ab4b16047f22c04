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

package main

import (
	"bytes"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/harness"
	"github.com/xtaci/bytesmith/internal/sleeper"
	"github.com/xtaci/bytesmith/internal/smoother"
)

// TestRunStreamPreservesGeneratorStreamThroughPipe drives the harness
// generator's random traffic through runStream over a real os.Pipe, the
// same plumbing main() wires stdin/stdout through, and checks the smoother
// reproduces the input stream byte-for-byte despite re-pacing its timing.
// It also checks the replayer reproduces the identical stream from the
// generator's own schedule log, independent of the smoother run.
func TestRunStreamPreservesGeneratorStreamThroughPipe(t *testing.T) {
	var genOut, logBuf bytes.Buffer
	gen := harness.NewGenerator(harness.GeneratorConfig{
		SleepMs: 1,
		Rand:    rand.New(rand.NewSource(42)),
		Clock:   clock.Wall{},
		Out:     &genOut,
		Log:     &logBuf,
	})
	for i := 0; i < 6; i++ {
		if _, err := gen.Step(); err != nil {
			t.Fatalf("generator step: %v", err)
		}
	}
	want := append([]byte(nil), genOut.Bytes()...)

	records, err := harness.ParseLog(bytes.NewReader(logBuf.Bytes()))
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	var replayed bytes.Buffer
	rp := &harness.Replayer{Out: &replayed}
	if err := rp.Replay(records); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !bytes.Equal(replayed.Bytes(), want) {
		t.Fatal("replayer output diverged from the generator's own stream")
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer pr.Close()

	go func() {
		defer pw.Close()
		chunk := len(want) / 10
		if chunk == 0 {
			chunk = len(want)
		}
		for i := 0; i < len(want); i += chunk {
			end := i + chunk
			if end > len(want) {
				end = len(want)
			}
			if _, err := pw.Write(want[i:end]); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var out bytes.Buffer
	cfg := smoother.DefaultConfig()
	cfg.PrimingWindow = 20 * time.Millisecond
	cfg.ControllerPeriod = 20 * time.Millisecond
	cfg.RateWindow = 20 * time.Millisecond
	cfg.EmptyQueueBackoff = 2 * time.Millisecond
	cfg.Clock = clock.Wall{}
	cfg.Sleeper = sleeper.New()
	cfg.Out = &out

	if err := runStream(pr, cfg, nil); err != nil {
		t.Fatalf("runStream: %v", err)
	}

	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("smoother output diverged from input: got %d bytes, want %d", out.Len(), len(want))
	}
}

// TestRunStreamFlushesUnprimedQueueOnEOF covers the degenerate case: a
// single small write followed immediately by EOF, well under the priming
// window, so the consumer never starts. runStream must still flush the
// queued bytes to Out rather than hang waiting for a consumer that was
// never spawned.
func TestRunStreamFlushesUnprimedQueueOnEOF(t *testing.T) {
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer pr.Close()

	want := []byte("hello\n")
	go func() {
		pw.Write(want)
		pw.Close()
	}()

	var out bytes.Buffer
	cfg := smoother.DefaultConfig()
	cfg.Clock = clock.Wall{}
	cfg.Sleeper = sleeper.New()
	cfg.Out = &out

	done := make(chan error, 1)
	go func() { done <- runStream(pr, cfg, nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runStream: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runStream did not return; the unprimed queue was never flushed")
	}

	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("out = %q, want %q", out.Bytes(), want)
	}
}
