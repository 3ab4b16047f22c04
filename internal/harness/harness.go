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

// Package harness implements the integrity-checked test oracle for the
// smoother: a random-traffic Generator that writes a (t_ms, sleep_ms,
// size) schedule log while emitting a wrapping byte counter, and a
// Replayer that reproduces the exact write/sleep schedule from that log.
package harness

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/xtaci/bytesmith/internal/clock"
)

const (
	normalSize = 100 * 1024
	burstSize  = normalSize * 2
	hungerSize = normalSize / 10
)

// LogRecord is one generator schedule entry.
type LogRecord struct {
	DiffMs  int64
	SleepMs int
	Size    int
}

// GeneratorConfig configures one Generator run.
type GeneratorConfig struct {
	SleepMs int // fixed inter-write sleep, default 100ms
	Rand    *rand.Rand
	Clock   clock.Source
	Out     io.Writer // the payload destination, typically stdout
	Log     io.Writer // the (diff_ms, sleep_ms, size) schedule log
}

// Generator emits random-sized payloads of a wrapping byte counter at a
// fixed sleep interval, picking each write's size from three regimes:
// burst (20%), hunger (20%), normal (60%), matching the distribution the
// test harness uses to stress the smoother.
type Generator struct {
	cfg     GeneratorConfig
	counter byte
	start   clock.Timestamp
}

// NewGenerator creates a Generator. cfg.Rand, cfg.Clock, cfg.Out and
// cfg.Log must be set.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.SleepMs <= 0 {
		cfg.SleepMs = 100
	}
	return &Generator{cfg: cfg, start: cfg.Clock.Now()}
}

// Step produces one write: picks a payload size, fills it with the
// wrapping counter, writes it to Out, sleeps SleepMs, then appends the
// resulting schedule entry to Log. It returns the record written.
func (g *Generator) Step() (LogRecord, error) {
	size := g.pickSize()
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = g.counter
		g.counter++
	}

	if _, err := g.cfg.Out.Write(payload); err != nil {
		return LogRecord{}, errors.Wrap(err, "harness: generator write")
	}

	time.Sleep(time.Duration(g.cfg.SleepMs) * time.Millisecond)

	now := g.cfg.Clock.Now()
	rec := LogRecord{
		DiffMs:  clock.DiffMillis(g.start, now),
		SleepMs: g.cfg.SleepMs,
		Size:    size,
	}
	if _, err := fmt.Fprintf(g.cfg.Log, "%d %d %d\n", rec.DiffMs, rec.SleepMs, rec.Size); err != nil {
		return rec, errors.Wrap(err, "harness: generator log")
	}
	return rec, nil
}

func (g *Generator) pickSize() int {
	r := g.cfg.Rand.Intn(10)
	switch {
	case r == 1 || r == 2: // burst, 20%
		return normalSize + g.cfg.Rand.Intn(burstSize-normalSize)
	case r == 3 || r == 4: // hunger, 20%
		return g.cfg.Rand.Intn(hungerSize)
	default: // normal, 60%
		return g.cfg.Rand.Intn(normalSize)
	}
}

// ParseLog reads a generator schedule log (lines of "diff_ms sleep_ms
// size"), tolerant of a trailing blank line at EOF.
func ParseLog(r io.Reader) ([]LogRecord, error) {
	var records []LogRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var rec LogRecord
		if _, err := fmt.Sscanf(line, "%d %d %d", &rec.DiffMs, &rec.SleepMs, &rec.Size); err != nil {
			return nil, errors.Wrapf(err, "harness: parse log line %q", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "harness: scan log")
	}
	return records, nil
}

// WriteLog writes records back out in ParseLog's format.
func WriteLog(w io.Writer, records []LogRecord) error {
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "%d %d %d\n", rec.DiffMs, rec.SleepMs, rec.Size); err != nil {
			return err
		}
	}
	return nil
}

// Replayer reproduces the exact write/sleep schedule recorded in a
// generator log, regenerating each payload from the same wrapping byte
// counter so the output stream is byte-identical to the original run.
type Replayer struct {
	Out io.Writer
}

// Replay writes each record's payload and sleeps for its SleepMs, in
// order, so the original run's write/sleep timing is reproduced exactly.
func (p *Replayer) Replay(records []LogRecord) error {
	var counter byte
	for _, rec := range records {
		payload := make([]byte, rec.Size)
		for i := range payload {
			payload[i] = counter
			counter++
		}
		if _, err := p.Out.Write(payload); err != nil {
			return errors.Wrap(err, "harness: replayer write")
		}
		time.Sleep(time.Duration(rec.SleepMs) * time.Millisecond)
	}
	return nil
}
