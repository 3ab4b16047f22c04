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

// Package livemeter copies stdin to stdout unmodified while periodically
// reporting the measured throughput to stderr, with a red warning once the
// rate falls outside a configured band.
package livemeter

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/ratewindow"
)

// Unit selects how Meter renders a rate.
type Unit int

const (
	UnitBytesPerSec Unit = iota
	UnitMbitPerSec
)

// Config configures one Meter.
type Config struct {
	BufferBytes  int     // copy buffer size, default 40960
	ReportWindow int64   // report window, in milliseconds, default 2000
	WarmupSkips  int     // number of initial reports to suppress, default 3
	WarnLow      float64 // low end of the acceptable rate band, 0 disables the check
	WarnHigh     float64 // high end of the acceptable rate band, 0 disables the check
	Unit         Unit
	Clock        clock.Source
	In           io.Reader
	Out          io.Writer
	Report       io.Writer // where periodic rate lines are written, typically stderr
}

// DefaultConfig returns the meter's standard tuning constants, with
// In/Out/Report/Clock left for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		BufferBytes:  40960,
		ReportWindow: 2000,
		WarmupSkips:  3,
		Unit:         UnitBytesPerSec,
	}
}

// ErrOutOfRange is returned by Run when WarnLow/WarnHigh are both set and a
// report falls outside that band: the caller should treat this as a
// deliberate early exit, not a failure of the copy itself.
var ErrOutOfRange = fmt.Errorf("livemeter: rate left the configured band")

// Run copies In to Out until In reaches EOF or returns an error, writing a
// rate report to Report every ReportWindow milliseconds once the warm-up
// skips have elapsed. It returns the first read or write error encountered
// (io.EOF is not treated as an error), or ErrOutOfRange if the measured
// rate leaves the configured [WarnLow, WarnHigh] band.
func Run(cfg Config) error {
	if cfg.BufferBytes <= 0 {
		cfg.BufferBytes = 40960
	}
	if cfg.ReportWindow <= 0 {
		cfg.ReportWindow = 2000
	}

	buf := make([]byte, cfg.BufferBytes)
	start := cfg.Clock.Now()
	est := ratewindow.New(cfg.ReportWindow, start)
	reportsSeen := 0

	for {
		n, rerr := cfg.In.Read(buf)
		if n > 0 {
			now := cfg.Clock.Now()
			if _, werr := cfg.Out.Write(buf[:n]); werr != nil {
				return werr
			}
			est.Add(n, now)
			if bps, closed := est.PollClosed(); closed {
				reportsSeen++
				if reportsSeen > cfg.WarmupSkips {
					if report(cfg, bps) {
						return ErrOutOfRange
					}
				}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return rerr
		}
	}
}

// report prints one rate line and returns true if the rate fell outside
// the configured band.
func report(cfg Config, bps float64) bool {
	displayed := bps
	unit := "B/s"
	if cfg.Unit == UnitMbitPerSec {
		displayed = bps * 8 / (1024 * 1024)
		unit = "Mbit/s"
	}

	line := fmt.Sprintf("rate: %.2f %s", displayed, unit)
	fmt.Fprintln(cfg.Report, line)

	if cfg.WarnLow <= 0 || cfg.WarnHigh <= 0 {
		return false
	}
	if displayed < cfg.WarnLow || displayed > cfg.WarnHigh {
		color.Red("WARNING: rate %.2f %s out of range [%.2f, %.2f]", displayed, unit, cfg.WarnLow, cfg.WarnHigh)
		return true
	}
	return false
}
