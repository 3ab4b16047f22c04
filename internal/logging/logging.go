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

// Package logging sets up where a binary's diagnostics go: stderr by
// default, a plain append-only file when -log is given, or a
// size-rotated file when -logrotate-mb is given together with -log.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/agilira/lethe"
	"github.com/pkg/errors"
)

// Options mirrors the flag set every binary in this module exposes for
// its diagnostics sink.
type Options struct {
	LogFile      string // plain append-only file path, "" for stderr
	RotateMB     int    // if >0, rotate LogFile once it reaches this size
	RotateBackup int    // number of rotated backups to keep
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Setup redirects the standard logger's output according to opts and
// returns a closer the caller must Close on shutdown. With no LogFile it
// leaves log output on stderr.
func Setup(opts Options) (io.Closer, error) {
	if opts.LogFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{os.Stderr}, nil
	}

	if opts.RotateMB > 0 {
		rotated, err := lethe.New(opts.LogFile, opts.RotateMB, opts.RotateBackup)
		if err != nil {
			return nil, errors.Wrap(err, "logging: open rotating log")
		}
		log.SetOutput(rotated)
		return rotated, nil
	}

	f, err := os.OpenFile(opts.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "logging: open log file")
	}
	log.SetOutput(f)
	return f, nil
}

// OpenFile opens path for a data log (as opposed to Setup's diagnostics
// stream): a plain truncated file when rotateMB is 0, or a size-rotated
// file via github.com/agilira/lethe once it reaches rotateMB megabytes.
func OpenFile(path string, rotateMB, rotateBackup int) (io.WriteCloser, error) {
	if rotateMB > 0 {
		rotated, err := lethe.New(path, rotateMB, rotateBackup)
		if err != nil {
			return nil, errors.Wrap(err, "logging: open rotating log")
		}
		return rotated, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "logging: open log file")
	}
	return f, nil
}
