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
	"bufio"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/config"
	"github.com/xtaci/bytesmith/internal/logging"
	"github.com/xtaci/bytesmith/internal/sleeper"
	"github.com/xtaci/bytesmith/internal/smoother"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

// Config mirrors the CLI flags, overridable from a JSON file via -c.
type Config struct {
	SegmentBytes    int    `json:"segment_bytes"`
	PrimingWindowMs int    `json:"priming_window_ms"`
	ControllerMs    int    `json:"controller_period_ms"`
	EmptyBackoffMs  int    `json:"empty_backoff_ms"`
	RateWindowMs    int    `json:"rate_window_ms"`
	Log             string `json:"log"`
	RotateMB        int    `json:"logrotate_mb"`
	Pprof           bool   `json:"pprof"`
}

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "smoother"
	myApp.Usage = "adaptive traffic smoother: absorbs bursts, drains at the measured long-term input rate"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "segment-bytes",
			Value: 40 * 1024,
			Usage: "size of one queue segment, in bytes",
		},
		cli.IntFlag{
			Name:  "priming-window-ms",
			Value: 700,
			Usage: "duration of the initial input sampling window",
		},
		cli.IntFlag{
			Name:  "controller-period-ms",
			Value: 500,
			Usage: "feedback controller evaluation period",
		},
		cli.IntFlag{
			Name:  "empty-backoff-ms",
			Value: 10,
			Usage: "sleep duration when the queue is empty",
		},
		cli.IntFlag{
			Name:  "rate-window-ms",
			Value: 1000,
			Usage: "input-rate estimator window",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.IntFlag{
			Name:  "logrotate-mb",
			Value: 0,
			Usage: "rotate the log file once it reaches this size in MB, 0 disables rotation",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "start profiling server on :6060",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config_ := Config{
			SegmentBytes:    c.Int("segment-bytes"),
			PrimingWindowMs: c.Int("priming-window-ms"),
			ControllerMs:    c.Int("controller-period-ms"),
			EmptyBackoffMs:  c.Int("empty-backoff-ms"),
			RateWindowMs:    c.Int("rate-window-ms"),
			Log:             c.String("log"),
			RotateMB:        c.Int("logrotate-mb"),
			Pprof:           c.Bool("pprof"),
		}

		if c.String("c") != "" {
			checkError(config.LoadJSON(&config_, c.String("c")))
		}

		closer, err := logging.Setup(logging.Options{
			LogFile:      config_.Log,
			RotateMB:     config_.RotateMB,
			RotateBackup: 3,
		})
		checkError(err)
		defer closer.Close()

		log.Println("version:", VERSION)
		log.Println("segment-bytes:", config_.SegmentBytes)
		log.Println("priming-window-ms:", config_.PrimingWindowMs)
		log.Println("controller-period-ms:", config_.ControllerMs)
		log.Println("empty-backoff-ms:", config_.EmptyBackoffMs)
		log.Println("rate-window-ms:", config_.RateWindowMs)

		if config_.Pprof {
			go http.ListenAndServe(":6060", nil)
		}

		cfg := smoother.DefaultConfig()
		cfg.SegmentBytes = config_.SegmentBytes
		cfg.PrimingWindow = time.Duration(config_.PrimingWindowMs) * time.Millisecond
		cfg.ControllerPeriod = time.Duration(config_.ControllerMs) * time.Millisecond
		cfg.EmptyQueueBackoff = time.Duration(config_.EmptyBackoffMs) * time.Millisecond
		cfg.RateWindow = time.Duration(config_.RateWindowMs) * time.Millisecond
		cfg.Clock = clock.NewCached(time.Millisecond)
		cfg.Sleeper = sleeper.New()
		out := bufio.NewWriterSize(os.Stdout, 64*1024)
		cfg.Out = out

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

		if err := runStream(os.Stdin, cfg, sigc); err != nil {
			log.Fatalf("%+v", err)
		}
		if err := out.Flush(); err != nil {
			log.Fatalf("%+v", err)
		}
		return nil
	}
	myApp.Run(os.Args)
}

// runStream pushes in through a smoother.Context built from cfg until in
// reaches EOF, then drains whatever the smoother produced. It is shared by
// main() (wired to os.Stdin/os.Stdout) and by tests, which wire it to an
// os.Pipe instead. sigc, if non-nil, is watched for a shutdown signal: on
// one, the consumer is stopped and runStream returns after the current
// read without draining what is still queued.
func runStream(in io.Reader, cfg smoother.Config, sigc <-chan os.Signal) error {
	ctx := smoother.NewContext(cfg)

	stopSignalWatch := make(chan struct{})
	defer close(stopSignalWatch)
	stopped := make(chan struct{})
	if sigc != nil {
		go func() {
			select {
			case <-sigc:
				log.Println("signal caught, shutting down")
				close(stopped)
				ctx.Stop()
			case <-stopSignalWatch:
			}
		}()
	}

	reader := bufio.NewReaderSize(in, 64*1024)
	buf := make([]byte, 64*1024)
	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			if perr := ctx.Push(buf[:n]); perr != nil {
				return perr
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				return rerr
			}
			break
		}
		if err := ctx.FatalErr(); err != nil {
			return err
		}
		select {
		case <-stopped:
			return ctx.FatalErr()
		default:
		}
	}

	if ctx.Primed() {
		// Drain whatever is still queued before asking the consumer to
		// stop; stdin reaching EOF does not mean the buffered bytes
		// have been written out yet.
		for ctx.Len() > 0 {
			if err := ctx.FatalErr(); err != nil {
				return err
			}
			select {
			case <-stopped:
				return ctx.FatalErr()
			default:
			}
			time.Sleep(10 * time.Millisecond)
		}
		ctx.Stop()
		ctx.Wait()
	} else {
		// Priming never completed (EOF arrived before the 700ms
		// window elapsed): no consumer was ever spawned to drain the
		// queue, so flush it directly instead of waiting on one.
		if _, err := ctx.Flush(cfg.Out); err != nil {
			return err
		}
	}

	return ctx.FatalErr()
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
