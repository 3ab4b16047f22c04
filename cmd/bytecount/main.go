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
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/livemeter"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "bytecount"
	myApp.Usage = "calculates byte flow from stdin and copies data to stdout"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "b",
			Value: 40960,
			Usage: "buffer size in bytes",
		},
		cli.BoolFlag{
			Name:  "m",
			Usage: "show in mega-bits",
		},
		cli.StringFlag{
			Name:  "w",
			Value: "",
			Usage: "post warning if the reported rate (bytes/sec, or Mbit/sec with -m) is out of range, format low:high",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		cfg := livemeter.DefaultConfig()
		cfg.BufferBytes = c.Int("b")
		cfg.Clock = clock.NewCached(time.Millisecond)
		cfg.In = os.Stdin
		cfg.Out = os.Stdout
		cfg.Report = os.Stderr
		if c.Bool("m") {
			cfg.Unit = livemeter.UnitMbitPerSec
		}
		if band := c.String("w"); band != "" {
			low, high, err := parseBand(band)
			checkError(err)
			cfg.WarnLow, cfg.WarnHigh = low, high
			log.Printf("Warning low~high is %.2f~%.2f\n", low, high)
		}

		log.Println("Use buffer", cfg.BufferBytes, "bytes")
		err := livemeter.Run(cfg)
		if err != nil && err != livemeter.ErrOutOfRange {
			checkError(err)
		}
		return nil
	}
	myApp.Run(os.Args)
}

func parseBand(s string) (low, high float64, err error) {
	i := 0
	for i < len(s) && s[i] != ':' {
		i++
	}
	if i == len(s) {
		return 0, 0, fmt.Errorf("bytecount: -w expects low:high, got %q", s)
	}
	if _, err = fmt.Sscan(s[:i], &low); err != nil {
		return 0, 0, err
	}
	if _, err = fmt.Sscan(s[i+1:], &high); err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
