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
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/logging"
	"github.com/xtaci/bytesmith/internal/sampler"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "bytelog"
	myApp.Usage = "samples stdin throughput into fixed windows and reports mean/stddev"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "g",
			Value: 100,
			Usage: "report granularity, in milliseconds",
		},
		cli.IntFlag{
			Name:  "t",
			Value: 0,
			Usage: "run time in seconds, 0 means run until EOF",
		},
		cli.StringFlag{
			Name:  "s",
			Value: "",
			Usage: "sample log file to write (required)",
		},
		cli.IntFlag{
			Name:  "logrotate-mb",
			Value: 0,
			Usage: "rotate the sample log file once it reaches this size in MB, 0 disables rotation",
		},
		cli.BoolFlag{
			Name:  "check",
			Usage: "verify stdin is the wrapping byte-counter stream produced by the generator",
		},
		cli.BoolFlag{
			Name:  "passthrough",
			Usage: "also copy stdin to stdout",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		if c.String("s") == "" {
			checkError(cli.NewExitError("bytelog: -s logfile is required", 1))
		}

		logf, err := logging.OpenFile(c.String("s"), c.Int("logrotate-mb"), 3)
		checkError(err)
		defer logf.Close()

		cfg := sampler.Config{
			GranularityMs:  uint64(c.Int("g")),
			RunTime:        time.Duration(c.Int("t")) * time.Second,
			CheckIntegrity: c.Bool("check"),
			Clock:          clock.NewCached(time.Millisecond),
			In:             os.Stdin,
			Log:            logf,
			Report:         os.Stderr,
		}
		if c.Bool("passthrough") {
			cfg.Out = os.Stdout
		}

		quit := make(chan struct{})
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigc
			close(quit)
		}()

		total, err := sampler.Run(cfg, quit)
		checkError(err)
		log.Println("total bytes sampled:", total)
		return nil
	}
	myApp.Run(os.Args)
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
