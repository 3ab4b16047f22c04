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
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/xtaci/bytesmith/internal/clock"
	"github.com/xtaci/bytesmith/internal/harness"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "generator"
	myApp.Usage = "emits random-sized wrapping-counter payloads to stdout and a replay schedule to a log file"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "sleep-ms",
			Value: 100,
			Usage: "fixed inter-write sleep, in milliseconds",
		},
		cli.StringFlag{
			Name:  "s",
			Value: "",
			Usage: "schedule log file to write (required)",
		},
		cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "PRNG seed, for reproducible runs",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		if c.String("s") == "" {
			checkError(cli.NewExitError("generator: -s logfile is required", 1))
		}

		logf, err := os.Create(c.String("s"))
		checkError(err)
		defer logf.Close()

		cfg := harness.GeneratorConfig{
			SleepMs: c.Int("sleep-ms"),
			Rand:    rand.New(rand.NewSource(c.Int64("seed"))),
			Clock:   clock.Wall{},
			Out:     os.Stdout,
			Log:     logf,
		}
		gen := harness.NewGenerator(cfg)

		quit := make(chan struct{})
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigc
			close(quit)
		}()

		for {
			select {
			case <-quit:
				return nil
			default:
			}
			if _, err := gen.Step(); err != nil {
				checkError(err)
			}
		}
	}
	myApp.Run(os.Args)
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
