// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/zintix-labs/qrnglab"
)

// qrng 命令列：
//
//	qrng int --min 1 --max 6 -n 10
//	qrng float --min 0 --max 1 --precision 16
//	qrng bits -n 64
//	qrng --noise almaden bench --min 0 --max 9 --samples 1000000 --workers 8
//	qrng --remote http://localhost:5808 int --max 100
func main() {
	cmd := &cli.Command{
		Name:                   "qrng",
		Usage:                  "Quantum-sourced random numbers from a simulated (or remote) quantum backend",
		UseShortOptionHandling: true,
		Flags:                  globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "int",
				Usage: "Uniform integers in [min, max]",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "min", Value: 0, Usage: "inclusive lower bound"},
					&cli.Int64Flag{Name: "max", Value: 1, Usage: "inclusive upper bound"},
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "how many values"},
				},
				Action: intAction,
			},
			{
				Name:  "float",
				Usage: "Floats in [min, max) with a binary fraction of precision bits",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "min", Value: 0, Usage: "lower bound"},
					&cli.Float64Flag{Name: "max", Value: 1, Usage: "upper bound"},
					&cli.IntFlag{Name: "precision", Value: 32, Usage: fmt.Sprintf("fraction bits 1..%d", qrnglab.MaxFloatPrecision)},
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "how many values"},
				},
				Action: floatAction,
			},
			{
				Name:  "bits",
				Usage: "Raw entropy bits",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 32, Usage: "number of bits"},
				},
				Action: bitsAction,
			},
			{
				Name:  "bench",
				Usage: "Sample a range in parallel and report uniformity statistics",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "min", Value: 0, Usage: "inclusive lower bound"},
					&cli.Int64Flag{Name: "max", Value: 9, Usage: "inclusive upper bound"},
					&cli.IntFlag{Name: "samples", Aliases: []string{"s"}, Value: 100000, Usage: "number of samples"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 1, Usage: "parallel devices"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "table|json|yaml"},
					&cli.StringFlag{Name: "pprof", Aliases: []string{"p"}, Usage: "pprof: cpu, heap, allocs, mutex"},
				},
				Action: benchAction,
			},
			{
				Name:   "profiles",
				Usage:  "List noise profiles of the local backend",
				Action: profilesAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "shots", Usage: "shots per experiment (odd keeps majority votes tie-free)"},
		&cli.StringFlag{Name: "noise", Usage: "noise profile name, see: qrng profiles"},
		&cli.StringFlag{Name: "strategy", Usage: "majority|joint"},
		&cli.BoolFlag{Name: "per-bit", Usage: "one experiment per bit instead of one per batch"},
		&cli.StringFlag{Name: "prng", Usage: "simulator prng: pcg64|pcg32"},
		&cli.Int64Flag{Name: "seed", Usage: "simulator seed, 0 = random"},
		&cli.StringFlag{Name: "remote", Usage: "base url of a qrnglab server; uses its /v1/experiment as backend"},
		&cli.StringFlag{Name: "profiles", Usage: "extra directory of noise profile *.yaml files"},
		&cli.StringFlag{Name: "log-mode", Value: "silence", Usage: "log mode: dev|prod|silence"},
	}
}
