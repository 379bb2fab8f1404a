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
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/sdk/perf"
	"github.com/zintix-labs/qrnglab/sdk/qsim"
	"github.com/zintix-labs/qrnglab/sdk/qsim/profiles"
	"github.com/zintix-labs/qrnglab/server/logger"
	"github.com/zintix-labs/qrnglab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// buildLab 依全域旗標組裝 Lab
func buildLab(cmd *cli.Command) (*qrnglab.Lab, error) {
	mode, err := logger.ParseLogMode(cmd.String("log-mode"))
	if err != nil {
		return nil, err
	}
	log := logger.NewWriterLogger(os.Stderr, mode)

	src := []fs.FS{profiles.FS}
	if dir := cmd.String("profiles"); dir != "" {
		src = append(src, os.DirFS(dir))
	}
	ps, err := qsim.NewProfileSet(src...)
	if err != nil {
		return nil, err
	}

	cfg := qrnglab.Config{
		Shots:    cmd.Int("shots"),
		Noise:    cmd.String("noise"),
		Strategy: entropy.Strategy(cmd.String("strategy")),
		PerBit:   cmd.Bool("per-bit"),
		PRNG:     cmd.String("prng"),
		Seed:     cmd.Int64("seed"),
	}
	if u := cmd.String("remote"); u != "" {
		cfg.Backend = qrnglab.BackendRemote
		cfg.RemoteURL = u
	}
	return qrnglab.New(cfg, qrnglab.UseProfiles(ps), qrnglab.UseLogger(log))
}

func buildDevice(cmd *cli.Command) (*qrnglab.Device, error) {
	lab, err := buildLab(cmd)
	if err != nil {
		return nil, err
	}
	return lab.NewDevice()
}

func intAction(ctx context.Context, cmd *cli.Command) error {
	d, err := buildDevice(cmd)
	if err != nil {
		return err
	}
	vs, err := d.Ints(ctx, cmd.Int64("min"), cmd.Int64("max"), cmd.Int("count"))
	if err != nil {
		return err
	}
	for _, v := range vs {
		fmt.Println(v)
	}
	return nil
}

func floatAction(ctx context.Context, cmd *cli.Command) error {
	d, err := buildDevice(cmd)
	if err != nil {
		return err
	}
	vs, err := d.Floats(ctx, cmd.Float64("min"), cmd.Float64("max"), cmd.Int("precision"), cmd.Int("count"))
	if err != nil {
		return err
	}
	for _, v := range vs {
		fmt.Println(v)
	}
	return nil
}

func bitsAction(ctx context.Context, cmd *cli.Command) error {
	d, err := buildDevice(cmd)
	if err != nil {
		return err
	}
	bits, err := d.Bits(ctx, cmd.Int("count"))
	if err != nil {
		return err
	}
	fmt.Println(entropy.FormatBits(bits))
	return nil
}

func benchAction(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	var render stats.ReportRender
	if format != "table" {
		r, err := stats.RenderByName(format)
		if err != nil {
			return err
		}
		render = r
	}
	lab, err := buildLab(cmd)
	if err != nil {
		return err
	}
	b, err := lab.NewBench()
	if err != nil {
		return err
	}
	min, max := cmd.Int64("min"), cmd.Int64("max")
	samples, workers := cmd.Int("samples"), cmd.Int("workers")

	var runErr error
	path, err := perf.RunPProf(func() {
		if render != nil {
			st, _, err := b.RunMP(ctx, min, max, samples, workers, false)
			if err != nil {
				runErr = err
				return
			}
			runErr = st.WriteWith(os.Stdout, render)
			return
		}
		green := "\033[1;32m"
		reset := "\033[0m"
		p := message.NewPrinter(language.English)
		p.Printf("%s[SOURCE:%s] [RANGE:%d..%d] [WORKERS:%d] [SAMPLES:%d] [SEED:%d]%s\n",
			green, lab.Config().Backend, min, max, workers, samples, b.Seed(), reset)
		st, used, err := b.RunMP(ctx, min, max, samples, workers, true)
		if err != nil {
			runErr = err
			return
		}
		st.StdOut(os.Stdout, used)
	}, cmd.String("pprof"))
	if err != nil {
		return err
	}
	if path != "" {
		fmt.Fprintln(os.Stderr, "pprof written to", path)
	}
	return runErr
}

func profilesAction(ctx context.Context, cmd *cli.Command) error {
	lab, err := buildLab(cmd)
	if err != nil {
		return err
	}
	cur := lab.Config().Noise
	if cur == "" {
		cur = qsim.IdealProfile
	}
	for _, p := range lab.Profiles().All() {
		mark := " "
		if p.Name == cur {
			mark = "*"
		}
		fmt.Printf("%s %-14s %2d qubits  %s\n", mark, p.Name, p.NumQubits, p.Description)
	}
	return nil
}
