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
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/sdk/qsim"
	"github.com/zintix-labs/qrnglab/sdk/qsim/profiles"
	"github.com/zintix-labs/qrnglab/server"
	"github.com/zintix-labs/qrnglab/server/logger"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

// 環境變數（QRNG_*）為基礎設定，命令列旗標覆蓋之。
//
//	QRNG_NOISE=almaden QRNG_POOL_SIZE=8 go run ./cmd/svr -log-mode ModeProd
func main() {
	sCfg, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = server.Run(sCfg)
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*svrcfg.SvrCfg, func(), error) {
	ec, err := svrcfg.LoadEnv()
	if err != nil {
		return nil, nil, err
	}

	flag.StringVar(&ec.LogMode, "log-mode", ec.LogMode, "log mode: ModeDev|ModeProd|ModeSilence")
	flag.IntVar(&ec.PoolSize, "buf", ec.PoolSize, "number of devices in the pool")
	flag.StringVar(&ec.Addr, "addr", ec.Addr, "listen address")
	flag.StringVar(&ec.Noise, "noise", ec.Noise, "noise profile of the local backend")
	flag.StringVar(&ec.ProfilesDir, "profiles", ec.ProfilesDir, "extra directory of noise profile *.yaml files")
	flag.Parse()

	mode, err := ec.Mode()
	if err != nil {
		return nil, nil, err
	}
	log, ah := logger.NewAsync(4096, mode)

	src := []fs.FS{profiles.FS}
	if ec.ProfilesDir != "" {
		src = append(src, os.DirFS(ec.ProfilesDir))
	}
	ps, err := qsim.NewProfileSet(src...)
	if err != nil {
		ah.Close()
		return nil, nil, err
	}
	lab, err := qrnglab.New(ec.LabConfig(), qrnglab.UseProfiles(ps), qrnglab.UseLogger(log))
	if err != nil {
		ah.Close()
		return nil, nil, err
	}

	sCfg := &svrcfg.SvrCfg{Log: log, Lab: lab}
	ec.Apply(sCfg)
	return sCfg, ah.Close, nil
}
