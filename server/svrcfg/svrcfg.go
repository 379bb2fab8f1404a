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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/server/logger"
)

const (
	MaxPoolSize        = 64
	DefaultMaxCount    = 10000
	DefaultMaxSamples  = 1000000
	DefaultReqTimeout  = 30 * time.Second
	DefaultBenchWorker = 4
)

// SvrCfg server 組裝所需的全部依賴與限制。
type SvrCfg struct {
	Log            *slog.Logger
	Lab            *qrnglab.Lab
	Addr           string        // 監聽位址，空字串使用 netsvr 預設
	PoolSize       int           // DevicePool 裝置數 1..MaxPoolSize
	RequestTimeout time.Duration // 每個請求的 ctx 期限
	MaxCount       int           // /v1/int、/v1/float 單次 count 上限；/v1/bits 的 n 上限為 qrnglab.MaxBits
	MaxSamples     int           // /v1/stat 單次取樣上限
	BenchWorkers   int           // /v1/stat 的平行裝置數上限
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}

	// 1 <= PoolSize <= MaxPoolSize，for 資源管理
	sc.PoolSize = max(1, sc.PoolSize)
	sc.PoolSize = min(MaxPoolSize, sc.PoolSize)
	if sc.RequestTimeout <= 0 {
		sc.RequestTimeout = DefaultReqTimeout
	}
	if sc.MaxCount <= 0 {
		sc.MaxCount = DefaultMaxCount
	}
	if sc.MaxSamples <= 0 {
		sc.MaxSamples = DefaultMaxSamples
	}
	if sc.BenchWorkers <= 0 {
		sc.BenchWorkers = DefaultBenchWorker
	}
	if sc.Lab == nil {
		return errs.NewFatal("qrnglab is required")
	}
	return nil
}
