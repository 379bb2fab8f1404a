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

// Package v1 /v1 的 HTTP handlers。
//
// 取亂數（int / float / bits / experiment）一律經由 DevicePool 借用裝置；
// /stat 每次請求另建 Bench，不佔用 pool。
package v1

import (
	"log/slog"
	"net/http"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/sdk/qsim"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

type Handler struct {
	lab          *qrnglab.Lab
	pool         *qrnglab.DevicePool
	log          *slog.Logger
	maxCount     int
	maxSamples   int
	benchWorkers int
}

// NewHandler 依 SvrCfg 建立 DevicePool 與 handler；呼叫端負責在關閉時呼叫 Close。
func NewHandler(sCfg *svrcfg.SvrCfg) (*Handler, error) {
	pool, err := sCfg.Lab.NewPool(sCfg.PoolSize)
	if err != nil {
		return nil, errs.Wrap(err, "build device pool error")
	}
	return &Handler{
		lab:          sCfg.Lab,
		pool:         pool,
		log:          sCfg.Log,
		maxCount:     sCfg.MaxCount,
		maxSamples:   sCfg.MaxSamples,
		benchWorkers: sCfg.BenchWorkers,
	}, nil
}

// Close 關閉 DevicePool
func (h *Handler) Close() {
	h.pool.Close()
}

// Ping GET /v1/ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

// Pool GET /v1/pool
func (h *Handler) Pool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.pool.Metrics())
}

// Profiles GET /v1/profiles：本地模擬器可用的噪聲設定（遠端後端時僅供參考）。
func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	type profilesResponse struct {
		Backend  qrnglab.BackendKind  `json:"backend"`
		Current  string               `json:"current"`
		Profiles []*qsim.NoiseProfile `json:"profiles"`
	}
	cfg := h.lab.Config()
	cur := cfg.Noise
	if cur == "" {
		cur = qsim.IdealProfile
	}
	writeJSON(w, profilesResponse{
		Backend:  cfg.Backend,
		Current:  cur,
		Profiles: h.lab.Profiles().All(),
	})
}
