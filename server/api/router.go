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

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	v1 "github.com/zintix-labs/qrnglab/server/api/v1"
	"github.com/zintix-labs/qrnglab/server/netsvr"
	"github.com/zintix-labs/qrnglab/server/netsvr/middleware"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

// routes 主頁列出的端點
var routes = []string{
	"GET  /v1/ping",
	"GET  /v1/int?min=&max=&count=",
	"GET  /v1/float?min=&max=&precision=&count=",
	"GET  /v1/bits?n=",
	"POST /v1/experiment {qubits, shots, noise}",
	"GET  /v1/stat?min=&max=&samples=&workers=&seed=&format=",
	"GET  /v1/pool",
	"GET  /v1/profiles",
}

// RegisterRoutes 註冊 middleware 與所有路由，回傳持有 DevicePool 的 v1 handler（關閉時呼叫 Close）。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) (*v1.Handler, error) {
	h, err := v1.NewHandler(sCfg)
	if err != nil {
		return nil, err
	}
	registerMiddleware(svr, sCfg.Log, sCfg.RequestTimeout) // 1. 註冊 middleware
	registerIndex(svr, sCfg)                               // 2. 註冊主頁
	registerV1API(svr, h)                                  // 3. 註冊 v1 api
	return h, nil
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger, timeout time.Duration) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover)
	svr.Use(middleware.Timeout(timeout))
	svr.Use(middleware.Compression)
}

// 註冊主頁
func registerIndex(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) {
	type index struct {
		Service  string   `json:"service"`
		Backend  string   `json:"backend"`
		Strategy string   `json:"strategy"`
		Noise    string   `json:"noise"`
		Shots    int      `json:"shots"`
		Routes   []string `json:"routes"`
	}
	cfg := sCfg.Lab.Config()
	body := index{
		Service:  "qrnglab",
		Backend:  string(cfg.Backend),
		Strategy: string(cfg.Strategy),
		Noise:    cfg.Noise,
		Shots:    cfg.Shots,
		Routes:   routes,
	}
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, h *v1.Handler) {
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/ping", h.Ping)
		vOne.Get("/pool", h.Pool)
		vOne.Get("/profiles", h.Profiles)

		vOne.Get("/int", h.Int)
		vOne.Get("/float", h.Float)
		vOne.Get("/bits", h.Bits)
		vOne.Get("/stat", h.Stat)

		vOne.Post("/int", h.Int)
		vOne.Post("/float", h.Float)
		vOne.Post("/bits", h.Bits)
		vOne.Post("/stat", h.Stat)
		vOne.Post("/experiment", h.Experiment)
	})
}
