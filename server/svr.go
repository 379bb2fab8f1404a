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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/server/api"
	"github.com/zintix-labs/qrnglab/server/app"
	"github.com/zintix-labs/qrnglab/server/netsvr"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

// Run 是 server 套件的「組裝器（assembler）」與「啟動入口（runtime entry）」。
//
// 它負責：
//  1. 驗證輸入的 SvrCfg（包含必要依賴，例如 logger 與 Lab）。
//  2. 建立 HTTP server（netsvr.ChiAdapter，監聽 SvrCfg.Addr）。
//  3. 註冊路由與 middleware（api.RegisterRoutes），並建立 DevicePool。
//  4. 啟動 app.Run()，收到 SIGINT/SIGTERM 後先關 HTTP 再關 pool。
func Run(sCfg *svrcfg.SvrCfg) error {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的logger不可用
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr, netsvr.Timeouts{}))
}

// RunWithSvr 與 Run() 相同，但允許呼叫端注入自訂的 NetSvr（自訂 listener、timeout 或既有框架的 adapter）。
//
// svr 必須非 nil；若是 ChiAdapter 會要求 Ready() 為 true。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	return RunContext(context.Background(), sCfg, svr)
}

// RunContext 與 RunWithSvr 相同；ctx 為 Background 時等待 OS 信號，否則 ctx 結束即關閉（測試用）。
func RunContext(ctx context.Context, sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if svr == nil {
		err := errs.NewFatal("svr is required")
		sCfg.Log.Error(err.Error())
		return err
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		err := errs.NewFatal("default server is not ready")
		sCfg.Log.Error(err.Error())
		return err
	}

	// 註冊 Api
	h, err := api.RegisterRoutes(svr, sCfg)
	if err != nil {
		sCfg.Log.Error("register routes failed", slog.Any("err", err))
		return err
	}

	// 運行：pool 先註冊，關閉時反序 => HTTP 先停止收請求，pool 後關
	a := app.NewWith(app.OnShutdown(h.Close), svr)
	cfg := sCfg.Lab.Config()
	addr := sCfg.Addr
	if s, ok := svr.(*netsvr.ChiAdapter); ok {
		addr = s.Address()
	}
	sCfg.Log.Info("[qrnglab] listening",
		slog.String("addr", addr),
		slog.String("backend", string(cfg.Backend)),
		slog.String("strategy", string(cfg.Strategy)),
		slog.String("noise", cfg.Noise),
		slog.Int("pool", sCfg.PoolSize),
	)
	if ctx == context.Background() {
		err = a.Run()
	} else {
		err = a.RunContext(ctx)
	}
	if err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
	}
	return err
}
