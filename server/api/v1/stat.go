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

package v1

import (
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/server/httperr"
	"github.com/zintix-labs/qrnglab/stats"
)

// Stat GET|POST /v1/stat?min=&max=&samples=&workers=&seed=&format=json|yaml
//
// 以一台（或 workers 台）新建的裝置取 samples 個整數並回傳統計報表，不經過 DevicePool。
// 指定 seed 且 workers=1 時（本地後端）結果可重現。
func (h *Handler) Stat(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type statRequest struct {
		Min     *int64 `json:"min"`
		Max     *int64 `json:"max"`
		Samples int    `json:"samples"`
		Workers int    `json:"workers"`
		Seed    *int64 `json:"seed,omitempty"`
		Format  string `json:"format"`
	}
	type statResponse struct {
		Stats    *stats.Report `json:"stats"`
		Seed     int64         `json:"seed"`
		Workers  int           `json:"workers"`
		UsedTime int64         `json:"used_ms"`
	}
	// ---
	req := new(statRequest)
	err := decode(w, r, req, func(q url.Values) (err error) {
		if req.Min, err = queryInt64(q, "min", true); err != nil {
			return err
		}
		if req.Max, err = queryInt64(q, "max", true); err != nil {
			return err
		}
		if req.Samples, err = queryInt(q, "samples", 0); err != nil {
			return err
		}
		if req.Workers, err = queryInt(q, "workers", 1); err != nil {
			return err
		}
		if req.Seed, err = queryInt64(q, "seed", false); err != nil {
			return err
		}
		req.Format = q.Get("format")
		return nil
	})
	// 業務檢驗
	if err == nil && (req.Min == nil || req.Max == nil) {
		err = errs.InvalidArgument("min and max are required")
	}
	if err == nil {
		err = countIn("samples", req.Samples, h.maxSamples)
	}
	if err == nil {
		if req.Workers == 0 {
			req.Workers = 1
		}
		err = countIn("workers", req.Workers, h.benchWorkers)
	}
	var render stats.ReportRender
	if err == nil {
		format := strings.ToLower(strings.TrimSpace(req.Format))
		if format == "" {
			format = "json"
		}
		req.Format = format
		render, err = stats.RenderByName(format)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Seed == nil {
		rnd, rerr := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if rerr != nil {
			httperr.Errs(w, errs.NewFatal("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}

	bench, err := h.lab.NewBenchWithSeed(*req.Seed)
	if err != nil {
		// 這裡的錯誤來自 lab 尊重錯誤分級
		httperr.Respond(w, h.log, "v1.stat build bench", err)
		return
	}
	st, used, err := bench.RunMP(r.Context(), *req.Min, *req.Max, req.Samples, req.Workers, false)
	if err != nil {
		httperr.Respond(w, h.log, "v1.stat", err)
		return
	}

	if req.Format == "json" {
		writeJSON(w, statResponse{
			Stats:    st,
			Seed:     *req.Seed,
			Workers:  req.Workers,
			UsedTime: used.Milliseconds(),
		})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if err := st.WriteWith(w, render); err != nil {
		h.log.Error("v1.stat render", "err", err)
	}
}
