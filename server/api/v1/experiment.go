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
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/remote"
	"github.com/zintix-labs/qrnglab/server/httperr"
)

// MaxShots 單次實驗 shots 上限
const MaxShots = 1000000

// Experiment POST /v1/experiment：remote 後端使用的原始實驗協定。
//
// 請求與回應與 remote.ExperimentRequest / remote.ExperimentResponse 同一份結構，
// 因此一台 qrnglab server 可以作為另一台的熵後端。
func (h *Handler) Experiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(remote.ExperimentRequest)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.InvalidArgument("invalid json: %v", err))
		return
	}
	maxQ := h.lab.Config().MaxQubits
	if req.Qubits < 1 || req.Qubits > maxQ {
		httperr.Errs(w, errs.InvalidArgument("qubits must be between 1 and %d, got %d", maxQ, req.Qubits))
		return
	}
	if err := countIn("shots", req.Shots, MaxShots); err != nil {
		httperr.Errs(w, err)
		return
	}

	// 本地後端：未知的噪聲設定是請求錯誤，不是熵源故障
	if h.lab.Config().Backend == qrnglab.BackendLocal {
		if _, err := h.lab.Profiles().Get(req.Noise); err != nil {
			httperr.Errs(w, errs.InvalidArgument("unknown noise profile %q", req.Noise))
			return
		}
	}

	exp := entropy.Experiment{Qubits: req.Qubits, Shots: req.Shots, Noise: req.Noise}
	counts, err := h.pool.Experiment(r.Context(), exp)
	if err != nil {
		httperr.Respond(w, h.log, "v1.experiment", err)
		return
	}
	writeJSON(w, remote.ExperimentResponse{
		Qubits: req.Qubits,
		Shots:  req.Shots,
		Noise:  req.Noise,
		Counts: counts,
	})
}
