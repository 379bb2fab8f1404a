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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/qrnglab/errs"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則（邊界層最小映射、可預期）：
//   - ctx timeout/cancel            → 504/408（請求生命週期問題）
//   - SourceUnavailable/EmptyResult → 503（熵源暫時不可用，可重試）
//   - errs.Warn（含 InvalidRange / InvalidArgument） → 400
//   - errs.Fatal                    → 500
//
// 本函數屬於 HTTP 邊界層，因此放在 server/*（而不是 core errs）。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout // 504
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout // 408
	case errors.Is(err, errs.ErrSourceUnavailable):
		return http.StatusServiceUnavailable // 503
	}

	var e *errs.E
	if errors.As(err, &e) {
		switch e.ErrLv {
		case errs.Warn:
			return http.StatusBadRequest // 400
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// Body 錯誤回應的 JSON 結構
type Body struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Errs 寫回 JSON 錯誤：{"error": "...", "kind": "invalid_range"}
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	body := Body{Error: err.Error()}
	if k := errs.KindOf(err); k != errs.KindNone {
		body.Kind = k.String()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Log 只記錄「不是呼叫端的錯」：408/409/429 記 warn，5xx 記 error，4xx 參數錯誤不記。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	status := StatusCode(err)
	if (status == 408) || (status == 409) || (status == 429) {
		log.Warn(msg, slog.Int("status", status), slog.Any("err", err))
	} else if (status >= 500) && (status < 600) {
		log.Error(msg, slog.Int("status", status), slog.Any("err", err))
	}
}

// Respond Log + Errs 的組合，handler 最常用的出口。
func Respond(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	Log(log, msg, err)
	Errs(w, err)
}
