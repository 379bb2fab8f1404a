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
	"net/http"
	"net/url"

	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
	"github.com/zintix-labs/qrnglab/server/httperr"
)

// DefaultPrecision /v1/float 未指定 precision 時使用
const DefaultPrecision = 32

// Int GET|POST /v1/int?min=&max=&count=
func (h *Handler) Int(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type intRequest struct {
		Min   *int64 `json:"min"`
		Max   *int64 `json:"max"`
		Count int    `json:"count"`
	}
	type intResponse struct {
		Min    int64   `json:"min"`
		Max    int64   `json:"max"`
		Values []int64 `json:"values"`
	}
	req := new(intRequest)
	err := decode(w, r, req, func(q url.Values) (err error) {
		if req.Min, err = queryInt64(q, "min", true); err != nil {
			return err
		}
		if req.Max, err = queryInt64(q, "max", true); err != nil {
			return err
		}
		req.Count, err = queryInt(q, "count", 1)
		return err
	})
	if err == nil {
		err = h.validCount(&req.Count)
	}
	if err == nil && (req.Min == nil || req.Max == nil) {
		err = errs.InvalidArgument("min and max are required")
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	vs, err := h.pool.Ints(r.Context(), *req.Min, *req.Max, req.Count)
	if err != nil {
		httperr.Respond(w, h.log, "v1.int", err)
		return
	}
	writeJSON(w, intResponse{Min: *req.Min, Max: *req.Max, Values: vs})
}

// Float GET|POST /v1/float?min=&max=&precision=&count=
func (h *Handler) Float(w http.ResponseWriter, r *http.Request) {
	type floatRequest struct {
		Min       *float64 `json:"min"`
		Max       *float64 `json:"max"`
		Precision int      `json:"precision"`
		Count     int      `json:"count"`
	}
	type floatResponse struct {
		Min       float64   `json:"min"`
		Max       float64   `json:"max"`
		Precision int       `json:"precision"`
		Values    []float64 `json:"values"`
	}
	req := new(floatRequest)
	err := decode(w, r, req, func(q url.Values) (err error) {
		if req.Min, err = queryFloat(q, "min"); err != nil {
			return err
		}
		if req.Max, err = queryFloat(q, "max"); err != nil {
			return err
		}
		if req.Precision, err = queryInt(q, "precision", DefaultPrecision); err != nil {
			return err
		}
		req.Count, err = queryInt(q, "count", 1)
		return err
	})
	if err == nil {
		err = h.validCount(&req.Count)
	}
	if err == nil && (req.Min == nil || req.Max == nil) {
		err = errs.InvalidArgument("min and max are required")
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Precision == 0 {
		req.Precision = DefaultPrecision
	}

	vs, err := h.pool.Floats(r.Context(), *req.Min, *req.Max, req.Precision, req.Count)
	if err != nil {
		httperr.Respond(w, h.log, "v1.float", err)
		return
	}
	writeJSON(w, floatResponse{Min: *req.Min, Max: *req.Max, Precision: req.Precision, Values: vs})
}

// Bits GET|POST /v1/bits?n=
func (h *Handler) Bits(w http.ResponseWriter, r *http.Request) {
	type bitsRequest struct {
		N int `json:"n"`
	}
	type bitsResponse struct {
		N    int    `json:"n"`
		Bits string `json:"bits"`
	}
	req := new(bitsRequest)
	err := decode(w, r, req, func(q url.Values) (err error) {
		req.N, err = queryInt(q, "n", -1)
		if err == nil && req.N < 0 {
			err = errs.InvalidArgument("n is required")
		}
		return err
	})
	if err == nil && (req.N < 0 || req.N > qrnglab.MaxBits) {
		err = errs.InvalidArgument("n must be between 0 and %d, got %d", qrnglab.MaxBits, req.N)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	bits, err := h.pool.Bits(r.Context(), req.N)
	if err != nil {
		httperr.Respond(w, h.log, "v1.bits", err)
		return
	}
	writeJSON(w, bitsResponse{N: req.N, Bits: entropy.FormatBits(bits)})
}

// validCount count 0 視為 1
func (h *Handler) validCount(n *int) error {
	if *n == 0 {
		*n = 1
	}
	return countIn("count", *n, h.maxCount)
}
