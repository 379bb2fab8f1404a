package v1

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zintix-labs/qrnglab/errs"
)

const maxBodyBytes = 1 << 20 // 1MB

// decode GET 走 query（fromQuery 負責填值），POST 走 JSON body。
func decode(w http.ResponseWriter, r *http.Request, dst any, fromQuery func(url.Values) error) error {
	switch r.Method {
	case http.MethodGet:
		return fromQuery(r.URL.Query())
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return errs.InvalidArgument("invalid json: %v", err)
		}
		return nil
	default:
		return errs.InvalidArgument("method %s not allowed", r.Method)
	}
}

func queryInt64(q url.Values, key string, required bool) (*int64, error) {
	s := q.Get(key)
	if s == "" {
		if required {
			return nil, errs.InvalidArgument("%s is required", key)
		}
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errs.InvalidArgument("%s must be int64", key)
	}
	return &v, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.InvalidArgument("%s must be integer", key)
	}
	return v, nil
}

func queryFloat(q url.Values, key string) (*float64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, errs.InvalidArgument("%s is required", key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errs.InvalidArgument("%s must be number", key)
	}
	return &v, nil
}

// countIn 檢查 count 在 [1, limit]
func countIn(key string, n, limit int) error {
	if n < 1 || n > limit {
		return errs.InvalidArgument("%s must be between 1 and %d, got %d", key, limit, n)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
