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

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zintix-labs/qrnglab"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/remote"
	"github.com/zintix-labs/qrnglab/server/api"
	"github.com/zintix-labs/qrnglab/server/httperr"
	"github.com/zintix-labs/qrnglab/server/netsvr"
	"github.com/zintix-labs/qrnglab/server/svrcfg"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lab, err := qrnglab.New(qrnglab.Config{Shots: 11, Seed: 20251019})
	require.NoError(t, err)
	sc := &svrcfg.SvrCfg{
		Log:        slog.New(slog.DiscardHandler),
		Lab:        lab,
		PoolSize:   2,
		MaxSamples: 5000,
	}
	require.NoError(t, sc.Vaild())

	svr := netsvr.NewChiServerDefault()
	h, err := api.RegisterRoutes(svr, sc)
	require.NoError(t, err)
	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(func() {
		ts.Close()
		h.Close()
	})
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func assertErr(t *testing.T, resp *http.Response, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	body := decodeBody[httperr.Body](t, resp)
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, kind, body.Kind)
}

type intBody struct {
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Values []int64 `json:"values"`
}

func TestPingAndIndex(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts, "/v1/ping")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(b))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	idx := decodeBody[map[string]any](t, get(t, ts, "/"))
	assert.Equal(t, "qrnglab", idx["service"])
	assert.Equal(t, "local", idx["backend"])
}

func TestInt(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts, "/v1/int?min=1&max=6&count=50")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[intBody](t, resp)
	require.Len(t, got.Values, 50)
	for _, v := range got.Values {
		assert.True(t, v >= 1 && v <= 6, "value %d out of range", v)
	}

	resp = post(t, ts, "/v1/int", `{"min":-5,"max":5,"count":10}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decodeBody[intBody](t, resp)
	require.Len(t, got.Values, 10)
	for _, v := range got.Values {
		assert.True(t, v >= -5 && v <= 5)
	}

	// count 省略為 1
	got = decodeBody[intBody](t, get(t, ts, "/v1/int?min=7&max=7"))
	assert.Equal(t, []int64{7}, got.Values)
}

func TestIntErrors(t *testing.T) {
	ts := newTestServer(t)

	assertErr(t, get(t, ts, "/v1/int?min=5&max=1"), http.StatusBadRequest, "invalid_range")
	assertErr(t, get(t, ts, "/v1/int?max=3"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/int?min=a&max=3"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/int?min=0&max=3&count=100000"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, post(t, ts, "/v1/int", `{"min":0,"max":3,"extra":1}`), http.StatusBadRequest, "invalid_argument")
	assertErr(t, post(t, ts, "/v1/int", `{"min":0`), http.StatusBadRequest, "invalid_argument")
}

func TestFloat(t *testing.T) {
	ts := newTestServer(t)

	type floatBody struct {
		Precision int       `json:"precision"`
		Values    []float64 `json:"values"`
	}
	resp := get(t, ts, "/v1/float?min=0&max=1&precision=8&count=20")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[floatBody](t, resp)
	assert.Equal(t, 8, got.Precision)
	require.Len(t, got.Values, 20)
	for _, v := range got.Values {
		assert.True(t, v >= 0 && v < 1)
		// 8 位元精度：值落在 1/256 的格點上
		assert.Equal(t, v*256, float64(int(v*256)))
	}

	got = decodeBody[floatBody](t, post(t, ts, "/v1/float", `{"min":-1,"max":1}`))
	assert.Equal(t, 32, got.Precision)
	require.Len(t, got.Values, 1)

	assertErr(t, get(t, ts, "/v1/float?min=0&max=1&precision=99"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/float?min=2&max=1"), http.StatusBadRequest, "invalid_range")
}

func TestBits(t *testing.T) {
	ts := newTestServer(t)

	type bitsBody struct {
		N    int    `json:"n"`
		Bits string `json:"bits"`
	}
	got := decodeBody[bitsBody](t, get(t, ts, "/v1/bits?n=16"))
	assert.Equal(t, 16, got.N)
	require.Len(t, got.Bits, 16)
	assert.Empty(t, strings.Trim(got.Bits, "01"))

	assertErr(t, get(t, ts, "/v1/bits"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/bits?n=100000"), http.StatusBadRequest, "invalid_argument")
}

func TestExperiment(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/v1/experiment", `{"qubits":2,"shots":100,"noise":"almaden"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[remote.ExperimentResponse](t, resp)
	assert.Equal(t, 2, got.Qubits)
	assert.Equal(t, 100, got.Counts.Total())
	for _, o := range got.Counts {
		assert.Len(t, o.Bits, 2)
	}

	assertErr(t, post(t, ts, "/v1/experiment", `{"qubits":0,"shots":10}`), http.StatusBadRequest, "invalid_argument")
	assertErr(t, post(t, ts, "/v1/experiment", `{"qubits":1,"shots":0}`), http.StatusBadRequest, "invalid_argument")
	assertErr(t, post(t, ts, "/v1/experiment", `{"qubits":1,"shots":10,"noise":"nope"}`), http.StatusBadRequest, "invalid_argument")

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, ts, "/v1/experiment").StatusCode)
}

func TestStat(t *testing.T) {
	ts := newTestServer(t)

	type statBody struct {
		Stats struct {
			Summary struct {
				Samples    int   `json:"Samples"`
				Min        int64 `json:"Min"`
				Max        int64 `json:"Max"`
				OutOfRange int   `json:"OutOfRange"`
			} `json:"Summary"`
		} `json:"stats"`
		Seed    int64 `json:"seed"`
		Workers int   `json:"workers"`
	}
	resp := get(t, ts, "/v1/stat?min=0&max=9&samples=2000&workers=2&seed=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[statBody](t, resp)
	assert.Equal(t, 2000, got.Stats.Summary.Samples)
	assert.Equal(t, int64(9), got.Stats.Summary.Max)
	assert.Zero(t, got.Stats.Summary.OutOfRange)
	assert.Equal(t, int64(3), got.Seed)
	assert.Equal(t, 2, got.Workers)

	resp = post(t, ts, "/v1/stat", `{"min":1,"max":6,"samples":600,"format":"yaml"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "summary:")

	assertErr(t, get(t, ts, "/v1/stat?min=0&max=9&samples=9999"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/stat?min=0&max=9&samples=10&format=xml"), http.StatusBadRequest, "invalid_argument")
	assertErr(t, get(t, ts, "/v1/stat?min=0&max=9&samples=10&workers=99"), http.StatusBadRequest, "invalid_argument")
}

func TestPoolAndProfiles(t *testing.T) {
	ts := newTestServer(t)
	get(t, ts, "/v1/int?min=0&max=1")

	m := decodeBody[qrnglab.DevicePoolMetrics](t, get(t, ts, "/v1/pool"))
	assert.Equal(t, 2, m.PoolSize)
	assert.Equal(t, qrnglab.BackendLocal, m.Backend)
	assert.GreaterOrEqual(t, m.Served, int64(1))
	assert.False(t, m.Closed)

	type profilesBody struct {
		Current  string `json:"current"`
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
	}
	p := decodeBody[profilesBody](t, get(t, ts, "/v1/profiles"))
	assert.Equal(t, "ideal", p.Current)
	names := make([]string, 0, len(p.Profiles))
	for _, pr := range p.Profiles {
		names = append(names, pr.Name)
	}
	assert.Contains(t, names, "ideal")
	assert.Contains(t, names, "almaden")
}

// 另一個 lab 以 remote 後端指向測試 server，走完整的 /v1/experiment 往返。
func TestRemoteBackendEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	lab, err := qrnglab.New(qrnglab.Config{
		Shots:     11,
		Backend:   qrnglab.BackendRemote,
		RemoteURL: ts.URL,
	})
	require.NoError(t, err)
	d, err := lab.NewDevice()
	require.NoError(t, err)

	ctx := context.Background()
	for range 20 {
		v, err := d.Int(ctx, 0, 100)
		require.NoError(t, err)
		assert.True(t, v >= 0 && v <= 100)
	}
	bits, err := d.Bits(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, bits, 8)

	counts, err := d.Experiment(ctx, entropy.Experiment{Qubits: 3, Shots: 50, Noise: "depolarizing"})
	require.NoError(t, err)
	assert.Equal(t, 50, counts.Total())
}
