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

// Package remote 把另一個 qrnglab 服務（或任何相容的 /v1/experiment 端點）包成 entropy.Backend。
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zintix-labs/qrnglab/entropy"
	"github.com/zintix-labs/qrnglab/errs"
)

const (
	DefaultRetries = 3
	DefaultBackoff = 200 * time.Millisecond
	DefaultTimeout = 30 * time.Second

	ExperimentPath = "/v1/experiment"
	PingPath       = "/v1/ping"
)

// ExperimentRequest POST /v1/experiment 的請求
type ExperimentRequest struct {
	Qubits int    `json:"qubits"`
	Shots  int    `json:"shots"`
	Noise  string `json:"noise,omitempty"`
}

// ExperimentResponse POST /v1/experiment 的回應；counts 依首次觀測順序排列。
type ExperimentResponse struct {
	Qubits int            `json:"qubits"`
	Shots  int            `json:"shots"`
	Noise  string         `json:"noise"`
	Counts entropy.Counts `json:"counts"`
}

// Client 遠端熵後端。resty client 可併發使用，多台 Device 可共用同一個 Client。
type Client struct {
	baseURL string
	client  *resty.Client
	retries int
	backoff time.Duration
	log     *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetries 失敗後最多重試幾次（不含第一次），<0 視為 0。
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(0, n) }
}

// WithBackoff 線性退避的單位時間：第 i 次重試前等 i*d。
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithTimeout 單次 HTTP 請求逾時
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// New 建立 Client；baseURL 必須是 http(s) 絕對位址。
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.InvalidArgument("remote url must be absolute http(s) url, got %q", baseURL)
	}
	c := &Client{
		baseURL: baseURL,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL 遠端服務位址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Run 實作 entropy.Backend。
//
// 連線錯誤與 5xx / 408 / 429 會以線性退避重試；重試用盡或遇到其他狀態碼回傳 SourceUnavailable。
// ctx 取消會立即中止，回傳包住 ctx 錯誤的 *errs.E。
func (c *Client) Run(ctx context.Context, exp entropy.Experiment) (entropy.Counts, error) {
	body, err := json.Marshal(ExperimentRequest{Qubits: exp.Qubits, Shots: exp.Shots, Noise: exp.Noise})
	if err != nil {
		return nil, errs.Wrap(err, "encode experiment")
	}

	var lastErr error
	for i := 0; i <= c.retries; i++ {
		if i > 0 {
			wait := time.Duration(i) * c.backoff
			c.log.Warn("remote.retry",
				slog.String("url", c.baseURL+ExperimentPath),
				slog.Int("try", i),
				slog.Duration("wait", wait),
				slog.Any("err", lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(ctx.Err(), "remote experiment canceled")
			case <-time.After(wait):
			}
		}

		counts, err := c.post(ctx, body)
		if err == nil {
			return counts, nil
		}
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "remote experiment canceled")
		}
		lastErr = err
		if !isRetriable(err) {
			break
		}
	}
	return nil, errs.SourceUnavailable(fmt.Sprintf("remote experiment failed: %s", c.baseURL), lastErr)
}

// statusError 非 2xx 回應
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.code, e.body)
}

func (c *Client) post(ctx context.Context, body []byte) (entropy.Counts, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(ExperimentPath)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, &statusError{code: res.StatusCode(), body: strings.TrimSpace(res.String())}
	}
	out := new(ExperimentResponse)
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return nil, errs.Wrap(err, "decode experiment response")
	}
	c.log.Debug("remote.experiment",
		slog.Int("qubits", out.Qubits),
		slog.Int("shots", out.Shots),
		slog.Int("outcomes", len(out.Counts)),
	)
	return out.Counts, nil
}

func isRetriable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusRequestTimeout || se.code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Ping 檢查遠端服務是否可用
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.client.R().SetContext(ctx).Get(PingPath)
	if err != nil {
		return errs.SourceUnavailable("remote ping failed", err)
	}
	if res.StatusCode() != http.StatusOK {
		return errs.SourceUnavailable(fmt.Sprintf("remote ping returned %d", res.StatusCode()), nil)
	}
	return nil
}
