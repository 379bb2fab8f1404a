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

// Package errs 定義 qrnglab 共用的錯誤型別。
//
// 每個錯誤同時帶有兩個維度：
//   - ErrLv：嚴重度（Fatal / Warn / Log），給最上層決定要中止、回 4xx 還是只記錄。
//   - Kind：錯誤種類（SourceUnavailable / InvalidRange / ...），給呼叫端用 errors.Is 分流。
package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Kind 錯誤種類。KindNone 代表未分類（一般包裝錯誤）。
type Kind uint8

const (
	KindNone Kind = iota
	// KindSourceUnavailable 熵源無法連線、回傳無資料或明顯故障。
	KindSourceUnavailable
	// KindInvalidRange max < min 或邊界非有限值。
	KindInvalidRange
	// KindEmptyResult 實驗回傳 0 筆計數；在 errors.Is 下同時視為 KindSourceUnavailable。
	KindEmptyResult
	// KindInvalidArgument 其他參數錯誤（精度、位元數、shots...）。
	KindInvalidArgument
)

var kindMap = map[Kind]string{
	KindNone:              "",
	KindSourceUnavailable: "source_unavailable",
	KindInvalidRange:      "invalid_range",
	KindEmptyResult:       "empty_result",
	KindInvalidArgument:   "invalid_argument",
}

func (k Kind) String() string {
	return kindMap[k]
}

// 哨兵錯誤，只用於 errors.Is 比對種類，不要直接回傳。
var (
	ErrSourceUnavailable = &E{Kind: KindSourceUnavailable}
	ErrInvalidRange      = &E{Kind: KindInvalidRange}
	ErrEmptyResult       = &E{Kind: KindEmptyResult}
	ErrInvalidArgument   = &E{Kind: KindInvalidArgument}
)

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端可追加的額外上下文；
// Cause 可串接下層錯誤（wrap）；ErrLv 為嚴重度；Kind 為錯誤種類。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
	Kind    Kind
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s", ErrLv(e.ErrLv))
	if e.Kind != KindNone {
		base += " kind=" + e.Kind.String()
	}
	base += " " + e.Message
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Is 以 Kind 比對哨兵錯誤。
//
// EmptyResult 是 SourceUnavailable 的特例，因此
// errors.Is(emptyErr, ErrSourceUnavailable) 為 true，反之不成立。
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok || t.Kind == KindNone {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindEmptyResult && t.Kind == KindSourceUnavailable
}

// New 依嚴重度與訊息建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// ---------------------------------------------------------------
// 種類建構子
// ---------------------------------------------------------------

// SourceUnavailable 建立 Fatal 等級的熵源錯誤，cause 可為 nil。
func SourceUnavailable(msg string, cause error) *E {
	return &E{Message: msg, Cause: cause, ErrLv: Fatal, Kind: KindSourceUnavailable}
}

// EmptyResult 建立「實驗回傳 0 筆計數」錯誤。
func EmptyResult(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal, Kind: KindEmptyResult}
}

// InvalidRange 建立 Warn 等級的範圍錯誤（屬於呼叫端參數問題）。
func InvalidRange(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: KindInvalidRange}
}

// InvalidArgument 建立 Warn 等級的參數錯誤。
func InvalidArgument(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: KindInvalidArgument}
}

// Wrap 使用給定訊息包裝底層錯誤，建立一個 *E。
//
// ErrLevel / Kind 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv 與 Kind（保持原本嚴重度與分類）。
//   - 若 cause 不是本包定義的 *E（多半是標準庫或三方依賴錯誤），則 ErrLv 一律視為 Fatal。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	kind := KindNone
	if errors.As(cause, &e) {
		errLv = e.ErrLv
		kind = e.Kind
	}
	r := New(errLv, msg)
	r.Kind = kind
	r.Cause = cause
	return r
}

// WrapWithExtra 與 Wrap 相同，額外附加上下文。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// KindOf 回傳錯誤鏈上第一個 *E 的 Kind；非本包錯誤回傳 KindNone。
func KindOf(err error) Kind {
	if e, ok := AsErr(err); ok {
		return e.Kind
	}
	return KindNone
}
