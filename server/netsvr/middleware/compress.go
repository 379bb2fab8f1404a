package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	// 204 No Content, 304 Not Modified, 1xx Informational
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// CompressConfig
//
// MinSize 以下的回應原樣送出：/v1/int、/v1/bits 的單值回應只有幾十位元組，壓縮後反而更大。
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
	MinSize   int
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
	MinSize:   512,
}

// encoder gzip.Writer 與 zstd.Encoder 的共同行為
type encoder interface {
	io.Writer
	Flush() error
	Close() error
	Reset(w io.Writer)
}

// --- Pools ---
var (
	gzipPool sync.Pool
	zstdPool sync.Pool
)

func getEncoder(name string, w io.Writer) encoder {
	switch name {
	case "zstd":
		if v := zstdPool.Get(); v != nil {
			zw := v.(*zstd.Encoder)
			zw.Reset(w)
			return zw
		}
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(DefaultCompressConfig.ZstdLevel),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			panic(err)
		}
		return zw
	default:
		if v := gzipPool.Get(); v != nil {
			gw := v.(*gzip.Writer)
			gw.Reset(w)
			return gw
		}
		gw, _ := gzip.NewWriterLevel(w, DefaultCompressConfig.GzipLevel)
		return gw
	}
}

func releaseEncoder(enc encoder) {
	_ = enc.Close()
	enc.Reset(io.Discard)
	switch e := enc.(type) {
	case *zstd.Encoder:
		zstdPool.Put(e)
	case *gzip.Writer:
		gzipPool.Put(e)
	}
}

// negotiate 依 Accept-Encoding 挑編碼：zstd 優先，其次 gzip；q=0 視為拒絕。
func negotiate(accept string) string {
	var gz, zs bool
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "zstd":
			zs = true
		case "gzip", "x-gzip":
			gz = true
		}
	}
	switch {
	case zs:
		return "zstd"
	case gz:
		return "gzip"
	default:
		return ""
	}
}

// --- ResponseWriter Wrapper ---

// compressResponseWriter 先暫存到 MinSize 才決定要不要壓縮；status 也一併延後送出。
type compressResponseWriter struct {
	http.ResponseWriter
	encoding string
	minSize  int
	buf      []byte
	status   int
	decided  bool
	enc      encoder // nil 表示原樣輸出
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	if cw.decided || cw.status != 0 {
		return
	}
	cw.status = code
	if isNoBodyStatus(code) {
		cw.start(false)
	}
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		cw.buf = append(cw.buf, b...)
		if len(cw.buf) < cw.minSize {
			return len(b), nil
		}
		if err := cw.start(true); err != nil {
			return 0, err
		}
		return len(b), nil
	}
	if cw.enc == nil {
		return cw.ResponseWriter.Write(b)
	}
	return cw.enc.Write(b)
}

// start 決定輸出方式，送出 header 與暫存內容
func (cw *compressResponseWriter) start(compress bool) error {
	cw.decided = true
	h := cw.Header()
	if h.Get("Content-Type") == "" && len(cw.buf) > 0 {
		h.Set("Content-Type", http.DetectContentType(cw.buf))
	}
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	if compress && !isNoBodyStatus(cw.status) && h.Get("Content-Encoding") == "" {
		h.Del("Content-Length")
		h.Set("Content-Encoding", cw.encoding)
		cw.enc = getEncoder(cw.encoding, cw.ResponseWriter)
	}
	cw.ResponseWriter.WriteHeader(cw.status)

	buf := cw.buf
	cw.buf = nil
	if len(buf) == 0 {
		return nil
	}
	var err error
	if cw.enc != nil {
		_, err = cw.enc.Write(buf)
	} else {
		_, err = cw.ResponseWriter.Write(buf)
	}
	return err
}

// finish handler 結束後呼叫：未達門檻的回應原樣送出，壓縮器收尾並歸還
func (cw *compressResponseWriter) finish() {
	if !cw.decided {
		if cw.status == 0 && len(cw.buf) == 0 {
			// handler 什麼都沒寫：交給 net/http 的預設 200
			return
		}
		_ = cw.start(false)
	}
	if cw.enc != nil {
		releaseEncoder(cw.enc)
		cw.enc = nil
	}
}

func (cw *compressResponseWriter) Flush() {
	if !cw.decided {
		_ = cw.start(len(cw.buf) >= cw.minSize)
	}
	if cw.enc != nil {
		_ = cw.enc.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

// --- Middleware 入口 ---

func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// [Guard 1] WebSocket / Head
		if r.Method == http.MethodHead || isWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		// [Guard 2] 避免二次壓縮
		if w.Header().Get("Content-Encoding") != "" {
			next.ServeHTTP(w, r)
			return
		}

		encoding := negotiate(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")

		cw := &compressResponseWriter{
			ResponseWriter: w,
			encoding:       encoding,
			minSize:        max(1, DefaultCompressConfig.MinSize),
		}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}
