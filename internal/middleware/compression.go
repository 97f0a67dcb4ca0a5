package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// minCompressSize is the smallest declared body worth compressing.
const minCompressSize = 1024

var (
	gzipPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	}}
	brotliPool = sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, 5)
	}}
)

type resettableWriteCloser interface {
	io.WriteCloser
	Reset(io.Writer)
}

// compressWriter encodes the body once the first byte is written, so
// handlers that never write keep a bare response.
type compressWriter struct {
	http.ResponseWriter
	encoding string
	enc      resettableWriteCloser
	pool     *sync.Pool
	status   int
	started  bool
	bypass   bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.started || w.bypass {
		return
	}
	w.status = status
	if status == http.StatusNoContent || status == http.StatusNotModified || status < 200 {
		w.bypass = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *compressWriter) start(first []byte) {
	w.started = true
	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", http.DetectContentType(first))
	}
	if h.Get("Content-Encoding") != "" {
		w.bypass = true
	} else if n, err := strconv.Atoi(h.Get("Content-Length")); err == nil && n < minCompressSize {
		w.bypass = true
	}
	if !w.bypass {
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
		w.enc = w.pool.Get().(resettableWriteCloser)
		w.enc.Reset(w.ResponseWriter)
	}
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.started {
		if w.bypass {
			return w.ResponseWriter.Write(b)
		}
		w.start(b)
	}
	if w.enc == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.enc.Write(b)
}

func (w *compressWriter) Flush() {
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) close() {
	if !w.started && w.status != 0 && !w.bypass {
		w.ResponseWriter.WriteHeader(w.status)
	}
	if w.enc == nil {
		return
	}
	_ = w.enc.Close()
	w.enc.Reset(io.Discard)
	w.pool.Put(w.enc)
	w.enc = nil
}

// negotiateEncoding picks br over gzip from an Accept-Encoding header,
// honoring explicit q=0 rejections.
func negotiateEncoding(header string) string {
	accepted := map[string]bool{}
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		accepted[name] = q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	switch {
	case accepted["br"]:
		return "br"
	case accepted["gzip"]:
		return "gzip"
	}
	return ""
}

// Compress encodes responses with brotli or gzip according to the
// client's Accept-Encoding. WebSocket upgrades pass through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")

		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		if encoding == "br" {
			cw.pool = &brotliPool
		} else {
			cw.pool = &gzipPool
		}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}
