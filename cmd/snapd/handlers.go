package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketsnap/internal/provider"
	"marketsnap/internal/service"
)

type handlers struct {
	svc       *service.Service
	benchmark string
	log       zerolog.Logger
}

func (h *handlers) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("GET /api/snapshot/{symbol}", h.handleSnapshot)
	mux.HandleFunc("GET /api/snapshot/{symbol}/relative", h.handleRelative)
	mux.HandleFunc("GET /api/history/{symbol}", h.handleHistory)
	mux.HandleFunc("DELETE /api/history/{symbol}", h.handleClear)
	return mux
}

func (h *handlers) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		http.Error(w, `{"error":"missing symbol"}`, http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	snap, err := h.svc.Capture(ctx, symbol)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}
	writeJSON(w, snap)
}

func (h *handlers) handleRelative(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		http.Error(w, `{"error":"missing symbol"}`, http.StatusBadRequest)
		return
	}
	benchmark := strings.ToUpper(r.URL.Query().Get("benchmark"))
	if benchmark == "" {
		benchmark = h.benchmark
	}
	if benchmark == "" || benchmark == symbol {
		http.Error(w, `{"error":"no benchmark symbol"}`, http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	rel, err := h.svc.CaptureRelative(ctx, symbol, benchmark)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}
	writeJSON(w, rel)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	writeJSON(w, h.svc.History(symbol))
}

func (h *handlers) handleClear(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if err := h.svc.Clear(symbol); err != nil {
		h.writeError(w, symbol, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps the provider error taxonomy onto HTTP statuses: upstream
// throttling and missing data are gateway problems, not ours.
func (h *handlers) writeError(w http.ResponseWriter, symbol string, err error) {
	status := http.StatusInternalServerError
	if kind, ok := provider.KindOf(err); ok {
		switch kind {
		case provider.KindRateLimited:
			status = http.StatusServiceUnavailable
		case provider.KindNoData, provider.KindInsufficientData:
			status = http.StatusBadGateway
		}
	}
	h.log.Warn().Err(err).Str("symbol", symbol).Int("status", status).Msg("request failed")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser dashboards; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
