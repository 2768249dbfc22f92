package server

import (
	"net/http"

	"github.com/rathix/todo-devserver/internal/config"
)

const corsAllowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

// Headers adds the binding's fixed response headers and, when CORS is
// allowed, answers preflight requests itself. Headers already set by the
// wrapped handler (for example by a proxied backend) are kept.
func Headers(binding config.ServerBinding) func(http.Handler) http.Handler {
	fixed := make(map[string]string, len(binding.Headers)+1)
	for k, v := range binding.Headers {
		fixed[http.CanonicalHeaderKey(k)] = v
	}
	if binding.AllowCORS {
		if _, ok := fixed["Access-Control-Allow-Origin"]; !ok {
			fixed["Access-Control-Allow-Origin"] = "*"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if binding.AllowCORS && isPreflight(r) {
				h := w.Header()
				for k, v := range fixed {
					h.Set(k, v)
				}
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
					h.Set("Access-Control-Allow-Headers", requested)
					h.Add("Vary", "Access-Control-Request-Headers")
				}
				h.Set("Content-Length", "0")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			hw := &headerWriter{ResponseWriter: w, fixed: fixed}
			next.ServeHTTP(hw, r)
			if !hw.wroteHeader {
				// net/http sends the implicit 200 after the handler returns.
				hw.fill()
			}
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// headerWriter fills in fixed headers right before the status line goes out.
type headerWriter struct {
	http.ResponseWriter
	fixed       map[string]string
	wroteHeader bool
}

func (hw *headerWriter) WriteHeader(code int) {
	if !hw.wroteHeader {
		hw.wroteHeader = true
		hw.fill()
	}
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *headerWriter) fill() {
	h := hw.ResponseWriter.Header()
	for k, v := range hw.fixed {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
}

func (hw *headerWriter) Write(b []byte) (int, error) {
	if !hw.wroteHeader {
		hw.WriteHeader(http.StatusOK)
	}
	return hw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach Flush and Hijack.
func (hw *headerWriter) Unwrap() http.ResponseWriter {
	return hw.ResponseWriter
}
