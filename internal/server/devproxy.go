package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rathix/todo-devserver/internal/config"
	"github.com/rathix/todo-devserver/internal/metrics"
)

type proxyStartKey struct{}

// APIProxy forwards requests to one upstream target over its own transport.
type APIProxy struct {
	handler   http.Handler
	transport *http.Transport
}

// ServeHTTP implements http.Handler.
func (p *APIProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// CloseIdleConnections closes idle upstream connections. Requests in flight
// are not affected.
func (p *APIProxy) CloseIdleConnections() {
	if p.transport != nil {
		p.transport.CloseIdleConnections()
	}
}

// NewAPIProxy returns a proxy forwarding requests to rule.Target. The
// request path is kept as is, so /api/todos is sent to <target>/api/todos.
//
// An unusable target does not fail construction: every request is answered
// with 502 Bad Gateway and the error is logged.
func NewAPIProxy(rule config.ProxyRule, logger *slog.Logger) *APIProxy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	target, err := parseTarget(rule.Target)
	if err != nil {
		logger.Warn("Proxy target is invalid, API requests will fail", "target", rule.Target, "error", err)
		return &APIProxy{handler: invalidTargetHandler(rule.Target, err, logger)}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !rule.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if !rule.ChangeOrigin {
				pr.Out.Host = pr.In.Host
			}
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			if start, ok := resp.Request.Context().Value(proxyStartKey{}).(time.Time); ok {
				metrics.ObserveProxyResponse(resp.StatusCode, time.Since(start))
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				metrics.ProxyErrorsTotal.WithLabelValues("client_canceled").Inc()
				logger.Debug("Proxy request canceled by client", "path", r.URL.Path)
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			metrics.ProxyErrorsTotal.WithLabelValues("upstream").Inc()
			logger.Warn("Proxy request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"target", target.String(),
				"error", err,
			)
			http.Error(w, fmt.Sprintf("proxy error: %s is unreachable", target.Redacted()), http.StatusBadGateway)
		},
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &APIProxy{
		handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), proxyStartKey{}, time.Now())
			proxy.ServeHTTP(w, r.WithContext(ctx))
		}),
		transport: transport,
	}
}

// parseTarget accepts absolute http and https URLs only.
func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q: want http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func invalidTargetHandler(raw string, cause error, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ProxyErrorsTotal.WithLabelValues("invalid_target").Inc()
		logger.Error("Proxy request failed", "path", r.URL.Path, "target", raw, "error", cause)
		http.Error(w, fmt.Sprintf("proxy error: invalid target %q: %v", raw, cause), http.StatusBadGateway)
	})
}
