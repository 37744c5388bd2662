package security

import (
	"net/http"
	"strconv"
	"time"
)

// HeadersConfig lists the response headers set on every page.
type HeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	// HSTSMaxAge is sent only on TLS connections; zero disables it.
	HSTSMaxAge time.Duration
}

// DefaultHeadersConfig allows the page's own assets plus Chart.js from jsDelivr.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self' https://cdn.jsdelivr.net; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"form-action 'self'",
		FrameOptions:   "DENY",
		ReferrerPolicy: "same-origin",
		HSTSMaxAge:     365 * 24 * time.Hour,
	}
}

type HeadersMiddleware struct {
	fixed http.Header
	hsts  string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	fixed := http.Header{}
	fixed.Set("X-Content-Type-Options", "nosniff")
	for name, value := range map[string]string{
		"Content-Security-Policy": config.ContentSecurityPolicy,
		"X-Frame-Options":         config.FrameOptions,
		"Referrer-Policy":         config.ReferrerPolicy,
	} {
		if value != "" {
			fixed.Set(name, value)
		}
	}

	m := &HeadersMiddleware{fixed: fixed}
	if config.HSTSMaxAge > 0 {
		m.hsts = "max-age=" + strconv.Itoa(int(config.HSTSMaxAge.Seconds()))
	}
	return m
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for name, values := range h.fixed {
			dst[name] = append([]string(nil), values...)
		}
		if r.TLS != nil && h.hsts != "" {
			dst.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge.
func StaticAssetMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	cacheControl := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", cacheControl)
			}
			next.ServeHTTP(w, r)
		})
	}
}
