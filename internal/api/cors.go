package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// The API serves internal tooling only, so CORS is a fixed permissive
// header set rather than a configuration surface.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS, PATCH"
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With, Accept, Origin"
	corsMaxAge       = "86400"
)

func setCORSHeaders(set func(name, value string)) {
	set("Access-Control-Allow-Origin", corsAllowOrigin)
	set("Access-Control-Allow-Methods", corsAllowMethods)
	set("Access-Control-Allow-Headers", corsAllowHeaders)
	set("Access-Control-Max-Age", corsMaxAge)
}

// corsMiddleware stamps CORS headers on every API response and
// short-circuits preflight requests.
func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	setCORSHeaders(ctx.SetHeader)
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// addCORSHandler answers preflight OPTIONS at the mux level, since Huma
// middleware never sees OPTIONS for unrouted paths.
func addCORSHandler(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		setCORSHeaders(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
