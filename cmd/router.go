package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/nutrition-proxy/config"
	"github.com/angeloszaimis/nutrition-proxy/internal/handler"
	"github.com/angeloszaimis/nutrition-proxy/internal/httpserver"
)

type route struct {
	method string
	path   string
	handle http.HandlerFunc
}

func setupRouter(h *handler.NutritionHandler, server config.ServerConfig, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	routes := []route{
		{http.MethodPost, "/api/get-macros", h.GetMacros},
		{http.MethodPost, "/api/analyze-image", h.AnalyzeImage},
		{http.MethodGet, "/api/test-env", h.TestEnv},
		{http.MethodGet, "/health", h.Health},
	}

	allowed := make(map[string]string, len(routes))
	for _, rt := range routes {
		mux.HandleFunc(rt.method+" "+rt.path, rt.handle)

		allowed[rt.path] = rt.method
		if rt.method == http.MethodGet {
			allowed[rt.path] = "GET, HEAD"
		}
	}

	// The static client is mounted without a method so it never shadows
	// the API's own 404 and 405 answers.
	fallback := h.Fallback(allowed)
	mux.HandleFunc("/api/", fallback)
	mux.HandleFunc("/health", fallback)
	mux.Handle("/", h.Static(http.FileServer(http.Dir(server.StaticDir))))

	return httpserver.Chain(mux,
		httpserver.RequestID(),
		httpserver.AccessLog(log),
		httpserver.Recover(log),
		httpserver.CORS(server.CORSOrigin),
	)
}
