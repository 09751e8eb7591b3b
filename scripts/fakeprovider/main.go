// Fakeprovider is a local stand-in for the generateContent API, used to run
// the proxy end to end without a real API key.
//
// Usage:
//
//	go run ./scripts/fakeprovider -port 8090 -fail 2 -status 503
//
// Point the proxy at it with PROVIDER_BASE_URL=http://localhost:8090/v1beta.
// The first -fail generateContent calls answer with -status; -fail -1 fails
// every call. Successful replies are deterministic estimates derived from the
// prompt.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type provider struct {
	logger  *slog.Logger
	fail    int64
	status  int
	latency time.Duration
	calls   atomic.Int64
}

func main() {
	port := flag.Int("port", 8090, "port to listen on")
	fail := flag.Int64("fail", 0, "number of generateContent calls to fail before succeeding (-1 fails all)")
	status := flag.Int("status", http.StatusServiceUnavailable, "status code for failed calls")
	latency := flag.Duration("latency", 0, "delay added to every response")
	flag.Parse()

	p := &provider{
		logger:  slog.New(slog.NewTextHandler(os.Stdout, nil)),
		fail:    *fail,
		status:  *status,
		latency: *latency,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1beta/models/{model}", p.generateContent)
	mux.HandleFunc("GET /v1beta/models/{model}", p.model)

	addr := fmt.Sprintf(":%d", *port)
	p.logger.Info("Fake provider starting", slog.String("address", addr), slog.Int64("fail", *fail), slog.Int("status", *status))
	if err := http.ListenAndServe(addr, mux); err != nil {
		p.logger.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func (p *provider) model(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-goog-api-key") == "" {
		http.Error(w, `{"error":{"code":403,"message":"missing API key"}}`, http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "models/" + r.PathValue("model"),
		"displayName": "Fake " + r.PathValue("model"),
	})
}

func (p *provider) generateContent(w http.ResponseWriter, r *http.Request) {
	model, ok := strings.CutSuffix(r.PathValue("model"), ":generateContent")
	if !ok {
		http.NotFound(w, r)
		return
	}

	time.Sleep(p.latency)

	n := p.calls.Add(1)
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		http.Error(w, `{"error":{"code":400,"message":"invalid JSON payload"}}`, http.StatusBadRequest)
		return
	}

	p.logger.Info("generateContent",
		slog.Int64("call", n),
		slog.String("model", model),
		slog.Int("bytes", len(body)))

	if p.fail < 0 || n <= p.fail {
		http.Error(w, fmt.Sprintf(`{"error":{"code":%d,"message":"scripted failure %d"}}`, p.status, n), p.status)
		return
	}

	var inner any
	if image := gjson.GetBytes(body, "contents.0.parts.0.inlineData"); image.Exists() {
		inner = map[string]any{
			"foodName":          "fake dish (" + image.Get("mimeType").String() + ")",
			"suggestedQuantity": "1 serving",
		}
	} else {
		inner = estimate(gjson.GetBytes(body, "contents.0.parts.0.text").String())
	}

	text, _ := json.Marshal(inner)
	writeJSON(w, http.StatusOK, map[string]any{
		"responseId":   uuid.NewString(),
		"modelVersion": model,
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": string(text)}},
			},
			"finishReason": "STOP",
		}},
	})
}

// estimate scales a fixed per-word estimate by the number of words.
func estimate(query string) map[string]any {
	words := float64(len(strings.Fields(query)))
	return map[string]any{
		"name":     query,
		"calories": 80 * words,
		"protein":  4 * words,
		"carbs":    9 * words,
		"fat":      3 * words,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
