package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Upstream de identidade fake para rodar o gateway localmente.
//
// Aceita POST /v1/tokens/validate com {"token": "..."} e responde
// {"valid": true, "subject_id": "..."} para os tokens listados em
// VALID_TOKENS (separados por vírgula; padrão "demo-token").
func main() {
	valid := map[string]string{}
	tokens := os.Getenv("VALID_TOKENS")
	if tokens == "" {
		tokens = "demo-token"
	}
	for i, t := range strings.Split(tokens, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			valid[t] = "subject-" + strconv.Itoa(i+1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/tokens/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		subject, ok := valid[req.Token]
		log.Printf("validate token=%q valid=%v", req.Token, ok)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":      ok,
			"subject_id": subject,
		})
	})

	addr := ":9090"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example upstream listening on %s (valid tokens: %s)", addr, tokens)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
