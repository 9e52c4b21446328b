package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// RecoveryMiddleware catches panics and returns 500 instead of crashing
func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("panic recovered: %v", err)
				jsonError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	log.WithField("code", code).Warn(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func jsonValidationError(w http.ResponseWriter, verr *ValidationError) {
	log.WithField("field", verr.Field).Warn(verr.Message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": verr.Message,
			"type":    "validation_error",
			"field":   verr.Field,
		},
	})
}

func parseRequestBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	return nil
}

// parseQueryParams maps GET query parameters onto a SearchRequest.
func parseQueryParams(r *http.Request) SearchRequest {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	safeMode, _ := strconv.ParseBool(q.Get("safe_mode"))
	debug, _ := strconv.ParseBool(q.Get("debug"))
	return SearchRequest{
		Query:     q.Get("q"),
		Mode:      q.Get("mode"),
		Limit:     limit,
		Freshness: q.Get("freshness"),
		SafeMode:  safeMode,
		Provider:  q.Get("provider"),
		Debug:     debug,
	}
}

// HandleSearch serves the aggregation endpoint. GET passes parameters in
// the query string; POST passes a JSON body.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	switch r.Method {
	case http.MethodGet:
		req = parseQueryParams(r)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		if err := parseRequestBody(r, &req); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	routerReq, err := validate(req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			jsonValidationError(w, verr)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	log.Infof("Processing search (mode: %s, limit: %d)", routerReq.Mode, routerReq.Limit)

	resp, err := s.Router.Search(ctx, routerReq)
	if err != nil {
		log.Errorf("search failed: %v", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleDiagnostics exposes the ledger's per-provider health summary.
func (s *Server) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var diag any
	if name := r.URL.Query().Get("provider"); name != "" {
		diag = s.Ledger.Diagnostics(name)
	} else {
		diag = s.Ledger.Diagnostics()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(diag)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"service": "metasearch", "status": "ok"})
}
