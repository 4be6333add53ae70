package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/RezaEskandarii/cronhook/internal/constants"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.ContentTypeJSON)
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func getPageNumber(r *http.Request) int {
	return positiveQueryInt(r, "page", 1)
}

func getPageSize(r *http.Request) int {
	return positiveQueryInt(r, "pageSize", constants.DefaultPageSize)
}

func positiveQueryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || v < 1 {
		return fallback
	}
	return int(v)
}
