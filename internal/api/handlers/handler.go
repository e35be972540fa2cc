// Пакет handlers — HTTP handlers Session Module.
package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON сериализует v в тело ответа со статусом statusCode.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
