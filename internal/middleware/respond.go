package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

func writeJSONError(w http.ResponseWriter, status int, code models.ReasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Response{Success: false, Code: code, Message: message})
}
