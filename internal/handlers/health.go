package handlers

import "net/http"

// Healthz reports process liveness. It does not probe the datastore.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
