package server

import "net/http"

// NewMux wires every endpoint and wraps the mux in CORS.
func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models", h.HandleModels)
	mux.HandleFunc("/api/prompt-stats", h.HandleStats)
	mux.HandleFunc("/api/runs", h.HandleRunStatus)
	mux.HandleFunc("/ws/watch", h.HandleWatchWS)
	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
