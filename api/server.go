package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"surge/pkg/trader"
)

// Server exposes a read-only status API over the running trader. Position
// transitions belong to the trading loop alone; nothing here mutates.
type Server struct {
	trader *trader.Trader
	logger *logrus.Logger
	port   string
}

func NewServer(trader *trader.Trader, logger *logrus.Logger, port string) *Server {
	return &Server{
		trader: trader,
		logger: logger,
		port:   port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/position", s.handlePosition)
	mux.HandleFunc("/api/observation", s.handleObservation)

	handler := corsMiddleware(mux)

	s.logger.Infof("Starting API server on port %s", s.port)
	return http.ListenAndServe(":"+s.port, handler)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"mode":     s.trader.Mode(),
		"position": nil,
	}
	if pos, ok := s.trader.CurrentPosition(); ok {
		response["position"] = map[string]interface{}{
			"product_id":     pos.ProductID,
			"purchase_price": pos.PurchasePrice.String(),
			"amount":         pos.Amount.String(),
			"opened_at":      pos.OpenedAt.UTC(),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	obs := s.trader.LastObservation()
	response := map[string]interface{}{
		"product_id": obs.ProductID,
		"price":      obs.Price.String(),
		"time":       obs.Time.UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
