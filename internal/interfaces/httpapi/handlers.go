package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"basketsync/internal/application/usecase/monitor"
	"basketsync/internal/domain/model"
)

type basketResponse struct {
	Basket    model.Basket          `json:"basket"`
	Valuation model.BasketValuation `json:"valuation"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"baskets": len(s.dash.BasketIDs()),
	})
}

func (s *Server) handleListBaskets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Valuations())
}

func (s *Server) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.dash.Basket(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	val, err := s.dash.Valuation(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basketResponse{Basket: b, Valuation: val})
}

func (s *Server) handleGetValuation(w http.ResponseWriter, r *http.Request) {
	val, err := s.dash.Valuation(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, val)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.dash.Refresh(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"basketId": id, "status": "refreshing"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, monitor.ErrBasketNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
