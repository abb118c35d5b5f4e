package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shenwilly/ubi-games/internal/bet-feed/cache"
	"github.com/shenwilly/ubi-games/internal/bet-feed/dto"
	"github.com/shenwilly/ubi-games/internal/bet-feed/repo"
)

const defaultListLimit = 50

// API expõe os endpoints REST de consulta do feed de apostas
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	ReadRepo *repo.ReadRepo // acesso à projeção no banco
	Cache    *cache.Cache   // cache de apostas
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/bets", a.listBets)        // Lista apostas (opcional ?player=)
	r.Get("/v1/bets/{id}", a.getBet)     // Detalhe de uma aposta
	r.Get("/v1/stats", a.getStats)       // Agregados do feed
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listBets retorna as apostas mais recentes, filtráveis por jogador
func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var (
		bets []dto.Bet
		err  error
	)
	if player := r.URL.Query().Get("player"); player != "" {
		bets, err = a.ReadRepo.ListByPlayer(r.Context(), player, limit)
	} else {
		bets, err = a.ReadRepo.ListRecent(r.Context(), limit)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if bets == nil {
		bets = []dto.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// getBet retorna uma aposta, preferencialmente do cache
func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bet id"})
		return
	}

	var fromCache dto.Bet
	if ok, _ := a.Cache.GetBet(r.Context(), id, &fromCache); ok {
		writeJSON(w, http.StatusOK, fromCache)
		return
	}

	bet, err := a.ReadRepo.GetBet(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	_ = a.Cache.SetBet(r.Context(), id, bet, 30*time.Second) // salva no cache por 30s
	writeJSON(w, http.StatusOK, bet)
}

// getStats retorna os agregados de volume do feed
func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	s, err := a.ReadRepo.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}
