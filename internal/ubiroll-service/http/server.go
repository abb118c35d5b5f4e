package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shenwilly/ubi-games/internal/engine"
	"github.com/shenwilly/ubi-games/internal/oracle"
	"github.com/shenwilly/ubi-games/internal/store"
	"github.com/shenwilly/ubi-games/internal/token"
	"github.com/shenwilly/ubi-games/internal/ubiroll-service/dto"
	"github.com/shenwilly/ubi-games/internal/vault"
	"github.com/shenwilly/ubi-games/pkg/contracts/events"
)

// Publisher é o conjunto de eventos que o serviço emite após cada commit
type Publisher interface {
	PublishBetCreated(context.Context, events.BetCreated) error
	PublishBetFinalized(context.Context, events.BetFinalized) error
	PublishRandomnessRequested(context.Context, events.RandomnessRequested) error
}

// Server expõe a API pública de apostas, o callback de fulfillment do serviço
// de aleatoriedade e os endpoints admin dos três componentes do core
type Server struct {
	log    *zap.Logger
	db     *sql.DB
	engine *engine.Engine
	vault  *vault.Vault
	oracle *oracle.Oracle
	tokens *token.Ledger
	publ   Publisher

	ownerIdentity      string
	vrfServiceIdentity string
	adminToken         string
	vrfCallbackToken   string
}

func NewServer(
	log *zap.Logger,
	db *sql.DB,
	eng *engine.Engine,
	v *vault.Vault,
	o *oracle.Oracle,
	t *token.Ledger,
	publ Publisher,
	ownerIdentity, vrfServiceIdentity, adminToken, vrfCallbackToken string,
) *Server {
	return &Server{
		log:                log,
		db:                 db,
		engine:             eng,
		vault:              v,
		oracle:             o,
		tokens:             t,
		publ:               publ,
		ownerIdentity:      ownerIdentity,
		vrfServiceIdentity: vrfServiceIdentity,
		adminToken:         adminToken,
		vrfCallbackToken:   vrfCallbackToken,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/bets", s.createBet)
	r.Get("/v1/bets/{id}", s.getBet)
	r.Post("/v1/tokens/approve", s.approve)
	r.Get("/v1/tokens/{token}/accounts/{account}", s.getBalance)
	r.Post("/v1/vault/burn", s.burnUbi)

	// Callback do serviço de aleatoriedade
	r.Group(func(r chi.Router) {
		r.Use(requireBearer(s.vrfCallbackToken))
		r.Post("/oracle/fulfillments", s.fulfill)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireBearer(s.adminToken))
		r.Post("/tokens/mint", s.mint)
		r.Post("/vault/games", s.setRegisteredGame)
		r.Post("/vault/burn-percentage", s.setBurnPercentage)
		r.Post("/vault/withdraw", s.withdrawUbi)
		r.Post("/oracle/consumers", s.setRegisteredConsumer)
		r.Post("/oracle/withdraw-fee", s.withdrawFee)
		r.Post("/engine/house-edge", s.setHouseEdge)
		r.Post("/engine/pause", s.setGamePause)
		r.Post("/engine/oracle", s.setOracle)
		r.Post("/engine/withdraw-token", s.withdrawToken)
	})

	return r
}

// requireBearer valida o token estático do chamador (admin ou serviço VRF)
func requireBearer(want string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+want {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.Player == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player required"})
		return
	}

	bet, err := s.engine.CreateBet(r.Context(), req.Player, req.Chance, req.Amount)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	betsCreatedTotal.Inc()

	// Publicação pós-commit, best-effort (ver Publisher)
	_ = s.publ.PublishBetCreated(r.Context(), events.BetCreated{
		BetID:     bet.ID,
		Player:    bet.Player,
		Chance:    bet.Chance,
		Amount:    bet.Amount,
		Prize:     bet.Prize,
		RequestID: bet.RequestID,
	})
	_ = s.publ.PublishRandomnessRequested(r.Context(), events.RandomnessRequested{
		RequestID: bet.RequestID,
		Consumer:  s.engine.Identity,
	})

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:     bet.ID,
		RequestID: bet.RequestID,
		Prize:     bet.Prize,
		Status:    "PENDING",
	})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bet id"})
		return
	}
	bet, err := s.engine.GetBet(r.Context(), id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betResponse(bet))
}

// fulfill é o ponto de retomada do fluxo assíncrono: o serviço de
// aleatoriedade devolve a palavra e a aposta correlacionada é finalizada na
// mesma transação que marca o pedido como satisfeito
func (s *Server) fulfill(w http.ResponseWriter, r *http.Request) {
	var req dto.FulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.RequestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request_id required"})
		return
	}

	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.oracle.FulfillRandomness(r.Context(), q, s.vrfServiceIdentity, req.RequestID, req.RandomWord)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}

	bet, err := s.engine.GetBetByRequestID(r.Context(), req.RequestID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	if bet.Win != nil && *bet.Win {
		betsFinalizedTotal.WithLabelValues("win").Inc()
	} else {
		betsFinalizedTotal.WithLabelValues("lose").Inc()
	}

	_ = s.publ.PublishBetFinalized(r.Context(), events.BetFinalized{
		BetID:     bet.ID,
		RequestID: bet.RequestID,
		Result:    *bet.Result,
		Win:       *bet.Win,
		Payout:    bet.Payout,
	})

	writeJSON(w, http.StatusOK, betResponse(bet))
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var req dto.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.Token == "" || req.Owner == "" || req.Spender == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.tokens.Approve(r.Context(), q, req.Token, req.Owner, req.Spender, req.Amount)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	account := chi.URLParam(r, "account")

	var balance int64
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		var err error
		balance, err = s.tokens.Balance(r.Context(), q, tok, account)
		return err
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Token: tok, Account: account, Balance: balance})
}

func (s *Server) burnUbi(w http.ResponseWriter, r *http.Request) {
	var burned int64
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		var err error
		burned, err = s.vault.BurnUbi(r.Context(), q)
		return err
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BurnResponse{Burned: burned})
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req dto.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.tokens.Mint(r.Context(), q, req.Token, req.Account, req.Amount)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRegisteredGame(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.vault.SetRegisteredGame(r.Context(), q, s.ownerIdentity, req.Game, req.Enabled)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setBurnPercentage(w http.ResponseWriter, r *http.Request) {
	var req dto.BurnPercentageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.vault.SetBurnPercentage(r.Context(), q, s.ownerIdentity, req.Percentage)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withdrawUbi(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.vault.WithdrawUbi(r.Context(), q, s.ownerIdentity, req.Amount)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRegisteredConsumer(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterConsumerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		return s.oracle.SetRegistered(r.Context(), q, s.ownerIdentity, req.Consumer, req.Enabled)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withdrawFee(w http.ResponseWriter, r *http.Request) {
	var withdrawn int64
	err := store.WithTx(r.Context(), s.db, func(q store.Queryable) error {
		var err error
		withdrawn, err = s.oracle.WithdrawFee(r.Context(), q, s.ownerIdentity)
		return err
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawFeeResponse{Withdrawn: withdrawn})
}

func (s *Server) setHouseEdge(w http.ResponseWriter, r *http.Request) {
	var req dto.HouseEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if err := s.engine.SetHouseEdge(r.Context(), s.ownerIdentity, req.HouseEdge); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setGamePause(w http.ResponseWriter, r *http.Request) {
	var req dto.PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if err := s.engine.SetGamePause(r.Context(), s.ownerIdentity, req.Paused); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setOracle(w http.ResponseWriter, r *http.Request) {
	var req dto.OracleIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if err := s.engine.SetOracle(r.Context(), s.ownerIdentity, req.Identity); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withdrawToken(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if err := s.engine.WithdrawToken(r.Context(), s.ownerIdentity, req.Token, req.Amount); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeErr traduz a taxonomia de erros do core para status HTTP
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidChance),
		errors.Is(err, engine.ErrChanceTooHigh),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidPercent):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrGamePaused):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrPrizeTooHigh),
		errors.Is(err, oracle.ErrInsufficientFee),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrUnknownRequest):
		status = http.StatusNotFound
	case errors.Is(err, oracle.ErrRequestSatisfied),
		errors.Is(err, vault.ErrNothingToBurn):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNotOracle),
		errors.Is(err, engine.ErrNotOwner),
		errors.Is(err, oracle.ErrOnlyService),
		errors.Is(err, oracle.ErrUnauthorized),
		errors.Is(err, oracle.ErrNotOwner),
		errors.Is(err, vault.ErrUnauthorized),
		errors.Is(err, vault.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrBetNotFound):
		// violação de invariante de correlação, nunca deveria acontecer
		s.log.Error("fulfillment without matching open bet", zap.Error(err))
		status = http.StatusInternalServerError
	default:
		s.log.Error("internal error", zap.Error(err))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func betResponse(b *engine.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:     b.ID,
		Player:    b.Player,
		Chance:    b.Chance,
		Amount:    b.Amount,
		Prize:     b.Prize,
		RequestID: b.RequestID,
		Result:    b.Result,
		Win:       b.Win,
		Payout:    b.Payout,
		Finished:  b.Finished,
		CreatedAt: b.CreatedAt,
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
