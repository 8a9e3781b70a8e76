package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swapescrow/core"
	"swapescrow/crypto"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

// Server exposes the processor over HTTP: one endpoint that applies
// instructions and read endpoints for escrows, holdings and balances.
type Server struct {
	proc      *core.Processor
	logger    *slog.Logger
	devFaucet bool
}

func NewServer(proc *core.Processor, logger *slog.Logger, devFaucet bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		proc:      proc,
		logger:    logger.With("component", "rpc"),
		devFaucet: devFaucet,
	}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/v1/instructions", s.handleApply)
	r.Get("/v1/escrows/{maker}/{seed}", s.handleEscrow)
	r.Get("/v1/holdings/{owner}/{mint}", s.handleHolding)
	r.Get("/v1/balances/{address}", s.handleNativeBalance)

	if s.devFaucet {
		r.Post("/v1/dev/faucet", s.handleDevFaucet)
		r.Post("/v1/dev/mints", s.handleDevCreateMint)
		r.Post("/v1/dev/holdings", s.handleDevCreateHolding)
		r.Post("/v1/dev/mint-to", s.handleDevMintTo)
	}

	return r
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

// statusForKind maps processor error kinds to HTTP status codes.
func statusForKind(kind string) int {
	switch kind {
	case "malformed_instruction", "account_shape_mismatch", "invalid_amount":
		return http.StatusBadRequest
	case "unauthorized", "unauthorized_vault":
		return http.StatusForbidden
	case "invalid_account":
		return http.StatusNotFound
	case "insufficient_funds":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var ins core.Instruction
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		writeError(w, http.StatusBadRequest, err, "malformed_instruction")
		return
	}
	if err := s.proc.Apply(ins); err != nil {
		kind := core.ErrorKind(err)
		writeError(w, statusForKind(kind), err, kind)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

type escrowResponse struct {
	Address      crypto.Address `json:"address"`
	Maker        crypto.Address `json:"maker"`
	MintA        crypto.Address `json:"mintA"`
	MintB        crypto.Address `json:"mintB"`
	AmountWanted uint64         `json:"amountWanted"`
	Seed         uint64         `json:"seed"`
	Vault        crypto.Address `json:"vault"`
	VaultAmount  uint64         `json:"vaultAmount"`
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	maker, err := crypto.ParseAddress(chi.URLParam(r, "maker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	seed, err := strconv.ParseUint(chi.URLParam(r, "seed"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	recordAddr, _, err := escrow.RecordAddress(maker, seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	rec, ok, err := s.proc.State().RecordGet(recordAddr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("escrow not found"), "")
		return
	}
	vaultAddr, _, err := escrow.VaultAddress(recordAddr, rec.MintA)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	resp := escrowResponse{
		Address:      recordAddr,
		Maker:        rec.Maker,
		MintA:        rec.MintA,
		MintB:        rec.MintB,
		AmountWanted: rec.AmountWanted,
		Seed:         rec.Seed,
		Vault:        vaultAddr,
	}
	if vault, ok, err := s.proc.State().HoldingGet(vaultAddr); err == nil && ok {
		resp.VaultAmount = vault.Amount
	}
	writeJSON(w, http.StatusOK, resp)
}

type holdingResponse struct {
	Address crypto.Address `json:"address"`
	Mint    crypto.Address `json:"mint"`
	Owner   crypto.Address `json:"owner"`
	Amount  uint64         `json:"amount"`
}

func (s *Server) handleHolding(w http.ResponseWriter, r *http.Request) {
	owner, err := crypto.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	mint, err := crypto.ParseAddress(chi.URLParam(r, "mint"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	addr, _, err := token.HoldingAddress(owner, mint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	holding, ok, err := s.proc.State().HoldingGet(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("holding not found"), "")
		return
	}
	writeJSON(w, http.StatusOK, holdingResponse{
		Address: addr,
		Mint:    holding.Mint,
		Owner:   holding.Owner,
		Amount:  holding.Amount,
	})
}

func (s *Server) handleNativeBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	bal, err := s.proc.State().NativeBalance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"balance": bal,
	})
}
