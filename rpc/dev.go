package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"swapescrow/crypto"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

// Dev endpoints bootstrap a local environment: they mint native units and
// tokens without signature checks. Only mounted when DevFaucet is enabled.
// Every mutation goes through Processor.Mutate so it serializes with
// in-flight transitions instead of racing their commits.

type faucetRequest struct {
	Address crypto.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

func (s *Server) handleDevFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, errors.New("amount must be positive"), "")
		return
	}
	err := s.proc.Mutate(func(st escrow.State) error {
		return s.proc.Ledger().CreditNative(st, req.Address, req.Amount)
	}, req.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	s.logger.Info("faucet credit", "address", req.Address, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

type createMintRequest struct {
	Authority crypto.Address `json:"authority"`
	Mint      crypto.Address `json:"mint"`
	Decimals  uint8          `json:"decimals"`
}

func (s *Server) handleDevCreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	auth := token.SignerAuthority(req.Authority)
	err := s.proc.Mutate(func(st escrow.State) error {
		return s.proc.Ledger().CreateMint(st, auth, req.Mint, req.Authority, req.Decimals)
	}, req.Authority, req.Mint)
	if err != nil {
		writeError(w, statusForTokenErr(err), err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mint": req.Mint})
}

type createHoldingRequest struct {
	Owner crypto.Address `json:"owner"`
	Mint  crypto.Address `json:"mint"`
}

func (s *Server) handleDevCreateHolding(w http.ResponseWriter, r *http.Request) {
	var req createHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	addr, _, err := token.HoldingAddress(req.Owner, req.Mint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	auth := token.SignerAuthority(req.Owner)
	err = s.proc.Mutate(func(st escrow.State) error {
		_, err := s.proc.Ledger().CreateHolding(st, auth, req.Owner, req.Mint)
		return err
	}, req.Owner, addr)
	if err != nil {
		writeError(w, statusForTokenErr(err), err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holding": addr})
}

type mintToRequest struct {
	Authority   crypto.Address `json:"authority"`
	Mint        crypto.Address `json:"mint"`
	Destination crypto.Address `json:"destination"`
	Amount      uint64         `json:"amount"`
}

func (s *Server) handleDevMintTo(w http.ResponseWriter, r *http.Request) {
	var req mintToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	auth := token.SignerAuthority(req.Authority)
	err := s.proc.Mutate(func(st escrow.State) error {
		return s.proc.Ledger().MintTo(st, auth, req.Mint, req.Destination, req.Amount)
	}, req.Mint, req.Destination)
	if err != nil {
		writeError(w, statusForTokenErr(err), err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func statusForTokenErr(err error) int {
	switch {
	case errors.Is(err, token.ErrMintNotFound), errors.Is(err, token.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.Is(err, token.ErrMintExists), errors.Is(err, token.ErrHoldingExists):
		return http.StatusConflict
	case errors.Is(err, token.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, token.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
