package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ryft/crypto"
	"ryft/native/ryft"
	"ryft/services/ryftd/middleware"
	"ryft/services/ryftd/runtime"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type feeRateRequest struct {
	FeeRateBps *uint64 `json:"feeRateBps"`
}

type allowListRequest struct {
	Account crypto.Address `json:"account"`
	Action  string         `json:"action"`
}

// flashLoanRequest issues a loan, runs Steps with the borrowed funds and repays
// in the same unit. Steps must return principal and fee to the pool.
type flashLoanRequest struct {
	Amount     uint64                `json:"amount"`
	Collateral uint64                `json:"collateral"`
	Steps      []runtime.Instruction `json:"steps"`
}

type multiHopRequest struct {
	Amounts []uint64 `json:"amounts"`
}

type bundleRequest struct {
	Instructions []runtime.Instruction `json:"instructions"`
}

type flashLoanResponse struct {
	Active bool            `json:"active"`
	Loan   *ryft.FlashLoan `json:"loan,omitempty"`
}

type balanceResponse struct {
	Address crypto.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, instructions ...runtime.Instruction) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "caller identity missing", Reason: "unauthenticated"})
		return
	}
	receipt, err := s.ledger.Execute(r.Context(), caller, instructions)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) amountHandler(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		s.execute(w, r, runtime.Instruction{Op: op, Amount: req.Amount})
	}
}

func (s *Server) emptyHandler(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.execute(w, r, runtime.Instruction{Op: op})
	}
}

func (s *Server) handleUpdateFeeRate(w http.ResponseWriter, r *http.Request) {
	var req feeRateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.FeeRateBps == nil {
		s.writeError(w, fmt.Errorf("%w: feeRateBps required", errBadRequest))
		return
	}
	s.execute(w, r, runtime.Instruction{Op: runtime.OpUpdateFeeRate, FeeRateBps: *req.FeeRateBps})
}

func (s *Server) handleAllowList(w http.ResponseWriter, r *http.Request) {
	var req allowListRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var op string
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "add", "":
		op = runtime.OpAllowListAdd
	case "remove":
		op = runtime.OpAllowListRemove
	default:
		s.writeError(w, fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action))
		return
	}
	s.execute(w, r, runtime.Instruction{Op: op, Account: req.Account})
}

func (s *Server) handleFlashLoan(w http.ResponseWriter, r *http.Request) {
	var req flashLoanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Steps)+2 > runtime.MaxBundleSize {
		s.writeError(w, runtime.ErrBundleTooLarge)
		return
	}
	instructions := make([]runtime.Instruction, 0, len(req.Steps)+2)
	instructions = append(instructions, runtime.Instruction{Op: runtime.OpFlashLoan, Amount: req.Amount, Collateral: req.Collateral})
	for _, step := range req.Steps {
		if step.Op == runtime.OpFlashLoan || step.Op == runtime.OpRepayFlashLoan {
			s.writeError(w, fmt.Errorf("%w: step %q not allowed inside a flash loan", errBadRequest, step.Op))
			return
		}
		instructions = append(instructions, step)
	}
	instructions = append(instructions, runtime.Instruction{Op: runtime.OpRepayFlashLoan})
	s.execute(w, r, instructions...)
}

func (s *Server) handleMultiHop(w http.ResponseWriter, r *http.Request) {
	var req multiHopRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, runtime.Instruction{Op: runtime.OpMultiHopFlashLoan, Amounts: req.Amounts})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.execute(w, r, req.Instructions...)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	global, err := s.ledger.GlobalState(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, global)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	acc, err := s.ledger.StakeOf(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rep, err := s.ledger.ReputationOf(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleActiveFlashLoan(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	loan, ok, err := s.ledger.ActiveFlashLoan(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flashLoanResponse{Active: ok, Loan: loan})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.ledger.BalanceOf(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		limit = parsed
	}
	entries, err := s.events.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("type")), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func addressParam(r *http.Request) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return addr, nil
}

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
