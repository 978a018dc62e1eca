package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakevault/core/errors"
)

const (
	codeStakingNotStaked      = -32030
	codeStakingApproval       = -32031
	codeStakingUnbonding      = -32032
	codeStakingClaimDelay     = -32033
	codeStakingNothingToClaim = -32034
	codeStakingReserveShort   = -32035
)

type stakeItemsParams struct {
	Caller  string   `json:"caller"`
	ItemIDs []uint64 `json:"itemIds"`
}

type ownerParams struct {
	Caller string `json:"caller"`
}

type claimResult struct {
	Amount string `json:"amount"`
}

type stakedItemsResult struct {
	Owner       string   `json:"owner"`
	ItemIDs     []uint64 `json:"itemIds"`
	TotalStaked uint64   `json:"totalStaked"`
}

type previewResult struct {
	Owner   string `json:"owner"`
	Pending string `json:"pending"`
}

type paramsResult struct {
	RewardRatePerUnit string `json:"rewardRatePerUnit"`
	UnbondingPeriod   uint64 `json:"unbondingPeriod"`
	RewardClaimDelay  uint64 `json:"rewardClaimDelay"`
	Paused            bool   `json:"paused"`
	Controller        string `json:"controller"`
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func decodeSingleParam(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

// writeEngineError maps the staking sentinels onto stable RPC codes so
// clients can branch without string matching.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) string {
	switch {
	case errors.Is(err, coreerrors.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, "unauthorized", err.Error())
		return "unauthorized"
	case errors.Is(err, coreerrors.ErrPaused):
		writeError(w, http.StatusConflict, id, codeModulePaused, "module_paused", err.Error())
		return "paused"
	case errors.Is(err, coreerrors.ErrApprovalMissing):
		writeError(w, http.StatusConflict, id, codeStakingApproval, "approval_missing", err.Error())
		return "approval_missing"
	case errors.Is(err, coreerrors.ErrNotStaked):
		writeError(w, http.StatusConflict, id, codeStakingNotStaked, "not_staked", err.Error())
		return "not_staked"
	case errors.Is(err, coreerrors.ErrUnbondingNotElapsed):
		writeError(w, http.StatusConflict, id, codeStakingUnbonding, "unbonding_not_elapsed", err.Error())
		return "unbonding_not_elapsed"
	case errors.Is(err, coreerrors.ErrClaimDelayNotElapsed):
		writeError(w, http.StatusConflict, id, codeStakingClaimDelay, "claim_delay_not_elapsed", err.Error())
		return "claim_delay_not_elapsed"
	case errors.Is(err, coreerrors.ErrNothingToClaim):
		writeError(w, http.StatusConflict, id, codeStakingNothingToClaim, "nothing_to_claim", err.Error())
		return "nothing_to_claim"
	case errors.Is(err, coreerrors.ErrInsufficientReserve):
		writeError(w, http.StatusConflict, id, codeStakingReserveShort, "insufficient_reserve", err.Error())
		return "insufficient_reserve"
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
		return "error"
	}
}

func (s *Server) handleStake(w http.ResponseWriter, req *RPCRequest) string {
	var params stakeItemsParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if len(params.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "itemIds must not be empty")
		return "invalid_params"
	}
	if err := s.engine.Stake(owner, params.ItemIDs); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]interface{}{"staked": params.ItemIDs})
	return "ok"
}

func (s *Server) handleUnstake(w http.ResponseWriter, req *RPCRequest) string {
	var params stakeItemsParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if len(params.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "itemIds must not be empty")
		return "invalid_params"
	}
	if err := s.engine.Unstake(owner, params.ItemIDs); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]interface{}{"unstaking": params.ItemIDs})
	return "ok"
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) string {
	var params stakeItemsParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if len(params.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "itemIds must not be empty")
		return "invalid_params"
	}
	if err := s.engine.Withdraw(owner, params.ItemIDs); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]interface{}{"withdrawn": params.ItemIDs})
	return "ok"
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, req *RPCRequest) string {
	var params ownerParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	paid, err := s.engine.ClaimRewards(owner)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, claimResult{Amount: paid.String()})
	return "ok"
}

func (s *Server) handleGetStakedItems(w http.ResponseWriter, req *RPCRequest) string {
	var params ownerParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	items, err := s.engine.StakedItems(owner)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	acct, err := s.engine.Account(owner)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, stakedItemsResult{
		Owner:       owner.Hex(),
		ItemIDs:     items,
		TotalStaked: acct.TotalStaked,
	})
	return "ok"
}

func (s *Server) handlePreviewRewards(w http.ResponseWriter, req *RPCRequest) string {
	var params ownerParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	pending, err := s.engine.PendingRewards(owner)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, previewResult{Owner: owner.Hex(), Pending: pending.String()})
	return "ok"
}

func (s *Server) handleGetParams(w http.ResponseWriter, req *RPCRequest) string {
	p, err := s.engine.Params()
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	rate := "0"
	if p.RewardRatePerUnit != nil {
		rate = p.RewardRatePerUnit.String()
	}
	writeResult(w, req.ID, paramsResult{
		RewardRatePerUnit: rate,
		UnbondingPeriod:   p.UnbondingPeriod,
		RewardClaimDelay:  p.RewardClaimDelay,
		Paused:            p.Paused,
		Controller:        p.Controller.Hex(),
	})
	return "ok"
}
