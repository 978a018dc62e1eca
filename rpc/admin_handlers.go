package rpc

import (
	"math/big"
	"net/http"
)

type setRewardRateParams struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

type setPeriodParams struct {
	Caller string `json:"caller"`
	Blocks uint64 `json:"blocks"`
}

func (s *Server) handleSetRewardRate(w http.ResponseWriter, req *RPCRequest) string {
	var params setRewardRateParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	rate, ok := new(big.Int).SetString(params.Rate, 10)
	if !ok || rate.Sign() < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "rate must be a non-negative decimal string")
		return "invalid_params"
	}
	if err := s.engine.SetRewardRate(caller, rate); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"rewardRatePerUnit": rate.String()})
	return "ok"
}

func (s *Server) handleSetUnbondingPeriod(w http.ResponseWriter, req *RPCRequest) string {
	var params setPeriodParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if err := s.engine.SetUnbondingPeriod(caller, params.Blocks); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]uint64{"unbondingPeriod": params.Blocks})
	return "ok"
}

func (s *Server) handleSetClaimDelay(w http.ResponseWriter, req *RPCRequest) string {
	var params setPeriodParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if err := s.engine.SetClaimDelay(caller, params.Blocks); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]uint64{"rewardClaimDelay": params.Blocks})
	return "ok"
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) string {
	return s.togglePause(w, req, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) string {
	return s.togglePause(w, req, false)
}

func (s *Server) togglePause(w http.ResponseWriter, req *RPCRequest, paused bool) string {
	var params ownerParams
	if !decodeSingleParam(w, req, &params) {
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if paused {
		err = s.engine.Pause(caller)
	} else {
		err = s.engine.Unpause(caller)
	}
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"paused": paused})
	return "ok"
}
