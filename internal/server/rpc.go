package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/copyleftdev/plutobench/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
	rpcNotFound       = -32004
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type jobParams struct {
	JobID string `json:"job_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Params are positional; the
// first element carries the method's argument object.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.bodyLimit())).Decode(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.ObserveFailure("too_large")
			s.respondWithError(w, rpcInvalidRequest, "Request too large", nil)
			return
		}
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)

	switch request.Method {
	case "launcher.describe":
		result = s.describe()
	case "optimization.descend":
		var req DescentRequest
		if err = firstParam(request.Params, &req); err == nil {
			result, err = s.descend(r, &req)
		}
	case "optimization.start":
		var req DescentRequest
		if err = firstParam(request.Params, &req); err == nil {
			result, err = s.startJob(&req)
		}
	case "optimization.status":
		var p jobParams
		if err = firstParam(request.Params, &p); err == nil {
			result, err = s.jobStatus(p.JobID)
		}
	case "optimization.cancel":
		var p jobParams
		if err = firstParam(request.Params, &p); err == nil {
			result, err = s.cancelJob(p.JobID)
		}
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		switch apperrors.StatusOf(err, http.StatusInternalServerError) {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID)
		case http.StatusNotFound:
			s.respondWithError(w, rpcNotFound, err.Error(), request.ID)
		default:
			s.respondWithError(w, rpcServerError, err.Error(), request.ID)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func firstParam(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return apperrors.New("missing required parameters").WithStatus(http.StatusBadRequest)
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return apperrors.Wrap(err, "invalid parameter format, expected object").WithStatus(http.StatusBadRequest)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
