package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) rpc(t *testing.T, method string, params ...interface{}) rpcResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "1",
		"method":  method,
	}
	if len(params) > 0 {
		req["params"] = params
	}

	rr := e.do(t, http.MethodPost, "/rpc", req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp rpcResponse
	decode(t, rr, &resp)
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestRPCLauncherDescribe(t *testing.T) {
	env := newTestEnv(t)

	resp := env.rpc(t, "launcher.describe")
	require.Nil(t, resp.Error)
	assert.Equal(t, "1", resp.ID)

	var d struct {
		Command       []string `json:"command"`
		Timeout       int      `json:"timeout"`
		LauncherEntry struct {
			Title string `json:"title"`
		} `json:"launcher_entry"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &d))
	assert.Equal(t, 60, d.Timeout)
	assert.Equal(t, "Pluto.jl", d.LauncherEntry.Title)
	assert.Len(t, d.Command, 4)
}

func TestRPCDescend(t *testing.T) {
	env := newTestEnv(t)

	req := textbookRequest()
	req.Options = &OptionsPatch{Eps: floatPtr(1e10)}

	resp := env.rpc(t, "optimization.descend", req)
	require.Nil(t, resp.Error)

	var out DescentResponse
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, 1, out.Iterations)
	assert.InDeltaSlice(t, []float64{0, -0.1, 0.2}, out.X, 1e-15)
	assert.False(t, out.Diverged)
}

func TestRPCDescendDiverging(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"2.0","id":"d","method":"optimization.descend","params":[`+divergingBody+`]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp rpcResponse
	decode(t, rr, &resp)
	require.Nil(t, resp.Error)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, true, out["diverged"])
	assert.Nil(t, out["grad_norm"])
	assert.Equal(t, []interface{}{nil}, out["x"])
}

func TestRPCJobs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.rpc(t, "optimization.start", textbookRequest())
	require.Nil(t, resp.Error)

	var started JobView
	require.NoError(t, json.Unmarshal(resp.Result, &started))
	require.NotEmpty(t, started.ID)

	waitForJob(t, env, started.ID, JobCompleted)

	resp = env.rpc(t, "optimization.status", jobParams{JobID: started.ID})
	require.Nil(t, resp.Error)
	var status JobView
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.Equal(t, JobCompleted, status.Status)

	resp = env.rpc(t, "optimization.cancel", jobParams{JobID: started.ID})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcServerError, resp.Error.Code)

	resp = env.rpc(t, "optimization.status", jobParams{JobID: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcNotFound, resp.Error.Code)
}

func TestRPCErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("parse error", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rpc", "{not json")
		var resp rpcResponse
		decode(t, rr, &resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcParseError, resp.Error.Code)
		assert.Nil(t, resp.ID)
	})

	t.Run("wrong version", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"1.0","id":7,"method":"launcher.describe"}`)
		var resp rpcResponse
		decode(t, rr, &resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcInvalidRequest, resp.Error.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := env.rpc(t, "optimization.explode")
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcMethodNotFound, resp.Error.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		resp := env.rpc(t, "optimization.descend")
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcInvalidParams, resp.Error.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		row := strings.Repeat("0.000000000000001,", 2000) + "0"
		rr := env.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"2.0","id":1,"method":"optimization.descend","params":[{"p":[[`+row+`]]}]}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp rpcResponse
		decode(t, rr, &resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcInvalidRequest, resp.Error.Code)
		assert.Equal(t, "Request too large", resp.Error.Message)
	})

	t.Run("bad params", func(t *testing.T) {
		resp := env.rpc(t, "optimization.descend", map[string]interface{}{"p": [][]float64{{1}}, "q": []float64{1, 2}, "x0": []float64{0}})
		require.NotNil(t, resp.Error)
		assert.Equal(t, rpcInvalidParams, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "dimension mismatch")
	})
}

func TestRespondWithError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{"string id", rpcInvalidParams, "invalid input", "123", "123"},
		{"nil id", rpcServerError, "server error", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.srv.respondWithError(rr, tt.code, tt.message, tt.id)

			// Errors travel in the body; the transport status stays 200.
			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}
