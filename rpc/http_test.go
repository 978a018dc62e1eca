package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakevault/core/state"
	"stakevault/native/custody"
	"stakevault/native/params"
	"stakevault/native/staking"
	"stakevault/storage"
)

var (
	testController = common.HexToAddress("0x00000000000000000000000000000000000000C0")
	testVault      = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testUser       = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

const testAdminSecret = "test-admin-secret"

type rpcHarness struct {
	srv    *httptest.Server
	engine *staking.Engine
	height *uint64
}

func newRPCHarness(t *testing.T, secret string) *rpcHarness {
	t.Helper()

	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	mgr := state.NewManager(db)
	items := custody.NewItemRegistry(mgr, testVault, testController)
	vault := custody.NewRewardVault(mgr, testVault, testController)
	engine := staking.NewEngine(mgr, params.NewStore(mgr), items, vault)

	height := uint64(0)
	engine.SetHeightFunc(func() uint64 { return height })

	require.NoError(t, engine.Initialize(testController, big.NewInt(10), 100, 200))
	for _, itemID := range []uint64{1, 2} {
		require.NoError(t, items.Mint(testController, testUser, itemID))
	}
	require.NoError(t, items.SetApprovalForAll(testUser, testVault, true))
	require.NoError(t, vault.AddController(testController, testController))
	require.NoError(t, vault.Mint(testController, testController, big.NewInt(1_000_000)))
	require.NoError(t, vault.Fund(testController, big.NewInt(1_000_000)))
	require.NoError(t, mgr.Commit())

	server := NewServer(engine, nil, ServerConfig{AdminJWTSecret: secret})
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)

	return &rpcHarness{srv: srv, engine: engine, height: &height}
}

func (h *rpcHarness) call(t *testing.T, method string, params interface{}, token string) RPCResponse {
	t.Helper()

	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(reqBody)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, h.srv.URL, bytes.NewReader(payload))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded RPCResponse
	require.NoError(t, json.Unmarshal(body, &decoded), "body: %s", body)
	return decoded
}

func TestStakeAndQueryOverRPC(t *testing.T) {
	h := newRPCHarness(t, "")

	resp := h.call(t, "staking_stake", map[string]interface{}{
		"caller":  testUser.Hex(),
		"itemIds": []uint64{1, 2},
	}, "")
	require.Nil(t, resp.Error)

	resp = h.call(t, "staking_getStakedItems", map[string]interface{}{"caller": testUser.Hex()}, "")
	require.Nil(t, resp.Error)
	var items stakedItemsResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Equal(t, []uint64{1, 2}, items.ItemIDs)
	require.Equal(t, uint64(2), items.TotalStaked)

	*h.height = 50
	resp = h.call(t, "staking_previewRewards", map[string]interface{}{"caller": testUser.Hex()}, "")
	require.Nil(t, resp.Error)
	var preview previewResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &preview))
	require.Equal(t, "1000", preview.Pending)
}

func TestEngineErrorsMapToCodes(t *testing.T) {
	h := newRPCHarness(t, "")

	resp := h.call(t, "staking_unstake", map[string]interface{}{
		"caller":  testUser.Hex(),
		"itemIds": []uint64{1},
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeStakingNotStaked, resp.Error.Code)

	resp = h.call(t, "staking_claimRewards", map[string]interface{}{"caller": testUser.Hex()}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeStakingNothingToClaim, resp.Error.Code)
}

func TestAdminMethodsRequireToken(t *testing.T) {
	h := newRPCHarness(t, testAdminSecret)

	reqParams := map[string]interface{}{"caller": testController.Hex(), "rate": "25"}

	resp := h.call(t, "staking_setRewardRate", reqParams, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	token, err := MintAdminToken(testAdminSecret, time.Minute)
	require.NoError(t, err)
	resp = h.call(t, "staking_setRewardRate", reqParams, token)
	require.Nil(t, resp.Error)

	engineParams, err := h.engine.Params()
	require.NoError(t, err)
	require.Equal(t, "25", engineParams.RewardRatePerUnit.String())
}

func TestAdminMethodsDisabledWithoutSecret(t *testing.T) {
	h := newRPCHarness(t, "")

	token, err := MintAdminToken(testAdminSecret, time.Minute)
	require.NoError(t, err)
	resp := h.call(t, "staking_pause", map[string]interface{}{"caller": testController.Hex()}, token)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestUnknownMethodAndBadPayload(t *testing.T) {
	h := newRPCHarness(t, "")

	resp := h.call(t, "staking_doesNotExist", nil, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	httpResp, err := http.Post(h.srv.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer httpResp.Body.Close()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeParseError, decoded.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newRPCHarness(t, "")

	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
