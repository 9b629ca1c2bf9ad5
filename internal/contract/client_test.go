package contract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast(t *testing.T) {
	var gotBody broadcastRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/cosmos/tx/v1beta1/txs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tx_response": map[string]interface{}{"txhash": "0xabc", "code": 0},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	hash, err := client.Broadcast(context.Background(), []byte("signed-tx"))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("signed-tx")), gotBody.TxBytes)
	assert.Equal(t, "BROADCAST_MODE_SYNC", gotBody.Mode)
}

func TestBroadcastRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tx_response": map[string]interface{}{"txhash": "", "code": 5, "raw_log": "insufficient funds"},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	_, err := client.Broadcast(context.Background(), []byte("signed-tx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestSmartQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/cosmwasm/wasm/v1/contract/xion1contract/smart/")

		encoded := r.URL.Path[len("/cosmwasm/wasm/v1/contract/xion1contract/smart/"):]
		payload, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		assert.JSONEq(t, `{"GetPlanCount":{}}`, string(payload))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"count": 4},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, client.SmartQuery(context.Background(), QueryMsg{GetPlanCount: &GetPlanCountQuery{}}, &result))
	assert.Equal(t, 4, result.Count)
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cosmos/bank/v1beta1/balances/xion1treasury/by_denom", r.URL.Path)
		require.Equal(t, "uxion", r.URL.Query().Get("denom"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"balance": map[string]string{"denom": "uxion", "amount": "1500000"},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	balance, err := client.Balance(context.Background(), "xion1treasury")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), balance)
}

func TestBalanceEmptyAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"balance": map[string]string{}})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	balance, err := client.Balance(context.Background(), "xion1empty")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGatewayErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "xion1contract", "uxion")
	_, err := client.Balance(context.Background(), "xion1treasury")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
