package contract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Broadcaster submits a wallet-signed transaction to the chain and
// returns its hash. Signing happens outside the engine.
type Broadcaster interface {
	Broadcast(ctx context.Context, signedTx []byte) (string, error)
}

// Querier runs smart queries against the savings contract.
type Querier interface {
	SmartQuery(ctx context.Context, query QueryMsg, result interface{}) error
}

// RESTClient talks to a Cosmos REST (LCD) gateway. It broadcasts
// pre-signed transactions and runs read-only queries; it holds no keys.
type RESTClient struct {
	endpoint        string
	contractAddress string
	denom           string
	http            *http.Client
}

func NewRESTClient(endpoint, contractAddress, denom string) *RESTClient {
	return &RESTClient{
		endpoint:        strings.TrimRight(endpoint, "/"),
		contractAddress: contractAddress,
		denom:           denom,
		http:            &http.Client{Timeout: 30 * time.Second},
	}
}

type broadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type broadcastResponse struct {
	TxResponse struct {
		TxHash string `json:"txhash"`
		Code   int    `json:"code"`
		RawLog string `json:"raw_log"`
	} `json:"tx_response"`
}

func (c *RESTClient) Broadcast(ctx context.Context, signedTx []byte) (string, error) {
	body, err := json.Marshal(broadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(signedTx),
		Mode:    "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return "", err
	}

	var resp broadcastResponse
	if err := c.post(ctx, "/cosmos/tx/v1beta1/txs", body, &resp); err != nil {
		return "", err
	}
	if resp.TxResponse.Code != 0 {
		return "", fmt.Errorf("broadcast rejected (code %d): %s", resp.TxResponse.Code, resp.TxResponse.RawLog)
	}
	return resp.TxResponse.TxHash, nil
}

type smartQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

func (c *RESTClient) SmartQuery(ctx context.Context, query QueryMsg, result interface{}) error {
	payload, err := json.Marshal(query)
	if err != nil {
		return err
	}
	path := fmt.Sprintf(
		"/cosmwasm/wasm/v1/contract/%s/smart/%s",
		c.contractAddress,
		base64.StdEncoding.EncodeToString(payload),
	)

	var resp smartQueryResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return err
	}
	return json.Unmarshal(resp.Data, result)
}

type balanceResponse struct {
	Balance struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balance"`
}

// Balance reports an account's spendable balance in base units of the
// configured denom.
func (c *RESTClient) Balance(ctx context.Context, address string) (int64, error) {
	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", address, c.denom)

	var resp balanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}
	if resp.Balance.Amount == "" {
		return 0, nil
	}
	return strconv.ParseInt(resp.Balance.Amount, 10, 64)
}

func (c *RESTClient) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *RESTClient) post(ctx context.Context, path string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *RESTClient) do(req *http.Request, result interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, result)
}
