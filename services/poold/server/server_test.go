package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"fusdpool/config"
	"fusdpool/core"
	"fusdpool/core/events"
	"fusdpool/crypto"
	"fusdpool/native/liquidity"
	"fusdpool/storage"
)

const testToken = "operator-token"

type harness struct {
	node   *core.Node
	stream *events.Stream
	srv    *Server
	alice  crypto.Address
	bob    crypto.Address
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	db := storage.NewMemDB()
	stream := events.NewStream(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node, err := core.NewNode(db, config.Default(), stream, logger)
	require.NoError(t, err)
	t.Cleanup(node.Close)

	engine := node.Engine()
	require.NoError(t, engine.SetRewardConfig(liquidity.RewardConfig{
		Instant: liquidity.NewRate(1, 100),
		Epoch:   liquidity.NewRate(1, 10),
	}))

	auth, err := NewAuthenticator(AuthConfig{BearerTokens: []string{testToken}})
	require.NoError(t, err)
	cfg := Config{Pool: engine, Operator: node, Auth: auth, Stream: stream, Logger: logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)

	h := &harness{
		node:   node,
		stream: stream,
		srv:    srv,
		alice:  crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, 20)),
		bob:    crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x02}, 20)),
	}
	require.NoError(t, node.Fund(h.alice, uint256.NewInt(1_000)))
	return h
}

func (h *harness) do(t *testing.T, method, target string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRequiresPool(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestHealthAndParams(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/params", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	params := decode[paramsView](t, rec)
	require.Equal(t, "1/100", params.InstantReward)
	require.Equal(t, "1/10", params.EpochReward)
	require.Equal(t, "0/1", params.Fee)
	require.Equal(t, "1/1", params.Limit)

	rec = h.do(t, http.MethodGet, "/v1/pool", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	pool := decode[map[string]any](t, rec)
	require.Equal(t, "FTM", pool["nativeSymbol"])
	require.Equal(t, liquidity.ModuleAddress().String(), pool["poolAddress"])
	require.EqualValues(t, 0, pool["accounts"])
}

func TestMutatingRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)
	body := movementRequest{Account: h.alice.String(), Amount: "100"}

	rec := h.do(t, http.MethodPost, "/v1/deposit", body, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPut, "/v1/params/fee", map[string]string{"fee": "1/2"}, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDepositWithdrawFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/quote/deposit?amount=100", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	quote := decode[depositQuoteView](t, rec)
	require.Equal(t, depositQuoteView{Native: "100", Credit: "100", Bonus: "1", Total: "101"}, quote)

	rec = h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[receiptView](t, rec)
	require.Equal(t, liquidity.ReceiptDeposit, receipt.Kind)
	require.Equal(t, "101", receipt.Balance)
	require.NotEmpty(t, receipt.ID)

	rec = h.do(t, http.MethodGet, "/v1/accounts/"+h.alice.String(), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "101", decode[accountView](t, rec).Balance)

	rec = h.do(t, http.MethodGet, "/v1/quote/withdraw?address="+h.alice.String()+"&amount=50", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	wq := decode[withdrawQuoteView](t, rec)
	require.True(t, wq.WithinLimit)
	require.Equal(t, "50", wq.Native)

	rec = h.do(t, http.MethodPost, "/v1/withdraw", movementRequest{Account: h.alice.String(), Amount: "50"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "51", decode[receiptView](t, rec).Balance)

	rec = h.do(t, http.MethodGet, "/v1/totals", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode[totalsView](t, rec)
	require.Equal(t, "50", totals.NativeLocked)
	require.Equal(t, "51", totals.StableOutstanding)
}

func TestWithdrawErrorsMapToStatuses(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPut, "/v1/params/limit", map[string]string{"limit": "1/2"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1/2", decode[paramsView](t, rec).Limit)

	rec = h.do(t, http.MethodPost, "/v1/withdraw", movementRequest{Account: h.alice.String(), Amount: "60"}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "60", body.Debit)
	require.Equal(t, "50", body.Ceiling)

	rec = h.do(t, http.MethodPut, "/v1/params/limit", map[string]string{"limit": "2/1"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/withdraw", movementRequest{Account: h.alice.String(), Amount: "150"}, true)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/withdraw", movementRequest{Account: h.alice.String(), Amount: "0"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPut, "/v1/params/fee", map[string]string{"fee": "1/0"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadInputsRejected(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/quote/deposit?amount=abc", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/quote/deposit", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/accounts/not-an-address", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/accounts/"+h.bob.String(), nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/accounts?cursor=zz", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/deposit", map[string]string{"account": h.alice.String(), "amount": "1", "extra": "x"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferAndAccountsPage(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/transfer", map[string]string{
		"from": h.alice.String(), "to": h.bob.String(), "amount": "40",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[receiptView](t, rec)
	require.Equal(t, h.bob.String(), receipt.Counterparty)

	rec = h.do(t, http.MethodGet, "/v1/accounts?limit=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[accountPageView](t, rec)
	require.Len(t, page.Accounts, 1)
	require.NotEmpty(t, page.NextCursor)

	rec = h.do(t, http.MethodGet, "/v1/accounts?limit=1&cursor="+page.NextCursor, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[accountPageView](t, rec)
	require.Len(t, page.Accounts, 1)
	require.Equal(t, h.bob.String(), page.Accounts[0].Address)
	require.Equal(t, "40", page.Accounts[0].Balance)

	rec = h.do(t, http.MethodGet, "/v1/pool", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, decode[map[string]any](t, rec)["accounts"])
}

func TestOperatorActionsAreAudited(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, func(cfg *Config) {
		cfg.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	})

	rec := h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "0"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPut, "/v1/params/fee", map[string]string{"fee": "1/100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var audited []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "poold: operator action" {
			audited = append(audited, entry)
		}
	}
	require.Len(t, audited, 2)
	require.Equal(t, "deposit", audited[0]["action"])
	require.Equal(t, "bearer", audited[0]["auth_method"])
	require.Equal(t, "", audited[0]["subject"])
	require.Equal(t, h.alice.String(), audited[0]["account"])
	require.Equal(t, "100", audited[0]["amount"])
	require.Equal(t, "set_fee", audited[1]["action"])
	require.Equal(t, "1/100", audited[1]["fee"])
}

func TestInvalidAddressMapsToBadRequest(t *testing.T) {
	status, body := errorStatus(liquidity.ErrInvalidAddress)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, liquidity.ErrInvalidAddress.Error(), body.Error)
}

func TestApplyRewardsAfterEpochAdvance(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/admin/epoch/advance", map[string]uint64{"count": 1}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(1), decode[map[string]uint64](t, rec)["epoch"])

	rec = h.do(t, http.MethodPost, "/v1/rewards/apply", map[string]any{"all": true}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := decode[batchView](t, rec)
	require.Equal(t, 1, batch.Accrued)
	require.Equal(t, "10", batch.Minted)
	require.True(t, batch.Done)

	rec = h.do(t, http.MethodGet, "/v1/accounts/"+h.alice.String(), nil, false)
	account := decode[accountView](t, rec)
	require.Equal(t, "111", account.Balance)
	require.Equal(t, uint64(1), account.LastAccrualEpoch)
}

func TestFundReportsBalance(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/admin/fund", movementRequest{Account: h.bob.String(), Amount: "25"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "25", decode[map[string]string](t, rec)["native"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/healthz", nil, false)
	rec := h.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fusd_http_requests_total")
}

func TestEventStreamOriginPolicy(t *testing.T) {
	dial := func(t *testing.T, h *harness) (*http.Response, error) {
		ts := httptest.NewServer(h.srv.Handler())
		t.Cleanup(ts.Close)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws"
		header := http.Header{"Origin": []string{"https://wallet.example"}}
		conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
		if err == nil {
			conn.Close(websocket.StatusNormalClosure, "done")
		}
		return resp, err
	}

	resp, err := dial(t, newHarness(t))
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = dial(t, newHarness(t, func(cfg *Config) {
		cfg.OriginPatterns = []string{"wallet.example"}
	}))
	require.NoError(t, err)
}

func TestEventStreamDeliversCommittedOperations(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The harness already changed the reward parameters, so the backlog
	// starts with that event.
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var first streamPayload
	require.NoError(t, json.Unmarshal(data, &first))
	require.Equal(t, events.TypeLiquidityParams, first.Type)

	rec := h.do(t, http.MethodPost, "/v1/deposit", movementRequest{Account: h.alice.String(), Amount: "100"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	for {
		_, data, err = conn.Read(ctx)
		require.NoError(t, err)
		var payload streamPayload
		require.NoError(t, json.Unmarshal(data, &payload))
		if payload.Type == events.TypeLiquidityDeposit {
			require.Equal(t, "1", payload.Attributes["bonus"])
			require.Equal(t, h.alice.String(), payload.Attributes["account"])
			return
		}
	}
}
