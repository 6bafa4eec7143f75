package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/payment"
	"arcade-pot/internal/pricing"
	"arcade-pot/internal/scoring"
	"arcade-pot/internal/session"
	"arcade-pot/internal/settlement"
	"arcade-pot/internal/storage/memory"
	"arcade-pot/internal/verifier"
)

const (
	adminKey  = "admin-key"
	solHouse  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	solPlayer = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"
	baseHouse = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	ethPlayer = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

// fakeVerifier accepts every transaction at the expected amount unless
// an error is registered for it.
type fakeVerifier struct {
	network domain.Network
	errs    map[string]error
}

func (f *fakeVerifier) Network() domain.Network { return f.network }

func (f *fakeVerifier) Verify(_ context.Context, txID string, expected decimal.Decimal) (*verifier.Result, error) {
	if err, ok := f.errs[txID]; ok {
		return nil, err
	}
	return &verifier.Result{AmountNative: expected, ConfirmedAt: time.Now().Unix()}, nil
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	payments *memory.PaymentStore
	sol      *fakeVerifier
}

func newTestServer(t *testing.T, oracle pricing.Oracle) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payments := memory.NewPaymentStore()
	scores := memory.NewScoreStore(payments)
	winners := memory.NewWinnerStore()

	issuer, err := session.NewIssuer(session.IssuerOptions{Payments: payments, Secret: []byte("secret")})
	require.NoError(t, err)

	sol := &fakeVerifier{network: domain.NetworkSolana, errs: map[string]error{}}
	base := &fakeVerifier{network: domain.NetworkBase, errs: map[string]error{}}
	pots := ledger.New(payments)
	admission := scoring.NewAdmission(scoring.AdmissionOptions{Sessions: issuer, Scores: scores})

	server := New(Options{
		Payments: payment.New(payment.Options{
			Issuer:    issuer,
			Verifiers: []verifier.Verifier{sol, base},
			Oracle:    oracle,
			HouseWallets: map[domain.Network]string{
				domain.NetworkSolana: solHouse,
				domain.NetworkBase:   baseHouse,
			},
		}),
		Sessions: issuer,
		Scores:   admission,
		Pots:     pots,
		Settlement: settlement.New(settlement.Options{
			Winners:  winners,
			Attempts: memory.NewAttemptLog(),
			Selector: settlement.NewSelector(scores),
			Pots:     pots,
		}),
		PaymentLog: payments,
		AdminKey:   adminKey,
	})

	return &testServer{t: t, handler: server.Handler(), payments: payments, sol: sol}
}

func (s *testServer) do(method, path string, body interface{}, header ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (s *testServer) admin(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	s.t.Helper()
	return s.do(method, path, body, AdminKeyHeader, adminKey)
}

func (s *testServer) verify(chain, tx, wallet string) string {
	s.t.Helper()
	rec, body := s.do(http.MethodPost, "/api/payment/verify", gin.H{
		"chain": chain, "txSignature": tx, "walletAddress": wallet,
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return body["token"].(string)
}

var prices = pricing.Static{domain.NetworkSolana: 100, domain.NetworkBase: 2500}

func TestHealth(t *testing.T) {
	s := newTestServer(t, prices)

	rec, body := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotZero(t, body["ts"])
}

func TestPaymentInfo(t *testing.T) {
	s := newTestServer(t, prices)

	rec, body := s.do(http.MethodGet, "/api/payment/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.25, body["entryFeeUsd"])

	sol := body["solana"].(map[string]interface{})
	assert.Equal(t, solHouse, sol["address"])
	assert.Equal(t, "0.002500", sol["amount"])
	assert.Equal(t, 100.0, sol["price"])

	base := body["base"].(map[string]interface{})
	assert.Equal(t, "0.00010000", base["amount"])
}

func TestPaymentInfo_PriceUnavailable(t *testing.T) {
	s := newTestServer(t, pricing.Static{domain.NetworkSolana: 100})

	rec, body := s.do(http.MethodGet, "/api/payment/info", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, true, body["retryable"])
}

func TestVerifyPayment(t *testing.T) {
	s := newTestServer(t, prices)

	rec, body := s.do(http.MethodPost, "/api/payment/verify", gin.H{
		"chain": "solana", "txSignature": "sig-1", "walletAddress": solPlayer,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, 7200.0, body["expiresIn"])

	rec, _ = s.do(http.MethodPost, "/api/payment/verify", gin.H{
		"chain": "solana", "txSignature": "sig-1", "walletAddress": solPlayer,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyPayment_Errors(t *testing.T) {
	s := newTestServer(t, prices)
	s.sol.errs["missing"] = verifier.ErrNotFound
	s.sol.errs["short"] = fmt.Errorf("%w: got 0.001", verifier.ErrInsufficientAmount)

	tests := []struct {
		name      string
		body      gin.H
		status    int
		retryable bool
	}{
		{"missing fields", gin.H{"chain": "solana"}, http.StatusBadRequest, false},
		{"bad chain", gin.H{"chain": "dogecoin", "txSignature": "x", "walletAddress": solPlayer}, http.StatusBadRequest, false},
		{"bad wallet", gin.H{"chain": "base", "txSignature": "0x1", "walletAddress": "0x12"}, http.StatusBadRequest, false},
		{"not found", gin.H{"chain": "solana", "txSignature": "missing", "walletAddress": solPlayer}, http.StatusServiceUnavailable, true},
		{"insufficient", gin.H{"chain": "solana", "txSignature": "short", "walletAddress": solPlayer}, http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(http.MethodPost, "/api/payment/verify", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["error"])
			if tt.retryable {
				assert.Equal(t, true, body["retryable"])
			} else {
				assert.Nil(t, body["retryable"])
			}
		})
	}

	n, err := s.payments.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, n, "failed verifications must not record payments")
}

func TestSessionAndScore(t *testing.T) {
	s := newTestServer(t, prices)
	token := s.verify("solana", "sig-1", solPlayer)

	rec, body := s.do(http.MethodGet, "/api/payment/session/"+token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])

	rec, body = s.do(http.MethodGet, "/api/payment/session/garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["valid"])

	// rules run before the session is touched
	rec, _ = s.do(http.MethodPost, "/api/score/submit", gin.H{
		"token": token, "score": 500, "frames": 1000, "gameMode": "pacman",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(http.MethodPost, "/api/score/submit", gin.H{
		"token": token, "score": 4200, "frames": 3600, "gameMode": "pacman", "turboMode": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, body["rank"])

	rec, _ = s.do(http.MethodPost, "/api/score/submit", gin.H{
		"token": token, "score": 4200, "frames": 3600, "gameMode": "pacman",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/payment/session/"+token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])
}

func TestSubmitScore_MissingFields(t *testing.T) {
	s := newTestServer(t, prices)

	rec, _ := s.do(http.MethodPost, "/api/score/submit", gin.H{"token": "t", "frames": 2000, "gameMode": "pacman"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/score/submit", gin.H{"token": "t", "score": 1.5, "frames": 2000, "gameMode": "pacman"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t, prices)

	for i, score := range []int{300, 900} {
		token := s.verify("solana", fmt.Sprintf("sig-%d", i), solPlayer)
		rec, _ := s.do(http.MethodPost, "/api/score/submit", gin.H{
			"token": token, "score": score, "frames": 3600, "gameMode": "mspacman",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	s.verify("base", "0xabc", ethPlayer)

	rec, body := s.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DayKey(time.Now()), body["dayKey"])

	scores := body["scores"].([]interface{})
	require.Len(t, scores, 2)
	top := scores[0].(map[string]interface{})
	assert.Equal(t, 900.0, top["score"])
	assert.Equal(t, "EkSnNW...KN1N", top["wallet"])

	pot := body["pot"].(map[string]interface{})
	assert.Equal(t, "0.005000", pot["solTotal"])
	assert.Equal(t, "0.00010000", pot["ethTotal"])
	assert.Equal(t, 3.0, pot["playerCount"])
	assert.Equal(t, 0.75, pot["usdTotal"])
	assert.Equal(t, 0.68, pot["winnerPrizeUsd"])
}

func TestAdmin_Unauthorized(t *testing.T) {
	s := newTestServer(t, prices)

	for _, key := range []string{"", "wrong"} {
		rec, _ := s.do(http.MethodGet, "/api/admin/payments", nil, AdminKeyHeader, key)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAdmin_SettleAndMarkPaid(t *testing.T) {
	s := newTestServer(t, prices)
	dayKey := domain.DayKey(time.Now())

	rec, body := s.admin(http.MethodPost, "/api/admin/payout/"+dayKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_scores", body["outcome"])

	token := s.verify("solana", "sig-1", solPlayer)
	rec, _ = s.do(http.MethodPost, "/api/score/submit", gin.H{
		"token": token, "score": 1000, "frames": 3600, "gameMode": "pacman",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.admin(http.MethodPost, "/api/admin/payout/"+dayKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "partial_or_manual", body["status"])
	assert.Equal(t, []interface{}{"solana"}, body["unresolved"])
	assert.NotEmpty(t, body["note"])

	winner := body["winner"].(map[string]interface{})
	legs := winner["legs"].(map[string]interface{})
	assert.Equal(t, "manual_required", legs["solana"].(map[string]interface{})["status"])
	assert.Equal(t, "no_pool", legs["base"].(map[string]interface{})["status"])

	rec, body = s.admin(http.MethodGet, "/api/admin/day/"+dayKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.002250 SOL", body["prizes"].(map[string]interface{})["solana"])
	assert.Equal(t, "0.000250 SOL", body["house"].(map[string]interface{})["solana"])
	assert.Equal(t, solPlayer, body["winner"].(map[string]interface{})["wallet"])
	assert.NotNil(t, body["payoutRecord"])

	rec, _ = s.admin(http.MethodPatch, "/api/admin/payout/"+dayKey+"/mark-paid", gin.H{"notes": "sent from cold wallet"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.admin(http.MethodPost, "/api/admin/payout/"+dayKey, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.admin(http.MethodPatch, "/api/admin/payout/2020-01-01/mark-paid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.admin(http.MethodPost, "/api/admin/payout/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hrec := httptest.NewRecorder()
	s.handler.ServeHTTP(hrec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/history", nil))
	require.Equal(t, http.StatusOK, hrec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(hrec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "paid", history[0]["payoutStatus"])
	assert.Equal(t, "EkSnNW...KN1N", history[0]["wallet"])
	assert.Nil(t, history[0]["legs"])
}

func TestAdmin_ListPayments(t *testing.T) {
	s := newTestServer(t, prices)
	for i := 0; i < 3; i++ {
		s.verify("solana", fmt.Sprintf("sig-%d", i), solPlayer)
	}

	rec, body := s.admin(http.MethodGet, "/api/admin/payments?limit=500&page=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200.0, body["limit"])
	payments := body["payments"].([]interface{})
	require.Len(t, payments, 3)
	first := payments[0].(map[string]interface{})
	assert.NotContains(t, first, "sessionToken")
	assert.Equal(t, "solana", first["chain"])

	rec, body = s.admin(http.MethodGet, "/api/admin/payments?limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["payments"].([]interface{}), 1)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, prices)

	rec, _ := s.do(http.MethodOptions, "/api/payment/verify", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
