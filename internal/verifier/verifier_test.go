package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arcade-pot/internal/evm"
	"arcade-pot/internal/jsonrpc"
	evmstub "arcade-pot/internal/evm/stub"
	"arcade-pot/internal/solana"
	solstub "arcade-pot/internal/solana/stub"
)

const (
	solHouse  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	solPayer  = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"
	baseHouse = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func solTx(sig string, houseDelta uint64, blockTime int64) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		Slot:      1,
		BlockTime: blockTime,
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{10_000_000_000, 1_000_000_000, 1},
			PostBalances: []uint64{10_000_000_000 - houseDelta - 5000, 1_000_000_000 + houseDelta, 1},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{solPayer, solHouse, solana.SystemProgramID},
		},
	}
}

func newSolanaVerifier(t *testing.T, rpc solana.RPCClient) *SolanaVerifier {
	t.Helper()
	v, err := NewSolanaVerifier(SolanaOptions{RPC: rpc, HouseAddress: solHouse, Now: fixedNow})
	if err != nil {
		t.Fatalf("NewSolanaVerifier: %v", err)
	}
	return v
}

func TestSolanaVerifier(t *testing.T) {
	expected := decimal.RequireFromString("0.0025")
	fresh := testNow.Add(-10 * time.Minute).Unix()

	tests := []struct {
		name    string
		setup   func(rpc *solstub.RPCClient)
		wantErr error
		want    string
	}{
		{
			name:  "exact amount",
			setup: func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 2_500_000, fresh)) },
			want:  "0.0025",
		},
		{
			name:  "within tolerance",
			setup: func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 2_250_000, fresh)) },
			want:  "0.00225",
		},
		{
			name: "confirmed outside the recent status cache",
			setup: func(rpc *solstub.RPCClient) {
				rpc.AddTransaction(solTx("sig", 2_500_000, fresh))
				rpc.Evicted["sig"] = true
			},
			want: "0.0025",
		},
		{
			name:    "below tolerance",
			setup:   func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 2_249_999, fresh)) },
			wantErr: ErrInsufficientAmount,
		},
		{
			name:    "unknown signature",
			setup:   func(rpc *solstub.RPCClient) {},
			wantErr: ErrNotFound,
		},
		{
			name: "failed on chain",
			setup: func(rpc *solstub.RPCClient) {
				tx := solTx("sig", 2_500_000, fresh)
				tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
				rpc.AddTransaction(tx)
			},
			wantErr: ErrReverted,
		},
		{
			name: "house not involved",
			setup: func(rpc *solstub.RPCClient) {
				tx := solTx("sig", 2_500_000, fresh)
				tx.Message.AccountKeys[1] = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
				rpc.AddTransaction(tx)
			},
			wantErr: ErrWrongRecipient,
		},
		{
			name:    "no balance increase",
			setup:   func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 0, fresh)) },
			wantErr: ErrZeroValue,
		},
		{
			name:    "older than two hours",
			setup:   func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 2_500_000, testNow.Add(-2*time.Hour-time.Second).Unix())) },
			wantErr: ErrStale,
		},
		{
			name:    "missing block time",
			setup:   func(rpc *solstub.RPCClient) { rpc.AddTransaction(solTx("sig", 2_500_000, 0)) },
			wantErr: ErrNotFound,
		},
		{
			name: "status only processed",
			setup: func(rpc *solstub.RPCClient) {
				rpc.AddTransaction(solTx("sig", 2_500_000, fresh))
				rpc.Statuses["sig"] = &solana.SignatureStatus{ConfirmationStatus: "processed"}
			},
			wantErr: ErrNotFound,
		},
		{
			name: "incomplete balances",
			setup: func(rpc *solstub.RPCClient) {
				tx := solTx("sig", 2_500_000, fresh)
				tx.Meta.PostBalances = tx.Meta.PostBalances[:1]
				rpc.AddTransaction(tx)
			},
			wantErr: ErrNotFound,
		},
		{
			name:    "transport error",
			setup:   func(rpc *solstub.RPCClient) { rpc.Err = solstub.ErrUnavailable },
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := solstub.NewRPCClient()
			tt.setup(rpc)
			v := newSolanaVerifier(t, rpc)

			res, err := v.Verify(context.Background(), "sig", expected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() unexpected error: %v", err)
			}
			if !res.AmountNative.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("AmountNative = %s, want %s", res.AmountNative, tt.want)
			}
			if res.ConfirmedAt != fresh {
				t.Errorf("ConfirmedAt = %d, want %d", res.ConfirmedAt, fresh)
			}
		})
	}
}

// archiveNode answers getSignatureStatuses like a real node: a signature that
// left the recent status cache is only found with searchTransactionHistory.
func archiveNode(t *testing.T, blockTime int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		var result interface{}
		switch req.Method {
		case "getTransaction":
			result = map[string]interface{}{
				"slot":      int64(1),
				"blockTime": blockTime,
				"meta": map[string]interface{}{
					"err":          nil,
					"preBalances":  []uint64{10_000_000_000, 1_000_000_000, 1},
					"postBalances": []uint64{9_997_495_000, 1_002_500_000, 1},
				},
				"transaction": map[string]interface{}{
					"message": map[string]interface{}{
						"accountKeys": []string{solPayer, solHouse, solana.SystemProgramID},
					},
				},
			}
		case "getSignatureStatuses":
			var opts struct {
				SearchTransactionHistory bool `json:"searchTransactionHistory"`
			}
			if len(req.Params) > 1 {
				json.Unmarshal(req.Params[1], &opts)
			}
			value := []interface{}{nil}
			if opts.SearchTransactionHistory {
				value = []interface{}{map[string]interface{}{"slot": 1, "err": nil, "confirmationStatus": "finalized"}}
			}
			result = map[string]interface{}{"context": map[string]interface{}{"slot": 400}, "value": value}
		default:
			t.Errorf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func TestSolanaVerifier_PaymentOlderThanStatusCache(t *testing.T) {
	confirmed := testNow.Add(-90 * time.Minute).Unix()
	server := archiveNode(t, confirmed)
	defer server.Close()

	rpc := solana.NewHTTPClient(server.URL, jsonrpc.WithMaxRetries(0))
	v := newSolanaVerifier(t, rpc)

	res, err := v.Verify(context.Background(), "sig", decimal.RequireFromString("0.0025"))
	if err != nil {
		t.Fatalf("Verify() error = %v, want payment accepted", err)
	}
	if res.ConfirmedAt != confirmed {
		t.Errorf("ConfirmedAt = %d, want %d", res.ConfirmedAt, confirmed)
	}
}

func TestSolanaVerifier_InvalidHouse(t *testing.T) {
	_, err := NewSolanaVerifier(SolanaOptions{RPC: solstub.NewRPCClient(), HouseAddress: "not-base58!"})
	if err == nil {
		t.Fatal("expected error for invalid house wallet")
	}
}

func newBaseVerifier(t *testing.T, rpc evm.RPCClient) *BaseVerifier {
	t.Helper()
	v, err := NewBaseVerifier(BaseOptions{RPC: rpc, HouseAddress: baseHouse, Now: fixedNow})
	if err != nil {
		t.Fatalf("NewBaseVerifier: %v", err)
	}
	return v
}

func TestBaseVerifier(t *testing.T) {
	expected := decimal.RequireFromString("0.0001")
	fresh := testNow.Add(-5 * time.Minute).Unix()
	house := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	wei := func(s string) *big.Int {
		v, _ := new(big.Int).SetString(s, 10)
		return v
	}

	tests := []struct {
		name    string
		setup   func(rpc *evmstub.RPCClient)
		wantErr error
		want    string
	}{
		{
			name:  "exact amount",
			setup: func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, wei("100000000000000"), 1, fresh) },
			want:  "0.0001",
		},
		{
			name:  "within tolerance",
			setup: func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, wei("90000000000000"), 1, fresh) },
			want:  "0.00009",
		},
		{
			name:    "below tolerance",
			setup:   func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, wei("89999999999999"), 1, fresh) },
			wantErr: ErrInsufficientAmount,
		},
		{
			name:    "reverted",
			setup:   func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, wei("100000000000000"), 0, fresh) },
			wantErr: ErrReverted,
		},
		{
			name:    "wrong recipient",
			setup:   func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", "0x0000000000000000000000000000000000000001", wei("100000000000000"), 1, fresh) },
			wantErr: ErrWrongRecipient,
		},
		{
			name:    "zero value token transfer",
			setup:   func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, big.NewInt(0), 1, fresh) },
			wantErr: ErrZeroValue,
		},
		{
			name:    "stale",
			setup:   func(rpc *evmstub.RPCClient) { rpc.AddPayment("0xabc", house, wei("100000000000000"), 1, testNow.Add(-3*time.Hour).Unix()) },
			wantErr: ErrStale,
		},
		{
			name:    "unknown hash",
			setup:   func(rpc *evmstub.RPCClient) {},
			wantErr: ErrNotFound,
		},
		{
			name: "pending without receipt",
			setup: func(rpc *evmstub.RPCClient) {
				rpc.AddPayment("0xabc", house, wei("100000000000000"), 1, fresh)
				delete(rpc.Receipts, "0xabc")
			},
			wantErr: ErrNotFound,
		},
		{
			name: "block unavailable",
			setup: func(rpc *evmstub.RPCClient) {
				rpc.AddPayment("0xabc", house, wei("100000000000000"), 1, fresh)
				delete(rpc.Blocks, "0xblock-0xabc")
			},
			wantErr: ErrNotFound,
		},
		{
			name:    "transport error",
			setup:   func(rpc *evmstub.RPCClient) { rpc.Err = errors.New("connection refused") },
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := evmstub.NewRPCClient()
			tt.setup(rpc)
			v := newBaseVerifier(t, rpc)

			res, err := v.Verify(context.Background(), "0xABC", expected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() unexpected error: %v", err)
			}
			if !res.AmountNative.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("AmountNative = %s, want %s", res.AmountNative, tt.want)
			}
			if res.ConfirmedAt != fresh {
				t.Errorf("ConfirmedAt = %d, want %d", res.ConfirmedAt, fresh)
			}
		})
	}
}

func TestBaseVerifier_InvalidHouse(t *testing.T) {
	_, err := NewBaseVerifier(BaseOptions{RPC: evmstub.NewRPCClient(), HouseAddress: "0x1234"})
	if err == nil {
		t.Fatal("expected error for invalid house wallet")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(notFound(errors.New("timeout"))) {
		t.Error("wrapped transport error should be retryable")
	}
	for _, err := range []error{ErrReverted, ErrWrongRecipient, ErrZeroValue, ErrInsufficientAmount, ErrStale} {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
