package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used for verification and payouts.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil if the transaction is unknown to the node.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetLatestBlockhash returns a recent blockhash for signing.
	GetLatestBlockhash(ctx context.Context) (string, error)

	// SendTransaction submits a signed, base64-encoded transaction and returns its signature.
	SendTransaction(ctx context.Context, encoded string) (string, error)

	// GetSignatureStatus returns the status of a signature, nil if unknown.
	// Without searchHistory the node only consults its recent status cache,
	// a few minutes of slots.
	GetSignatureStatus(ctx context.Context, signature string, searchHistory bool) (*SignatureStatus, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds), 0 if unknown
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err          interface{}
	PreBalances  []uint64
	PostBalances []uint64
	LogMessages  []string
	// LoadedWritable and LoadedReadonly are address table lookups of v0 transactions.
	LoadedWritable []string
	LoadedReadonly []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// Accounts returns account keys in balance order: static keys followed by
// loaded writable and loaded readonly addresses.
func (tx *Transaction) Accounts() []string {
	if tx.Message == nil {
		return nil
	}
	keys := append([]string(nil), tx.Message.AccountKeys...)
	if tx.Meta != nil {
		keys = append(keys, tx.Meta.LoadedWritable...)
		keys = append(keys, tx.Meta.LoadedReadonly...)
	}
	return keys
}

// BalanceDelta returns post minus pre lamports for account.
// Ok is false when the account is absent or balances are incomplete.
func (tx *Transaction) BalanceDelta(account string) (delta int64, ok bool) {
	if tx.Meta == nil {
		return 0, false
	}
	for i, key := range tx.Accounts() {
		if key != account {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			return 0, false
		}
		return int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i]), true
	}
	return 0, false
}

// SignatureStatus is the result of getSignatureStatuses for one signature.
type SignatureStatus struct {
	Slot               int64
	ConfirmationStatus string // processed, confirmed, finalized
	Err                interface{}
}

// Confirmed reports whether the signature reached confirmed or finalized commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}
