package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"arcade-pot/internal/domain"
)

// ComputeLegID computes a deterministic leg_id using SHA256.
// Formula: SHA256(day_key|network|wallet)
// Returns hex-encoded hash (64 characters).
// Base wallets are lowercased so checksum casing does not change the id.
func ComputeLegID(dayKey string, network domain.Network, wallet string) string {
	if network == domain.NetworkBase {
		wallet = strings.ToLower(wallet)
	}

	data := fmt.Sprintf("%s|%s|%s",
		dayKey,
		string(network),
		wallet,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
