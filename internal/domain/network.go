package domain

import (
	"fmt"
	"strings"
)

// Network identifies one of the two supported payment networks.
type Network string

const (
	NetworkSolana Network = "solana"
	NetworkBase   Network = "base"
)

// Networks lists every supported network in settlement order.
var Networks = []Network{NetworkSolana, NetworkBase}

// String returns the string representation of Network.
func (n Network) String() string {
	return string(n)
}

// IsValid checks if the network is a supported value.
func (n Network) IsValid() bool {
	return n == NetworkSolana || n == NetworkBase
}

// Asset returns the ticker of the network's native asset.
func (n Network) Asset() string {
	switch n {
	case NetworkSolana:
		return "SOL"
	case NetworkBase:
		return "ETH"
	default:
		return ""
	}
}

// Decimals returns the number of base units per whole native unit, as a power of ten.
// SOL is counted in lamports (1e9), ETH in wei (1e18).
func (n Network) Decimals() int32 {
	switch n {
	case NetworkSolana:
		return 9
	case NetworkBase:
		return 18
	default:
		return 0
	}
}

// DisplayPlaces is the number of decimal places used when showing amounts.
func (n Network) DisplayPlaces() int32 {
	if n == NetworkSolana {
		return 6
	}
	return 8
}

// ParseNetwork parses a wire value such as "solana" or "Base".
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if !n.IsValid() {
		return "", fmt.Errorf("invalid network %q: must be %q or %q", s, NetworkSolana, NetworkBase)
	}
	return n, nil
}
