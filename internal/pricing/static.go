package pricing

import (
	"context"
	"fmt"

	"arcade-pot/internal/domain"
)

// Static is an Oracle with fixed prices, used by tests and offline runs.
type Static map[domain.Network]float64

// Price returns the fixed price for network.
func (s Static) Price(_ context.Context, network domain.Network) (float64, error) {
	price, ok := s[network]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: no price for %s", ErrUnavailable, network)
	}
	return price, nil
}
