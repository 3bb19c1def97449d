package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
)

// ChainClient reads reserve and transaction state from the blockchain.
type ChainClient interface {
	ReserveBalance(ctx context.Context) (decimal.Decimal, error)
	Receipt(ctx context.Context, hash string) (domain.ChainReceipt, error)
}
