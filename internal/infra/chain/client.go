package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/config"
	"github.com/arklim/kether-core/internal/infra/telemetry"
)

const tracerName = "github.com/arklim/kether-core/internal/infra/chain"

// balanceOfSelector is the ERC-20 balanceOf(address) function selector.
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// backend is the subset of ethclient.Client used here.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client reads the token reserve and transaction receipts over JSON-RPC.
type Client struct {
	backend  backend
	cfg      config.ChainSettings
	token    common.Address
	reserve  common.Address
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	newDelay func() backoff.BackOff
}

// Option customises the client.
type Option func(*Client)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMetrics records RPC latency and failures.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg config.ChainSettings, logger *zap.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("chain rpc url is required")
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	client, err := newClient(rpc, cfg, logger, opts...)
	if err != nil {
		rpc.Close()
		return nil, err
	}

	client.logger.Info("Chain client initialized",
		zap.String("token_contract", client.token.Hex()),
		zap.String("reserve_address", client.reserve.Hex()),
		zap.Int32("token_decimals", cfg.TokenDecimals),
	)

	return client, nil
}

func newClient(b backend, cfg config.ChainSettings, logger *zap.Logger, opts ...Option) (*Client, error) {
	if !common.IsHexAddress(cfg.TokenContract) {
		return nil, fmt.Errorf("invalid token contract address %q", cfg.TokenContract)
	}
	if !common.IsHexAddress(cfg.ReserveAddress) {
		return nil, fmt.Errorf("invalid reserve address %q", cfg.ReserveAddress)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 5 * time.Second
	}

	c := &Client{
		backend: b,
		cfg:     cfg,
		token:   common.HexToAddress(cfg.TokenContract),
		reserve: common.HexToAddress(cfg.ReserveAddress),
		logger:  logger,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		newDelay: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ReserveBalance returns the reserve wallet's token balance in whole-token units.
func (c *Client) ReserveBalance(ctx context.Context) (decimal.Decimal, error) {
	data := make([]byte, 0, len(balanceOfSelector)+common.HashLength)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(c.reserve.Bytes(), common.HashLength)...)

	msg := ethereum.CallMsg{To: &c.token, Data: data}

	raw, err := retry(ctx, c, "balance_of", func(ctx context.Context) ([]byte, error) {
		out, err := c.backend.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("empty balanceOf result from %s", c.token.Hex()))
		}
		return out, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	units := new(big.Int).SetBytes(raw)
	return decimal.NewFromBigInt(units, -c.cfg.TokenDecimals), nil
}

// Receipt looks up a transaction receipt. Unknown hashes report Found=false.
func (c *Client) Receipt(ctx context.Context, hash string) (domain.ChainReceipt, error) {
	txHash := common.HexToHash(hash)

	receipt, err := retry(ctx, c, "transaction_receipt", func(ctx context.Context) (*types.Receipt, error) {
		r, err := c.backend.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return r, err
	})
	if err != nil {
		return domain.ChainReceipt{}, err
	}
	if receipt == nil {
		return domain.ChainReceipt{Found: false}, nil
	}

	result := domain.ChainReceipt{
		Found:     true,
		Succeeded: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.backend.Close()
}

// retry runs fn with a per-attempt timeout and bounded exponential backoff.
// Exhausted retries are reported as domain.ErrChainUnavailable.
func retry[T any](ctx context.Context, c *Client, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := c.tracer.Start(ctx, "chain."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	started := time.Now()
	attempts := 0

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
		defer cancel()
		return fn(attemptCtx)
	},
		backoff.WithBackOff(c.newDelay()),
		backoff.WithMaxTries(c.cfg.MaxRetries+1),
	)

	c.metrics.ChainRPC(method, time.Since(started).Seconds(), err)
	span.SetAttributes(attribute.Int("rpc.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Chain RPC failed",
			zap.String("method", method),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		var zero T
		return zero, fmt.Errorf("chain %s: %w: %w", method, domain.ErrChainUnavailable, err)
	}

	return result, nil
}

var _ port.ChainClient = (*Client)(nil)
