// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dexarb/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/dexarb/business/blockchain/infra/ethereum"
)

// SubmitterConfig holds configuration for the transaction submitter.
type SubmitterConfig struct {
	RPCURL         string        // Ethereum RPC endpoint
	PrivateKey     string        // hex signer key; empty disables submission
	Confirmations  uint64        // blocks required before a tx counts as confirmed
	ReceiptPoll    time.Duration // how often to poll for the receipt
	ConfirmTimeout time.Duration // give up waiting for confirmation after this
	MaxRetries     int           // submission attempts before failing
	RetryBackoff   time.Duration // base delay between attempts, doubled each retry
}

// DefaultSubmitterConfig returns sensible defaults.
func DefaultSubmitterConfig(rpcURL string) SubmitterConfig {
	return SubmitterConfig{
		RPCURL:         rpcURL,
		Confirmations:  1,
		ReceiptPoll:    3 * time.Second,
		ConfirmTimeout: 2 * time.Minute,
		MaxRetries:     3,
		RetryBackoff:   2 * time.Second,
	}
}

// submitterMetrics holds OTEL metric instruments.
type submitterMetrics struct {
	txSubmitted    metric.Int64Counter
	txConfirmed    metric.Int64Counter
	txFailed       metric.Int64Counter
	confirmLatency metric.Float64Histogram
}

// Submitter signs, submits and confirms transactions. Submission retries
// with doubling backoff; confirmation polls the receipt until the
// configured block depth is reached.
type Submitter struct {
	config SubmitterConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	state     domain.ConnectionState
	stateMu   sync.RWMutex
	lastBlock atomic.Uint64

	receiptCB *circuitbreaker.CircuitBreaker[*types.Receipt]

	tracer  trace.Tracer
	metrics *submitterMetrics
}

// NewSubmitter creates a transaction submitter. The private key is parsed
// eagerly so a bad key fails at construction, not at trade time.
func NewSubmitter(cfg SubmitterConfig, log logger.LoggerInterface) (*Submitter, error) {
	s := &Submitter{
		config: cfg,
		logger: log,
		state:  domain.StateDisconnected,
		tracer: otel.Tracer(tracerName),
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("invalid signer key"))
		}
		s.key = key
		s.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	s.receiptCB = circuitbreaker.New[*types.Receipt](circuitbreaker.DefaultConfig("eth-receipts"))

	return s, nil
}

func (s *Submitter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &submitterMetrics{}

	s.metrics.txSubmitted, err = meter.Int64Counter(
		"eth_tx_submitted_total",
		metric.WithDescription("Total transactions submitted"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.txConfirmed, err = meter.Int64Counter(
		"eth_tx_confirmed_total",
		metric.WithDescription("Total transactions confirmed"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.txFailed, err = meter.Int64Counter(
		"eth_tx_failed_total",
		metric.WithDescription("Total transactions failed or reverted"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.confirmLatency, err = meter.Float64Histogram(
		"eth_tx_confirm_latency_ms",
		metric.WithDescription("Latency from submission to confirmation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Connect dials the RPC endpoint and resolves the chain id.
func (s *Submitter) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "eth.submitter.connect",
		trace.WithAttributes(attribute.String("url", s.config.RPCURL)),
	)
	defer span.End()

	s.setState(domain.StateConnecting)

	client, err := ethclient.DialContext(ctx, s.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		s.setState(domain.StateDisconnected)
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect submitter"))
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id failed")
		s.setState(domain.StateDisconnected)
		return apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get chain id"))
	}

	s.clientMu.Lock()
	s.client = client
	s.chainID = chainID
	s.clientMu.Unlock()

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "connected")
	s.logger.Info(ctx, "tx submitter connected",
		"url", s.config.RPCURL,
		"chain_id", chainID.String(),
		"signing", s.key != nil)

	return nil
}

// CanSign reports whether a signer key is configured.
func (s *Submitter) CanSign() bool {
	return s.key != nil
}

// SubmitCall signs and submits a contract call, then blocks until the
// transaction is confirmed or the confirmation window times out. Returns
// the transaction hash and the gas actually used.
func (s *Submitter) SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (string, uint64, error) {
	ctx, span := s.tracer.Start(ctx, "eth.submit_call",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.Int("data_len", len(data)),
			attribute.Int64("gas_limit", int64(gasLimit)),
		),
	)
	defer span.End()

	if s.key == nil {
		err := apperror.New(apperror.CodeTxSubmissionFailed,
			apperror.WithContext("no signer configured"))
		span.RecordError(err)
		return "", 0, err
	}

	s.clientMu.RLock()
	client := s.client
	chainID := s.chainID
	s.clientMu.RUnlock()

	if client == nil {
		err := apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("submitter not connected"))
		span.RecordError(err)
		return "", 0, err
	}

	signed, err := s.buildAndSign(ctx, client, chainID, to, data, gasLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return "", 0, err
	}

	submittedAt := time.Now()
	if err := s.sendWithRetry(ctx, client, signed); err != nil {
		s.metrics.txFailed.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", 0, err
	}

	s.metrics.txSubmitted.Add(ctx, 1)
	hash := signed.Hash()
	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))
	s.logger.Info(ctx, "transaction submitted", "hash", hash.Hex(), "to", to.Hex())

	receipt, err := s.waitForReceipt(ctx, client, hash)
	if err != nil {
		s.metrics.txFailed.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
		return hash.Hex(), 0, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		s.metrics.txFailed.Add(ctx, 1)
		err := apperror.New(apperror.CodeTxSubmissionFailed,
			apperror.WithContext("transaction reverted: "+hash.Hex()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverted")
		return hash.Hex(), receipt.GasUsed, err
	}

	s.lastBlock.Store(receipt.BlockNumber.Uint64())
	s.metrics.txConfirmed.Add(ctx, 1)
	s.metrics.confirmLatency.Record(ctx, float64(time.Since(submittedAt).Milliseconds()))

	span.SetAttributes(attribute.Int64("gas_used", int64(receipt.GasUsed)))
	span.SetStatus(codes.Ok, "confirmed")
	s.logger.Info(ctx, "transaction confirmed",
		"hash", hash.Hex(),
		"block", receipt.BlockNumber.Uint64(),
		"gas_used", receipt.GasUsed)

	return hash.Hex(), receipt.GasUsed, nil
}

// buildAndSign assembles an EIP-1559 transaction for the call.
func (s *Submitter) buildAndSign(ctx context.Context, client *ethclient.Client, chainID *big.Int, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	nonce, err := client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get nonce"))
	}

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get tip cap"))
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get head"))
	}

	// feeCap = 2*baseFee + tip, the usual headroom for one repricing.
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tipCap,
	)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, apperror.New(apperror.CodeTxSubmissionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to sign transaction"))
	}
	return signed, nil
}

// sendWithRetry submits with doubling backoff between attempts.
func (s *Submitter) sendWithRetry(ctx context.Context, client *ethclient.Client, tx *types.Transaction) error {
	backoff := s.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := client.SendTransaction(ctx, tx); err != nil {
			lastErr = err
			s.logger.Warn(ctx, "send transaction failed",
				"attempt", attempt+1,
				"error", err)
			continue
		}
		return nil
	}

	return apperror.New(apperror.CodeTxSubmissionFailed,
		apperror.WithCause(lastErr),
		apperror.WithContext(fmt.Sprintf("gave up after %d attempts", s.config.MaxRetries)))
}

// waitForReceipt polls until the receipt exists and has enough
// confirmations, or the window times out.
func (s *Submitter) waitForReceipt(ctx context.Context, client *ethclient.Client, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := s.receiptCB.Execute(func() (*types.Receipt, error) {
			r, rerr := client.TransactionReceipt(ctx, hash)
			if errors.Is(rerr, ethereum.NotFound) {
				// Still pending. Not a failure for the breaker.
				return nil, nil
			}
			return r, rerr
		})
		if err == nil && receipt != nil {
			confirmed, cerr := s.hasConfirmations(ctx, client, receipt)
			if cerr != nil {
				return nil, cerr
			}
			if confirmed {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperror.New(apperror.CodeTxConfirmationTimeout,
					apperror.WithContext("timed out waiting for "+hash.Hex()))
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Submitter) hasConfirmations(ctx context.Context, client *ethclient.Client, receipt *types.Receipt) (bool, error) {
	if s.config.Confirmations <= 1 {
		return true, nil
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get head for confirmations"))
	}

	depth := new(big.Int).Sub(head.Number, receipt.BlockNumber).Uint64() + 1
	return depth >= s.config.Confirmations, nil
}

// LatestBlock retrieves the most recent block header.
func (s *Submitter) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	client := s.client
	s.clientMu.RUnlock()

	if client == nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("submitter not connected"))
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	s.lastBlock.Store(header.Number.Uint64())
	span.SetStatus(codes.Ok, "fetched")

	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		GasLimit:   header.GasLimit,
		GasUsed:    header.GasUsed,
		BaseFee:    header.BaseFee,
	}, nil
}

// Status returns the submitter's connection status.
func (s *Submitter) Status() domain.ConnectionStatus {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()

	return domain.ConnectionStatus{
		State:      state,
		LastBlock:  s.lastBlock.Load(),
		LastUpdate: time.Now(),
	}
}

// Close closes the submitter.
func (s *Submitter) Close() error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.setState(domain.StateDisconnected)
	return nil
}

func (s *Submitter) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}
