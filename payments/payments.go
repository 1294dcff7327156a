// Package payments drives Filecoin Pay rails: streaming USDFC payments from
// a payer to a payee, settled per epoch.
package payments

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"time"

	"dataforge-hub/store"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"
)

// DefaultEpochLength is the Filecoin epoch in seconds.
const DefaultEpochLength = 30

// RateDecimals is the precision of rail rates (USDFC).
const RateDecimals = 18

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(filPayABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// RailConfig describes a rail to create or update.
type RailConfig struct {
	Payer        common.Address
	Payee        common.Address
	MaxRate      *big.Int // USDFC base units per epoch
	LockupPeriod *big.Int // seconds
	Validator    common.Address
}

// RailInfo is the on-chain state of a rail.
type RailInfo struct {
	Payer               common.Address
	Payee               common.Address
	MaxRate             *big.Int
	LockupPeriod        *big.Int
	Validator           common.Address
	LastSettlementEpoch *big.Int
}

// AccountBalance are the payer's funds held by Filecoin Pay.
type AccountBalance struct {
	Locked      *big.Int
	Available   *big.Int
	Obligations *big.Int
}

func zeroBalance() AccountBalance {
	return AccountBalance{Locked: new(big.Int), Available: new(big.Int), Obligations: new(big.Int)}
}

type railCreatedEvent struct {
	RailId [32]byte
	Payer  common.Address
	Payee  common.Address
}

// Client binds the Filecoin Pay contract and records history locally.
type Client struct {
	address  common.Address
	contract *bind.BoundContract
	store    *store.Store
	log      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithStore records created rails and settlements in s.
func WithStore(s *store.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l.WithPrefix("payments") }
}

// New binds Filecoin Pay at address; caller serves reads.
func New(address common.Address, caller bind.ContractCaller, opts ...Option) *Client {
	c := &Client{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, caller, nil, nil),
		log:      log.New(io.Discard),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Address returns the contract address.
func (c *Client) Address() common.Address { return c.address }

// Balance reads the account's Filecoin Pay balances. On failure the
// balances are zero and the error says why.
func (c *Client) Balance(ctx context.Context, account common.Address) (AccountBalance, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getBalance", account); err != nil {
		c.log.Warn("getBalance failed", "account", account, "err", err)
		return zeroBalance(), xerrors.Errorf("getBalance(%s): %w", account, err)
	}
	return AccountBalance{
		Locked:      *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Available:   *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Obligations: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
	}, nil
}

// RailInfo reads a rail's on-chain state.
func (c *Client) RailInfo(ctx context.Context, railID common.Hash) (*RailInfo, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRailInfo", railID); err != nil {
		return nil, xerrors.Errorf("getRailInfo(%s): %w", railID, err)
	}
	return &RailInfo{
		Payer:               *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Payee:               *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		MaxRate:             *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		LockupPeriod:        *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		Validator:           *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		LastSettlementEpoch: *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
	}, nil
}

// EnsureAccount opens the signer's Filecoin Pay account if needed.
func (c *Client) EnsureAccount(ctx context.Context, caps wallet.Capabilities) (common.Hash, error) {
	hash, _, err := c.transact(ctx, caps, "ensureAccount")
	return hash, err
}

// CreateRail opens or updates a rail and waits for inclusion. The rail id
// comes from the RailCreated event; a receipt without one (an update of an
// existing rail) falls back to the transaction hash.
func (c *Client) CreateRail(ctx context.Context, caps wallet.Capabilities, cfg RailConfig) (railID, txHash common.Hash, err error) {
	if cfg.MaxRate == nil || cfg.LockupPeriod == nil {
		return common.Hash{}, common.Hash{}, xerrors.New("createOrUpdateRail: max rate and lockup period are required")
	}
	txHash, receipt, err := c.transact(ctx, caps, "createOrUpdateRail",
		cfg.Payer, cfg.Payee, cfg.MaxRate, cfg.LockupPeriod, cfg.Validator)
	if err != nil {
		return common.Hash{}, txHash, err
	}

	railID, ok := c.RailCreated(receipt)
	if !ok {
		c.log.Warn("no RailCreated event, using tx hash as rail id", "tx", txHash)
		railID = txHash
	}
	c.log.Info("rail created", "rail", railID, "payee", cfg.Payee, "maxRate", cfg.MaxRate)

	if c.store != nil {
		err := c.store.AddRail(ctx, store.Rail{
			ID:           railID.Hex(),
			Payer:        cfg.Payer.Hex(),
			Payee:        cfg.Payee.Hex(),
			Validator:    validatorString(cfg.Validator),
			MaxRate:      cfg.MaxRate.String(),
			LockupPeriod: cfg.LockupPeriod.String(),
			TxHash:       txHash.Hex(),
			CreatedAt:    time.Now(),
		})
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return railID, txHash, xerrors.Errorf("record rail: %w", err)
		}
	}
	return railID, txHash, nil
}

// Settle settles a rail and records it in the settlement history.
func (c *Client) Settle(ctx context.Context, caps wallet.Capabilities, railID common.Hash) (common.Hash, error) {
	hash, _, err := c.transact(ctx, caps, "settle", railID)
	if err != nil {
		return hash, err
	}
	if c.store != nil {
		if err := c.store.AddSettlement(ctx, store.Settlement{RailID: railID.Hex(), TxHash: hash.Hex(), SettledAt: time.Now()}); err != nil {
			return hash, xerrors.Errorf("record settlement: %w", err)
		}
	}
	return hash, nil
}

// Terminate ends a rail and drops it from the active list.
func (c *Client) Terminate(ctx context.Context, caps wallet.Capabilities, railID common.Hash) (common.Hash, error) {
	hash, _, err := c.transact(ctx, caps, "terminate", railID)
	if err != nil {
		return hash, err
	}
	if c.store != nil {
		if err := c.store.RemoveRail(ctx, railID.Hex()); err != nil && !errors.Is(err, store.ErrNotFound) {
			return hash, xerrors.Errorf("forget rail: %w", err)
		}
	}
	return hash, nil
}

// ActiveRails lists rails created from this machine.
func (c *Client) ActiveRails(ctx context.Context) ([]store.Rail, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.ActiveRails(ctx)
}

// SettlementHistory lists recent settlements, newest first.
func (c *Client) SettlementHistory(ctx context.Context) ([]store.Settlement, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.Settlements(ctx)
}

// RailCreated returns the rail id announced by a receipt.
func (c *Client) RailCreated(receipt *types.Receipt) (common.Hash, bool) {
	if receipt == nil {
		return common.Hash{}, false
	}
	for _, l := range receipt.Logs {
		if l.Address != c.address {
			continue
		}
		var ev railCreatedEvent
		if err := c.contract.UnpackLog(&ev, "RailCreated", *l); err == nil {
			return common.Hash(ev.RailId), true
		}
	}
	return common.Hash{}, false
}

func (c *Client) transact(ctx context.Context, caps wallet.Capabilities, method string, args ...any) (common.Hash, *types.Receipt, error) {
	if caps.Signer == nil || caps.Reader == nil {
		return common.Hash{}, nil, xerrors.Errorf("%s: %w", method, wallet.ErrProviderUnavailable)
	}
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, nil, xerrors.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	hash, err := caps.Signer.SendTransaction(ctx, wallet.TxRequest{To: &to, Data: data})
	if err != nil {
		return common.Hash{}, nil, xerrors.Errorf("%s: %w", method, err)
	}
	c.log.Debug("submitted", "method", method, "tx", hash)
	receipt, err := wallet.WaitMined(ctx, caps.Reader, hash)
	if err != nil {
		return hash, receipt, xerrors.Errorf("wait for %s %s: %w", method, hash, err)
	}
	return hash, receipt, nil
}

func validatorString(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

// ExpectedPayment is what a rail pays at maxRate over durationSeconds, in
// whole epochs of epochLength seconds.
func ExpectedPayment(maxRate *big.Int, durationSeconds, epochLength int64) *big.Int {
	if maxRate == nil || epochLength <= 0 {
		return new(big.Int)
	}
	epochs := big.NewInt(durationSeconds / epochLength)
	return new(big.Int).Mul(maxRate, epochs)
}

// FormatRate renders a per-epoch rate with six decimals.
func FormatRate(rate *big.Int) string {
	if rate == nil {
		rate = new(big.Int)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(RateDecimals), nil)
	return new(big.Rat).SetFrac(rate, unit).FloatString(6)
}
