// Package registry binds the DatasetRegistry contract: every dataset is a
// token carrying its name, description, content id and price.
package registry

import (
	"context"
	"math/big"
	"strings"

	"dataforge-hub/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"
)

// PriceDecimals is the precision of dataset prices (USDFC).
const PriceDecimals = 18

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Dataset is a registered dataset.
type Dataset struct {
	ID          *big.Int
	Name        string
	Description string
	CID         string
	Price       *big.Int
	Verified    bool
	Owner       common.Address
}

// Payment is a decoded PaymentProcessed event.
type Payment struct {
	TokenID *big.Int
	Buyer   common.Address
	Amount  *big.Int
}

// field names follow the ABI so the decoder can match them
type datasetTuple struct {
	Name        string
	Description string
	Cid         string
	Price       *big.Int
	IsVerified  bool
}

type registeredEvent struct {
	TokenId    *big.Int
	Name       string
	Cid        string
	Price      *big.Int
	IsVerified bool
}

type paymentEvent struct {
	TokenId *big.Int
	Buyer   common.Address
	Amount  *big.Int
}

// Registry reads through a contract caller and writes through a session
// signer.
type Registry struct {
	address  common.Address
	contract *bind.BoundContract
}

// New binds the registry at address. caller serves reads; it may be the
// session's read handle or a direct RPC client.
func New(address common.Address, caller bind.ContractCaller) *Registry {
	return &Registry{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, caller, nil, nil),
	}
}

// Address returns the contract address.
func (r *Registry) Address() common.Address { return r.address }

// Dataset reads a dataset's metadata.
func (r *Registry) Dataset(ctx context.Context, id *big.Int) (Dataset, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getDataset", id); err != nil {
		return Dataset{}, xerrors.Errorf("getDataset(%s): %w", id, err)
	}
	t := *abi.ConvertType(out[0], new(datasetTuple)).(*datasetTuple)
	return Dataset{
		ID:          new(big.Int).Set(id),
		Name:        t.Name,
		Description: t.Description,
		CID:         t.Cid,
		Price:       t.Price,
		Verified:    t.IsVerified,
	}, nil
}

// OwnerOf returns the holder of a dataset token.
func (r *Registry) OwnerOf(ctx context.Context, id *big.Int) (common.Address, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", id); err != nil {
		return common.Address{}, xerrors.Errorf("ownerOf(%s): %w", id, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// BalanceOf returns how many dataset tokens owner holds.
func (r *Registry) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, xerrors.Errorf("balanceOf(%s): %w", owner, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Lookup reads a dataset and its owner. An unreadable owner is left zero.
func (r *Registry) Lookup(ctx context.Context, id *big.Int) (Dataset, error) {
	d, err := r.Dataset(ctx, id)
	if err != nil {
		return Dataset{}, err
	}
	if owner, err := r.OwnerOf(ctx, id); err == nil {
		d.Owner = owner
	}
	return d, nil
}

// Register submits registerDataset and waits for inclusion. The token id is
// read from the DatasetRegistered event and is nil when the receipt has none.
func (r *Registry) Register(ctx context.Context, caps wallet.Capabilities, d Dataset) (*big.Int, common.Hash, error) {
	price := d.Price
	if price == nil {
		price = new(big.Int)
	}
	data, err := parsedABI.Pack("registerDataset", d.Name, d.Description, d.CID, price, d.Verified)
	if err != nil {
		return nil, common.Hash{}, xerrors.Errorf("pack registerDataset: %w", err)
	}
	hash, err := r.send(ctx, caps.Signer, data)
	if err != nil {
		return nil, common.Hash{}, xerrors.Errorf("registerDataset: %w", err)
	}
	receipt, err := wallet.WaitMined(ctx, caps.Reader, hash)
	if err != nil {
		return nil, hash, xerrors.Errorf("wait for registration %s: %w", hash, err)
	}
	id, _ := r.RegisteredTokenID(receipt)
	return id, hash, nil
}

// ProcessPayment submits a payment of amount for dataset id.
func (r *Registry) ProcessPayment(ctx context.Context, s wallet.Signer, id, amount *big.Int) (common.Hash, error) {
	data, err := parsedABI.Pack("processPayment", id, amount)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("pack processPayment: %w", err)
	}
	hash, err := r.send(ctx, s, data)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("processPayment(%s): %w", id, err)
	}
	return hash, nil
}

func (r *Registry) send(ctx context.Context, s wallet.Signer, data []byte) (common.Hash, error) {
	to := r.address
	return s.SendTransaction(ctx, wallet.TxRequest{To: &to, Data: data})
}

// RegisteredTokenID finds the token minted by a registerDataset receipt.
func (r *Registry) RegisteredTokenID(receipt *types.Receipt) (*big.Int, bool) {
	for _, l := range r.logs(receipt, "DatasetRegistered") {
		var ev registeredEvent
		if err := r.contract.UnpackLog(&ev, "DatasetRegistered", *l); err == nil {
			return ev.TokenId, true
		}
	}
	return nil, false
}

// PaymentFromReceipt decodes the PaymentProcessed event of a receipt.
func (r *Registry) PaymentFromReceipt(receipt *types.Receipt) (Payment, bool) {
	for _, l := range r.logs(receipt, "PaymentProcessed") {
		var ev paymentEvent
		if err := r.contract.UnpackLog(&ev, "PaymentProcessed", *l); err == nil {
			return Payment{TokenID: ev.TokenId, Buyer: ev.Buyer, Amount: ev.Amount}, true
		}
	}
	return Payment{}, false
}

func (r *Registry) logs(receipt *types.Receipt, event string) []*types.Log {
	if receipt == nil {
		return nil
	}
	id := parsedABI.Events[event].ID
	var out []*types.Log
	for _, l := range receipt.Logs {
		if l.Address == r.address && len(l.Topics) > 0 && l.Topics[0] == id {
			out = append(out, l)
		}
	}
	return out
}

// Purchase pays for a dataset and waits for inclusion. When the receipt
// carries no PaymentProcessed event the request itself is returned.
func (r *Registry) Purchase(ctx context.Context, caps wallet.Capabilities, id, amount *big.Int) (Payment, common.Hash, error) {
	hash, err := r.ProcessPayment(ctx, caps.Signer, id, amount)
	if err != nil {
		return Payment{}, common.Hash{}, err
	}
	receipt, err := wallet.WaitMined(ctx, caps.Reader, hash)
	if err != nil {
		return Payment{}, hash, xerrors.Errorf("wait for payment %s: %w", hash, err)
	}
	if p, ok := r.PaymentFromReceipt(receipt); ok {
		return p, hash, nil
	}
	return Payment{TokenID: id, Buyer: caps.Signer.Address(), Amount: amount}, hash, nil
}

// FormatPrice renders a price as "<amount> USDFC".
func FormatPrice(price *big.Int) string {
	return strings.TrimSuffix(wallet.FormatUnits(price, PriceDecimals), ".0") + " USDFC"
}
