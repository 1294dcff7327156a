package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"dataforge-hub/simwallet"
	"dataforge-hub/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr = common.HexToAddress("0x569C43c4Cb8e332037Bc02ae997177F35cd8a017")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// fakeChain answers registry calls from a dataset table.
type fakeChain struct {
	datasets map[int64]datasetTuple
	owners   map[int64]common.Address
	balances map[common.Address]int64
	calls    int
}

func (f *fakeChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	method, err := parsedABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getDataset":
		d, ok := f.datasets[args[0].(*big.Int).Int64()]
		if !ok {
			return nil, errors.New("execution reverted: dataset does not exist")
		}
		return method.Outputs.Pack(d)
	case "ownerOf":
		o, ok := f.owners[args[0].(*big.Int).Int64()]
		if !ok {
			return nil, errors.New("execution reverted: invalid token")
		}
		return method.Outputs.Pack(o)
	case "balanceOf":
		return method.Outputs.Pack(big.NewInt(f.balances[args[0].(common.Address)]))
	}
	return nil, errors.New("unexpected call " + method.Name)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		datasets: map[int64]datasetTuple{
			7: {Name: "Rainfall", Description: "Hourly rainfall", Cid: "bafyrain", Price: usdfc("12.5"), IsVerified: true},
			8: {Name: "Orphan", Description: "No owner", Cid: "bafyorphan", Price: usdfc("1"), IsVerified: false},
		},
		owners:   map[int64]common.Address{7: alice},
		balances: map[common.Address]int64{alice: 3},
	}
}

func TestReads(t *testing.T) {
	chain := newFakeChain()
	r := New(registryAddr, chain)
	ctx := context.Background()

	t.Run("lookup", func(t *testing.T) {
		d, err := r.Lookup(ctx, big.NewInt(7))
		require.NoError(t, err)
		require.Equal(t, "Rainfall", d.Name)
		require.Equal(t, "bafyrain", d.CID)
		require.True(t, d.Verified)
		require.Equal(t, alice, d.Owner)
		require.Equal(t, "12.5 USDFC", FormatPrice(d.Price))
	})

	t.Run("owner failure leaves zero owner", func(t *testing.T) {
		d, err := r.Lookup(ctx, big.NewInt(8))
		require.NoError(t, err)
		require.Equal(t, common.Address{}, d.Owner)
	})

	t.Run("missing dataset", func(t *testing.T) {
		_, err := r.Dataset(ctx, big.NewInt(99))
		require.ErrorContains(t, err, "getDataset(99)")
	})

	t.Run("balance", func(t *testing.T) {
		n, err := r.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, int64(3), n.Int64())
	})
}

func TestWrites(t *testing.T) {
	sim := simwallet.New(314159, alice)
	caps, err := sim.Bind(context.Background(), alice)
	require.NoError(t, err)
	r := New(registryAddr, newFakeChain())
	ctx := context.Background()

	t.Run("register packs arguments", func(t *testing.T) {
		id, hash, err := r.Register(ctx, caps, Dataset{Name: "Tides", Description: "Tide gauges", CID: "bafytide", Price: usdfc("3"), Verified: true})
		require.NoError(t, err)
		require.NotEqual(t, common.Hash{}, hash)
		require.Nil(t, id, "no DatasetRegistered event")

		sent := sim.Sent()
		require.Len(t, sent, 1)
		require.Equal(t, registryAddr, *sent[0].To)
		args, err := parsedABI.Methods["registerDataset"].Inputs.Unpack(sent[0].Data[4:])
		require.NoError(t, err)
		require.Equal(t, "Tides", args[0])
		require.Equal(t, "bafytide", args[2])
		require.Equal(t, usdfc("3"), args[3])
		require.Equal(t, true, args[4])
	})

	t.Run("register waits for the minted token", func(t *testing.T) {
		registered := parsedABI.Events["DatasetRegistered"]
		data, err := registered.Inputs.NonIndexed().Pack("Waves", "bafywave", usdfc("4"), false)
		require.NoError(t, err)
		sim.OnSend(func(tx wallet.TxRequest, receipt *types.Receipt) {
			receipt.Logs = []*types.Log{{
				Address: registryAddr,
				Topics:  []common.Hash{registered.ID, common.BigToHash(big.NewInt(42))},
				Data:    data,
			}}
		})
		defer sim.OnSend(nil)

		id, _, err := r.Register(ctx, caps, Dataset{Name: "Waves", CID: "bafywave", Price: usdfc("4")})
		require.NoError(t, err)
		require.NotNil(t, id)
		require.Equal(t, int64(42), id.Int64())
	})

	t.Run("reverted registration fails", func(t *testing.T) {
		sim.OnSend(func(tx wallet.TxRequest, receipt *types.Receipt) {
			receipt.Status = types.ReceiptStatusFailed
		})
		defer sim.OnSend(nil)

		id, hash, err := r.Register(ctx, caps, Dataset{Name: "Broken", CID: "bafybroken", Price: usdfc("1")})
		require.ErrorIs(t, err, wallet.ErrTxReverted)
		require.NotEqual(t, common.Hash{}, hash)
		require.Nil(t, id)
	})

	t.Run("purchase without event falls back to request", func(t *testing.T) {
		p, hash, err := r.Purchase(ctx, caps, big.NewInt(7), usdfc("12.5"))
		require.NoError(t, err)
		require.NotEqual(t, common.Hash{}, hash)
		require.Equal(t, int64(7), p.TokenID.Int64())
		require.Equal(t, alice, p.Buyer)
		require.Equal(t, usdfc("12.5"), p.Amount)
	})

	t.Run("rejected signature", func(t *testing.T) {
		sim.RejectRequests(true)
		defer sim.RejectRequests(false)
		_, _, err := r.Purchase(ctx, caps, big.NewInt(7), usdfc("1"))
		require.Error(t, err)
		require.Equal(t, wallet.CodeUserRejected, wallet.ErrorCode(err))
	})
}

func TestReceiptParsing(t *testing.T) {
	r := New(registryAddr, newFakeChain())

	registered := parsedABI.Events["DatasetRegistered"]
	data, err := registered.Inputs.NonIndexed().Pack("Tides", "bafytide", usdfc("3"), true)
	require.NoError(t, err)
	tokenTopic := common.BigToHash(big.NewInt(42))

	paid := parsedABI.Events["PaymentProcessed"]
	amount, err := paid.Inputs.NonIndexed().Pack(usdfc("3"))
	require.NoError(t, err)

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	receipt := &types.Receipt{Logs: []*types.Log{
		// same event from another contract is ignored
		{Address: other, Topics: []common.Hash{registered.ID, common.BigToHash(big.NewInt(1))}, Data: data},
		{Address: registryAddr, Topics: []common.Hash{registered.ID, tokenTopic}, Data: data},
		{Address: registryAddr, Topics: []common.Hash{paid.ID, tokenTopic, common.BytesToHash(alice.Bytes())}, Data: amount},
	}}

	id, ok := r.RegisteredTokenID(receipt)
	require.True(t, ok)
	require.Equal(t, int64(42), id.Int64())

	p, ok := r.PaymentFromReceipt(receipt)
	require.True(t, ok)
	require.Equal(t, int64(42), p.TokenID.Int64())
	require.Equal(t, alice, p.Buyer)
	require.Equal(t, usdfc("3"), p.Amount)

	_, ok = r.RegisteredTokenID(&types.Receipt{})
	require.False(t, ok)
	_, ok = r.PaymentFromReceipt(nil)
	require.False(t, ok)
}

func TestFeatured(t *testing.T) {
	featured := Featured()
	require.Len(t, featured, 5)
	require.Equal(t, "Cultural Diversity ImageNet", featured[0].Name)
	require.Equal(t, "10 USDFC", FormatPrice(featured[0].Price))
	require.Equal(t, "100 USDFC", FormatPrice(featured[4].Price))
	require.False(t, featured[2].Verified)
}
