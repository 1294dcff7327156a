package rpc

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const calibrationChainID = 314159

var (
	usdfc   = common.HexToAddress("0xb3042734b608a1B16e9e86B374A3f3e389B4cDf0")
	testAcc = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// fakeBackend answers balance reads from maps.
type fakeBackend struct {
	native     *big.Int
	nativeErr  error
	tokens     map[common.Address]*big.Int
	callErr    error
	lastCalled []byte
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if f.nativeErr != nil {
		return nil, f.nativeErr
	}
	return f.native, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.lastCalled = call.Data
	if f.callErr != nil {
		return nil, f.callErr
	}
	bal, ok := f.tokens[*call.To]
	if !ok {
		return nil, nil
	}
	return common.LeftPadBytes(bal.Bytes(), 32), nil
}

func TestLoadAccountDetailsOffline(t *testing.T) {
	watch := []WatchedToken{{Symbol: "USDFC", Decimals: 18, Address: usdfc}}

	t.Run("native and token balances", func(t *testing.T) {
		b := &fakeBackend{
			native: big.NewInt(3),
			tokens: map[common.Address]*big.Int{usdfc: big.NewInt(250)},
		}
		d := LoadAccountDetails(b, testAcc, watch)

		if d.ErrMessage != "" {
			t.Fatalf("unexpected error message: %s", d.ErrMessage)
		}
		if d.NativeWei.Int64() != 3 {
			t.Errorf("Expected native balance 3, got %s", d.NativeWei)
		}
		if got := d.Token("usdfc"); got.Int64() != 250 {
			t.Errorf("Expected USDFC 250, got %s", got)
		}
		want := append([]byte{0x70, 0xa0, 0x82, 0x31}, common.LeftPadBytes(testAcc.Bytes(), 32)...)
		if !bytes.Equal(b.lastCalled, want) {
			t.Errorf("balanceOf calldata mismatch: %x", b.lastCalled)
		}
	})

	t.Run("empty return is zero", func(t *testing.T) {
		b := &fakeBackend{native: big.NewInt(0), tokens: map[common.Address]*big.Int{}}
		d := LoadAccountDetails(b, testAcc, watch)
		if len(d.Tokens) != 1 || d.Tokens[0].Balance.Sign() != 0 {
			t.Errorf("Expected one zero token balance, got %+v", d.Tokens)
		}
	})

	t.Run("native failure", func(t *testing.T) {
		b := &fakeBackend{nativeErr: errors.New("boom")}
		d := LoadAccountDetails(b, testAcc, watch)
		if !strings.Contains(d.ErrMessage, "tFIL") {
			t.Errorf("Expected tFIL error, got: %s", d.ErrMessage)
		}
		if d.NativeWei.Sign() != 0 {
			t.Errorf("Expected zero native balance on failure")
		}
	})

	t.Run("token failure", func(t *testing.T) {
		b := &fakeBackend{native: big.NewInt(1), callErr: errors.New("reverted")}
		d := LoadAccountDetails(b, testAcc, watch)
		if !strings.Contains(d.ErrMessage, "USDFC") {
			t.Errorf("Expected USDFC error, got: %s", d.ErrMessage)
		}
		if d.Token("USDFC").Sign() != 0 {
			t.Errorf("Expected missing token to read as zero")
		}
	})

	t.Run("nil backend", func(t *testing.T) {
		d := LoadAccountDetails(nil, testAcc, watch)
		if !strings.Contains(d.ErrMessage, "No RPC client") {
			t.Errorf("Expected 'No RPC client' error, got: %s", d.ErrMessage)
		}
	})
}

func TestConnect(t *testing.T) {
	rpcURL := os.Getenv("DATAFORGE_RPC_URL")
	if rpcURL == "" {
		t.Skip("DATAFORGE_RPC_URL not set, skipping connection test")
	}

	t.Run("successful connection", func(t *testing.T) {
		result := Connect(rpcURL, calibrationChainID)
		if result.Error != nil {
			t.Fatalf("Failed to connect to RPC: %v", result.Error)
		}
		defer result.Client.Close()

		if result.Client.URL != rpcURL {
			t.Errorf("Expected URL %s, got %s", rpcURL, result.Client.URL)
		}
		if result.Client.ChainID != calibrationChainID {
			t.Errorf("Expected chain %d, got %d", calibrationChainID, result.Client.ChainID)
		}
	})

	t.Run("wrong chain rejected", func(t *testing.T) {
		result := ConnectWithTimeout(rpcURL, 1, 10*time.Second)
		if result.Error == nil {
			result.Client.Close()
			t.Fatal("Expected chain mismatch error")
		}
		if !strings.Contains(result.Error.Error(), "want 1") {
			t.Errorf("Unexpected error: %v", result.Error)
		}
	})

	t.Run("account details", func(t *testing.T) {
		result := Connect(rpcURL, calibrationChainID)
		if result.Error != nil {
			t.Fatalf("Failed to connect: %v", result.Error)
		}
		defer result.Client.Close()

		watch := []WatchedToken{{Symbol: "USDFC", Decimals: 18, Address: usdfc}}
		d := LoadAccountDetails(result.Client, testAcc, watch)
		// Public endpoints rate limit, so only log failures
		if d.ErrMessage != "" {
			t.Logf("Got error message (may be due to rate limiting): %s", d.ErrMessage)
		}
		if d.LoadedAt.IsZero() {
			t.Error("LoadedAt timestamp is zero")
		}
	})
}
