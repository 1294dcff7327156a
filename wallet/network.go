package wallet

import (
	"fmt"
	"strings"
)

// Network describes the chain the application is built to operate against.
// It carries everything a wallet needs to register the chain (EIP-3085).
type Network struct {
	ChainID     uint64 `json:"chain_id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url"`
}

// Calibration is the Filecoin Calibration testnet.
var Calibration = Network{
	ChainID:     314159,
	Name:        "Filecoin Calibration Testnet",
	Symbol:      "tFIL",
	Decimals:    18,
	RPCURL:      "https://calibration.filfox.info/rpc/v1",
	ExplorerURL: "https://calibration.filfox.info/en",
}

// HexChainID returns the chain id in the 0x-prefixed form wallets expect.
func (n Network) HexChainID() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// TxURL returns the explorer link for a transaction hash.
func (n Network) TxURL(txHash string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + txHash
}

// AddressURL returns the explorer link for an address.
func (n Network) AddressURL(addr string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/address/" + addr
}
