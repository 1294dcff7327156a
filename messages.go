package main

import (
	"dataforge-hub/payments"
	"dataforge-hub/registry"
	"dataforge-hub/rpc"
	"dataforge-hub/store"
	"dataforge-hub/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// -------------------- TEA MESSAGES --------------------
// All custom message types for The Elm Architecture

// sessionUpdateMsg carries a wallet session change
type sessionUpdateMsg struct {
	update wallet.Update
	ok     bool // false once the session stopped publishing
}

// sessionOpMsg reports the end of a session operation started from the UI
type sessionOpMsg struct {
	op  string
	err error
}

// clipboardCopiedMsg indicates clipboard copy completed
type clipboardCopiedMsg struct{}

// clearCopiedMsg clears the clipboard feedback
type clearCopiedMsg struct{}

// logInitMsg signals that log viewport should be initialized
type logInitMsg struct{}

// rpcConnectedMsg contains result of RPC connection attempt
type rpcConnectedMsg struct {
	client *rpc.Client
	err    error
}

// detailsLoadedMsg contains account balances after loading
type detailsLoadedMsg struct {
	d rpc.AccountDetails
}

// datasetLoadedMsg contains a dataset read from the registry
type datasetLoadedMsg struct {
	d   registry.Dataset
	err error
}

// purchaseDoneMsg contains the outcome of a dataset purchase
type purchaseDoneMsg struct {
	payment registry.Payment
	tx      common.Hash
	err     error
}

// registeredMsg contains the outcome of a dataset registration; the dataset
// carries the minted token id when the receipt reported one
type registeredMsg struct {
	dataset registry.Dataset
	tx      common.Hash
	err     error
}

// railsLoadedMsg contains the locally recorded rails and settlements
type railsLoadedMsg struct {
	rails   []store.Rail
	history []store.Settlement
	err     error
}

// payBalanceMsg contains the Filecoin Pay account balances
type payBalanceMsg struct {
	bal payments.AccountBalance
	err error
}

// railInfoMsg contains a rail's on-chain state
type railInfoMsg struct {
	rail common.Hash
	info *payments.RailInfo
	err  error
}

// railTxMsg reports a rail transaction (create, settle, terminate, account)
type railTxMsg struct {
	op   string
	rail common.Hash
	tx   common.Hash
	err  error
}
