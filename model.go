package main

import (
	"context"
	"math/big"
	"time"

	"dataforge-hub/config"
	"dataforge-hub/payments"
	"dataforge-hub/registry"
	"dataforge-hub/rpc"
	"dataforge-hub/simwallet"
	"dataforge-hub/store"
	"dataforge-hub/styles"
	"dataforge-hub/views/home"
	"dataforge-hub/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
)

// -------------------- MODEL --------------------

// model represents the application state following The Elm Architecture
type model struct {
	ctx  context.Context
	w, h int

	activePage config.Page

	cfg        config.Config
	configPath string
	configErrs []error

	// wallet session
	session  *wallet.Session
	snap     wallet.Snapshot
	sim      *simwallet.Wallet
	busy     string // session operation in flight
	notice   *wallet.Notice
	noticeAt time.Time
	showQR   bool

	// read-only chain access
	spin          spinner.Model
	rpcURL        string
	ethClient     *rpc.Client
	rpcConnected  bool
	rpcConnecting bool

	// balances of the connected account
	loading    bool
	details    rpc.AccountDetails
	tokenWatch []rpc.WatchedToken

	// clipboard feedback
	copiedMsg string

	// dataset browser
	datasets        []registry.Dataset
	selectedDataset int
	browseMode      string // "list", "lookup", "register"
	txPending       string // contract transaction in flight
	reading         bool   // contract read in flight
	lastPayment     *registry.Payment
	lastTx          common.Hash

	// payment rails
	store        *store.Store
	rails        []store.Rail
	history      []store.Settlement
	selectedRail int
	railsMode    string // "list", "create"
	payBalance   payments.AccountBalance
	payErr       string
	railInfo     *payments.RailInfo

	// settings state
	settingsMode   string // "list", "add", "edit"
	selectedRPCIdx int
	form           *huh.Form

	// RPC delete confirmation dialog
	showRPCDeleteDialog        bool
	deleteRPCDialogName        string
	deleteRPCDialogIdx         int
	deleteRPCDialogYesSelected bool

	// home form
	homeForm *huh.Form

	// logger panel
	logEnabled  bool
	logger      *log.Logger
	logBuffer   *logBuffer
	logViewport viewport.Model
	logReady    bool
	logSpinner  spinner.Model
}

// appDeps are the long-lived services built in main
type appDeps struct {
	cfg        config.Config
	configPath string
	session    *wallet.Session
	sim        *simwallet.Wallet
	store      *store.Store
	logger     *log.Logger
	logBuffer  *logBuffer
}

// -------------------- INIT --------------------

// newModel creates the model around the services built in main
func newModel(ctx context.Context, d appDeps) model {
	// spinner
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)

	// watched tokens on the target network
	watch := []rpc.WatchedToken{
		{Symbol: "USDFC", Decimals: 18, Address: common.HexToAddress(d.cfg.USDFCAddress)},
	}

	// Initialize log viewport
	vp := viewport.New(0, 20) // Will be resized in Update on first WindowSizeMsg
	vp.Style = lipgloss.NewStyle().
		Foreground(styles.CText).
		Background(styles.CPanel)

	// Initialize log spinner
	logSpin := spinner.New()
	logSpin.Spinner = spinner.Dot
	logSpin.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)

	return model{
		ctx:          ctx,
		activePage:   config.PageHome,
		cfg:          d.cfg,
		configPath:   d.configPath,
		configErrs:   d.cfg.Validate(),
		session:      d.session,
		snap:         d.session.Snapshot(),
		sim:          d.sim,
		spin:         sp,
		rpcURL:       d.cfg.ActiveRPC(),
		tokenWatch:   watch,
		datasets:     registry.Featured(),
		browseMode:   "list",
		store:        d.store,
		railsMode:    "list",
		payBalance:   payments.AccountBalance{Locked: new(big.Int), Available: new(big.Int), Obligations: new(big.Int)},
		settingsMode: "list",
		homeForm:     home.CreateForm(),
		logEnabled:   d.cfg.Logger,
		logger:       d.logger,
		logBuffer:    d.logBuffer,
		logViewport:  vp,
		logSpinner:   logSpin,
	}
}

// Init implements tea.Model interface and returns initial commands
func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, waitForSession(m.session), restoreSession(m.ctx, m.session)}
	if m.logEnabled {
		cmds = append(cmds, initLogViewport(), m.logSpinner.Tick)
	}
	// connect if rpc is set
	if m.rpcURL != "" {
		m.rpcConnecting = true
		cmds = append(cmds, connectRPC(m.rpcURL, m.cfg.Network.ChainID))
	}
	if m.store != nil {
		cmds = append(cmds, loadRails(m.ctx, m.store))
	}
	return tea.Batch(cmds...)
}

// saveConfig persists the settings the UI can change
func (m *model) saveConfig() {
	if err := config.Save(m.configPath, m.cfg); err != nil {
		m.addLog("error", "Failed to save config: "+err.Error())
	}
}

// noticeTTL is how long a session notice stays in the header
const noticeTTL = 6 * time.Second
