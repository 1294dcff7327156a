package main

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"dataforge-hub/config"
	"dataforge-hub/helpers"
	"dataforge-hub/payments"
	"dataforge-hub/registry"
	"dataforge-hub/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
)

// -------------------- TEMP FORM STORAGE --------------------
// Temporary form field storage (package-level to avoid pointer-to-copy issues)
var (
	tempRPCFormName string
	tempRPCFormURL  string

	tempLookupID string

	tempDatasetName     string
	tempDatasetDesc     string
	tempDatasetCID      string
	tempDatasetPrice    string
	tempDatasetVerified bool

	tempRailPayee     string
	tempRailRate      string
	tempRailLockup    string
	tempRailValidator string
)

func validateAddress(s string) error {
	if !helpers.IsValidEthAddress(s) {
		return errors.New("invalid address")
	}
	return nil
}

func validateAmount(s string) error {
	v, ok := wallet.ParseUnits(strings.TrimSpace(s), 18)
	if !ok || v.Sign() <= 0 {
		return errors.New("enter a positive amount")
	}
	return nil
}

func (m *model) createAddRPCForm() {
	tempRPCFormName = ""
	tempRPCFormURL = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RPC Name").
				Description("A friendly name for this endpoint").
				Value(&tempRPCFormName).
				Placeholder("Glif Calibration"),

			huh.NewInput().
				Title("RPC URL").
				Description("Must serve chain " + strconv.FormatUint(m.cfg.Network.ChainID, 10)).
				Value(&tempRPCFormURL).
				Placeholder("https://api.calibration.node.glif.io/rpc/v1").
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http") && !strings.HasPrefix(s, "ws") {
						return errors.New("URL must start with http(s) or ws(s)")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCatppuccin())

	m.form.Init()
}

func (m *model) createEditRPCForm(idx int) {
	if idx < 0 || idx >= len(m.cfg.RPCURLs) {
		return
	}
	tempRPCFormName = m.cfg.RPCURLs[idx].Name
	tempRPCFormURL = m.cfg.RPCURLs[idx].URL

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RPC Name").
				Value(&tempRPCFormName),

			huh.NewInput().
				Title("RPC URL").
				Value(&tempRPCFormURL),
		),
	).WithTheme(huh.ThemeCatppuccin())

	m.form.Init()
}

func (m *model) createLookupForm() {
	tempLookupID = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dataset Token ID").
				Description("Reads the dataset from the registry contract").
				Value(&tempLookupID).
				Placeholder("1").
				Validate(func(s string) error {
					if _, ok := new(big.Int).SetString(strings.TrimSpace(s), 10); !ok {
						return errors.New("enter a token id")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCatppuccin())

	m.form.Init()
}

func (m *model) createRegisterForm() {
	tempDatasetName = ""
	tempDatasetDesc = ""
	tempDatasetCID = ""
	tempDatasetPrice = ""
	tempDatasetVerified = true

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&tempDatasetName).
				Validate(huh.ValidateNotEmpty()),

			huh.NewText().
				Title("Description").
				Value(&tempDatasetDesc),

			huh.NewInput().
				Title("Piece CID").
				Description("CID of the uploaded dataset").
				Value(&tempDatasetCID).
				Placeholder("bafy…").
				Validate(huh.ValidateNotEmpty()),

			huh.NewInput().
				Title("Price (USDFC)").
				Value(&tempDatasetPrice).
				Placeholder("10").
				Validate(validateAmount),

			huh.NewConfirm().
				Title("PDP verified?").
				Value(&tempDatasetVerified),
		),
	).WithTheme(huh.ThemeCatppuccin())

	m.form.Init()
}

func (m *model) createRailForm() {
	tempRailPayee = ""
	tempRailRate = ""
	tempRailLockup = "86400"
	tempRailValidator = m.cfg.ValidatorAddress

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Payee").
				Description("Storage provider receiving the stream").
				Value(&tempRailPayee).
				Placeholder("0x...").
				Validate(validateAddress),

			huh.NewInput().
				Title("Max rate (USDFC per epoch)").
				Description(fmt.Sprintf("One epoch is %d seconds", payments.DefaultEpochLength)).
				Value(&tempRailRate).
				Placeholder("0.01").
				Validate(validateAmount),

			huh.NewInput().
				Title("Lockup period (seconds)").
				Value(&tempRailLockup).
				Validate(func(s string) error {
					if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil || n == 0 {
						return errors.New("enter a number of seconds")
					}
					return nil
				}),

			huh.NewInput().
				Title("Validator (optional)").
				Value(&tempRailValidator).
				Placeholder("0x...").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return validateAddress(s)
				}),
		),
	).WithTheme(huh.ThemeCatppuccin())

	m.form.Init()
}

// updateForm feeds msg to the active form and acts on completion
func (m *model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Intercept ESC key to cancel form
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.closeForm()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	f, ok := form.(*huh.Form)
	if !ok {
		return m, cmd
	}
	m.form = f

	switch m.form.State {
	case huh.StateCompleted:
		done := m.completeForm()
		m.closeForm()
		// Return without the form's cmd to ensure we're back in list mode
		return m, done
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	}
	return m, cmd
}

func (m *model) closeForm() {
	m.form = nil
	m.settingsMode = "list"
	m.browseMode = "list"
	m.railsMode = "list"
}

// completeForm applies a submitted form
func (m *model) completeForm() tea.Cmd {
	switch {
	case m.activePage == config.PageSettings && m.settingsMode == "add":
		if tempRPCFormName == "" || tempRPCFormURL == "" {
			return nil
		}
		m.cfg.RPCURLs = append(m.cfg.RPCURLs, config.RPCUrl{Name: tempRPCFormName, URL: tempRPCFormURL})
		m.saveConfig()
		m.addLog("success", fmt.Sprintf("Added RPC endpoint: `%s` (%s)", tempRPCFormName, tempRPCFormURL))

	case m.activePage == config.PageSettings && m.settingsMode == "edit":
		if m.selectedRPCIdx < 0 || m.selectedRPCIdx >= len(m.cfg.RPCURLs) {
			return nil
		}
		r := &m.cfg.RPCURLs[m.selectedRPCIdx]
		r.Name, r.URL = tempRPCFormName, tempRPCFormURL
		m.saveConfig()
		m.addLog("success", fmt.Sprintf("Updated RPC endpoint: `%s`", tempRPCFormName))
		if r.Active {
			return m.reconnectRPC(r.URL)
		}

	case m.activePage == config.PageBrowse && m.browseMode == "lookup":
		id, _ := new(big.Int).SetString(strings.TrimSpace(tempLookupID), 10)
		reg := m.registry()
		if reg == nil || id == nil {
			m.toast(wallet.NoticeWarn, "No RPC connection to read the registry")
			return nil
		}
		m.reading = true
		m.addLog("info", fmt.Sprintf("Looking up dataset #%s", id))
		return lookupDataset(m.ctx, reg, id)

	case m.activePage == config.PageBrowse && m.browseMode == "register":
		caps, ok := m.caps()
		if !ok {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return nil
		}
		price, _ := wallet.ParseUnits(strings.TrimSpace(tempDatasetPrice), registry.PriceDecimals)
		d := registry.Dataset{
			Name:        strings.TrimSpace(tempDatasetName),
			Description: strings.TrimSpace(tempDatasetDesc),
			CID:         strings.TrimSpace(tempDatasetCID),
			Price:       price,
			Verified:    tempDatasetVerified,
		}
		m.txPending = "registering " + d.Name
		return registerDataset(m.ctx, m.registry(), caps, d)

	case m.activePage == config.PageRails && m.railsMode == "create":
		caps, ok := m.caps()
		if !ok {
			m.toast(wallet.NoticeWarn, "Connect your wallet first")
			return nil
		}
		rate, _ := wallet.ParseUnits(strings.TrimSpace(tempRailRate), payments.RateDecimals)
		lockup, _ := new(big.Int).SetString(strings.TrimSpace(tempRailLockup), 10)
		cfg := payments.RailConfig{
			Payer:        m.snap.Account,
			Payee:        common.HexToAddress(strings.TrimSpace(tempRailPayee)),
			MaxRate:      rate,
			LockupPeriod: lockup,
		}
		if v := strings.TrimSpace(tempRailValidator); v != "" {
			cfg.Validator = common.HexToAddress(v)
		}
		m.txPending = "creating rail to " + helpers.ShortenAddr(cfg.Payee.Hex())
		return createRail(m.ctx, m.payments(), caps, cfg)
	}
	return nil
}
