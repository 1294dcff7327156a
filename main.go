package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"dataforge-hub/config"
	"dataforge-hub/eip1193"
	"dataforge-hub/simwallet"
	"dataforge-hub/store"
	"dataforge-hub/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// -------------------- MAIN --------------------

// demoAccount is the account held by the simulated wallet.
var demoAccount = common.HexToAddress("0x7D5AFC0dA7A6d5F0D46b1a3C1E9d3dC0De5b1a75")

type options struct {
	configPath  string
	walletURL   string
	sim         bool
	metricsAddr string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "dataforge-hub",
		Short: "Terminal client for the DataForge Hub dataset marketplace",
		Long: `DataForge Hub browses and buys verified datasets on Filecoin
Calibration and streams payments to providers over Filecoin Pay rails.

Transactions are signed by an external wallet reachable over JSON-RPC
(for example Frame on ws://127.0.0.1:1248), or by a simulated wallet
with --sim.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().StringVar(&opts.configPath, "config", config.DefaultPath(), "config file")
	rootCmd.Flags().StringVar(&opts.walletURL, "wallet-url", "", "wallet provider endpoint (default from config)")
	rootCmd.Flags().BoolVar(&opts.sim, "sim", false, "use a simulated wallet instead of an external one")
	rootCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	buf := &logBuffer{}
	logger := newLogger(buf)

	cfg, err := config.LoadOrCreate(opts.configPath)
	if err != nil {
		logger.Warn("using default config", "path", opts.configPath, "err", err)
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if opts.walletURL != "" {
		cfg.WalletURL = opts.walletURL
	}
	if cfg.WalletURL == "" {
		cfg.WalletURL = eip1193.DefaultURL
	}
	for _, e := range cfg.Validate() {
		logger.Warn("config", "err", e)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := wallet.NewMetrics(reg)
	if opts.metricsAddr != "" {
		srv := metricsServer(opts.metricsAddr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	var (
		provider wallet.Provider
		dial     func(context.Context) (wallet.Provider, error)
		sim      *simwallet.Wallet
	)
	if opts.sim {
		sim = simwallet.New(cfg.Network.ChainID, demoAccount)
		funds, _ := wallet.ParseUnits("100", cfg.Network.Decimals)
		sim.SetBalance(demoAccount, funds)
		provider = sim
		logger.Info("using simulated wallet", "account", demoAccount.Hex())
	} else {
		// dialed on first use and again after the wallet goes away
		dial = func(ctx context.Context) (wallet.Provider, error) {
			dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
			defer dcancel()
			p, err := eip1193.Dial(dctx, cfg.WalletURL, eip1193.WithLogger(logger))
			if err != nil {
				logger.Error("wallet provider unreachable", "url", cfg.WalletURL, "err", err)
				return nil, err
			}
			return p, nil
		}
	}

	session := wallet.NewSession(provider, wallet.Options{
		Network:     cfg.Network,
		Logger:      logger,
		Metrics:     metrics,
		CallTimeout: time.Duration(cfg.CallTimeout),
		Dial:        dial,
	})
	defer session.Close()
	go func() {
		if err := session.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("wallet events stopped", "err", err)
		}
	}()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("history unavailable", "path", cfg.DBPath, "err", err)
	} else {
		defer db.Close()
	}

	m := newModel(ctx, appDeps{
		cfg:        cfg,
		configPath: opts.configPath,
		session:    session,
		sim:        sim,
		store:      db,
		logger:     logger,
		logBuffer:  buf,
	})
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}

// logLevel is debug when DATAFORGE_DEBUG is set.
func logLevel() log.Level {
	if os.Getenv("DATAFORGE_DEBUG") != "" {
		return log.DebugLevel
	}
	return log.InfoLevel
}
