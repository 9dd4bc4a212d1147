package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clamm-options/internal/config"
	"clamm-options/internal/engine"
	"clamm-options/internal/logging"
	"clamm-options/internal/market"
	"clamm-options/internal/models"
	"clamm-options/internal/store"
	"clamm-options/internal/stream"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     *store.SQLiteStore
	Hub       *stream.Hub
	Ledger    *market.SimLedger
	Registry  *market.SimRegistry
	Positions *market.SimPositionManager
	Engine    *engine.Engine

	stopHub context.CancelFunc
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "clopt",
		Short: "CLAMM Options - options over concentrated liquidity",
		Long: `clopt mints, exercises, settles and splits options collateralized by
tick-range liquidity in simulated concentrated-liquidity markets.

Option records and the event journal persist in SQLite; the market
world (assets, pools, balances) is rebuilt from config.toml each run.

Use 'clopt help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return app.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.shutdown()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/clamm-options)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("as", "trader", "account to act as")

	addLifecycleCommands(rootCmd, app)
	addQueryCommands(rootCmd, app)
	addAdminCommands(rootCmd, app)
	addCoreCommands(rootCmd, app)

	return rootCmd
}

// init builds the simulated market world from config, restores engine
// state from the store, and reconciles the position manager with the
// restored options.
func (a *App) init(ctx context.Context) error {
	if a.Engine != nil {
		return nil
	}
	cfg := a.Config

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.Store = dataStore

	a.Hub = stream.NewHub()
	a.Hub.RegisterConsumer(store.NewJournal(dataStore, a.Logger))
	hubCtx, cancel := context.WithCancel(context.Background())
	a.stopHub = cancel
	a.Hub.Start(hubCtx)

	a.Ledger = market.NewSimLedger()
	for _, asset := range cfg.Sim.Assets {
		a.Ledger.RegisterAsset(asset.Name, asset.Decimals)
	}
	for _, bal := range cfg.Sim.Balances {
		amount, err := uint256.FromDecimal(bal.Amount)
		if err != nil {
			return fmt.Errorf("balance %s/%s: %w", bal.Asset, bal.Account, err)
		}
		a.Ledger.Mint(bal.Asset, bal.Account, amount)
	}

	a.Registry = market.NewSimRegistry()
	firstMarket := ""
	for _, pool := range cfg.Sim.Pools {
		sqrtPrice, err := uint256.FromDecimal(pool.SqrtPriceX96)
		if err != nil {
			return fmt.Errorf("pool %s: %w", pool.Market, err)
		}
		callDec, err := a.Ledger.Decimals(pool.CallAsset)
		if err != nil {
			return fmt.Errorf("pool %s: %w", pool.Market, err)
		}
		putDec, err := a.Ledger.Decimals(pool.PutAsset)
		if err != nil {
			return fmt.Errorf("pool %s: %w", pool.Market, err)
		}
		a.Registry.AddPool(market.PoolInfo{
			Market:       pool.Market,
			CallAsset:    pool.CallAsset,
			PutAsset:     pool.PutAsset,
			CallDecimals: callDec,
			PutDecimals:  putDec,
			CallIsToken0: pool.CallIsToken0,
			SqrtPriceX96: sqrtPrice,
		})
		if firstMarket == "" {
			firstMarket = pool.Market
		}
	}

	a.Positions = market.NewSimPositionManager(a.Ledger, a.Registry, cfg.Sim.PoolAccount, cfg.Engine.Account)
	for _, pos := range cfg.Sim.Positions {
		liq, err := uint256.FromDecimal(pos.Liquidity)
		if err != nil {
			return fmt.Errorf("position %s: %w", pos.Market, err)
		}
		a.Positions.Reserve(pos.Handler, market.PositionKey{
			Market:    pos.Market,
			TickLower: pos.TickLower,
			TickUpper: pos.TickUpper,
			Liquidity: liq,
		})
	}

	swapper := market.NewSimSwapper(a.Ledger, a.Registry, firstMarket, cfg.Sim.SwapAccount, cfg.Engine.Account)

	vols := make(map[uint64]float64, len(cfg.Volatilities))
	for _, vol := range cfg.Volatilities {
		vols[vol.ID] = vol.Sigma
	}
	pricer := market.NewBlack76Pricer(vols, nil)

	var fees market.FeeStrategy
	if cfg.Engine.FeeBps > 0 {
		fees = market.FlatFeeStrategy{Bps: cfg.Engine.FeeBps}
	}

	eng, err := engine.New(engine.Config{
		Logger:       a.Logger,
		Hub:          a.Hub,
		Ledger:       a.Ledger,
		Positions:    a.Positions,
		Pools:        a.Registry,
		Pricer:       pricer,
		Swapper:      swapper,
		FeeStrategy:  fees,
		Metadata:     market.StaticMetadata{BaseURI: "clamm-options://option/"},
		Account:      cfg.Engine.Account,
		Operator:     cfg.Engine.Operator,
		FeeRecipient: cfg.Engine.FeeRecipient,
	})
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	a.Engine = eng

	st, err := dataStore.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	eng.Restore(st)
	a.reconcilePositions(st)
	a.seedAdmin(st)

	return nil
}

// reconcilePositions marks restored options' outstanding liquidity as
// withdrawn so exercise and settle can return it.
func (a *App) reconcilePositions(st engine.State) {
	for _, opt := range st.Options {
		for _, leg := range opt.Legs {
			if leg.Liquidity.IsZero() {
				continue
			}
			a.Positions.MarkUsed(leg.Handler, market.PositionKey{
				Market:    leg.Market,
				TickLower: leg.TickLower,
				TickUpper: leg.TickUpper,
				Liquidity: new(uint256.Int).Set(leg.Liquidity),
			})
		}
	}
}

// seedAdmin applies configured allowlists and volatilities on top of
// whatever the snapshot restored.
func (a *App) seedAdmin(st engine.State) {
	op := a.Config.Engine.Operator
	for _, mkt := range a.Config.Engine.Markets {
		if !a.Engine.IsMarketApproved(mkt) {
			_ = a.Engine.SetMarketApproved(op, mkt, true)
		}
	}
	for _, settler := range a.Config.Engine.Settlers {
		if !a.Engine.IsSettlerApproved(settler) {
			_ = a.Engine.SetSettlerApproved(op, settler, true)
		}
	}
	for _, vol := range a.Config.Volatilities {
		if a.Engine.VolatilityID(vol.TTL) == 0 {
			_ = a.Engine.SetVolatilities(op, []time.Duration{vol.TTL}, []uint64{vol.ID})
		}
	}
}

// persist saves the engine snapshot after a mutating command.
func (a *App) persist(ctx context.Context) error {
	return a.Store.SaveState(ctx, a.Engine.Snapshot())
}

func (a *App) shutdown() {
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.stopHub != nil {
		a.stopHub()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// caller returns the acting account from the --as flag.
func caller(cmd *cobra.Command) string {
	who, _ := cmd.Flags().GetString("as")
	return who
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("clopt v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Engine Configuration")
	output.Printf("  Account:        %s\n", cfg.Engine.Account)
	output.Printf("  Operator:       %s\n", cfg.Engine.Operator)
	output.Printf("  Fee Recipient:  %s\n", cfg.Engine.FeeRecipient)
	output.Printf("  Fee (bps):      %d\n", cfg.Engine.FeeBps)
	output.Printf("  Markets:        %v\n", cfg.Engine.Markets)
	output.Printf("  Settlers:       %v\n", cfg.Engine.Settlers)
	output.Println()

	output.Bold("Volatility Table")
	for _, vol := range cfg.Volatilities {
		output.Printf("  ttl=%-8s id=%-3d sigma=%.2f\n", vol.TTL, vol.ID, vol.Sigma)
	}
	output.Println()

	output.Bold("Database")
	output.Printf("  Path: %s\n", cfg.Database.Path)

	return nil
}

// kindOrEmpty parses an optional event-kind argument.
func kindOrEmpty(args []string) models.EventKind {
	if len(args) == 0 {
		return ""
	}
	return models.EventKind(args[0])
}
