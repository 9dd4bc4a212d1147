package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"clamm-options/internal/models"
)

// addLifecycleCommands adds the option lifecycle commands.
func addLifecycleCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newMintCmd(app))
	rootCmd.AddCommand(newExerciseCmd(app))
	rootCmd.AddCommand(newSettleCmd(app))
	rootCmd.AddCommand(newSplitCmd(app))
	rootCmd.AddCommand(newTransferCmd(app))
	rootCmd.AddCommand(newDelegateCmd(app))
}

func newMintCmd(app *App) *cobra.Command {
	var (
		legSpecs []string
		lower    int
		upper    int
		ttl      time.Duration
		isCall   bool
		isPut    bool
		maxCost  string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an option against tick-range liquidity",
		Long: `Mint an option collateralized by one or more liquidity legs.

Each --leg takes handler:market:tickLower:tickUpper:liquidity. A call
leg's upper tick must equal the option's upper bound; a put leg's lower
tick must equal the option's lower bound.`,
		Example: `  clopt mint --put --lower=-200400 --upper=-200320 --ttl 24h \
      --leg "range:ETH-USDC:-200400:-200320:1000000000000000000" --max-cost 200000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if isCall == isPut {
				return fmt.Errorf("exactly one of --call or --put is required")
			}
			if len(legSpecs) == 0 {
				return fmt.Errorf("at least one --leg is required")
			}
			legs := make([]models.LegRequest, 0, len(legSpecs))
			for _, spec := range legSpecs {
				leg, err := parseLegSpec(spec)
				if err != nil {
					return err
				}
				legs = append(legs, leg)
			}
			cost, err := uint256.FromDecimal(maxCost)
			if err != nil {
				return fmt.Errorf("invalid --max-cost: %w", err)
			}

			id, err := app.Engine.Mint(caller(cmd), models.MintParams{
				Legs:      legs,
				TickLower: lower,
				TickUpper: upper,
				TTL:       ttl,
				IsCall:    isCall,
				MaxCost:   cost,
			})
			if err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"option_id": id})
			}
			output.Success("✓ Minted option %d", id)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&legSpecs, "leg", nil, "collateral leg (handler:market:tickLower:tickUpper:liquidity)")
	cmd.Flags().IntVar(&lower, "lower", 0, "option lower tick bound")
	cmd.Flags().IntVar(&upper, "upper", 0, "option upper tick bound")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "time to expiry")
	cmd.Flags().BoolVar(&isCall, "call", false, "mint a call")
	cmd.Flags().BoolVar(&isPut, "put", false, "mint a put")
	cmd.Flags().StringVar(&maxCost, "max-cost", "0", "maximum premium plus fee")
	return cmd
}

func newExerciseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "exercise <option-id> [liquidity...]",
		Short: "Exercise an option before expiry",
		Long: `Exercise an option, converting its collateral into profit.

Per-leg liquidity amounts follow the option id, index-aligned with the
option's legs; omitted amounts exercise each leg in full.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			liqs, err := legLiquidities(app, id, args[1:], true)
			if err != nil {
				return err
			}
			if err := app.Engine.Exercise(caller(cmd), id, liqs); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"option_id": id, "exercised": true})
			}
			output.Success("✓ Exercised option %d", id)
			return nil
		},
	}
}

func newSettleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <option-id> [liquidity...]",
		Short: "Settle an expired option",
		Long: `Return an expired option's collateral to its source positions.

Per-leg liquidity amounts follow the option id; omitted or zero amounts
settle each leg's entire remaining liquidity. Requires an approved
settler account (--as).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			liqs, err := legLiquidities(app, id, args[1:], false)
			if err != nil {
				return err
			}
			if err := app.Engine.Settle(caller(cmd), id, liqs); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"option_id": id, "settled": true})
			}
			output.Success("✓ Settled option %d", id)
			return nil
		},
	}
}

func newSplitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "split <option-id> <to> <liquidity...>",
		Short: "Split liquidity into a new option for another account",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			liqs, err := parseLiquidities(args[2:])
			if err != nil {
				return err
			}
			childID, err := app.Engine.Split(caller(cmd), id, args[1], liqs)
			if err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"option_id": id, "new_option_id": childID})
			}
			output.Success("✓ Split option %d into %d for %s", id, childID, args[1])
			return nil
		},
	}
}

func newTransferCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <option-id> <to>",
		Short: "Transfer option ownership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			if err := app.Engine.Transfer(caller(cmd), id, args[1]); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"option_id": id, "owner": args[1]})
			}
			output.Success("✓ Option %d transferred to %s", id, args[1])
			return nil
		},
	}
}

func newDelegateCmd(app *App) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "delegate <account>",
		Short: "Grant or revoke a delegate for your options",
		Long: `Grant an account the right to exercise every option you own, now
or later, until revoked. Delegates cannot split or transfer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			app.Engine.SetDelegate(caller(cmd), args[0], !revoke)
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			verb := "granted"
			if revoke {
				verb = "revoked"
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"delegate": args[0], "approved": !revoke})
			}
			output.Success("✓ Delegate %s %s", args[0], verb)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}

// parseLegSpec parses handler:market:tickLower:tickUpper:liquidity.
func parseLegSpec(spec string) (models.LegRequest, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 5 {
		return models.LegRequest{}, fmt.Errorf("invalid --leg %q: want handler:market:tickLower:tickUpper:liquidity", spec)
	}
	lower, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.LegRequest{}, fmt.Errorf("invalid --leg tick lower %q: %w", parts[2], err)
	}
	upper, err := strconv.Atoi(parts[3])
	if err != nil {
		return models.LegRequest{}, fmt.Errorf("invalid --leg tick upper %q: %w", parts[3], err)
	}
	liq, err := uint256.FromDecimal(parts[4])
	if err != nil {
		return models.LegRequest{}, fmt.Errorf("invalid --leg liquidity %q: %w", parts[4], err)
	}
	return models.LegRequest{
		Handler:   parts[0],
		Market:    parts[1],
		TickLower: lower,
		TickUpper: upper,
		Liquidity: liq,
	}, nil
}

func parseOptionID(arg string) (models.OptionID, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid option id %q", arg)
	}
	return models.OptionID(id), nil
}

func parseLiquidities(args []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(args))
	for i, arg := range args {
		liq, err := uint256.FromDecimal(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid liquidity %q: %w", arg, err)
		}
		out[i] = liq
	}
	return out, nil
}

// legLiquidities builds the per-leg amounts for exercise and settle.
// With no explicit amounts, fullOnEmpty picks each leg's remaining
// liquidity; otherwise zeros are passed through (settle treats zero as
// "entire leg").
func legLiquidities(app *App, id models.OptionID, args []string, fullOnEmpty bool) ([]*uint256.Int, error) {
	legs, err := app.Engine.Legs(id)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		out := make([]*uint256.Int, len(legs))
		for i := range legs {
			if fullOnEmpty {
				out[i] = new(uint256.Int).Set(legs[i].Liquidity)
			} else {
				out[i] = new(uint256.Int)
			}
		}
		return out, nil
	}
	if len(args) != len(legs) {
		return nil, fmt.Errorf("option %d has %d legs, got %d amounts", id, len(legs), len(args))
	}
	return parseLiquidities(args)
}
