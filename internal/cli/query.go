package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clamm-options/internal/models"
	"clamm-options/internal/pricemath"
	"clamm-options/pkg/utils"
)

// addQueryCommands adds read-only commands.
func addQueryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOptionCmd(app))
	rootCmd.AddCommand(newEventsCmd(app))
	rootCmd.AddCommand(newPoolCmd(app))
}

func newOptionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "option",
		Short: "Inspect option records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <option-id>",
		Short: "Show one option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			opt, err := app.Engine.Option(id)
			if err != nil {
				return err
			}
			owner, err := app.Engine.Owner(id)
			if err != nil {
				return err
			}
			uri, _ := app.Engine.TokenURI(id)

			if output.IsJSON() {
				return output.JSON(optionView(opt, owner, uri))
			}
			showOption(output, opt, owner, uri)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all options",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			opts := app.Engine.Options()
			if output.IsJSON() {
				views := make([]map[string]interface{}, 0, len(opts))
				for _, opt := range opts {
					owner, _ := app.Engine.Owner(opt.ID)
					views = append(views, optionView(opt, owner, ""))
				}
				return output.JSON(views)
			}

			table := NewTable(output, "ID", "SIDE", "STRIKE TICK", "EXPIRY", "OWNER", "LIQUIDITY")
			now := time.Now()
			for _, opt := range opts {
				owner, _ := app.Engine.Owner(opt.ID)
				side := "PUT"
				if opt.IsCall {
					side = "CALL"
				}
				expiry := opt.Expiry.Format("02-Jan-2006 15:04")
				if opt.Expired(now) {
					expiry = output.Red(expiry)
				}
				table.AddRow(
					fmt.Sprintf("%d", opt.ID),
					side,
					fmt.Sprintf("%d", opt.StrikeTick()),
					expiry,
					owner,
					opt.TotalLiquidity().Dec(),
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uri <option-id>",
		Short: "Show an option's metadata URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseOptionID(args[0])
			if err != nil {
				return err
			}
			uri, err := app.Engine.TokenURI(id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"uri": uri})
			}
			output.Println(uri)
			return nil
		},
	})

	return cmd
}

func optionView(opt models.Option, owner, uri string) map[string]interface{} {
	legs := make([]map[string]interface{}, len(opt.Legs))
	for i, leg := range opt.Legs {
		legs[i] = map[string]interface{}{
			"handler":    leg.Handler,
			"market":     leg.Market,
			"tick_lower": leg.TickLower,
			"tick_upper": leg.TickUpper,
			"liquidity":  leg.Liquidity.Dec(),
		}
	}
	view := map[string]interface{}{
		"id":          opt.ID,
		"is_call":     opt.IsCall,
		"tick_lower":  opt.TickLower,
		"tick_upper":  opt.TickUpper,
		"strike_tick": opt.StrikeTick(),
		"expiry":      opt.Expiry,
		"owner":       owner,
		"legs":        legs,
	}
	if uri != "" {
		view["uri"] = uri
	}
	return view
}

func showOption(output *Output, opt models.Option, owner, uri string) {
	side := "PUT"
	if opt.IsCall {
		side = "CALL"
	}
	output.Bold("Option %d (%s)", opt.ID, side)
	output.Printf("  Owner:       %s\n", owner)
	output.Printf("  Strike Tick: %d\n", opt.StrikeTick())
	output.Printf("  Bounds:      [%d, %d]\n", opt.TickLower, opt.TickUpper)
	output.Printf("  Expiry:      %s\n", opt.Expiry.Format(time.RFC3339))
	if uri != "" {
		output.Printf("  URI:         %s\n", uri)
	}
	output.Println()

	table := NewTable(output, "#", "HANDLER", "MARKET", "RANGE", "LIQUIDITY")
	for i, leg := range opt.Legs {
		table.AddRow(
			fmt.Sprintf("%d", i),
			leg.Handler,
			leg.Market,
			fmt.Sprintf("[%d, %d]", leg.TickLower, leg.TickUpper),
			leg.Liquidity.Dec(),
		)
	}
	table.Render()
}

func newEventsCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events [kind]",
		Short: "Show the event journal",
		Long:  `Show recent engine events, newest first. Kinds: mint, exercise, settle, split, vol_update, address_update.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			events, err := app.Store.Events(cmd.Context(), kindOrEmpty(args), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(events)
			}

			table := NewTable(output, "AT", "KIND", "OPTION", "CALLER", "DETAIL")
			for _, ev := range events {
				table.AddRow(
					ev.At.Format("02-Jan 15:04:05"),
					string(ev.Kind),
					fmt.Sprintf("%d", ev.OptionID),
					ev.Caller,
					eventDetail(ev),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

func eventDetail(ev models.Event) string {
	switch ev.Kind {
	case models.EventMint:
		return fmt.Sprintf("premium=%s fee=%s notional=%s",
			utils.FormatAmount(ev.Premium), utils.FormatAmount(ev.Fee), utils.FormatAmount(ev.Notional))
	case models.EventExercise:
		return fmt.Sprintf("profit=%s collateral=%s",
			utils.FormatAmount(ev.Profit), utils.FormatAmount(ev.Collateral))
	case models.EventSettle:
		return fmt.Sprintf("delta=%s", utils.FormatAmount(ev.Profit))
	case models.EventSplit:
		return fmt.Sprintf("new=%d to=%s", ev.NewOptionID, ev.Recipient)
	default:
		return fmt.Sprintf("%s=%s", ev.Field, ev.Value)
	}
}

func newPoolCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect simulated pools",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <market>",
		Short: "Show a pool's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			pool, err := app.Registry.Pool(args[0])
			if err != nil {
				return err
			}
			price, err := pricemath.PriceFromSqrtX96(pool.SqrtPriceX96, pool.PutDecimals, pool.CallIsToken0)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market":         pool.Market,
					"call_asset":     pool.CallAsset,
					"put_asset":      pool.PutAsset,
					"sqrt_price_x96": pool.SqrtPriceX96.Dec(),
					"price":          price.Dec(),
				})
			}
			output.Bold("Pool %s", pool.Market)
			output.Printf("  Call Asset:   %s (%d decimals)\n", pool.CallAsset, pool.CallDecimals)
			output.Printf("  Put Asset:    %s (%d decimals)\n", pool.PutAsset, pool.PutDecimals)
			output.Printf("  SqrtPriceX96: %s\n", pool.SqrtPriceX96.Dec())
			output.Printf("  Price:        %s %s per %s\n",
				utils.FormatScaled(price, pool.PutDecimals), pool.PutAsset, pool.CallAsset)
			return nil
		},
	})

	return cmd
}
