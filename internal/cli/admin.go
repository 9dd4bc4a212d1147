package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// addAdminCommands adds the operator-only admin commands.
func addAdminCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator administration",
		Long:  "Operator-only mutations. Run with --as set to the operator account.",
	}

	cmd.AddCommand(newSetVolCmd(app))
	cmd.AddCommand(newAllowMarketCmd(app))
	cmd.AddCommand(newAllowSettlerCmd(app))
	cmd.AddCommand(newFeeRecipientCmd(app))
	cmd.AddCommand(newSweepCmd(app))

	rootCmd.AddCommand(cmd)
}

func newSetVolCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-vol <ttl> <vol-id>",
		Short: "Register a volatility id for a time-to-live",
		Long:  "Register the volatility id minting uses for a time-to-live. Id 0 clears the entry.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ttl, err := time.ParseDuration(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return err
			}
			if err := app.Engine.SetVolatilities(caller(cmd), []time.Duration{ttl}, []uint64{id}); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"ttl": ttl.String(), "vol_id": id})
			}
			output.Success("✓ Volatility for %s set to id %d", ttl, id)
			return nil
		},
	}
}

func newAllowMarketCmd(app *App) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "allow-market <market>",
		Short: "Approve or revoke a collateral market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Engine.SetMarketApproved(caller(cmd), args[0], !revoke); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"market": args[0], "approved": !revoke})
			}
			output.Success("✓ Market %s approved=%t", args[0], !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of approve")
	return cmd
}

func newAllowSettlerCmd(app *App) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "allow-settler <account>",
		Short: "Approve or revoke a settler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Engine.SetSettlerApproved(caller(cmd), args[0], !revoke); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"settler": args[0], "approved": !revoke})
			}
			output.Success("✓ Settler %s approved=%t", args[0], !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of approve")
	return cmd
}

func newFeeRecipientCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fee-recipient <account>",
		Short: "Change the protocol fee recipient",
		Long:  "Change where protocol fees go. An empty account (\"\") disables fee collection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Engine.SetFeeRecipient(caller(cmd), args[0]); err != nil {
				return err
			}
			if err := app.persist(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"fee_recipient": args[0]})
			}
			output.Success("✓ Fee recipient set to %q", args[0])
			return nil
		},
	}
}

func newSweepCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <asset>",
		Short: "Sweep the engine's balance of one asset to the operator",
		Long:  "Emergency recovery: transfers the engine's entire balance of an asset to the operator, bypassing option accounting.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			swept, err := app.Engine.EmergencySweep(caller(cmd), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"asset": args[0], "amount": swept.Dec()})
			}
			output.Warning("⚠ Swept %s %s to operator", swept.Dec(), args[0])
			return nil
		},
	}
}
