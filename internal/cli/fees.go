package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(feesCmd)
	feesCmd.AddCommand(feesShowCmd)
	feesCmd.AddCommand(feesRateCmd)
	feesCmd.AddCommand(feesMemberRateCmd)
	feesCmd.AddCommand(feesPauseCmd)
	feesCmd.AddCommand(feesDistributeCmd)

	feesRateCmd.Flags().String("caller", "admin", "acting identity")
	feesMemberRateCmd.Flags().String("caller", "admin", "acting identity")
	feesPauseCmd.Flags().String("caller", "admin", "acting identity")
	feesPauseCmd.Flags().Bool("resume", false, "resume instead of pause")
}

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Inspect and manage transfer fees",
}

// ─── fees show ──────────────────────────────────────────────────────────────

var feesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the fee schedule and accumulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiGet(cmd, "/api/fees")
		if err != nil {
			return err
		}
		printKV(resp, "target_fee_rate_ppm", "collected_fees", "paused")
		if rates, ok := resp["member_rates_ppm"].(map[string]interface{}); ok && len(rates) > 0 {
			fmt.Fprintln(os.Stdout, "member overrides:")
			for member, rate := range rates {
				fmt.Fprintf(os.Stdout, "  %-22s %v ppm\n", member, rate)
			}
		}
		return nil
	},
}

// ─── fees rate ──────────────────────────────────────────────────────────────

var feesRateCmd = &cobra.Command{
	Use:   "rate PPM",
	Short: "Set the network-wide fee rate in parts per million",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ppm, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ppm value %q", args[0])
		}
		caller, _ := cmd.Flags().GetString("caller")
		_, err = apiPost(cmd, "/api/fees/target-rate", map[string]interface{}{
			"caller":   caller,
			"rate_ppm": ppm,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Target fee rate set to %d ppm.\n", ppm)
		return nil
	},
}

// ─── fees member-rate ───────────────────────────────────────────────────────

var feesMemberRateCmd = &cobra.Command{
	Use:   "member-rate MEMBER PPM",
	Short: "Set a member's fee multiplier in parts per million",
	Long: `Set a per-member override. The member's effective rate is the target
rate scaled by this multiplier: 1,000,000 ppm leaves the target
unchanged, 200,000 ppm charges a fifth of it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ppm, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ppm value %q", args[1])
		}
		caller, _ := cmd.Flags().GetString("caller")
		_, err = apiPost(cmd, "/api/fees/member-rate", map[string]interface{}{
			"caller":   caller,
			"member":   args[0],
			"rate_ppm": ppm,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Fee multiplier of %q set to %d ppm.\n", args[0], ppm)
		return nil
	},
}

// ─── fees pause ─────────────────────────────────────────────────────────────

var feesPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause or resume fee collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		resume, _ := cmd.Flags().GetBool("resume")
		_, err := apiPost(cmd, "/api/fees/pause", map[string]interface{}{
			"caller": caller,
			"paused": !resume,
		})
		if err != nil {
			return err
		}
		if resume {
			fmt.Fprintln(os.Stdout, "Fee collection resumed.")
		} else {
			fmt.Fprintln(os.Stdout, "Fee collection paused.")
		}
		return nil
	},
}

// ─── fees distribute ────────────────────────────────────────────────────────

var feesDistributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Flush collected fees into the assurance pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiPost(cmd, "/api/fees/distribute", map[string]string{})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Distributed %v into the reserve.\n", resp["distributed"])
		return nil
	},
}
