package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reserveCmd)
	reserveCmd.AddCommand(reserveShowCmd)
	reserveCmd.AddCommand(reserveDepositCmd)
	reserveCmd.AddCommand(reserveWithdrawCmd)
	reserveCmd.AddCommand(reserveReimburseCmd)
	reserveCmd.AddCommand(reserveFundCmd)
	reserveCmd.AddCommand(reserveCollateralCmd)

	reserveFundCmd.Flags().String("caller", "admin", "acting identity")
	reserveDepositCmd.Flags().String("from", "", "depositor account (required)")
	reserveWithdrawCmd.Flags().String("caller", "admin", "acting identity")
	reserveWithdrawCmd.Flags().String("to", "", "recipient account (required)")
}

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Inspect and manage the assurance pool",
}

// ─── reserve show ───────────────────────────────────────────────────────────

var reserveShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the segmented reserve and RTD",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiGet(cmd, "/api/reserve")
		if err != nil {
			return err
		}
		printKV(resp, "asset_id", "primary", "peripheral", "excess",
			"reserve_balance", "rtd", "needed_reserves")
		return nil
	},
}

// ─── reserve deposit ────────────────────────────────────────────────────────

var reserveDepositCmd = &cobra.Command{
	Use:   "deposit AMOUNT",
	Short: "Deposit collateral into the pool",
	Long: `Deposit collateral. The amount needed to reach the RTD target goes
into the primary reserve; the remainder becomes withdrawable excess.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		if from == "" {
			return fmt.Errorf("--from is required")
		}
		_, err := apiPost(cmd, "/api/reserve/deposit", map[string]string{
			"from":   from,
			"amount": args[0],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deposited %s from %q.\n", args[0], from)
		return nil
	},
}

// ─── reserve withdraw ───────────────────────────────────────────────────────

var reserveWithdrawCmd = &cobra.Command{
	Use:   "withdraw AMOUNT",
	Short: "Withdraw excess collateral",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		to, _ := cmd.Flags().GetString("to")
		if to == "" {
			return fmt.Errorf("--to is required")
		}
		_, err := apiPost(cmd, "/api/reserve/withdraw", map[string]string{
			"caller": caller,
			"to":     to,
			"amount": args[0],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Withdrew %s to %q.\n", args[0], to)
		return nil
	},
}

// ─── reserve fund ───────────────────────────────────────────────────────────

var reserveFundCmd = &cobra.Command{
	Use:   "fund ACCOUNT AMOUNT",
	Short: "Credit an account's external collateral",
	Long: `Record a confirmed off-network payment as collateral available to the
account. Deposits and transfer fees settle against this balance.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		_, err := apiPost(cmd, "/api/collateral/fund", map[string]string{
			"caller":  caller,
			"account": args[0],
			"amount":  args[1],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Funded %q with %s collateral.\n", args[0], args[1])
		return nil
	},
}

// ─── reserve collateral ─────────────────────────────────────────────────────

var reserveCollateralCmd = &cobra.Command{
	Use:   "collateral ACCOUNT",
	Short: "Show an account's external collateral balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiGet(cmd, "/api/collateral/"+args[0])
		if err != nil {
			return err
		}
		printKV(resp, "account", "balance")
		return nil
	},
}

// ─── reserve reimburse ──────────────────────────────────────────────────────

var reserveReimburseCmd = &cobra.Command{
	Use:   "reimburse ACCOUNT AMOUNT",
	Short: "Pay out a default claim from the reserve",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiPost(cmd, "/api/reserve/reimburse", map[string]string{
			"account": args[0],
			"amount":  args[1],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Reimbursed %v of requested %v to %q.\n",
			resp["paid"], resp["requested"], args[0])
		return nil
	},
}
