package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountOpenCmd)
	accountCmd.AddCommand(accountLimitCmd)
	accountCmd.AddCommand(accountInitCmd)
	accountCmd.AddCommand(accountPauseCmd)

	accountOpenCmd.Flags().String("caller", "admin", "acting identity")
	accountLimitCmd.Flags().String("caller", "admin", "acting identity")
	accountInitCmd.Flags().String("caller", "admin", "acting identity")
	accountInitCmd.Flags().String("limit", "", "credit limit (required)")
	accountInitCmd.Flags().String("initial", "", "initial balance minted as network debt")
	accountInitCmd.Flags().Int("period-days", 90, "underwriting period length in days")
	accountInitCmd.Flags().Int("grace-days", 30, "grace window length in days")
	accountPauseCmd.Flags().String("caller", "admin", "acting identity")
	accountPauseCmd.Flags().Bool("resume", false, "resume instead of pause")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage member accounts and credit lines",
}

// ─── account list ───────────────────────────────────────────────────────────

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiGet(cmd, "/api/accounts")
		if err != nil {
			return err
		}
		accounts, _ := resp["accounts"].([]interface{})
		if len(accounts) == 0 {
			fmt.Fprintln(os.Stdout, "No accounts.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-24s %12s %12s %12s\n", "ID", "BALANCE", "LIMIT", "CREDIT")
		for _, raw := range accounts {
			a, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			fmt.Fprintf(os.Stdout, "%-24v %12v %12v %12v\n",
				a["id"], a["balance"], a["credit_limit"], a["credit_balance"])
		}
		return nil
	},
}

// ─── account show ───────────────────────────────────────────────────────────

var accountShowCmd = &cobra.Command{
	Use:   "show ACCOUNT",
	Short: "Show one account's balances and period state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiGet(cmd, "/api/accounts/"+args[0])
		if err != nil {
			return err
		}
		printKV(resp, "id", "balance", "credit_limit", "credit_balance",
			"credit_available", "period_state", "compliant")
		return nil
	},
}

// ─── account open ───────────────────────────────────────────────────────────

var accountOpenCmd = &cobra.Command{
	Use:   "open ACCOUNT",
	Short: "Register a new member account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		_, err := apiPost(cmd, "/api/accounts", map[string]string{
			"caller": caller,
			"id":     args[0],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Account %q opened.\n", args[0])
		return nil
	},
}

// ─── account limit ──────────────────────────────────────────────────────────

var accountLimitCmd = &cobra.Command{
	Use:   "limit ACCOUNT AMOUNT",
	Short: "Set an account's credit limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		_, err := apiPost(cmd, "/api/accounts/"+args[0]+"/credit-limit", map[string]string{
			"caller": caller,
			"limit":  args[1],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Credit limit of %q set to %s.\n", args[0], args[1])
		return nil
	},
}

// ─── account init ───────────────────────────────────────────────────────────

var accountInitCmd = &cobra.Command{
	Use:   "init ACCOUNT",
	Short: "Open an underwriting period and credit line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		limit, _ := cmd.Flags().GetString("limit")
		if limit == "" {
			return fmt.Errorf("--limit is required")
		}
		initial, _ := cmd.Flags().GetString("initial")
		periodDays, _ := cmd.Flags().GetInt("period-days")
		graceDays, _ := cmd.Flags().GetInt("grace-days")

		_, err := apiPost(cmd, "/api/accounts/"+args[0]+"/credit-line", map[string]interface{}{
			"caller":          caller,
			"limit":           limit,
			"initial_balance": initial,
			"period_days":     periodDays,
			"grace_days":      graceDays,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Credit line of %s opened for %q (%dd period, %dd grace).\n",
			limit, args[0], periodDays, graceDays)
		return nil
	},
}

// ─── account pause ──────────────────────────────────────────────────────────

var accountPauseCmd = &cobra.Command{
	Use:   "pause ACCOUNT",
	Short: "Pause or resume an account's period lifecycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		resume, _ := cmd.Flags().GetBool("resume")
		_, err := apiPost(cmd, "/api/accounts/"+args[0]+"/pause", map[string]interface{}{
			"caller": caller,
			"paused": !resume,
		})
		if err != nil {
			return err
		}
		if resume {
			fmt.Fprintf(os.Stdout, "Period lifecycle of %q resumed.\n", args[0])
		} else {
			fmt.Fprintf(os.Stdout, "Period lifecycle of %q paused.\n", args[0])
		}
		return nil
	},
}
