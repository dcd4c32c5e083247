package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transferCmd)
}

var transferCmd = &cobra.Command{
	Use:   "transfer FROM TO AMOUNT",
	Short: "Move credit between members",
	Long: `Transfer an amount from one member to another. Missing balance is
minted against the sender's credit line; any outstanding debt of the
receiver is repaid and burned on arrival.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiPost(cmd, "/api/transfer", map[string]string{
			"from":   args[0],
			"to":     args[1],
			"amount": args[2],
		})
		if err != nil {
			return err
		}
		if voided, _ := resp["voided"].(bool); voided {
			fmt.Fprintf(os.Stdout, "Transfer VOIDED (sender frozen). Fee %v was not refunded.\n", resp["fee"])
			return nil
		}
		fmt.Fprintf(os.Stdout, "Transferred %v from %v to %v (fee %v).\n",
			resp["amount"], resp["from"], resp["to"], resp["fee"])
		return nil
	},
}
