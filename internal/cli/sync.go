package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [ACCOUNT]",
	Short: "Run the keeper pass over credit periods",
	Long: `Evaluate credit periods against the clock: expired compliant periods
renew silently, expired non-compliant ones default and are written off.
With no argument, every open period is evaluated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			resp, err := apiPost(cmd, "/api/accounts/"+args[0]+"/sync", map[string]string{})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%v: %v\n", resp["id"], resp["outcome"])
			return nil
		}

		resp, err := apiPost(cmd, "/api/sync", map[string]string{})
		if err != nil {
			return err
		}
		outcomes, _ := resp["outcomes"].(map[string]interface{})
		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stdout, "No open credit periods.")
			return nil
		}
		for id, outcome := range outcomes {
			fmt.Fprintf(os.Stdout, "%-24s %v\n", id, outcome)
		}
		return nil
	},
}
