// Package cli implements the creditd command tree.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "creditd",
	Short: "Mutual-credit ledger daemon",
	Long: `creditd runs a mutual-credit currency network: members pay each other
with credit minted against underwritten credit lines, defaults are written
off against a collateralized assurance pool, and every operation is
recorded in a durable journal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("api", "", "daemon API base URL (default $CREDITON_API or http://127.0.0.1:8480)")
}

// ─── API Client Helpers ─────────────────────────────────────────────────────

func apiBase(cmd *cobra.Command) string {
	if flag, _ := cmd.Flags().GetString("api"); flag != "" {
		return flag
	}
	if env := os.Getenv("CREDITON_API"); env != "" {
		return env
	}
	return "http://127.0.0.1:8480"
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiGet performs a GET against the daemon and decodes the JSON response.
func apiGet(cmd *cobra.Command, path string) (map[string]interface{}, error) {
	resp, err := httpClient.Get(apiBase(cmd) + path)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return decodeResponse(resp)
}

// apiPost performs a POST with a JSON body and decodes the response.
func apiPost(cmd *cobra.Command, path string, body interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Post(apiBase(cmd)+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]interface{}, error) {
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if errObj, ok := out["error"].(map[string]interface{}); ok {
			if msg, ok := errObj["message"].(string); ok {
				return nil, fmt.Errorf("%s", msg)
			}
		}
		return nil, fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	return out, nil
}

// printKV prints selected response fields in a stable order.
func printKV(resp map[string]interface{}, keys ...string) {
	for _, key := range keys {
		if v, ok := resp[key]; ok {
			fmt.Fprintf(os.Stdout, "%-18s %v\n", key+":", v)
		}
	}
}
