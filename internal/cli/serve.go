package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/crediton-network/crediton/internal/api"
	"github.com/crediton-network/crediton/internal/app/assurance"
	"github.com/crediton-network/crediton/internal/app/engine"
	"github.com/crediton-network/crediton/internal/app/fees"
	"github.com/crediton-network/crediton/internal/app/issuer"
	"github.com/crediton-network/crediton/internal/app/ledger"
	"github.com/crediton-network/crediton/internal/daemon"
	"github.com/crediton-network/crediton/internal/domain"
	"github.com/crediton-network/crediton/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", "", "config file path (default ~/.crediton/config.toml)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crediton daemon",
	Long: `Start the ledger daemon: restores state from the sqlite store, serves
the HTTP API, and snapshots state after every mutation.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = daemon.ConfigPath()
	}
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(daemon.Home(), 0700); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}
	db, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := buildNode(cfg, db)
	if err != nil {
		return err
	}
	e := node.engine

	server := api.NewServer(e)
	server.SetStore(db)
	server.SetPersist(func() { persistState(e, db) })
	server.SetCollateralPull(node.book.PullFrom)
	server.SetCollateralAllowance(node.book.Allowance)
	server.SetCollateralFund(func(caller, account domain.AccountID, amount decimal.Decimal) error {
		if !node.roster.IsOperator(caller) {
			return domain.ErrNotAuthorized
		}
		return node.book.Credit(account, amount)
	})
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s (db %s)", cfg.Addr(), cfg.DatabasePath())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[serve] shutdown: %v", err)
	}
	persistState(e, db)
	return nil
}

// node bundles the engine with the daemon-side collaborators the API hooks
// need after wiring.
type node struct {
	engine *engine.Engine
	roster *daemon.Roster
	book   *daemon.CollateralBook
}

// buildNode wires every component over the store and restores state.
func buildNode(cfg *daemon.Config, db *sqlite.DB) (*node, error) {
	roster, err := daemon.NewRoster(cfg.Roles, db)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	book, err := daemon.NewCollateralBook(db)
	if err != nil {
		return nil, fmt.Errorf("load collateral: %w", err)
	}
	oracle := daemon.NewStaticOracle(cfg.Reserve.TargetRTD)
	denom := domain.Denomination{
		LedgerDecimals:  cfg.Denom.LedgerDecimals,
		ReserveDecimals: cfg.Denom.ReserveDecimals,
	}

	l := ledger.New()
	l.SetJournal(db)
	accounts, err := db.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range accounts {
		l.Restore(a)
	}
	supply, debt, err := db.LoadTotals()
	if err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	l.RestoreTotals(supply, debt)

	iss := issuer.New(l, roster, nil)
	periods, err := db.ListCreditPeriods()
	if err != nil {
		return nil, fmt.Errorf("load credit periods: %w", err)
	}
	for _, p := range periods {
		iss.Restore(p)
	}

	pool := assurance.New(cfg.Reserve.AssetID, denom, l, oracle, book)
	reserve, err := db.GetReserveAccount(cfg.Reserve.AssetID)
	if err != nil {
		return nil, fmt.Errorf("load reserve: %w", err)
	}
	if reserve != nil {
		pool.Restore(*reserve)
	}

	fm := fees.New(cfg.Fees.TargetRatePPM, denom, oracle, book, pool)
	feeCfg, err := db.LoadFeeConfig()
	if err != nil {
		return nil, fmt.Errorf("load fee config: %w", err)
	}
	if feeCfg != nil {
		fm.Restore(*feeCfg)
	}

	log.Printf("[serve] restored %d accounts, %d credit periods", len(accounts), len(periods))
	return &node{engine: engine.New(l, iss, fm, pool, roster), roster: roster, book: book}, nil
}

// persistState snapshots the full engine state into the store. Failures
// are logged, not fatal: the in-memory state stays authoritative and the
// next snapshot retries.
func persistState(e *engine.Engine, db *sqlite.DB) {
	for _, a := range e.Ledger().Accounts() {
		if err := db.UpsertAccount(a); err != nil {
			log.Printf("[serve] persist account %s: %v", a.ID, err)
		}
	}
	if err := db.SaveTotals(e.Ledger().TotalSupply(), e.Ledger().TotalOutstandingDebt()); err != nil {
		log.Printf("[serve] persist totals: %v", err)
	}

	// Upsert open periods, then drop stored rows for retired ones.
	open := make(map[domain.AccountID]bool)
	for _, p := range e.Issuer().Periods() {
		open[p.AccountID] = true
		if err := db.UpsertCreditPeriod(p); err != nil {
			log.Printf("[serve] persist period %s: %v", p.AccountID, err)
		}
	}
	if stored, err := db.ListCreditPeriods(); err == nil {
		for _, p := range stored {
			if !open[p.AccountID] {
				if err := db.DeleteCreditPeriod(p.AccountID); err != nil {
					log.Printf("[serve] drop period %s: %v", p.AccountID, err)
				}
			}
		}
	} else {
		log.Printf("[serve] list stored periods: %v", err)
	}

	if err := db.UpsertReserveAccount(e.Pool().Reserve()); err != nil {
		log.Printf("[serve] persist reserve: %v", err)
	}
	if err := db.SaveFeeConfig(e.Fees().Config()); err != nil {
		log.Printf("[serve] persist fee config: %v", err)
	}
}
