// Package main administers trading profiles: list, inspect, toggle,
// reset counters, delete, and seed from a YAML file. It works against
// the same postgres store the engine uses, or against an in-memory
// store for seed file dry runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"solana-autopilot/internal/config"
	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/solana"
	"solana-autopilot/internal/storage"
	"solana-autopilot/internal/storage/memory"
	"solana-autopilot/internal/storage/migrations"
	pgstore "solana-autopilot/internal/storage/postgres"
)

func main() {
	// Load .env so -postgres-dsn can default from the environment
	_ = godotenv.Load()

	action := flag.String("action", "list", "Action: list, show, enable, disable, reset, delete, seed, logs")
	id := flag.String("id", "", "Profile ID (show, enable, disable, reset, delete, logs)")
	file := flag.String("file", "", "YAML seed file (seed)")
	limit := flag.Int("limit", 20, "Max rows to print (logs)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (seed file dry runs)")
	flag.Parse()

	ctx := context.Background()

	profiles, logs, cleanup, err := openStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	switch *action {
	case "list":
		err = runList(ctx, profiles)
	case "show":
		err = runShow(ctx, profiles, logs, *id)
	case "enable":
		err = runSetActive(ctx, profiles, *id, true)
	case "disable":
		err = runSetActive(ctx, profiles, *id, false)
	case "reset":
		err = runReset(ctx, profiles, *id)
	case "delete":
		err = runDelete(ctx, profiles, *id)
	case "seed":
		err = runSeed(ctx, profiles, *file)
	case "logs":
		err = runLogs(ctx, logs, *id, *limit)
	default:
		err = fmt.Errorf("unknown action %q", *action)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStores selects memory or postgres storage. Postgres runs the
// migrations first so seeding a fresh database bootstraps the schema.
func openStores(ctx context.Context, dsn string, useMemory bool) (storage.ProfileStore, storage.ExecutionLogStore, func(), error) {
	if useMemory {
		return memory.NewProfileStore(), memory.NewExecutionLogStore(), func() {}, nil
	}
	if dsn == "" {
		return nil, nil, nil, fmt.Errorf("--postgres-dsn is required (use --use-memory for a throwaway store)")
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	return pgstore.NewProfileStore(pool), pgstore.NewExecutionLogStore(pool), pool.Close, nil
}

func runList(ctx context.Context, store storage.ProfileStore) error {
	profiles, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles.")
		return nil
	}

	fmt.Printf("%-36s  %-6s  %-8s  %-9s  %s\n", "ID", "KIND", "ACTIVE", "EXECUTED", "NAME")
	for _, p := range profiles {
		executed := fmt.Sprintf("%d", p.ExecutionCount)
		if p.MaxExecutions > 0 {
			executed = fmt.Sprintf("%d/%d", p.ExecutionCount, p.MaxExecutions)
		}
		fmt.Printf("%-36s  %-6s  %-8t  %-9s  %s\n", p.ID, p.Kind, p.Active, executed, p.Name)
	}
	return nil
}

func runShow(ctx context.Context, profiles storage.ProfileStore, logs storage.ExecutionLogStore, id string) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}
	p, err := profiles.Get(ctx, id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	count, err := logs.CountByProfile(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Execution records: %d\n", count)
	return nil
}

func runSetActive(ctx context.Context, store storage.ProfileStore, id string, active bool) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}
	p, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	word := "disabled"
	if active {
		word = "enabled"
	}
	if p.Active == active {
		fmt.Printf("Profile %s is already %s\n", id, word)
		return nil
	}

	p.Active = active
	if err := store.Update(ctx, p); err != nil {
		return err
	}
	fmt.Printf("Profile %s %s\n", id, word)
	return nil
}

func runReset(ctx context.Context, store storage.ProfileStore, id string) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}
	p, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	p.ExecutionCount = 0
	p.LastExecutedAt = nil
	if err := store.Update(ctx, p); err != nil {
		return err
	}
	fmt.Printf("Profile %s counters reset\n", id)
	return nil
}

func runDelete(ctx context.Context, store storage.ProfileStore, id string) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Profile %s deleted\n", id)
	return nil
}

func runLogs(ctx context.Context, logs storage.ExecutionLogStore, id string, limit int) error {
	if id == "" {
		return fmt.Errorf("--id is required")
	}
	records, err := logs.ListByProfile(ctx, id, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No execution records.")
		return nil
	}

	fmt.Printf("%-24s  %-4s  %-12s  %-44s  %-7s  %s\n", "EXECUTED", "SIDE", "SIZE", "MINT", "RESULT", "DETAIL")
	for _, r := range records {
		size := fmt.Sprintf("%.4f SOL", r.SolAmount)
		if r.Direction == domain.DirectionSell {
			size = fmt.Sprintf("%.1f%%", r.SellPercent)
		}
		result, detail := "ok", r.Signature
		if !r.Success {
			result, detail = "failed", r.Error
		} else if r.Error != "" {
			detail = r.Signature + " (" + r.Error + ")"
		}
		ts := time.UnixMilli(r.ExecutedAt).UTC().Format(time.RFC3339)
		fmt.Printf("%-24s  %-4s  %-12s  %-44s  %-7s  %s\n", ts, r.Direction, size, r.TokenMint, result, detail)
	}
	return nil
}

func runSeed(ctx context.Context, store storage.ProfileStore, path string) error {
	if path == "" {
		return fmt.Errorf("--file is required")
	}

	profiles, err := config.LoadProfiles(path, time.Now().UnixMilli())
	if err != nil {
		return err
	}

	// Off-curve keys decode fine but are usually pasted program IDs, not
	// wallets. Worth a warning, not a rejection.
	for _, p := range profiles {
		if p.Copy == nil {
			continue
		}
		for _, a := range p.Copy.WalletAddresses {
			if !solana.IsOnCurve(a) {
				fmt.Fprintf(os.Stderr, "Warning: %s wallet %s is off-curve (program address, not a wallet?)\n", p.Name, a)
			}
		}
	}

	created := 0
	for _, p := range profiles {
		if err := store.Create(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				fmt.Printf("Skipping %s (%s): already exists\n", p.ID, p.Name)
				continue
			}
			return fmt.Errorf("create profile %s: %w", p.ID, err)
		}
		fmt.Printf("Created %s  %-6s  %s\n", p.ID, p.Kind, p.Name)
		created++
	}
	fmt.Printf("Seeded %d of %d profiles\n", created, len(profiles))
	return nil
}
