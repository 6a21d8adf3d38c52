// Package main replays a captured provider frame log through the codec,
// the matcher and a dry-run dispatcher, reporting what would have
// traded. The log is JSONL: one raw provider frame per line. A virtual
// clock advances a fixed step per frame so cooldowns and caps behave as
// they would have live, and repeated runs produce identical output.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"solana-autopilot/internal/config"
	"solana-autopilot/internal/dispatch"
	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/logging"
	"solana-autopilot/internal/match"
	"solana-autopilot/internal/protocol"
	"solana-autopilot/internal/storage"
	"solana-autopilot/internal/storage/memory"
)

func main() {
	framesPath := flag.String("frames", "", "JSONL frame log to replay (required)")
	profilesPath := flag.String("profiles", "", "YAML profile seed file (required)")
	balances := flag.String("balances", "", "Wallet balances as wallet=SOL pairs, comma separated")
	startTime := flag.String("start-time", "", "Virtual clock start (RFC3339, default: now)")
	stepMS := flag.Int64("step-ms", 100, "Virtual clock advance per frame, milliseconds")
	solPrice := flag.Float64("sol-price", 0, "SOL price hint for market cap estimates")
	tokenSupply := flag.Float64("token-supply", 0, "Token supply hint for market cap estimates")
	outputJSON := flag.Bool("json", false, "Output the summary as JSON")
	quiet := flag.Bool("quiet", false, "Suppress per-fill lines")
	flag.Parse()

	if *framesPath == "" || *profilesPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --frames and --profiles are required")
		os.Exit(1)
	}

	// Dispatcher logging goes to stderr as text so stdout stays clean
	// for the report.
	if err := logging.Default().Configure("warn", "text", "stderr", 0); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	clock := time.Now().UnixMilli()
	if *startTime != "" {
		t, err := time.Parse(time.RFC3339, *startTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: parse start-time: %v\n", err)
			os.Exit(1)
		}
		clock = t.UnixMilli()
	}

	walletBalances, err := parseBalances(*balances)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	r, err := newReplayer(replayerOptions{
		ProfilesPath:    *profilesPath,
		Balances:        walletBalances,
		StartMS:         clock,
		StepMS:          *stepMS,
		SolPriceHint:    *solPrice,
		TokenSupplyHint: *tokenSupply,
		Quiet:           *quiet || *outputJSON,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*framesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := r.run(context.Background(), f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: replay failed: %v\n", err)
		os.Exit(1)
	}

	stats, err := r.stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: collect stats: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return
	}
	printSummary(stats)
}

// parseBalances parses "wallet-1=2.5,wallet-2=10" into a balance map.
func parseBalances(s string) (map[string]float64, error) {
	out := map[string]float64{}
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("balance %q is not wallet=SOL", pair)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", pair, err)
		}
		out[strings.TrimSpace(name)] = amount
	}
	return out, nil
}

type replayerOptions struct {
	ProfilesPath    string
	Balances        map[string]float64
	StartMS         int64
	StepMS          int64
	SolPriceHint    float64
	TokenSupplyHint float64
	Quiet           bool
}

// replayer drives frames through the normalization and trading path.
type replayer struct {
	codec      *protocol.Codec
	profiles   storage.ProfileStore
	logs       storage.ExecutionLogStore
	dispatcher *dispatch.Dispatcher
	executor   *dispatch.DryRunExecutor
	now        int64
	step       int64

	counts ReplayStats
}

func newReplayer(opts replayerOptions) (*replayer, error) {
	r := &replayer{
		codec: protocol.NewCodec(protocol.CodecOptions{
			SolPriceHint:    opts.SolPriceHint,
			TokenSupplyHint: opts.TokenSupplyHint,
		}),
		profiles: memory.NewProfileStore(),
		logs:     memory.NewExecutionLogStore(),
		now:      opts.StartMS,
		step:     opts.StepMS,
		counts: ReplayStats{
			VirtualStartMS: opts.StartMS,
			EventsByKind:   map[string]int{},
			SkipReasons:    map[string]int{},
		},
	}
	if r.step <= 0 {
		r.step = 100
	}

	seeds, err := config.LoadProfiles(opts.ProfilesPath, opts.StartMS)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(seeds))
	for _, p := range seeds {
		if err := r.profiles.Create(context.Background(), p); err != nil {
			return nil, fmt.Errorf("seed profile %s: %w", p.ID, err)
		}
		names[p.ID] = p.Name
	}

	clock := func() int64 { return r.now }
	r.executor = &dispatch.DryRunExecutor{Clock: clock}

	var executor dispatch.Executor = r.executor
	if !opts.Quiet {
		executor = &printingExecutor{inner: r.executor, names: names, clock: clock}
	}

	r.dispatcher = dispatch.NewDispatcher(dispatch.DispatcherOptions{
		Executor:     executor,
		Balances:     dispatch.StaticBalances(opts.Balances),
		ProfileStore: r.profiles,
		LogStore:     r.logs,
		// Replays run at full speed; the live rate limit would only
		// distort the virtual timeline.
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Clock:   clock,
	})
	return r, nil
}

// run feeds every line through decode, normalize, match, dispatch.
// A malformed line is counted and skipped, never a reason to stop.
func (r *replayer) run(ctx context.Context, f *os.File) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.counts.FramesRead++
		r.now += r.step

		frame, err := protocol.DecodeFrame([]byte(line))
		if err != nil {
			r.counts.Malformed++
			continue
		}
		if ctl, ok := protocol.ClassifyControl(frame); ok {
			r.counts.ControlFrames++
			if ctl.AuthFailure {
				r.counts.AuthErrors++
				fmt.Fprintf(os.Stderr, "Warning: auth error frame: %s\n", ctl.Message)
			}
			continue
		}

		ev, ok := r.codec.Normalize(frame, r.now)
		if !ok {
			r.counts.UnknownFrames++
			continue
		}
		r.counts.Events++
		r.counts.EventsByKind[string(ev.Kind)]++

		profiles, err := r.profiles.List(ctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		for _, dec := range match.Match(ev, profiles, r.now) {
			if !dec.Eligible {
				r.counts.SkipReasons[dec.Reason]++
				continue
			}
			r.counts.Eligible++
			if err := r.dispatcher.Dispatch(ctx, ev, dec); err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	r.counts.VirtualEndMS = r.now
	return nil
}

// stats finalizes the report with per-profile outcomes from the stores.
func (r *replayer) stats(ctx context.Context) (ReplayStats, error) {
	out := r.counts
	out.Fills = len(r.executor.Fills())

	profiles, err := r.profiles.List(ctx)
	if err != nil {
		return out, err
	}
	for _, p := range profiles {
		records, err := r.logs.ListByProfile(ctx, p.ID, 0)
		if err != nil {
			return out, err
		}
		failed := 0
		for _, rec := range records {
			if !rec.Success {
				failed++
			}
		}
		out.Failed += failed
		out.Profiles = append(out.Profiles, ProfileOutcome{
			ID:         p.ID,
			Name:       p.Name,
			Kind:       string(p.Kind),
			Executions: p.ExecutionCount,
			Records:    len(records),
		})
	}
	return out, nil
}

// ReplayStats is the replay report, printable as text or JSON.
type ReplayStats struct {
	FramesRead     int              `json:"frames_read"`
	Malformed      int              `json:"malformed"`
	ControlFrames  int              `json:"control_frames"`
	AuthErrors     int              `json:"auth_errors"`
	UnknownFrames  int              `json:"unknown_frames"`
	Events         int              `json:"events"`
	EventsByKind   map[string]int   `json:"events_by_kind"`
	Eligible       int              `json:"eligible_decisions"`
	Fills          int              `json:"fills"`
	Failed         int              `json:"failed"`
	SkipReasons    map[string]int   `json:"skip_reasons"`
	VirtualStartMS int64            `json:"virtual_start_ms"`
	VirtualEndMS   int64            `json:"virtual_end_ms"`
	Profiles       []ProfileOutcome `json:"profiles"`
}

// ProfileOutcome is one profile's replay result.
type ProfileOutcome struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Executions int    `json:"executions"`
	Records    int    `json:"records"`
}

func printSummary(stats ReplayStats) {
	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Frames read:        %d\n", stats.FramesRead)
	fmt.Printf("Malformed:          %d\n", stats.Malformed)
	fmt.Printf("Control frames:     %d\n", stats.ControlFrames)
	if stats.AuthErrors > 0 {
		fmt.Printf("Auth errors:        %d\n", stats.AuthErrors)
	}
	fmt.Printf("Unknown frames:     %d\n", stats.UnknownFrames)
	fmt.Printf("Events:             %d\n", stats.Events)
	for _, kind := range sortedKeys(stats.EventsByKind) {
		fmt.Printf("  %-17s %d\n", kind+":", stats.EventsByKind[kind])
	}
	fmt.Printf("Eligible decisions: %d\n", stats.Eligible)
	fmt.Printf("Fills:              %d\n", stats.Fills)
	fmt.Printf("Failed:             %d\n", stats.Failed)
	if len(stats.SkipReasons) > 0 {
		fmt.Printf("Skip reasons:\n")
		for _, reason := range sortedKeys(stats.SkipReasons) {
			fmt.Printf("  %-17s %d\n", reason+":", stats.SkipReasons[reason])
		}
	}
	span := time.Duration(stats.VirtualEndMS-stats.VirtualStartMS) * time.Millisecond
	fmt.Printf("Virtual span:       %v\n", span)
	fmt.Printf("\n%-36s  %-6s  %-10s  %s\n", "PROFILE", "KIND", "EXECUTIONS", "NAME")
	for _, p := range stats.Profiles {
		fmt.Printf("%-36s  %-6s  %-10d  %s\n", p.ID, p.Kind, p.Executions, p.Name)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printingExecutor wraps the dry-run executor to echo fills as they land.
type printingExecutor struct {
	inner *dispatch.DryRunExecutor
	names map[string]string
	clock func() int64
}

func (e *printingExecutor) Execute(ctx context.Context, order dispatch.TradeOrder) (*dispatch.TradeReceipt, error) {
	receipt, err := e.inner.Execute(ctx, order)

	ts := time.UnixMilli(e.clock()).UTC().Format(time.RFC3339)
	name := e.names[order.ProfileID]
	switch {
	case err != nil:
		fmt.Printf("[%s] FAIL %s %s (%s): %v\n", ts, order.Direction, order.TokenMint, name, err)
	case order.Direction == domain.DirectionSell:
		fmt.Printf("[%s] sell %.1f%% of %s (%s)\n", ts, order.SellPercent, order.TokenMint, name)
	default:
		fmt.Printf("[%s] buy %.4f SOL of %s (%s)\n", ts, order.SolAmount, order.TokenMint, name)
	}
	return receipt, err
}
