// README: Live bench against a running API: checks stores, endpoints, the question budget, and throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"tenkap/internal/config"
)

// Options are bench-only knobs. Store addresses and the question limit come
// from the same TENKAP_* settings the API reads.
type Options struct {
	BaseURL        string
	MigrationPath  string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
	BearerToken    string

	DSN           string
	RedisAddr     string
	QuestionLimit int
}

func parseOptions(cfg config.Config) Options {
	opts := Options{
		DSN:           cfg.DB.DSN,
		RedisAddr:     cfg.Redis.Addr,
		QuestionLimit: cfg.Engagement.DailyQuestionLimit,
	}
	flag.StringVar(&opts.BaseURL, "base-url", "http://localhost"+cfg.HTTP.Addr, "API base URL")
	flag.StringVar(&opts.MigrationPath, "migration", "migrations/0001_init.sql", "schema file applied with -apply-migration")
	flag.BoolVar(&opts.ApplyMigration, "apply-migration", false, "apply the schema file before running")
	flag.BoolVar(&opts.Strict, "strict", false, "treat PENDING as failure")
	flag.DurationVar(&opts.Timeout, "timeout", time.Minute, "overall deadline")
	flag.IntVar(&opts.Concurrency, "concurrency", 20, "parallel clients for load and race checks")
	flag.DurationVar(&opts.Duration, "duration", 10*time.Second, "length of each load run")
	flag.StringVar(&opts.BearerToken, "token", os.Getenv("TENKAP_BENCH_TOKEN"), "Firebase ID token sent as Bearer; leave empty when the server runs without Firebase")
	flag.Parse()
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return opts
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	opts := parseOptions(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	results := NewRunner(opts).Run(ctx)

	tally := map[string]int{}
	for _, r := range results {
		tally[r.Status]++
	}
	fmt.Printf("\nPASS=%d FAIL=%d PENDING=%d SKIP=%d\n", tally[statusPass], tally[statusFail], tally[statusPending], tally[statusSkip])

	if tally[statusFail] > 0 || (opts.Strict && tally[statusPending] > 0) {
		os.Exit(1)
	}
}
