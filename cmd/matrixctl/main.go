package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danmuck/matrixctl/internal/compute"
	"github.com/danmuck/matrixctl/internal/logging"
	"github.com/danmuck/matrixctl/internal/matrix"
	"github.com/danmuck/matrixctl/internal/observability"
	"github.com/rs/zerolog/log"
)

const usage = "Usage: matrixctl [flags] thread_num matrix_dim to_print_matrix"

type positional struct {
	workers uint32
	dim     int
	show    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("matrixctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML config path")
	addr := fs.String("addr", "", "compute service address (overrides config)")
	seed := fs.Int64("seed", 0, "matrix generation seed (0 = time based)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 2
	}

	logging.ConfigureRuntime()

	pos, err := parsePositional(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "matrixctl: %v\n", err)
		fs.Usage()
		return 2
	}
	cfg, err := loadRunConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "matrixctl: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Client.Address = *addr
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	fmt.Fprintln(stdout, "Constructing matrix...")
	m, err := matrix.Generate(rand.New(rand.NewSource(*seed)), pos.dim, cfg.ValueMin, cfg.ValueMax)
	if err != nil {
		fmt.Fprintf(stderr, "matrixctl: %v\n", err)
		return 1
	}
	if pos.show {
		fmt.Fprintf(stdout, "Hello, I am client with matrix:\n%s\n", m)
	} else {
		fmt.Fprintln(stdout, "Hello, I am client with matrix")
	}

	if cfg.MetricsAddr != "" {
		srv, err := observability.ServeMetrics(cfg.MetricsAddr)
		if err != nil {
			fmt.Fprintf(stderr, "matrixctl: metrics: %v\n", err)
			return 1
		}
		defer srv.Close()
		log.Info().Str("addr", srv.Addr).Msg("serving metrics")
	}

	client, err := compute.NewClient(cfg.Client)
	if err != nil {
		fmt.Fprintf(stderr, "matrixctl: %v\n", err)
		return 1
	}
	log.Info().Str("addr", cfg.Client.Address).Uint32("workers", pos.workers).Int("dim", pos.dim).Msg("submitting matrix")
	res, err := client.Run(ctx, compute.Job{Workers: pos.workers, Matrix: m})
	if err != nil {
		fmt.Fprintf(stderr, "matrixctl: %v\n", err)
		return 1
	}

	if pos.show {
		fmt.Fprintf(stdout, "Received matrix: %s\n", res.Matrix)
	} else {
		fmt.Fprintln(stdout, "Received matrix")
	}
	log.Info().Int("polls", res.Polls).Dur("elapsed", res.Elapsed).Msg("matrix received")
	return 0
}

func parsePositional(args []string) (positional, error) {
	workers, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return positional{}, fmt.Errorf("thread_num: %w", err)
	}
	dim, err := strconv.Atoi(args[1])
	if err != nil {
		return positional{}, fmt.Errorf("matrix_dim: %w", err)
	}
	if dim < 0 {
		return positional{}, fmt.Errorf("matrix_dim: %w: %d", matrix.ErrInvalidDimension, dim)
	}
	show, err := strconv.ParseBool(args[2])
	if err != nil {
		return positional{}, fmt.Errorf("to_print_matrix: %w", err)
	}
	return positional{workers: uint32(workers), dim: dim, show: show}, nil
}
