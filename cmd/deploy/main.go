package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"etherlend/deployer/internal/composition/deployenv"
	"etherlend/deployer/internal/config"
	"etherlend/deployer/internal/deployrun"
	"etherlend/deployer/internal/metrics"
	"etherlend/deployer/internal/platform/errcat"
	"etherlend/deployer/internal/platform/privacylog"
	"etherlend/deployer/internal/preflight"
)

const (
	exitOK           = 0
	exitFailed       = 1
	exitInvalidInput = 2
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config path (default deploy.yaml, then configs/deploy.yaml)")
	networkName := fs.String("network", "", "network to deploy to (default: defaultNetwork from config)")
	doctor := fs.Bool("doctor", false, "run preflight checks and exit without deploying")
	asJSON := fs.Bool("json", false, "emit the doctor report as json")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalidInput
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitInvalidInput
	}
	if *showVersion {
		_, _ = fmt.Fprintf(stdout, "deploy %s\n", version)
		return exitOK
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(stderr, err, "")
	}
	network, err := cfg.Network(*networkName)
	if err != nil {
		return fail(stderr, err, "")
	}
	logger := privacylog.NewLogger(stderr, cfg.LogLevel, network.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, network.Timeout)
	defer cancel()

	if *doctor {
		report := deployenv.Doctor(ctx, network, cfg.Contract, cfg.Artifacts)
		if err := printReport(stdout, report, *asJSON); err != nil {
			return fail(stderr, err, network.URL)
		}
		if !report.Ready {
			return exitFailed
		}
		return exitOK
	}

	recorder := metrics.New()
	defer flushMetrics(recorder, cfg.MetricsTextfile, logger)

	session, err := deployenv.Open(ctx, network, cfg.Artifacts, logger)
	if err != nil {
		recorder.Attempt(cfg.Contract)
		recorder.Failure(cfg.Contract, errcat.Category(err))
		return fail(stderr, err, network.URL)
	}
	defer session.Close()

	runner := &deployrun.Runner{
		Provider: deployrun.FromEnvironment(session.Environment),
		Contract: cfg.Contract,
		Network:  network.Name,
		Stdout:   stdout,
		Logger:   logger,
		Metrics:  recorder,
	}
	if _, err := runner.Run(ctx); err != nil {
		return fail(stderr, err, network.URL)
	}
	return exitOK
}

func fail(stderr io.Writer, err error, endpoint string) int {
	_, _ = fmt.Fprintf(stderr, "deployment failed: %s\n", privacylog.ScrubEndpoint(err.Error(), endpoint))
	return exitFailed
}

func flushMetrics(recorder *metrics.Recorder, path string, logger *slog.Logger) {
	if err := recorder.WriteTextfile(path); err != nil {
		logger.Warn("metrics export failed", "component", "deploy", "operation", "write_metrics", "path", path, "error", err.Error())
	}
}

func printReport(w io.Writer, report preflight.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if _, err := fmt.Fprintf(w, "ready=%v network=%s contract=%s checks=%d\n", report.Ready, report.Network, report.Contract, len(report.Checks)); err != nil {
		return err
	}
	for _, c := range report.Checks {
		var err error
		if c.Pass {
			_, err = fmt.Fprintf(w, "[PASS] %s\n", c.Name)
		} else {
			_, err = fmt.Fprintf(w, "[FAIL] %s: %s\n", c.Name, c.Reason)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
