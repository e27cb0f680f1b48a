// Package main provides a CLI that sends one prompt through the reliability
// and caching stack.
// Usage: airelay [--config file] [--system text] [--temperature N] "prompt"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/cache"
	"github.com/jonwraymond/airelay/completion"
	"github.com/jonwraymond/airelay/config"
	"github.com/jonwraymond/airelay/health"
	"github.com/jonwraymond/airelay/observe"
	"github.com/jonwraymond/airelay/resilience"
)

// dependencyName names the provider in breakers, logs and metrics.
const dependencyName = "anthropic"

type options struct {
	configPath  string
	system      string
	temperature float64
	purpose     string
	stream      bool
	health      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute parses args and runs the command, returning the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	code := 0
	cmd := newRootCmd(&code, stdin, stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return code
}

func newRootCmd(code *int, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "airelay [prompt]",
		Short:         "Send one prompt through the reliability and caching stack",
		Long:          "airelay sends a prompt to the completion provider with retries, a circuit breaker and response caching. The prompt is read from stdin when no arguments are given.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = run(cmd.Context(), opts, args, stdin, stdout, stderr)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	f.StringVar(&opts.system, "system", "", "system prompt")
	f.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature; negative leaves it unset")
	f.StringVar(&opts.purpose, "purpose", cache.PurposeChat, "request purpose: chat, template or system_prompt")
	f.BoolVar(&opts.stream, "stream", false, "stream the completion (never cached)")
	f.BoolVar(&opts.health, "health", false, "print a health report and exit")
	return cmd
}

func run(ctx context.Context, opts options, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 2
	}

	obsCfg := cfg.ObserveConfig()
	obsCfg.ExporterOutput = stderr
	obsCfg.Logging.Writer = stderr
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: telemetry setup failed: %v\n", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	logger := obs.Logger()

	app, err := newApp(cfg, obs)
	if err != nil {
		logger.Error(ctx, "startup failed", observe.Err(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.close(ctx, logger)

	if opts.health {
		return printHealth(ctx, app.health, stdout)
	}

	prompt, err := readPrompt(args, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Usage: airelay [--config file] [--system text] [--temperature N] \"prompt\"")
		return 2
	}

	resp, err := app.service.Generate(ctx, buildRequest(cfg, opts, prompt))
	if err != nil {
		fmt.Fprintln(stderr, apierr.UserMessage(err))
		return 1
	}
	fmt.Fprintln(stdout, resp.Text)
	return 0
}

// app holds the wired components for one CLI invocation.
type app struct {
	service *completion.Service
	health  *health.Aggregator
	closer  io.Closer // nil when caching is off
}

func newApp(cfg *config.Config, obs observe.Observer) (*app, error) {
	logger := obs.Logger()
	metrics := obs.Metrics()

	client, err := completion.NewAnthropicClient(completion.AnthropicConfig{
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		Model:     cfg.Provider.Model,
		MaxTokens: cfg.Provider.MaxTokens,
		Timeout:   cfg.Provider.Timeout,
	})
	if err != nil {
		return nil, err
	}

	breakerCfg := cfg.BreakerConfig()
	breakerCfg.IsFailure = countsTowardBreaker
	breakerCfg.Logger = logger
	breakerCfg.Metrics = metrics
	breakers := resilience.NewRegistry(breakerCfg)
	retryCfg := cfg.RetryConfig()
	retryCfg.Dependency = dependencyName
	retryCfg.Logger = logger
	retryCfg.Metrics = metrics

	relOpts := []resilience.ReliabilityOption{
		resilience.WithLogger(logger),
		resilience.WithMetrics(metrics),
		resilience.WithTracer(obs.Tracer()),
	}
	if cfg.RateLimit.Enabled {
		relOpts = append(relOpts, resilience.WithRateLimiter(resilience.NewRateLimiter(cfg.RateLimiterConfig())))
	}
	if cfg.RateLimit.MaxConcurrent > 0 {
		relOpts = append(relOpts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		})))
	}
	if cfg.Retry.AttemptTimeout > 0 {
		relOpts = append(relOpts, resilience.WithAttemptTimeout(cfg.Retry.AttemptTimeout))
	}
	rel := resilience.NewReliability(breakers.Get(dependencyName), resilience.NewRetry(retryCfg), relOpts...)

	agg := health.NewAggregator()
	agg.Register("circuit_breakers", health.BreakerChecker(breakers))

	a := &app{health: agg}
	svcOpts := []completion.ServiceOption{completion.WithLogger(logger)}
	if cfg.Cache.Enabled {
		store, closer, err := cache.NewStore(cfg.Cache.StoreConfig)
		if err != nil {
			return nil, err
		}
		a.closer = closer
		agg.Register("cache_store", health.StoreChecker("cache_store", store))

		cacheOpts := []cache.Option{cache.WithLogger(logger), cache.WithMetrics(metrics)}
		if cfg.Cache.SingleFlight {
			cacheOpts = append(cacheOpts, cache.WithSingleFlight())
		}
		svcOpts = append(svcOpts, completion.WithCache(cache.New[completion.Response](store, cacheOpts...)))
	}

	a.service = completion.NewService(client, rel, svcOpts...)
	return a, nil
}

// countsTowardBreaker leaves out failures that say nothing about the
// provider's health: rejected input and calls the caller abandoned.
func countsTowardBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, &apierr.Error{Kind: apierr.KindValidation})
}

func (a *app) close(ctx context.Context, logger observe.Logger) {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		logger.Warn(ctx, "closing cache store failed", observe.Err(err))
	}
}

// readPrompt takes the prompt from the arguments, or from stdin when none
// are given.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt != "" {
			return prompt, nil
		}
	}
	if stdin == nil {
		return "", errors.New("prompt is required")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	return prompt, nil
}

func buildRequest(cfg *config.Config, opts options, prompt string) cache.Request {
	req := cache.Request{
		Model:     cfg.Provider.Model,
		System:    opts.system,
		Messages:  []cache.Message{{Role: cache.RoleUser, Content: prompt}},
		MaxTokens: cfg.Provider.MaxTokens,
		Stream:    opts.stream,
		Purpose:   opts.purpose,
	}
	if opts.temperature >= 0 {
		req.Temperature = cache.Temperature(opts.temperature)
	}
	return req
}

func printHealth(ctx context.Context, agg *health.Aggregator, stdout io.Writer) int {
	report := health.BuildReport(ctx, agg)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return 1
	}
	if report.Status == health.StatusUnhealthy {
		return 1
	}
	return 0
}
