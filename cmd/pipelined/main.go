// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coppersystems/pipelined/internal/breaker"
	"github.com/coppersystems/pipelined/internal/config"
	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/itemdb"
	"github.com/coppersystems/pipelined/internal/nodes"
	"github.com/coppersystems/pipelined/internal/obs"
	"github.com/coppersystems/pipelined/internal/objectstore"
	"github.com/coppersystems/pipelined/internal/queue"
	"github.com/coppersystems/pipelined/internal/redisclient"
	"github.com/coppersystems/pipelined/internal/runner"
)

var version = "dev"

func main() {
	var configPath string
	var showVersion bool
	var enqueuePipeline, enqueueInputs, jobID string
	var ownerID int64
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.StringVar(&enqueuePipeline, "enqueue-pipeline", "", "Path to a pipeline JSON file to enqueue, then exit")
	fs.StringVar(&enqueueInputs, "enqueue-inputs", "", "Path to a job inputs JSON file (used with -enqueue-pipeline)")
	fs.StringVar(&jobID, "job-id", "", "Job id to use with -enqueue-pipeline; generated if omitted")
	fs.Int64Var(&ownerID, "owner-id", 0, "Owning user id for -enqueue-pipeline")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if enqueuePipeline != "" {
		enqueueAndExit(cfg, logger, enqueuePipeline, enqueueInputs, jobID, ownerID)
		return
	}

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = obs.TracerShutdown(context.Background(), tp) }()
	}

	db, err := queue.Open(cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime)
	if err != nil {
		logger.Fatal("failed to open postgres", obs.Err(err))
	}
	defer db.Close()

	rdb := redisclient.New(cfg)
	defer rdb.Close()

	q := queue.New(db, cfg.Redis.NotifyChannel, queue.RedisPublisher(rdb), logger)

	d := dispatcher.New()
	if err := nodes.RegisterBuiltins(d); err != nil {
		logger.Fatal("failed to register builtin node types", obs.Err(err))
	}

	objStore, err := objectstore.NewS3Client(cfg.S3)
	if err != nil {
		logger.Fatal("failed to build object store client", obs.Err(err))
	}

	itemDB := itemdb.NewPostgresClient(db)

	cb := breaker.New("itemdb", cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	readyCheck := func(c context.Context) error {
		if err := db.PingContext(c); err != nil {
			return err
		}
		_, err := rdb.Ping(c).Result()
		return err
	}
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	obs.StartQueueDepthUpdater(ctx, cfg, func(c context.Context) (map[string]int, error) {
		counts, err := q.Counts(c)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"queued":      counts.Queued,
			"running":     counts.Running,
			"succeeded":   counts.Success,
			"failed":      counts.Failed,
			"build_error": counts.BuildError,
		}, nil
	}, logger)

	reaper := queue.NewReaper(q, cfg.Runner.StaleJobTimeout, logger)
	reaperCron, err := reaper.Start(ctx, cfg.Runner.ReaperCron)
	if err != nil {
		logger.Fatal("failed to start stale-job reaper", obs.Err(err))
	}
	defer reaperCron.Stop()

	wake := make(chan string, 1)
	sub := rdb.Subscribe(ctx, cfg.Redis.NotifyChannel)
	defer sub.Close()
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case wake <- msg.Payload:
				default:
				}
			}
		}
	}()

	run := runner.New(&cfg.Runner, q, d, objStore, itemDB, cb, logger)
	logger.Info("pipelined starting", obs.String("version", version))
	run.Run(ctx, wake)
	logger.Info("pipelined stopped")
}

// enqueueAndExit reads a pipeline graph and optional job inputs from disk and
// submits them as a single queued job, without starting the runner loop.
func enqueueAndExit(cfg *config.Config, logger *zap.Logger, pipelinePath, inputsPath, jobID string, ownerID int64) {
	pipelineJSON, err := os.ReadFile(pipelinePath)
	if err != nil {
		logger.Fatal("failed to read pipeline file", obs.Err(err))
	}

	inputsJSON := []byte("{}")
	if inputsPath != "" {
		inputsJSON, err = os.ReadFile(inputsPath)
		if err != nil {
			logger.Fatal("failed to read inputs file", obs.Err(err))
		}
	}

	if jobID == "" {
		jobID = uuid.New().String()
	}

	db, err := queue.Open(cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime)
	if err != nil {
		logger.Fatal("failed to open postgres", obs.Err(err))
	}
	defer db.Close()

	rdb := redisclient.New(cfg)
	defer rdb.Close()

	q := queue.New(db, cfg.Redis.NotifyChannel, queue.RedisPublisher(rdb), logger)

	ctx := context.Background()
	if err := q.Add(ctx, jobID, ownerID, pipelineJSON, inputsJSON); err != nil {
		logger.Fatal("failed to enqueue job", obs.Err(err))
	}

	fmt.Println(jobID)
}
