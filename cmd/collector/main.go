// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moov-io/base/admin"
	"github.com/moov-io/collections"
	"github.com/moov-io/collections/pkg/audit"
	"github.com/moov-io/collections/pkg/charge"
	"github.com/moov-io/collections/pkg/collection"
	collectionadmin "github.com/moov-io/collections/pkg/collection/admin"
	"github.com/moov-io/collections/pkg/config"
	configadmin "github.com/moov-io/collections/pkg/config/admin"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/events"
	"github.com/moov-io/collections/pkg/funding"
	"github.com/moov-io/collections/pkg/notify"
	"github.com/moov-io/collections/pkg/processor"
	"github.com/moov-io/collections/pkg/refresh"
	"github.com/moov-io/collections/pkg/rules"
	"github.com/moov-io/collections/pkg/schedule"
	"github.com/moov-io/collections/pkg/secrets"
	"github.com/moov-io/collections/pkg/stream"
	"github.com/moov-io/collections/pkg/sweep"
	"github.com/moov-io/collections/pkg/taskengine"
	"github.com/moov-io/collections/pkg/tasks"
	"github.com/moov-io/collections/pkg/util"
	"github.com/moov-io/collections/x/trace"

	"github.com/go-kit/kit/log"
)

var (
	adminAddr = flag.String("admin.addr", "", "Admin HTTP listen address")

	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
)

func main() {
	flag.Parse()

	cfg, err := config.FromFile(util.Or(os.Getenv("CONFIG_FILE"), *flagConfigFile))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger := cfg.Logger
	logger.Log("startup", fmt.Sprintf("Starting collections version %s", collections.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// migrate database
	db, err := database.New(ctx, logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Log("exit", err)
		}
	}()

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	// Spin up admin HTTP server and optionally override -admin.addr
	if *adminAddr == "" {
		*adminAddr = util.Or(os.Getenv("HTTP_ADMIN_BIND_ADDRESS"), cfg.Admin.BindAddress)
	}
	adminServer := admin.NewServer(*adminAddr)
	adminServer.AddVersionHandler(collections.Version) // Setup 'GET /version'
	adminServer.AddLivenessCheck("database", func() error {
		return pingDatabase(db)
	})
	go func() {
		logger.Log("admin", fmt.Sprintf("listening on %s", adminServer.BindAddr()))
		if err := adminServer.Listen(); err != nil {
			err = fmt.Errorf("problem starting admin http: %v", err)
			logger.Log("admin", err)
			errs <- err
		}
	}()
	defer adminServer.Shutdown()
	configadmin.RegisterRoutes(adminServer, cfg)

	_, tracerCloser, err := trace.New(logger, cfg.Tracing)
	if err != nil {
		panic(fmt.Sprintf("problem creating tracer: %v", err))
	}
	defer tracerCloser.Close()

	httpClient, err := tlsHttpClient(os.Getenv("HTTP_CLIENT_CAFILE"))
	if err != nil {
		panic(fmt.Sprintf("problem creating TLS ready *http.Client: %v", err))
	}

	windows, err := schedule.NewWindows(cfg.Windows)
	if err != nil {
		panic(fmt.Sprintf("problem reading banking windows: %v", err))
	}

	keeper, err := secrets.OpenKeeper(ctx, cfg.Processors.Secrets.KeyURI)
	if err != nil {
		panic(err)
	}
	stringKeeper := secrets.NewStringKeeper(keeper, 10*time.Second)

	// Processors and how each funding source is charged
	gateway, err := setupGateway(logger, cfg, stringKeeper, windows, httpClient)
	if err != nil {
		panic(fmt.Sprintf("problem setting up processors: %v", err))
	}
	codes := processor.NewCodes(cfg.Processors)
	selector := charge.NewSelector(logger, gateway, windows, codes)

	// Background events and notifications
	queue := events.NewQueue(logger, cfg.Events.Queue)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Log("exit", fmt.Sprintf("events queue: %v", err))
		}
	}()

	var topic events.Topic
	if cfg.Events.Stream != nil {
		t, err := stream.OpenTopic(ctx, cfg.Events.Stream)
		if err != nil {
			panic(fmt.Sprintf("problem opening events topic: %v", err))
		}
		defer t.Shutdown(context.Background())
		topic = t
	}
	sender, err := notify.NewMultiSender(logger, cfg.Notifications)
	if err != nil {
		panic(fmt.Sprintf("problem setting up notifications: %v", err))
	}
	dispatcher := events.NewDispatcher(logger, queue, topic, sender)

	// Collection attempts
	validator, err := rules.NewValidator(cfg.Limits, cfg.Collection)
	if err != nil {
		panic(fmt.Sprintf("problem setting up rules: %v", err))
	}
	var taskClient taskengine.Client
	var activity collection.ActivityChecker
	if cfg.TaskEngine != nil {
		taskClient, err = taskengine.NewClient(logger, cfg.TaskEngine, httpClient)
		if err != nil {
			panic(err)
		}
		activity = taskClient
	}
	collector := collection.NewCollector(logger, db, cfg.Collection, codes, validator, activity, dispatcher)

	// Multi-source collections
	refresher, closeRecorder, err := setupRefresher(ctx, logger, db, cfg, selector, collector, taskClient, windows, httpClient)
	if err != nil {
		panic(fmt.Sprintf("problem setting up collections: %v", err))
	}
	defer closeRecorder()

	collectionadmin.RegisterRoutes(logger, adminServer, db, refresher)

	// Sweep due advances on every cutoff and run deferred collections
	sweeper, err := sweep.NewSweeper(logger, db, cfg.Collection.Sweep, refresher)
	if err != nil {
		panic(err)
	}
	if len(cfg.Collection.Sweep.Windows) > 0 {
		cutoffs, err := schedule.ForCutoffTimes(windows, cfg.Collection.Sweep.Windows)
		if err != nil {
			panic(fmt.Sprintf("problem with sweep cutoffs: %v", err))
		}
		defer cutoffs.Stop()
		go sweeper.Run(ctx, cutoffs.C)
	} else {
		logger.Log("startup", "no sweep windows configured")
	}
	go sweep.NewRunner(logger, db, cfg.Collection.Deferred, refresher).Start(ctx)

	if err := <-errs; err != nil {
		logger.Log("exit", err)
	}
}

func pingDatabase(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func setupRefresher(
	ctx context.Context,
	logger log.Logger,
	db *sql.DB,
	cfg *config.Config,
	selector *charge.Selector,
	collector *collection.Collector,
	taskClient taskengine.Client,
	windows *schedule.Windows,
	httpClient *http.Client,
) (*refresh.Collector, func(), error) {
	if cfg.Balances.Endpoint == "" {
		return nil, nil, errors.New("missing balances endpoint")
	}
	balancesClient := httpClient
	if cfg.Balances.Timeout > 0 {
		c := *httpClient
		c.Timeout = cfg.Balances.Timeout
		balancesClient = &c
	}
	balances := funding.NewBalanceClient(logger, cfg.Balances.Endpoint, balancesClient)

	direct, err := refresh.NewDirectCollector(logger, db, cfg.Collection, balances, selector, collector, tasks.NewScheduler(logger, db), windows)
	if err != nil {
		return nil, nil, err
	}
	var delegated refresh.Strategy
	if taskClient != nil {
		delegated = refresh.NewDelegatedTaskCollector(logger, db, taskClient)
	}

	recorder, closeRecorder, err := setupRecorder(ctx, logger, cfg.Idempotency)
	if err != nil {
		return nil, nil, err
	}
	return refresh.NewCollector(logger, db, direct, delegated, recorder, audit.NewWriter(db)), closeRecorder, nil
}
