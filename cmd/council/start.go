package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/council"
	"github.com/axiomesh/council/api"
	"github.com/axiomesh/council/core"
	"github.com/axiomesh/council/repo"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	client, err := dial(ctx.Context, r.Config.DialUrl)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	portal, err := core.NewPortal(ctx.Context, r.Config, client, core.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("new portal error: %w", err)
	}

	var server *api.Server
	if r.Config.HTTP.Enable {
		server = api.New(portal, reg, portal.Logger)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(portal, server, &wg)

	if err := portal.Start(); err != nil {
		return fmt.Errorf("start portal failed: %w", err)
	}
	if server != nil {
		server.Start(r.Config.HTTP.Listen)
	}

	fmt.Println("=============Council is ready=============")

	wg.Wait()

	return nil
}

func dial(ctx context.Context, url string) (*ethclient.Client, error) {
	var client *ethclient.Client
	action := func(attempt uint) error {
		var err error
		client, err = ethclient.DialContext(ctx, url)
		return err
	}
	if err := retry.Retry(action, strategy.Limit(5), strategy.Backoff(backoff.Fibonacci(time.Second))); err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return client, nil
}

func printVersion() {
	fmt.Printf("Council version: %s-%s-%s\n", council.CurrentVersion, council.CurrentBranch, council.CurrentCommit)
	fmt.Printf("App build date: %s\n", council.BuildDate)
	fmt.Printf("System version: %s\n", council.Platform)
	fmt.Printf("Golang version: %s\n", council.GoVersion)
	fmt.Println()
}

func handleShutdown(portal *core.Portal, server *api.Server, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := server.Stop(shutdownCtx); err != nil {
				fmt.Printf("stop http api error: %s\n", err)
			}
			cancel()
		}
		if err := portal.Stop(); err != nil {
			fmt.Printf("stop portal error: %s\n", err)
		}
		wg.Done()
	}()
}
