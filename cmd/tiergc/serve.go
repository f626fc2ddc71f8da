package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"tiergc/api/grpcserver"
	"tiergc/api/httpserver"
	"tiergc/infra/census"
	"tiergc/infra/config"
	"tiergc/infra/journal"
	"tiergc/infra/kafka"
	"tiergc/infra/sequence"
	"tiergc/infra/wal"
	"tiergc/jobs/broadcaster"
	"tiergc/jobs/collector"
	"tiergc/service"
	"tiergc/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry with its gRPC and HTTP APIs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- Persistence ----------------

	var deps service.Deps
	deps.Logger = logger
	deps.Seq = sequence.New(0)

	if cfg.WAL.Enabled {
		w, err := wal.Open(wal.Config{
			Dir:            cfg.WAL.Dir,
			SegmentSize:    cfg.WAL.SegmentSize,
			SyncEveryWrite: cfg.WAL.Sync,
		})
		if err != nil {
			return fmt.Errorf("wal init failed: %w", err)
		}
		defer w.Close()
		deps.WAL = w
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Dir, journal.Options{})
		if err != nil {
			return fmt.Errorf("journal init failed: %w", err)
		}
		defer j.Close()
		deps.Journal = j
	}

	if cfg.Census.Enabled {
		c, err := census.Open(cfg.Census.Path)
		if err != nil {
			return fmt.Errorf("census init failed: %w", err)
		}
		defer c.Close()
		deps.Census = c
	}

	// ---------------- Service ----------------

	svc := service.NewRegistryService(service.Options{
		Policy:   cfg.Policy(),
		Capacity: cfg.Registry.Capacity,
		Verbose:  cfg.Registry.Verbose,
	}, deps)

	if cfg.Snapshot.Enabled {
		w := &snapshot.Writer{Dir: cfg.Snapshot.Dir}
		snap, err := snapshot.Load(w.Path())
		if err != nil {
			return fmt.Errorf("snapshot load failed: %w", err)
		}
		if snap != nil {
			if err := svc.Restore(snap); err != nil {
				return fmt.Errorf("snapshot restore failed: %w", err)
			}
		}
	}

	if cfg.WAL.Enabled {
		if _, err := service.ReplayFromWAL(cfg.WAL.Dir, svc); err != nil {
			return fmt.Errorf("wal replay failed: %w", err)
		}
	}

	if cfg.Snapshot.Enabled {
		svc.StartSnapshotJob(ctx, cfg.Snapshot.Dir, cfg.Snapshot.Interval)
	}

	// ---------------- Jobs ----------------

	if cfg.Collector.Enabled {
		collector.New(svc, cfg.Collector.Interval, logger).Start(ctx)
	}

	if cfg.Broker.Enabled {
		pub, err := kafka.NewPublisher(cfg.KafkaConfig())
		if err != nil {
			return fmt.Errorf("publisher init failed: %w", err)
		}
		b := broadcaster.New(deps.Journal, pub, broadcaster.Config{
			Interval:   cfg.Broker.Interval,
			MaxRetries: int(cfg.Broker.MaxRetries),
			Logger:     logger,
		})
		defer b.Close()
		b.Start(ctx)
	}

	// ---------------- Transports ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpc.NewServer()
	grpcserver.RegisterRegistryServer(grpcSrv, grpcserver.NewServer(svc))

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpserver.New(svc, VersionString()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Printf("[grpc] listening on %s", cfg.Server.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Printf("[http] listening on %s", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// ---------------- Shutdown ----------------

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-done:
		logger.Printf("[server] received %v, shutting down", sig)
	case runErr = <-errCh:
		logger.Printf("[server] %v", runErr)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[http] shutdown: %v", err)
	}
	grpcSrv.GracefulStop()
	cancel()

	return finish(svc, cfg, logger, runErr)
}

// finish releases every tracked object. With the WAL enabled the state
// is kept for the next start instead, since a logged cleanup would
// replay to an empty registry.
func finish(svc *service.RegistryService, cfg config.Config, logger *log.Logger, runErr error) error {
	if cfg.WAL.Enabled {
		st := svc.Stats()
		logger.Printf("[server] keeping %d tracked objects in the wal", st.Tracked)
		return runErr
	}
	n, err := svc.Cleanup()
	if err != nil {
		return errors.Join(runErr, err)
	}
	logger.Printf("[server] cleanup destroyed %d objects", n)
	return runErr
}
