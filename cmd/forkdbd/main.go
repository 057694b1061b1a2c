package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chainkit/forkdb/internal/api"
	"github.com/chainkit/forkdb/internal/api/websocket"
	"github.com/chainkit/forkdb/internal/forkdb"
	"github.com/chainkit/forkdb/internal/ingest"
	"github.com/chainkit/forkdb/internal/rpc"
	"github.com/chainkit/forkdb/internal/util"
)

// metricsPollInterval is how often pollMetrics snapshots the database to
// feed the index-size gauges and the eviction/orphan-promotion counters.
// forkdb.Database keeps these as plain running totals rather than
// Prometheus counters itself (the core has no metrics dependency — see
// forkdb.Stats), so a caller with access to the mutex
// has to poll and translate deltas into counter increments.
const metricsPollInterval = 10 * time.Second

// pollMetrics periodically snapshots db and feeds the gauges and counters
// util.Init registered. Blocks until ctx is done.
func pollMetrics(ctx context.Context, db *forkdb.Database, mu *sync.Mutex) {
	ticker := time.NewTicker(metricsPollInterval)
	defer ticker.Stop()

	var lastEvictions, lastPromotions uint64

	for {
		select {
		case <-ticker.C:
			mu.Lock()
			stats := db.Stats()
			mu.Unlock()

			util.SetLinkedSetSize(float64(stats.Linked))
			util.SetUnlinkedSetSize(float64(stats.Unlinked))

			if stats.EvictionsTotal > lastEvictions {
				util.RecordEvictions(int(stats.EvictionsTotal - lastEvictions))
				lastEvictions = stats.EvictionsTotal
			}
			for lastPromotions < stats.PromotionsTotal {
				util.RecordOrphanPromotion()
				lastPromotions++
			}
		case <-ctx.Done():
			return
		}
	}
}

// hubBroadcaster adapts *websocket.Hub to ingest.Broadcaster, translating
// the ingest package's transport-agnostic HeadEvent into the hub's wire
// types. It exists so internal/ingest never needs to import
// internal/api/websocket directly.
type hubBroadcaster struct {
	hub *websocket.Hub
}

func (b hubBroadcaster) BroadcastHeadAdvance(head ingest.HeadEvent) {
	b.hub.BroadcastHeadAdvance(websocket.HeadData{ID: head.ID, PreviousID: head.PreviousID, Num: head.Num})
}

func (b hubBroadcaster) BroadcastOrphanStaged(orphan ingest.HeadEvent) {
	b.hub.BroadcastOrphanStaged(websocket.OrphanData{ID: orphan.ID, PreviousID: orphan.PreviousID, Num: orphan.Num})
}

func main() {
	util.Info("starting fork database daemon")

	if err := util.Init(); err != nil {
		util.Error("failed to initialize metrics", "error", err.Error())
		os.Exit(1)
	}

	rpcConfig, err := rpc.NewConfig()
	if err != nil {
		util.Error("failed to load RPC configuration", "error", err.Error())
		os.Exit(1)
	}

	rpcClient, err := rpc.NewClient(rpcConfig)
	if err != nil {
		util.Error("failed to create RPC client", "error", err.Error())
		os.Exit(1)
	}
	defer rpcClient.Close()

	dbConfig := forkdb.DefaultConfig()

	var hint *forkdb.StorageHint
	if os.Getenv("FORKDB_MMAP_ENABLED") == "true" {
		hint, err = forkdb.OpenStorageHint(forkdb.DefaultMmapPath, forkdb.DefaultMmapSize)
		if err != nil {
			util.Error("failed to open storage hint", "error", err.Error())
			os.Exit(1)
		}
		defer hint.Close()
		util.Info("storage hint opened", "path", forkdb.DefaultMmapPath, "size_bytes", forkdb.DefaultMmapSize)
	}

	db := forkdb.NewWithStorageHint(dbConfig, hint)

	// One mutex, shared by every goroutine that touches db: the ingestion
	// coordinators and the HTTP handlers. db itself stays unsynchronized per
	// §5; this is the single place in the process a mutex sits between an
	// external call and the database.
	mu := &sync.Mutex{}

	wsConfig := websocket.LoadConfig()
	hub := websocket.NewHub(wsConfig)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)
	util.Info("websocket hub started", "max_connections", wsConfig.MaxConnections)

	apiConfig := api.NewConfig()
	server := api.NewServerWithHub(db, mu, apiConfig, hub)

	httpServer := &http.Server{
		Addr:         apiConfig.Address(),
		Handler:      server.Router(),
		ReadTimeout:  apiConfig.ReadTimeout,
		WriteTimeout: apiConfig.WriteTimeout,
		IdleTimeout:  apiConfig.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		util.Info("API server listening", "address", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	defer ingestCancel()

	go pollMetrics(ingestCtx, db, mu)

	if backfillConfig, err := ingest.NewBackfillConfig(); err == nil {
		backfill, err := ingest.NewBackfillCoordinator(rpcClient, db, mu, backfillConfig)
		if err != nil {
			util.Error("failed to create backfill coordinator", "error", err.Error())
		} else {
			util.Info("running backfill",
				"start_height", backfillConfig.StartHeight,
				"end_height", backfillConfig.EndHeight,
				"workers", backfillConfig.Workers,
			)
			if err := backfill.Backfill(ingestCtx, backfillConfig.StartHeight, backfillConfig.EndHeight); err != nil {
				util.Error("backfill failed", "error", err.Error())
			}
		}
	}

	liveTailConfig, err := ingest.NewLiveTailConfig()
	if err != nil {
		util.Error("failed to load live-tail configuration", "error", err.Error())
		os.Exit(1)
	}

	liveTail, err := ingest.NewLiveTailCoordinator(rpcClient, db, mu, hubBroadcaster{hub: hub}, liveTailConfig)
	if err != nil {
		util.Error("failed to create live-tail coordinator", "error", err.Error())
		os.Exit(1)
	}

	liveTailErrors := make(chan error, 1)
	go func() {
		liveTailErrors <- liveTail.Start(ingestCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		util.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			util.Error("API server error", "error", err.Error())
		}
	case err := <-liveTailErrors:
		if err != nil && err != context.Canceled {
			util.Error("live-tail coordinator stopped unexpectedly", "error", err.Error())
		}
	}

	util.Info("shutting down gracefully", "timeout_seconds", apiConfig.ShutdownTimeout.Seconds())

	ingestCancel()
	hubCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), apiConfig.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		util.Error("error during server shutdown", "error", err.Error())
		if err := httpServer.Close(); err != nil {
			util.Error("error forcing server close", "error", err.Error())
		}
	}

	util.Info("fork database daemon shutdown complete")
}
