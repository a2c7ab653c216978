package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aetharia.world/internal/persistence/indexdb"
	"aetharia.world/internal/persistence/mutlog"
	"aetharia.world/internal/persistence/snapshot"
	"aetharia.world/internal/sim/world"
	"aetharia.world/internal/transport/ws"
	"aetharia.world/internal/tuning"
)

func main() {
	var (
		port       = flag.Int("port", envInt("PORT", 8080), "listen port")
		seed       = flag.Int64("seed", envInt64("AETHARIA_WORLD_SEED", 12345), "world seed")
		heartbeat  = flag.Int("heartbeat_ms", envInt("AETHARIA_HEARTBEAT", 30000), "heartbeat period in ms")
		debug      = flag.Bool("debug", envBool("AETHARIA_DEBUG"), "debug logs")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file (defaults apply when missing)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite mutation index")
		snapEvery  = flag.Duration("snapshot_every", 5*time.Minute, "snapshot period (0 disables)")
		snapPath   = flag.String("snapshot", "", "snapshot to load (default: latest in data dir)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	zones := make([]world.ZoneDef, 0, len(tune.Zones))
	for _, z := range tune.Zones {
		zones = append(zones, world.ZoneDef{
			ID: z.ID, MinX: z.MinX, MaxX: z.MaxX, MinY: z.MinY, MaxY: z.MaxY,
		})
	}

	w := world.New(world.Config{
		Seed:         *seed,
		SpawnX:       tune.SpawnX,
		Zones:        zones,
		DefaultZone:  tune.DefaultZone,
		TickInterval: time.Duration(tune.Physics.TickMs) * time.Millisecond,
		Gravity:      tune.Physics.Gravity,
		MaxFall:      tune.Physics.MaxFall,
		JumpImpulse:  tune.Physics.JumpImpulse,
		MaxMoveDelta: tune.Limits.MaxMoveDelta,
		HumanRange:   tune.Limits.HumanRange,
		AgentRange:   tune.Limits.AgentRange,
		ChunkRadius:  tune.Limits.ChunkRadius,
		Debug:        *debug,
	}, logger)

	// Recover world state before any session is accepted.
	snapDir := filepath.Join(*dataDir, "snapshots")
	toLoad := strings.TrimSpace(*snapPath)
	if toLoad == "" {
		toLoad = snapshot.Latest(snapDir)
	}
	if toLoad != "" {
		snap, err := snapshot.Load(toLoad)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		if snap.Header.Seed != *seed {
			logger.Fatalf("snapshot seed %d does not match world seed %d", snap.Header.Seed, *seed)
		}
		w.RestoreOverrides(snap)
		logger.Printf("restored %d overrides from %s", len(snap.Overrides), toLoad)
	}

	// Persistence hooks: write-through observers of the store.
	mlog := mutlog.NewWriter(filepath.Join(*dataDir, "mutations"), "mut")
	defer mlog.Close()
	w.Store().Observe(func(m world.Mutation) {
		if err := mlog.Write(mutlog.Entry{
			AtUnixMs: time.Now().UnixMilli(),
			Session:  m.PlacedBy,
			X:        m.X,
			Y:        m.Y,
			Tile:     int(m.Tile),
		}); err != nil {
			logger.Printf("mutlog write: %v", err)
		}
	})

	var idx *indexdb.Index
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		w.Store().Observe(func(m world.Mutation) {
			idx.AddMutation(m.PlacedBy, m.X, m.Y, int(m.Tile))
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go w.RunPhysics(ctx)

	if *snapEvery > 0 {
		go runSnapshots(ctx, w, idx, snapDir, *snapEvery, logger)
	}

	wsServer := ws.NewServer(w, ws.Config{
		HeartbeatInterval:  time.Duration(*heartbeat) * time.Millisecond,
		MinMessageInterval: time.Duration(tune.Limits.MinMessageIntervalMs) * time.Millisecond,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		wsServer.CloseAll()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on :%d seed=%d heartbeat=%dms", *port, *seed, *heartbeat)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}

	// Final snapshot on clean shutdown.
	writeSnapshot(w, idx, snapDir, logger)
	logger.Printf("bye")
}

func runSnapshots(ctx context.Context, w *world.World, idx *indexdb.Index, dir string, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeSnapshot(w, idx, dir, logger)
		}
	}
}

func writeSnapshot(w *world.World, idx *indexdb.Index, dir string, logger *log.Logger) {
	snap := w.Export()
	path := filepath.Join(dir, snapshot.FileName(time.Now()))
	if err := snapshot.Write(path, snap); err != nil {
		logger.Printf("write snapshot: %v", err)
		return
	}
	if idx != nil {
		idx.AddSnapshot(path, len(snap.Overrides), len(snap.Players))
	}
	logger.Printf("snapshot %s (%d overrides, %d players)", path, len(snap.Overrides), len(snap.Players))
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
