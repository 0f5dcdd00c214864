package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mirrorfit/internal/api"
	"github.com/banshee-data/mirrorfit/internal/config"
	"github.com/banshee-data/mirrorfit/internal/db"
	"github.com/banshee-data/mirrorfit/internal/frameloop"
	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/monitoring"
	"github.com/banshee-data/mirrorfit/internal/rpc"
	"github.com/banshee-data/mirrorfit/internal/session"
	"github.com/banshee-data/mirrorfit/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "", "gRPC listen address (disabled when empty)")
	configFile  = flag.String("config", "", "Path to a tuning config JSON file (built-in defaults when empty)")
	replayFile  = flag.String("replay", "", "Replay recorded keypoint frames (JSON lines) instead of accepting POST /api/frame")
	dbPath      = flag.String("db", "", "Session log database path (overrides db_path; default in-memory)")
	unitsFlag   = flag.String("units", "", "Display units for lengths (overrides display_units)")
	noHistory   = flag.Bool("no-history", false, "Do not keep a session log")
	trace       = flag.Bool("trace", false, "Log every evaluated frame")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads the tuning file, if any, and applies flag overrides.
func loadConfig(path, displayUnits, databasePath string) (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(path); err != nil {
			return nil, err
		}
	}
	if displayUnits != "" {
		cfg.DisplayUnits = &displayUnits
	}
	if databasePath != "" {
		cfg.DBPath = &databasePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// frameSource returns the replay file when given, otherwise a mailbox fed
// by the HTTP API.
func frameSource(replay string) (frameloop.Source, *frameloop.Mailbox, func(), error) {
	if replay != "" {
		src, err := frameloop.OpenReplayFile(replay)
		if err != nil {
			return nil, nil, nil, err
		}
		return src, nil, func() { src.Close() }, nil
	}
	mb := frameloop.NewMailbox()
	return mb, mb, mb.Close, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("mirrorfit %s", version.String())

	if *trace {
		monitoring.SetTraceLogger(log.Printf)
	}

	cfg, err := loadConfig(*configFile, *unitsFlag, *dbPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	engine := measure.NewEngine(measure.ConfigFromTuning(cfg))

	var (
		database *db.DB
		sessOpts []session.Option
	)
	if !*noHistory {
		database, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to open session log: %v", err)
		}
		defer database.Close()
		database.SetRetention(cfg.GetLogRetention())
		sessOpts = append(sessOpts, session.WithRecorder(database))
	}

	sess := session.New(engine, sessOpts...)
	if database != nil {
		if err := database.CreateSession(sess.ID(), time.Now(), sess.Mode().String(), cfg); err != nil {
			log.Fatalf("Failed to register session: %v", err)
		}
	}
	log.Printf("session %s: posture=%s units=%s", sess.ID(), sess.Mode(), cfg.GetDisplayUnits())

	src, mailbox, closeSource, err := frameSource(*replayFile)
	if err != nil {
		log.Fatalf("Failed to open frame source: %v", err)
	}
	defer closeSource()

	loop, err := frameloop.New(src, sess, cfg.GetFrameInterval())
	if err != nil {
		log.Fatalf("Failed to create frame loop: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// frame loop routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("frame loop error: %v", err)
		}
		st := loop.Stats()
		log.Printf("frame loop stopped: ticks=%d frames=%d idle=%d errors=%d overruns=%d",
			st.Ticks, st.Frames, st.Idle, st.Errors, st.Overruns)
	}()

	// gRPC server
	if *grpcListen != "" {
		grpcServer := rpc.NewServer(*grpcListen, rpc.NewService(sess))
		if err := grpcServer.Start(); err != nil {
			log.Fatalf("Failed to start gRPC server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			grpcServer.Stop()
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiOpts := []api.Option{api.WithLoopStats(loop.Stats)}
		if mailbox != nil {
			apiOpts = append(apiOpts, api.WithFrameSink(mailbox))
		}
		mux := api.NewServer(sess, database, cfg.GetDisplayUnits(), apiOpts...).ServeMux()
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
