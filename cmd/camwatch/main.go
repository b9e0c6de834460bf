package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"camwatch/internal/auth"
	"camwatch/internal/camera"
	"camwatch/internal/config"
	"camwatch/internal/database"
	"camwatch/internal/health"
	"camwatch/internal/motion"
	"camwatch/internal/opencv"
	"camwatch/internal/pipeline"
	"camwatch/internal/recorder"
	"camwatch/internal/services"
	"camwatch/internal/session"
	"camwatch/internal/stream"
	"camwatch/internal/telegram"
	"camwatch/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	// Setup logger.
	var (
		logger *log.Logger
	)
	{
		logger = log.New(os.Stderr, "[camwatch] ", log.Ltime)
	}
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	if cfg.ShouldPrompt(os.Stdin) {
		cfg.Resolution = camera.NewPrompter(os.Stdin, os.Stdout).Prompt()
	}

	// Everything that can be rejected is built before the device and the
	// output file are opened.
	var authenticator *auth.Authenticator
	if cfg.HTTPAddr != "" {
		authenticator, err = auth.NewAuthenticator(cfg.Auth)
		if err != nil {
			logger.Fatalf("invalid auth configuration: %v", err)
		}
		if authenticator.IsEnabled() {
			logger.Printf("authentication enabled")
		}
	}

	var bot *telegram.Bot
	if cfg.Telegram.Enabled() {
		bot, err = telegram.NewBot(cfg.Telegram)
		if err != nil {
			logger.Fatalf("invalid telegram configuration: %v", err)
		}
	}

	prims := opencv.NewPrimitives()
	defer prims.Close()
	detector, err := motion.NewDetector(cfg.Motion, prims)
	if err != nil {
		prims.Close()
		logger.Fatalf("invalid detector configuration: %v", err)
	}

	// A missing camera is not an error: there is simply nothing to record.
	dev, err := opencv.OpenDevice(cfg.Device)
	if err != nil {
		logger.Printf("camera unavailable, nothing to record: %v", err)
		return
	}

	granted, err := camera.Negotiate(dev, cfg.Resolution)
	if err != nil {
		dev.Close()
		logger.Fatalf("failed to negotiate resolution: %v", err)
	}
	fps := dev.FrameRate()
	if fps <= 0 {
		logger.Printf("device reports no frame rate, recording at %v fps", cfg.FallbackFPS)
		fps = cfg.FallbackFPS
	}
	logger.Printf("capturing from device %d at %s, %.1f fps", cfg.Device, granted, fps)

	// Initialize the recording catalog.
	var db *database.Database
	if cfg.DBPath != "" {
		db, err = database.New(cfg.DBPath)
		if err != nil {
			dev.Close()
			logger.Fatalf("failed to open database: %v", err)
		}
		if err := db.Migrate(); err != nil {
			dev.Close()
			db.Close()
			logger.Fatalf("failed to migrate database: %v", err)
		}
	}

	var catalog recorder.Catalog
	if db != nil {
		catalog = db
	}
	sessions := session.NewManager(cfg.BaseDir, cfg.Ext, nil)
	rec, err := recorder.New(recorder.Config{
		Sessions: sessions,
		Open:     opencv.NewWriterFactory(cfg.FourCC),
		Size:     granted,
		FPS:      fps,
		Catalog:  catalog,
	})
	if err != nil {
		dev.Close()
		if db != nil {
			db.Close()
		}
		logger.Fatalf("failed to create output file: %v", err)
	}

	// Frame results fan out to the websocket hub and the event log.
	bus := pipeline.NewEventBus()
	hub := ws.NewMotionHub()
	bus.Subscribe(hub)
	if db != nil {
		bus.SubscribeMotion(recorder.NewMotionLog(db, rec.RecordingID))
	}

	var (
		streams   *stream.MJPEGStreamManager
		windows   *opencv.Windows
		displays  []pipeline.Display
		canceller pipeline.Canceller
	)
	if cfg.HTTPAddr != "" {
		streams = stream.NewMJPEGStreamManager(cfg.StreamQuality)
		displays = append(displays, streams)
	}
	if cfg.Window {
		windows = opencv.NewWindows()
		displays = append(displays, windows)
		canceller = windows
	}
	display := stream.NewCompositeDisplay(displays...)

	p := pipeline.New(dev, detector, rec, pipeline.Options{
		Display:   display,
		Canceller: canceller,
		Bus:       bus,
		Debug:     cfg.Debug,
	})

	healthSvc := health.NewService(nil)
	healthSvc.SetStats(p)
	if db != nil {
		healthSvc.AddCheck("database", db.Ping)
	}

	errc := make(chan error, 4)

	// Setup interrupt handler.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.HTTPAddr != "" {
		hc := services.HandlerConfig{
			Health:  healthSvc,
			Auth:    authenticator,
			Streams: streams,
			Motion:  hub,
			System: services.NewSystemService(
				services.DeviceInfo{Index: cfg.Device, Resolution: granted, FPS: fps},
				detector.Config(), p, rec, nil),
			Debug: cfg.Debug,
		}
		if db != nil {
			hc.Recordings = services.NewRecordingService(db)
		}
		handleHTTPServer(ctx, cfg.HTTPAddr, services.NewHandler(hc), &wg, errc, logger)
	}
	if cfg.GRPCAddr != "" {
		handleGRPCServer(ctx, cfg.GRPCAddr, healthSvc, &wg, errc, logger)
	}
	if db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.PruneEvents(ctx, db, cfg.Retention, cfg.PruneInterval, nil)
		}()
	}
	if bot != nil {
		notifier := telegram.NewMotionNotifier(bot, cfg.Telegram.Cooldown, nil)
		bus.SubscribeMotion(notifier)
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx)
		}()
		logger.Printf("motion alerts go to telegram chat %s", cfg.Telegram.ChatID)
	}

	go func() {
		logger.Printf("exiting (%v)", <-errc)
		cancel()
	}()

	// The capture loop stays on the main goroutine; desktop windows need it.
	healthSvc.SetServing(true)
	stats, runErr := p.Run(ctx)
	healthSvc.SetServing(false)
	logger.Printf("recorded %d frames to %s", stats.Written, rec.Current().Path)

	// Send cancellation signal to the goroutines.
	cancel()
	wg.Wait()

	hub.Close()
	bus.Close()
	healthSvc.Shutdown()
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Printf("failed to close database: %v", err)
		}
	}

	if runErr != nil {
		logger.Fatalf("capture failed: %v", runErr)
	}
	logger.Println("exited")
}
