package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"

	"studio/cmd"
	"studio/internal/analysis"
	"studio/internal/build"
	"studio/internal/bus"
	"studio/internal/canvas"
	"studio/internal/compositor"
	"studio/internal/config"
	"studio/internal/container/avi"
	"studio/internal/layer"
	applog "studio/internal/log"
	"studio/internal/media"
	"studio/internal/metrics"
	"studio/internal/studio"
	"studio/internal/transport"
	"studio/internal/transport/udp"
	"studio/internal/tui"
	"studio/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// main is the entry point for the compositing recorder.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Build the surface, compositor and UI server
//   - Acquire camera and microphone and bind the recorder
//   - Serve the control UI until a termination signal
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the HTTP server
//   - Finish an active recording and release the devices
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	cfg, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg == nil {
		return
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	} else {
		applog.Warnf("Unknown log level %q, keeping %s", cfg.LogLevel, applog.GetLevel())
	}
	defer applog.Sync()

	// Handle one-off commands that don't need the studio running
	if cfg.Command != "" {
		if err := executeCommand(cfg); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	info := build.GetBuildFlags()
	applog.Infof("%s %s (%s) starting", info.Name, info.Version, info.Commit)

	surface, err := canvas.New(cfg.Video.Width, cfg.Video.Height, cfg.Video.Background)
	if err != nil {
		return err
	}
	defer surface.Close()

	comp := compositor.New(surface, layer.NewRegistry(surface), cfg.Video.DrawRate)
	collector := metrics.NewPrometheusCollector()
	comp.SetObserver(collector)

	var extra []transport.Transport
	if cfg.Debug {
		extra = append(extra, transport.NewLoggingTransport())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	b := bus.New()
	server := ui.NewServer(ui.Options{
		Bus:         b,
		Surface:     surface,
		Metrics:     collector.Handler(),
		Server:      cfg.Server,
		JPEGQuality: cfg.Video.JPEGQuality,
		Extra:       extra,
	})
	defer server.Close()

	window, err := analysis.ParseWindowFunc(cfg.Audio.FFTWindow)
	if err != nil {
		applog.Warnf("%v, using %s", err, window)
	}
	meter := analysis.NewMeter(server.Events(), analysis.MeterConfig{
		Size:      cfg.Audio.MeterSize,
		Window:    window,
		Interval:  cfg.Server.MeterInterval,
		Threshold: cfg.Audio.GateThreshold,
	})

	if cfg.Server.SpectrumUDP != "" {
		sender, err := udp.NewUDPSender(cfg.Server.SpectrumUDP)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewPublisher(cfg.Server.MeterInterval, sender, meter)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	st, err := studio.New(studio.Options{
		Config:     cfg,
		Bus:        b,
		Devices:    media.NewDevices(nil),
		Compositor: comp,
		LayerList:  server,
		Indicator:  server,
		Volume:     server,
		Playback:   server,
		Meter:      meter,
		Observer:   collector,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	// A failed device request leaves the studio idle; the UI still serves
	// uploads and reports the missing session through the logs.
	_ = st.StartSession(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		applog.Infof("Control UI listening on http://%s", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until termination signal or server failure
	select {
	case <-ctx.Done():
		applog.Infof("Shutting down...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		applog.Errorf("HTTP shutdown: %v", err)
	}
	// Deferred: st.Close finishes an active take, server.Close drops the
	// clients, surface.Close ends the canvas.
	return nil
}

// executeCommand handles one-off commands that don't require the studio
// to be running.
func executeCommand(cfg *config.Config) error {
	switch cfg.Command {
	case "list":
		if cfg.Interactive {
			sel, err := tui.StartDeviceListUI()
			if err != nil {
				return err
			}
			if sel != nil {
				fmt.Printf("%s %s\n", build.GetBuildFlags().Name, sel.Flags())
			}
			return nil
		}
		return listDevices()
	case "probe":
		return probe(cfg.ProbeFile)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func listDevices() error {
	devices, err := media.ListDevices()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tIN\tOUT\tRATE")
	for _, d := range devices {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%.0f\n",
			d.ID, d.Name, d.Type(), d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
	return w.Flush()
}

func probe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := avi.Probe(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("%s: %s\n", path, info)
	return nil
}
