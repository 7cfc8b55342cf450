// Package main is the entry point for the mimonitord daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/motioninput/mimonitor/internal/buildinfo"
	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/audio"
	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/daemon/recognizer"
	"github.com/motioninput/mimonitor/internal/daemon/server"
	"github.com/motioninput/mimonitor/internal/daemon/supervisor"
	"github.com/motioninput/mimonitor/internal/daemon/tray"
	"github.com/motioninput/mimonitor/internal/daemon/watcher"
	"github.com/motioninput/mimonitor/internal/logging"
	"github.com/motioninput/mimonitor/internal/models"
)

func init() {
	// The tray event loop must own the main thread on macOS and Windows.
	runtime.LockOSThread()
}

func main() {
	foreground := flag.Bool("foreground", false, "Run in foreground (no system tray, logs to stderr)")
	configPath := flag.String("config", "", "Path to settings.yaml (default ~/.mimonitor/settings.yaml)")
	version := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	log.SetPrefix("[mimonitord] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *version {
		fmt.Println(buildinfo.Summary("mimonitord"))
		return
	}

	if err := config.EnsureGlobalDir(); err != nil {
		log.Fatalf("Failed to create global directory: %v", err)
	}

	running, info, err := config.IsDaemonRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon already running (PID %d)", info.PID)
	}

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	closeLog, err := setupLogging(settings, *foreground)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	if *foreground {
		slog.Info("running in foreground mode (no system tray)")
		runForeground(settings, *configPath)
	} else {
		slog.Info("running in background mode (with system tray)")
		runWithTray(settings, *configPath)
	}
}

func setupLogging(settings *models.Settings, foreground bool) (func(), error) {
	path := settings.Logging.File
	if path == "" {
		var err error
		if path, err = config.GlobalLogFile(); err != nil {
			return nil, err
		}
	}
	opts := logging.Options{
		Path:       path,
		Level:      logging.ParseLevel(settings.Logging.Level),
		MaxSizeMB:  settings.Logging.MaxSizeMB,
		MaxBackups: settings.Logging.MaxBackups,
	}
	if foreground {
		opts.Extra = os.Stderr
	}
	return logging.Setup(opts)
}

// daemon holds the pieces main has to start and tear down.
type daemon struct {
	capture   *audio.Capture
	frames    *audio.Queue
	watcher   *watcher.Watcher
	indicator *tray.Indicator
	sup       *supervisor.Supervisor
	server    *server.Server // nil when the control service could not listen
	done      chan struct{}
}

// newDaemon opens the microphone and builds every component around backend.
func newDaemon(settings *models.Settings, configPath string, backend tray.Backend) (*daemon, error) {
	logger := slog.Default()

	images, err := tray.LoadImages(settings.Tray.OnIcon, settings.Tray.OffIcon)
	if err != nil {
		return nil, fmt.Errorf("failed to load tray icons: %w", err)
	}
	indicator := tray.NewIndicator(backend, settings.App.Name, images, logging.Component(logger, "tray"))

	queue := audio.NewQueue(settings.Audio.QueueSize)
	capture := audio.NewCapture(queue, settings.Audio.SampleRate, settings.Audio.FramesPerBuffer, logging.Component(logger, "audio"))
	if err := capture.Start(); err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}

	d := &daemon{capture: capture, frames: queue, indicator: indicator, done: make(chan struct{})}
	if err := d.build(settings, configPath, logger); err != nil {
		_ = capture.Close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) build(settings *models.Settings, configPath string, logger *slog.Logger) error {
	engine := recognizer.NewVoskClient(settings.Recognizer.URL, d.capture.SampleRate())
	if err := engine.Connect(context.Background()); err != nil {
		// The adapter reconnects on the next frame.
		logger.Warn("speech engine not reachable yet", "url", settings.Recognizer.URL, "error", err)
	}

	procLog := logging.Component(logger, "process")
	launcher, err := process.NewCommandLauncher(settings.App, procLog)
	if err != nil {
		return err
	}

	requestsDir, err := config.RequestsDir()
	if err != nil {
		return err
	}
	if configPath == "" {
		if configPath, err = config.GlobalSettingsFile(); err != nil {
			return err
		}
	}
	w, err := watcher.New(requestsDir, configPath, logging.Component(logger, "watcher"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch %s: %w", requestsDir, err)
	}
	d.watcher = w

	d.sup, err = supervisor.New(supervisor.Options{
		Settings:   settings,
		Frames:     d.frames,
		Engine:     engine,
		Observer:   process.NewTable(process.SystemEnumerator{}, process.NewMatcher(settings.App)),
		Launcher:   launcher,
		Terminator: process.NewTerminator(procLog),
		Scripts:    process.NewShellRunner(settings.Scripts.Timeout, settings.App.LaunchDir, procLog),
		Indicator:  d.indicator,
		Mailbox:    w,
		Logger:     logger,
	})
	if err != nil {
		w.Stop()
		return err
	}

	// The CLI falls back to the request mailbox without a control service.
	if d.server, err = server.New(0, d.sup, logging.Component(logger, "server")); err != nil {
		logger.Warn("control service unavailable, using the request mailbox only", "error", err)
		d.server = nil
	}
	return nil
}

// start runs the supervisor and the control service in the background. done
// closes when the supervisor returns.
func (d *daemon) start(ctx context.Context) {
	if d.server != nil {
		go func() {
			defer logging.LogPanic("server", nil)
			if err := d.server.Serve(); err != nil {
				slog.Error("control service stopped", "error", err)
			}
		}()
	}
	go func() {
		defer close(d.done)
		defer logging.LogPanic("supervisor", nil)
		if err := d.sup.Run(ctx); err != nil {
			slog.Error("supervisor stopped", "error", err)
		}
	}()
}

// stop halts listening and reconciliation. The managed app keeps running.
func (d *daemon) stop() {
	// In-flight control calls finish before the supervisor goes away.
	if d.server != nil {
		d.server.Stop()
	}
	d.sup.Shutdown()
	d.watcher.Stop()
	// Closing the capture also closes the frame queue.
	if err := d.capture.Close(); err != nil {
		slog.Warn("failed to close microphone", "error", err)
	}
	d.indicator.Shutdown()
}

func writeDaemonInfo(d *daemon, configPath string) {
	var host string
	var port int
	if d.server != nil {
		host, port = d.server.Host(), d.server.Port()
	}
	if err := config.SaveDaemonInfo(models.NewDaemonInfo(host, port, os.Getpid(), configPath)); err != nil {
		log.Fatalf("Failed to write daemon info: %v", err)
	}
	slog.Info("daemon started", "pid", os.Getpid(), "port", port)
}

func cleanupFiles() {
	if err := config.RemoveStatus(); err != nil {
		slog.Warn("failed to remove status file", "error", err)
	}
	if err := config.RemoveDaemonInfo(); err != nil {
		slog.Warn("failed to remove daemon info", "error", err)
	}
}

// runForeground runs the daemon without a system tray. The indicator owns the
// main goroutine and logs its state changes.
func runForeground(settings *models.Settings, configPath string) {
	d, err := newDaemon(settings, configPath, tray.NewLogBackend(logging.Component(slog.Default(), "tray")))
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	writeDaemonInfo(d, configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.start(ctx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig.String())
		case <-d.done:
		}
		d.indicator.Shutdown()
	}()

	d.indicator.Run()

	d.stop()
	cleanupFiles()
	fmt.Println("Daemon stopped")
}

// runWithTray runs the daemon with a system tray icon. systray.Run occupies
// the main goroutine; the indicator runs on its own locked thread.
func runWithTray(settings *models.Settings, configPath string) {
	var slot daemonSlot
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onReady := func() {
		d, err := newDaemon(settings, configPath, tray.NewSystrayBackend(settings.App.Name))
		if err != nil {
			slog.Error("failed to start", "error", err)
			tray.Quit()
			return
		}
		writeDaemonInfo(d, configPath)
		d.start(ctx)
		slot.set(d)

		go func() {
			runtime.LockOSThread()
			defer logging.LogPanic("indicator", nil)
			d.indicator.Run()
		}()

		// Quit from the menu, a signal, or a dead supervisor all end the tray loop.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				slog.Info("received signal, shutting down", "signal", sig.String())
			case <-d.indicator.Done():
				slog.Info("quit selected from tray menu")
			case <-d.done:
			}
			tray.Quit()
		}()
	}

	onExit := func() {
		if d := slot.take(); d != nil {
			d.stop()
			cleanupFiles()
		}
		fmt.Println("Daemon stopped")
	}

	// This blocks the main goroutine until the tray exits.
	tray.Run(onReady, onExit)
}

// daemonSlot hands the daemon built in the tray's ready callback to its exit
// callback, which systray may run on another goroutine.
type daemonSlot struct {
	mu sync.Mutex
	d  *daemon
}

func (s *daemonSlot) set(d *daemon) {
	s.mu.Lock()
	s.d = d
	s.mu.Unlock()
}

// take returns the daemon at most once.
func (s *daemonSlot) take() *daemon {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.d
	s.d = nil
	return d
}
