// Package daemon is the composition root: it owns the queue service,
// notification bus, activity log, worker pool, UDS control surface,
// sweep loop, and metrics, and wires them together for one process
// lifetime.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/creatorshive/arrisd/internal/arris"
	"github.com/creatorshive/arrisd/internal/dashboard"
	"github.com/creatorshive/arrisd/internal/events"
	"github.com/creatorshive/arrisd/internal/lock"
	"github.com/creatorshive/arrisd/internal/metrics"
	"github.com/creatorshive/arrisd/internal/model"
	"github.com/creatorshive/arrisd/internal/uds"
	"github.com/creatorshive/arrisd/internal/worker"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Daemon is the main arrisd process.
type Daemon struct {
	arrisDir string
	config   model.Config
	logLevel LogLevel
	logger   *log.Logger
	logFile  io.Closer

	fileLock    *lock.FileLock
	server      *uds.Server
	watcher     *fsnotify.Watcher
	sweepTicker *time.Ticker

	svc         *arris.Service
	bus         *events.Bus
	activityLog *events.ActivityLogger
	pool        *worker.Pool
	dash        *dashboard.Formatter
	metricsSrv  *http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	forceExit atomic.Bool
}

// New creates a new Daemon instance logging to .arris/logs/daemon.log.
func New(arrisDir string, cfg model.Config) (*Daemon, error) {
	logPath := filepath.Join(arrisDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(arrisDir, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(arrisDir string, cfg model.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	cfg.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(w, "", 0)

	svc := arris.NewService(arris.Options{
		ETADefaultSeconds: cfg.Queue.ETADefaultSeconds,
		ActivityHistory:   cfg.Queue.ActivityHistory,
		AbandonedAfter:    cfg.Queue.AbandonedAfter(),
		Logger:            logger,
	})

	bus := events.NewBus(cfg.Notifications.Buffer)
	svc.SetNotifier(func(event string, targetID string, payload map[string]any) {
		bus.Publish(events.EventType(event), targetID, payload)
	})

	gen := &worker.CommandGenerator{
		Command: cfg.Worker.Command,
		Timeout: time.Duration(cfg.Worker.TimeoutSec) * time.Second,
	}

	server := uds.NewServer(filepath.Join(arrisDir, uds.DefaultSocketName))
	server.SetLogger(logger)

	d := &Daemon{
		arrisDir:    arrisDir,
		config:      cfg,
		logLevel:    parseLogLevel(cfg.Logging.Level),
		logger:      logger,
		logFile:     closer,
		fileLock:    lock.NewFileLock(filepath.Join(arrisDir, "locks", "daemon.lock")),
		server:      server,
		sweepTicker: time.NewTicker(time.Duration(cfg.Queue.SweepIntervalSec) * time.Second),
		svc:         svc,
		bus:         bus,
		dash:        dashboard.NewFormatter(arrisDir),
		ctx:         ctx,
		cancel:      cancel,
	}
	d.pool = worker.NewPool(svc, gen, worker.Options{
		Count:        cfg.Worker.Count,
		PollInterval: time.Duration(cfg.Worker.PollIntervalSec) * time.Second,
		Logger:       logger,
	})

	return d, nil
}

// Service exposes the queue service for in-process callers.
func (d *Daemon) Service() *arris.Service {
	return d.svc
}

// Bus exposes the notification bus so outer layers (e.g. a websocket
// broadcaster) can subscribe.
func (d *Daemon) Bus() *events.Bus {
	return d.bus
}

// SetGenerator overrides the worker pool's generator. Must be called
// before Run().
func (d *Daemon) SetGenerator(gen worker.Generator) {
	d.pool = worker.NewPool(d.svc, gen, worker.Options{
		Count:        d.config.Worker.Count,
		PollInterval: time.Duration(d.config.Worker.PollIntervalSec) * time.Second,
		Logger:       d.logger,
	})
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	// Step 1: Acquire file lock
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log(LogLevelInfo, "daemon starting pid=%d", os.Getpid())

	// Step 2: Open activity log and feed it from the bus
	activityLog, err := events.NewActivityLogger(filepath.Join(d.arrisDir, "logs", "activity.jsonl"), 0)
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("open activity log: %w", err)
	}
	d.activityLog = activityLog
	for _, t := range []events.EventType{
		events.EventQueueUpdate,
		events.EventProcessingStarted,
		events.EventProcessingCompleted,
	} {
		d.bus.Subscribe(t, func(e events.Event) {
			if err := d.activityLog.Log(string(e.Type), e.TargetID, e.Data); err != nil {
				d.log(LogLevelWarn, "activity log write failed: %v", err)
			}
		})
	}

	// Step 3: Watch config.yaml for hot reload
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher
	if err := watcher.Add(d.arrisDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.arrisDir, err)
	}

	// Step 4: Register UDS handlers and start the server
	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start UDS server: %w", err)
	}
	d.log(LogLevelInfo, "UDS server listening on %s", filepath.Join(d.arrisDir, uds.DefaultSocketName))

	// Step 5: Metrics endpoint (config-gated)
	if d.config.Metrics.Enabled {
		d.metricsSrv = metrics.StartServer(d.config.Metrics.Addr)
		d.log(LogLevelInfo, "metrics server listening on %s", d.config.Metrics.Addr)
	}

	// Step 6: Background loops
	d.wg.Add(3)
	go d.configWatchLoop()
	go d.sweepLoop()
	go func() {
		defer d.wg.Done()
		if err := d.pool.Run(d.ctx); err != nil {
			d.log(LogLevelError, "worker pool: %v", err)
		}
	}()

	// Step 7: Initial snapshot + dashboard
	d.refreshState()
	d.log(LogLevelInfo, "daemon ready workers=%d", d.config.Worker.Count)

	// Step 8: Wait for signals
	d.waitSignals()

	return nil
}

// configWatchLoop applies tunable config changes without restart.
func (d *Daemon) configWatchLoop() {
	defer d.wg.Done()

	var debounce *time.Timer
	configPath := filepath.Join(d.arrisDir, "config.yaml")

	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Name != configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire bursts of events; debounce before reload
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, d.reloadConfig)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log(LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// reloadConfig re-reads config.yaml and applies the hot-reloadable
// knobs: ETA default, abandoned TTL, sweep interval, log level.
func (d *Daemon) reloadConfig() {
	cfg, err := LoadConfig(d.arrisDir)
	if err != nil {
		d.log(LogLevelWarn, "config reload skipped: %v", err)
		return
	}
	d.applyConfig(cfg)
	d.log(LogLevelInfo, "config reloaded eta_default=%.1f abandoned_after=%s sweep_interval=%ds level=%s",
		cfg.Queue.ETADefaultSeconds, cfg.Queue.AbandonedAfter(), cfg.Queue.SweepIntervalSec, cfg.Logging.Level)
}

func (d *Daemon) applyConfig(cfg model.Config) {
	cfg.ApplyDefaults()
	d.svc.SetTuning(cfg.Queue.ETADefaultSeconds, cfg.Queue.AbandonedAfter())
	d.sweepTicker.Reset(time.Duration(cfg.Queue.SweepIntervalSec) * time.Second)
	d.logLevel = parseLogLevel(cfg.Logging.Level)
	d.config.Queue = cfg.Queue
	d.config.Logging = cfg.Logging
}

// sweepLoop drives the abandoned-item sweep, metrics snapshot, and
// dashboard refresh.
func (d *Daemon) sweepLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.sweepTicker.C:
			evicted := d.svc.SweepAbandoned()
			for _, it := range evicted {
				metrics.RequestsCompleted.WithLabelValues(string(it.Priority), "swept").Inc()
			}
			if len(evicted) > 0 {
				d.log(LogLevelInfo, "sweep evicted=%d", len(evicted))
			}
			d.refreshState()
		}
	}
}

// refreshState updates the depth gauges, writes the metrics snapshot,
// and regenerates the dashboard.
func (d *Daemon) refreshState() {
	stats := d.svc.Stats()
	metrics.QueueDepth.WithLabelValues(string(model.PriorityFast)).Set(float64(stats.FastQueued))
	metrics.QueueDepth.WithLabelValues(string(model.PriorityStandard)).Set(float64(stats.StandardQueued))
	metrics.ProcessingCount.Set(float64(stats.Processing))

	if err := writeMetricsSnapshot(d.arrisDir, stats); err != nil {
		d.log(LogLevelWarn, "metrics snapshot failed: %v", err)
	}
	if err := d.dash.WriteFile(d.svc.Live()); err != nil {
		d.log(LogLevelWarn, "dashboard refresh failed: %v", err)
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.log(LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// Second signal → force exit
	go func() {
		<-sigCh
		d.log(LogLevelWarn, "received second signal, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(LogLevelInfo, "shutdown started")

		// 1. Cancel context (stops accepting new work)
		d.cancel()

		// 2. Stop producers
		d.sweepTicker.Stop()
		if d.watcher != nil {
			d.watcher.Close()
		}
		if d.server != nil {
			d.server.Stop()
		}
		if d.metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = d.metricsSrv.Shutdown(shutdownCtx)
			cancel()
		}

		// 3. Drain in-flight with timeout
		timeout := d.config.Daemon.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 30
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.log(LogLevelInfo, "all goroutines drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.log(LogLevelWarn, "shutdown timeout after %ds, some operations may be incomplete", timeout)
		}

		// 4. Cleanup
		d.bus.Close()
		d.cleanup()
		d.log(LogLevelInfo, "daemon stopped")
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	socketPath := filepath.Join(d.arrisDir, uds.DefaultSocketName)
	os.Remove(socketPath)
	d.fileLock.Unlock()
	if d.activityLog != nil {
		d.activityLog.Close()
	}
	if d.logFile != nil {
		d.logFile.Close()
	}
}

func (d *Daemon) log(level LogLevel, format string, args ...any) {
	if level < d.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	d.logger.Printf("%s %s daemon: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
