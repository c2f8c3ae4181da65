// Package servecmder provides the serve command that runs the bridge.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/bridge/pkg/capability"
	"github.com/papercomputeco/bridge/pkg/config"
	"github.com/papercomputeco/bridge/pkg/dispatch"
	"github.com/papercomputeco/bridge/pkg/eventstream"
	"github.com/papercomputeco/bridge/pkg/eventstream/nop"
	"github.com/papercomputeco/bridge/pkg/llm/provider"
	"github.com/papercomputeco/bridge/pkg/session"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/sink"
	"github.com/papercomputeco/bridge/pkg/stream"
	"github.com/papercomputeco/bridge/pkg/transform"
	"github.com/papercomputeco/bridge/proxy"
	"github.com/papercomputeco/bridge/proxy/worker"
)

// shutdownTimeout bounds draining the log pool and flushing orphans.
const shutdownTimeout = 10 * time.Second

type ServeCommander struct {
	flags     serveFlags
	debug     bool
	configDir string

	viper  *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

// serveFlags are the flag targets; the effective values are read back
// through viper so env and config.toml apply when a flag is not set.
type serveFlags struct {
	listen    string
	upstream  string
	provider  string
	model     string
	baseURL   string
	logDir    string
	logSink   string
	logDSN    string
	trace     bool
	chunkSize uint
}

const serveLongDesc string = `Run the bridge server.

The server accepts Anthropic Messages API traffic. Calls to /v1/messages are
translated to the configured target provider and answered in the vendor's
wire format, streaming or not. Every other call, and calls for excluded
models, are forwarded unmodified to the upstream. Point a client at it with:

  ANTHROPIC_BASE_URL=http://localhost:8787

Every exchange is logged to the configured sink (jsonl, sqlite, postgres).
Transformed turns are also published to Kafka when events.kafka_brokers is
set. Requests still in flight at shutdown are logged as orphans.

Supported target providers: openai, ollama`

const serveShortDesc string = "Run the bridge server"

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagProvider,
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagLogDir,
	config.FlagLogSink,
	config.FlagLogDSN,
	config.FlagTrace,
	config.FlagChunkSize,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)

			cmder.viper = v
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUpstream, &f.upstream)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagBaseURL, &f.baseURL)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogDir, &f.logDir)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogSink, &f.logSink)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogDSN, &f.logDSN)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagTrace, &f.trace)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagChunkSize, &f.chunkSize)

	return cmd
}

func (c *ServeCommander) run() (err error) {
	c.logger = newLogger(c.debug, os.Stderr)
	cfg := c.cfg

	timeout, err := parseTimeout(cfg.Target.Timeout)
	if err != nil {
		return err
	}

	client, err := provider.New(provider.Config{
		Provider: cfg.Target.Provider,
		Model:    cfg.Target.Model,
		APIKey:   cfg.Target.APIKey,
		BaseURL:  cfg.Target.BaseURL,
		Timeout:  timeout,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating %s client: %w", cfg.Target.Provider, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, where, err := sink.Open(ctx, sink.Options{
		Name:      cfg.Log.Sink,
		Dir:       cfg.Log.Dir,
		DSN:       cfg.Log.DSN,
		ConfigDir: c.configDir,
	})
	if err != nil {
		return err
	}
	c.logger.Info("logging traffic", "sink", cfg.Log.Sink, "target", where)

	publisher, err := newPublisher(cfg.Events, c.logger)
	if err != nil {
		driver.Close()
		return err
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		driver.Close()
		publisher.Close()
		return fmt.Errorf("creating log pool: %w", err)
	}

	tracker := session.NewTracker(c.logger)

	var p *proxy.Proxy
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("bridge panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("bridge panicked: %v", r)
		}
		if shutdownErr := c.shutdown(p, pool, tracker, driver, publisher); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	engine := transform.NewEngine(cfg.Transform.ExcludedMarkers)
	c.watchConfig(engine)

	dispatcher := dispatch.New(client, c.logger)
	pipeline, err := proxy.NewPipeline(proxy.PipelineConfig{
		Engine:     engine,
		Validator:  capability.NewValidator(c.logger, capability.NewTiktokenCounter()),
		Dispatcher: dispatcher,
		Encoder:    stream.NewEncoder(int(cfg.Stream.ChunkSize)),
		Target: storage.ProviderConfig{
			Provider: cfg.Target.Provider,
			Model:    cfg.Target.Model,
			BaseURL:  cfg.Target.BaseURL,
		},
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	interceptor, err := proxy.NewInterceptor(proxy.InterceptorConfig{
		Hosts:    upstreamHosts(cfg.Proxy.Upstream),
		Pipeline: pipeline,
		Pool:     pool,
		Tracker:  tracker,
		Trace:    cfg.Log.Trace,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating interceptor: %w", err)
	}

	p, err = proxy.New(proxy.Config{
		ListenAddr:  cfg.Proxy.Listen,
		UpstreamURL: cfg.Proxy.Upstream,
		Timeout:     timeout,
	}, interceptor, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	c.logger.Info("starting bridge",
		"listen", cfg.Proxy.Listen,
		"upstream", cfg.Proxy.Upstream,
		"provider", cfg.Target.Provider,
		"model", cfg.Target.Model,
		"excluded_markers", engine.ExcludedMarkers(),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}

// shutdown stops accepting traffic, drains queued log writes, then records
// whatever is still pending as orphans before the sink is closed.
func (c *ServeCommander) shutdown(p *proxy.Proxy, pool *worker.Pool, tracker *session.Tracker, driver storage.Driver, publisher eventstream.Publisher) error {
	var errs []error

	if p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing proxy: %w", err))
		}
	}

	pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tracker.FlushOrphans(ctx, driver); err != nil {
		errs = append(errs, fmt.Errorf("flushing orphans: %w", err))
	}

	if err := driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing log sink: %w", err))
	}
	if err := publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}
	if n, ok := publisher.(*nop.Publisher); ok && n.Dropped() > 0 {
		c.logger.Debug("turn events not published, no broker configured", "count", n.Dropped())
	}

	return errors.Join(errs...)
}

// watchConfig reloads the exclusion list when config.toml changes.
func (c *ServeCommander) watchConfig(engine *transform.Engine) {
	if c.viper.ConfigFileUsed() == "" {
		return
	}

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		markers := config.FromViper(c.viper).Transform.ExcludedMarkers
		engine.SetExcludedMarkers(markers)
		c.logger.Info("config reloaded", "file", e.Name, "excluded_markers", engine.ExcludedMarkers())
	})
	c.viper.WatchConfig()
}

// upstreamHosts limits translation to calls addressed to the upstream.
func upstreamHosts(upstream string) []string {
	u, err := url.Parse(upstream)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}
