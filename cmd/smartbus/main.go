package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/theoremus-urban-solutions/smartbus"
	"github.com/theoremus-urban-solutions/smartbus/cache"
	"github.com/theoremus-urban-solutions/smartbus/config"
	"github.com/theoremus-urban-solutions/smartbus/gtfs"
	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
	"github.com/theoremus-urban-solutions/smartbus/internal/logging"
	"github.com/theoremus-urban-solutions/smartbus/metrics"
	"github.com/theoremus-urban-solutions/smartbus/publisher"
	"github.com/theoremus-urban-solutions/smartbus/tracking"
	"github.com/theoremus-urban-solutions/smartbus/utils"
	"github.com/theoremus-urban-solutions/smartbus/weather"
)

func main() {
	configPath := flag.String("c", "", "path to config.yml (optional)")
	mode := flag.String("mode", "serve", "serve|poll|oneshot|build-graph")
	gtfsPath := flag.String("gtfs", "", "GTFS static zip path or URL (overrides GTFS_STATIC_PATH)")
	out := flag.String("out", "", "graph output path (overrides GRAPH_PATH)")
	allRoutes := flag.Bool("all-routes", false, "build-graph: ignore ROUTE_PREFIX")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	closer, err := logging.Configure(log.StandardLogger(), logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "build-graph":
		err = buildGraph(ctx, cfg, *gtfsPath, *out, *allRoutes)
	case "serve", "poll", "oneshot":
		err = runPipeline(ctx, cfg, *mode, os.Stdout)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runPipeline(ctx context.Context, cfg *config.AppConfig, mode string, stdout io.Writer) error {
	if err := cfg.RequireFeed(); err != nil {
		return err
	}

	var mcol *metrics.Collector
	cacheOpts := []cache.Option{}
	monitorOpts := []smartbus.Option{}
	if cfg.Metrics.Addr != "" {
		mcol = metrics.NewCollector(cfg.CacheTTL())
		msrv := mcol.Serve(cfg.Metrics.Addr)
		defer func() { _ = msrv.Close() }()
		cacheOpts = append(cacheOpts, cache.WithMetrics(mcol))
		monitorOpts = append(monitorOpts, smartbus.WithMetrics(mcol))
	}

	if cfg.NATS.URL != "" && mode != "oneshot" {
		var pm publisher.PublisherMetrics
		if mcol != nil {
			pm = mcol
		}
		pub, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, pm)
		if err != nil {
			return err
		}
		defer pub.Close()
		monitorOpts = append(monitorOpts, smartbus.WithPublisher(pub))
	}

	client := gtfsrt.NewClient(cfg.GTFSRT.FeedURL, cfg.GTFSRT.APIKey, cfg.FeedTimeout())
	snapshots := cache.New(client, cfg.CacheTTL(), cacheOpts...)
	monitor := smartbus.NewMonitor(snapshots, tracking.NewClassifier(), cfg.GTFSRT.RoutePrefix, monitorOpts...)

	log.WithFields(log.Fields{
		"mode":         mode,
		"feed":         client.URL(),
		"route_prefix": cfg.GTFSRT.RoutePrefix,
		"cache_ttl":    cfg.CacheTTL(),
	}).Info("smartbus starting")

	switch mode {
	case "oneshot":
		return json.NewEncoder(stdout).Encode(monitor.GetBuses(ctx))
	case "poll":
		return poll(ctx, monitor, cfg.PollInterval())
	}

	opts := []smartbus.ServerOption{
		smartbus.WithWeather(weather.NewClient(cfg.Weather.URL, cfg.WeatherTimeout())),
		smartbus.WithCacheTTL(cfg.CacheTTL()),
	}
	if g := loadGraph(cfg.GTFS.GraphPath); g != nil {
		opts = append(opts, smartbus.WithGraph(g))
	}
	return smartbus.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), monitor, opts...).Run(ctx)
}

// poll runs a cycle immediately and then on every tick until ctx is done.
// Failed cycles are logged by the monitor and retried on the next tick.
func poll(ctx context.Context, m *smartbus.Monitor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if res, err := m.Cycle(ctx); err == nil {
			logCycle(res)
		}
		select {
		case <-ctx.Done():
			log.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func logCycle(res *smartbus.CycleResult) {
	counts := map[tracking.Status]int{}
	for _, r := range res.Records {
		counts[r.Status]++
	}
	log.WithFields(log.Fields{
		"fetched_at": utils.Iso8601(res.FetchedAt),
		"vehicles":   res.Vehicles,
		"records":    len(res.Records),
		"normal":     counts[tracking.Normal],
		"slow":       counts[tracking.Slow],
		"delayed":    counts[tracking.Delayed],
		"reused":     res.Reused,
		"cycle_id":   res.CycleID,
	}).Info("cycle")
}

func loadGraph(path string) *gtfs.StopGraph {
	if path == "" {
		return nil
	}
	g, err := gtfs.LoadGraphFromFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Warn("graph file not found; run -mode build-graph")
		} else {
			log.WithError(err).Warn("graph file could not be loaded")
		}
		return nil
	}
	log.WithFields(log.Fields{"stops": g.NodeCount(), "edges": g.EdgeCount()}).Info("loaded stop graph")
	return g
}

func buildGraph(ctx context.Context, cfg *config.AppConfig, src, out string, allRoutes bool) error {
	if src == "" {
		src = cfg.GTFS.StaticPath
	}
	if out == "" {
		out = cfg.GTFS.GraphPath
	}
	if src == "" {
		return errors.New("no GTFS archive configured (set GTFS_STATIC_PATH or -gtfs)")
	}
	if out == "" {
		return errors.New("no graph output configured (set GRAPH_PATH or -out)")
	}
	opts := gtfs.GraphOptions{RoutePrefix: cfg.GTFSRT.RoutePrefix}
	if allRoutes {
		opts.RoutePrefix = ""
	}

	var g *gtfs.StopGraph
	var err error
	if isURL(src) {
		var data []byte
		data, err = newFetcher(5*time.Minute).fetch(ctx, src)
		if err != nil {
			return err
		}
		g, err = gtfs.LoadGraphFromBytes(data, opts)
	} else {
		g, err = gtfs.LoadGraph(src, opts)
	}
	if err != nil {
		return err
	}
	if err := gtfs.SaveGraphToFile(g, out); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"stops": g.NodeCount(),
		"edges": g.EdgeCount(),
		"out":   out,
	}).Info("built stop graph")
	return nil
}
