package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/discread/internal/bytesize"
	"github.com/marmos91/discread/internal/logger"
	"github.com/marmos91/discread/pkg/media"
	"github.com/marmos91/discread/pkg/metrics"
	"github.com/marmos91/discread/pkg/readahead"
)

var (
	benchBlocks uint32
	benchMode   string
)

var benchCmd = &cobra.Command{
	Use:   "bench <image>",
	Short: "Benchmark sequential reads through the read-ahead pipeline",
	Long: `Read the image sequentially through the full asynchronous
request/prefetch pipeline and report throughput and cache hit ratio.

With metrics enabled in the configuration, a Prometheus /metrics endpoint is
served for the duration of the run.

Examples:
  discread bench game.iso
  discread bench --blocks 4096 --mode 2352 game.iso
  DISCREAD_METRICS_ENABLED=true discread bench game.iso`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Uint32Var(&benchBlocks, "blocks", 1024, "number of 16-sector blocks to read (0 = whole image)")
	benchCmd.Flags().StringVar(&benchMode, "mode", "2048", "read mode: 2048, 2328, 2340 or 2352")
}

// benchCounters counts subsystem events locally for the final report and
// forwards them to an optional inner collector (the Prometheus one).
type benchCounters struct {
	hits, misses  atomic.Int64
	demand        atomic.Int64
	prefetchReads atomic.Int64
	retries       atomic.Int64
	failures      atomic.Int64

	inner readahead.Metrics
}

func (b *benchCounters) RecordCacheHit() {
	b.hits.Add(1)
	if b.inner != nil {
		b.inner.RecordCacheHit()
	}
}

func (b *benchCounters) RecordCacheMiss() {
	b.misses.Add(1)
	if b.inner != nil {
		b.inner.RecordCacheMiss()
	}
}

func (b *benchCounters) RecordDemandRead() {
	b.demand.Add(1)
	if b.inner != nil {
		b.inner.RecordDemandRead()
	}
}

func (b *benchCounters) RecordPrefetchRead() {
	b.prefetchReads.Add(1)
	if b.inner != nil {
		b.inner.RecordPrefetchRead()
	}
}

func (b *benchCounters) RecordReadRetry() {
	b.retries.Add(1)
	if b.inner != nil {
		b.inner.RecordReadRetry()
	}
}

func (b *benchCounters) RecordReadFailure() {
	b.failures.Add(1)
	if b.inner != nil {
		b.inner.RecordReadFailure()
	}
}

func (b *benchCounters) RecordDiscChange() {
	if b.inner != nil {
		b.inner.RecordDiscChange()
	}
}

func (b *benchCounters) ObserveRequestWait(d time.Duration) {
	if b.inner != nil {
		b.inner.ObserveRequestWait(d)
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := parseMode(benchMode)
	if err != nil {
		return err
	}

	counters := &benchCounters{}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		counters.inner = metrics.NewReadaheadMetrics()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}
		go func() {
			logger.Info("bench: serving metrics", "addr", cfg.Metrics.ListenAddress)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("bench: metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Close() }()
	}

	src, err := media.NewImageSource(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sub, err := readahead.New(src, readahead.Options{
		CacheBits:      cfg.Cache.Bits,
		PrefetchBlocks: cfg.Prefetch.MaxBlocks,
		BusyWait:       cfg.Timing.BusyWait,
		IdleWait:       cfg.Timing.IdleWait,
		AbsentPoll:     cfg.Timing.AbsentPoll,
		CompletePoll:   cfg.Timing.CompletePoll,
		Metrics:        counters,
	})
	if err != nil {
		return err
	}
	if err := sub.Start(); err != nil {
		return err
	}
	defer sub.Stop()

	sectors := src.SectorCount() &^ 15
	if benchBlocks > 0 && benchBlocks*16 < sectors {
		sectors = benchBlocks * 16
	}
	if sectors == 0 {
		return fmt.Errorf("image has no full 16-sector block to read")
	}

	// Stop cleanly on Ctrl-C so the deferred teardown still reports.
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupted)

	logger.Info("bench: starting", "sectors", sectors, "mode", mode.String())

	start := time.Now()
	var bytesRead int64

	for lsn := uint32(0); lsn < sectors; lsn++ {
		select {
		case <-interrupted:
			logger.Warn("bench: interrupted", "lsn", lsn)
			lsn = sectors
			continue
		default:
		}

		if err := sub.RequestSector(lsn, mode); err != nil {
			return fmt.Errorf("request for sector %d failed: %w", lsn, err)
		}
		data, err := sub.GetSector(lsn, mode)
		if err != nil {
			return fmt.Errorf("read of sector %d failed: %w", lsn, err)
		}
		bytesRead += int64(len(data))
	}

	elapsed := time.Since(start)

	lookups := counters.hits.Load() + counters.misses.Load()
	hitRatio := 0.0
	if lookups > 0 {
		hitRatio = float64(counters.hits.Load()) / float64(lookups)
	}

	fmt.Printf("read:        %s in %s\n", bytesize.ByteSize(bytesRead), elapsed.Round(time.Millisecond))
	fmt.Printf("throughput:  %s/s\n", bytesize.ByteSize(float64(bytesRead)/elapsed.Seconds()))
	fmt.Printf("cache:       %d hits / %d misses (%.1f%% hit ratio)\n",
		counters.hits.Load(), counters.misses.Load(), hitRatio*100)
	fmt.Printf("media reads: %d demand, %d prefetch\n",
		counters.demand.Load(), counters.prefetchReads.Load())
	if retries := counters.retries.Load(); retries > 0 {
		fmt.Printf("retries:     %d (%d blocks failed)\n", retries, counters.failures.Load())
	}

	return nil
}
