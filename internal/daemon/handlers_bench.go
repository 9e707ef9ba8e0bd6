package daemon

import (
	"context"
	"time"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

const benchOp = "bench"

// handleBench self-benchmarks by repeatedly running a cheap find query,
// recording each call's latency, then reports throughput and the
// percentile breakdown of this run's samples.
func (d *Daemon) handleBench(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	d.mu.Lock()
	queries := int(cmd.Queries)
	if queries == 0 {
		queries = d.cfg.BenchQueries
	}
	duration := time.Duration(cmd.Duration) * time.Second
	if duration == 0 {
		duration = time.Duration(d.cfg.BenchDurationS) * time.Second
	}
	d.mu.Unlock()

	for i := 0; i < int(cmd.Warmup); i++ {
		if _, err := d.store.FindByName(ctx, "", store.FindByNameOpts{Limit: 1}); err != nil {
			return mapStoreError(requestID, err)
		}
	}

	deadline := time.Now().Add(duration)
	ran := 0
	var samples []time.Duration
	start := time.Now()
	for ran < queries && time.Now().Before(deadline) {
		qStart := time.Now()
		if _, err := d.store.FindByName(ctx, "", store.FindByNameOpts{Limit: 1}); err != nil {
			return mapStoreError(requestID, err)
		}
		lat := time.Since(qStart)
		d.metrics.Record(benchOp, lat)
		samples = append(samples, lat)
		ran++
	}
	elapsed := time.Since(start)

	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(ran) / elapsed.Seconds()
	}

	return success(requestID, BenchResult{
		Queries:    ran,
		Throughput: throughput,
		Latency:    calculateLatencyStats(samples),
	})
}
