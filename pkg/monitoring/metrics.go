/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics.go
Description: Progress and resource monitoring for analysis runs. Counts analyzed and failed
files, records and bytes from any number of goroutines, samples Go heap statistics on an
interval and logs a progress line so long directory runs show where they are.
*/

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often progress is sampled and logged.
const DefaultInterval = 5 * time.Second

// ResourceMetrics is one sample of the process's memory use
type ResourceMetrics struct {
	Timestamp  time.Time `json:"timestamp"`
	HeapAlloc  uint64    `json:"heap_alloc"`
	HeapInuse  uint64    `json:"heap_inuse"`
	Sys        uint64    `json:"sys"`
	NumGC      uint32    `json:"num_gc"`
	GoRoutines int       `json:"go_routines"`
}

// RunMetrics summarizes the progress of a run
type RunMetrics struct {
	StartTime      time.Time       `json:"start_time"`
	Uptime         time.Duration   `json:"uptime"`
	FilesTotal     int64           `json:"files_total"`
	FilesDone      int64           `json:"files_done"`
	FilesFailed    int64           `json:"files_failed"`
	Records        int64           `json:"records"`
	Bytes          int64           `json:"bytes"`
	FilesPerSecond float64         `json:"files_per_second"`
	BytesPerSecond float64         `json:"bytes_per_second"`
	PeakHeap       uint64          `json:"peak_heap"`
	Last           ResourceMetrics `json:"last"`
}

// MetricsCollector tracks a run. The Record methods are safe for concurrent use.
type MetricsCollector struct {
	interval   time.Duration
	filesTotal int64
	startTime  time.Time

	filesDone   atomic.Int64
	filesFailed atomic.Int64
	records     atomic.Int64
	bytes       atomic.Int64

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	peakHeap uint64
	last     ResourceMetrics

	logger logrus.FieldLogger
}

// NewMetricsCollector creates a collector for a run over filesTotal files
func NewMetricsCollector(logger logrus.FieldLogger, filesTotal int) *MetricsCollector {
	return &MetricsCollector{
		interval:   DefaultInterval,
		filesTotal: int64(filesTotal),
		startTime:  time.Now(),
		logger:     logger,
	}
}

// SetInterval changes the sampling interval. It has no effect once started.
func (mc *MetricsCollector) SetInterval(d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.running && d > 0 {
		mc.interval = d
	}
}

// Start begins periodic sampling until Stop or ctx is done
func (mc *MetricsCollector) Start(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.running {
		return fmt.Errorf("metrics collector already running")
	}
	ctx, mc.cancel = context.WithCancel(ctx)
	mc.running = true
	mc.sampleLocked()

	mc.wg.Add(1)
	go mc.collectionLoop(ctx, mc.interval)
	return nil
}

// Stop ends sampling and returns the final counters
func (mc *MetricsCollector) Stop() (RunMetrics, error) {
	mc.mu.Lock()
	if !mc.running {
		mc.mu.Unlock()
		return RunMetrics{}, fmt.Errorf("metrics collector not running")
	}
	mc.running = false
	mc.cancel()
	mc.mu.Unlock()

	mc.wg.Wait()

	mc.mu.Lock()
	mc.sampleLocked()
	mc.mu.Unlock()
	return mc.Snapshot(), nil
}

// RecordFile counts one analyzed file
func (mc *MetricsCollector) RecordFile(records uint64, bytes int64) {
	mc.filesDone.Add(1)
	mc.records.Add(int64(records))
	mc.bytes.Add(bytes)
}

// RecordFailure counts one file that could not be analyzed
func (mc *MetricsCollector) RecordFailure() {
	mc.filesFailed.Add(1)
}

// Snapshot returns the current counters
func (mc *MetricsCollector) Snapshot() RunMetrics {
	mc.mu.Lock()
	peak, last := mc.peakHeap, mc.last
	mc.mu.Unlock()

	m := RunMetrics{
		StartTime:   mc.startTime,
		Uptime:      time.Since(mc.startTime),
		FilesTotal:  mc.filesTotal,
		FilesDone:   mc.filesDone.Load(),
		FilesFailed: mc.filesFailed.Load(),
		Records:     mc.records.Load(),
		Bytes:       mc.bytes.Load(),
		PeakHeap:    peak,
		Last:        last,
	}
	if secs := m.Uptime.Seconds(); secs > 0 {
		m.FilesPerSecond = float64(m.FilesDone) / secs
		m.BytesPerSecond = float64(m.Bytes) / secs
	}
	return m
}

func (mc *MetricsCollector) collectionLoop(ctx context.Context, interval time.Duration) {
	defer mc.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.mu.Lock()
			mc.sampleLocked()
			mc.mu.Unlock()
			mc.logProgress()
		}
	}
}

func (mc *MetricsCollector) sampleLocked() {
	mc.last = currentResourceMetrics()
	if mc.last.HeapAlloc > mc.peakHeap {
		mc.peakHeap = mc.last.HeapAlloc
	}
}

func (mc *MetricsCollector) logProgress() {
	m := mc.Snapshot()
	mc.logger.WithFields(logrus.Fields{
		"files_done":   m.FilesDone,
		"files_failed": m.FilesFailed,
		"files_total":  m.FilesTotal,
		"records":      m.Records,
		"heap_alloc":   m.Last.HeapAlloc,
		"files_per_s":  fmt.Sprintf("%.1f", m.FilesPerSecond),
	}).Info("Progress")
}

func currentResourceMetrics() ResourceMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return ResourceMetrics{
		Timestamp:  time.Now(),
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}
