/*
Copyright 2025 The prediction-gate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// prediction-gate runs the admission gate and result cache in front of a
// synthetic analysis workload and serves their metrics. It exists to
// exercise the library end to end on a real machine; the library packages
// are the product.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/predictlab/prediction-gate/internal/collector"
	"github.com/predictlab/prediction-gate/internal/gate"
	"github.com/predictlab/prediction-gate/internal/logging"
	"github.com/predictlab/prediction-gate/internal/orchestrator"
	"github.com/predictlab/prediction-gate/internal/resultcache"
	"github.com/predictlab/prediction-gate/pkg/config"
	"github.com/predictlab/prediction-gate/pkg/core"
)

func main() {
	var (
		configPath  string
		metricsAddr string
		verbosity   int
	)
	pflag.StringVar(&configPath, "config", "", "Path to the configuration file (YAML). Empty uses defaults.")
	pflag.StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address, overriding the configured one.")
	pflag.IntVar(&verbosity, "v", 0, "Log verbosity: 0 info, 1 debug, 2 trace.")
	pflag.Parse()

	if err := run(configPath, metricsAddr, verbosity); err != nil {
		fmt.Fprintf(os.Stderr, "prediction-gate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, verbosity int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbosity == 0 {
		verbosity = cfg.Logging.Verbosity
	}
	log, err := logging.NewLogger(verbosity)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	overrides := config.ParseCategoryOverrides(cfg.CategoryOverrides)

	cache := resultcache.New[string](resultcache.Config{
		MaxSize:       cfg.Cache.MaxSize,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		TTLByCategory: overrides.TTLByCategory(),
		SweepInterval: cfg.Cache.SweepInterval,
	}, log)
	defer cache.Close()

	var source collector.UsageSource
	if ps, err := collector.NewProcStatSource(); err != nil {
		log.Info("procfs unavailable, CPU source reports zero load", "error", err.Error())
		source = collector.NewStaticSource(0)
	} else {
		source = ps
	}

	var policy gate.Policy
	if limits := overrides.RateLimits(); len(limits) > 0 {
		policy = gate.NewCategoryRateLimiter(limits)
	}

	ctrl, err := gate.New[string](gate.Config{
		MaxCPUThreshold:  cfg.Admission.MaxCPUThreshold,
		MinCPUThreshold:  cfg.Admission.MinCPUThreshold,
		SampleInterval:   cfg.Admission.SampleInterval,
		CPUWindowSize:    cfg.Admission.CPUWindowSize,
		QueueMaxSize:     cfg.Admission.QueueMaxSize,
		RequestTimeout:   cfg.Admission.RequestTimeout,
		DrainBatchSize:   cfg.Admission.DrainBatchSize,
		DrainInterval:    cfg.Admission.DrainInterval,
		AdaptiveMode:     cfg.Admission.Adaptive.Enabled,
		AdaptiveInterval: cfg.Admission.Adaptive.Interval,
		AdaptiveDownStep: cfg.Admission.Adaptive.DownStep,
		AdaptiveUpStep:   cfg.Admission.Adaptive.UpStep,
		AdaptiveFloor:    cfg.Admission.Adaptive.Floor,
		AdaptiveCeiling:  cfg.Admission.Adaptive.Ceiling,
	}, syntheticAnalysis, source, policy, log)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	orch, err := orchestrator.New[string](cache, ctrl, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	var srv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			ctrl.Collector(),
			cache.Collector(),
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(err, "metrics server failed")
			}
		}()
	}

	log.Info("prediction gate running",
		"maxCpuThreshold", cfg.Admission.MaxCPUThreshold,
		"queueMaxSize", cfg.Admission.QueueMaxSize,
		"cacheMaxSize", cfg.Cache.MaxSize,
		"adaptive", cfg.Admission.Adaptive.Enabled)

	driveWorkload(ctx, orch, log.WithName("workload"))

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "metrics server shutdown failed")
		}
	}
	log.Info("prediction gate stopped")
	return nil
}

// syntheticAnalysis stands in for the real predictive computation: it burns
// a little wall time proportional to the category and echoes a summary.
func syntheticAnalysis(ctx context.Context, req gate.Request) (string, error) {
	cost := 50 * time.Millisecond
	if req.Category == core.CategoryForecast {
		cost = 200 * time.Millisecond
	}
	select {
	case <-time.After(cost):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("%s analysis of %v", req.Category, req.Payload), nil
}

// driveWorkload submits a rotating mix of requests until the context ends,
// logging a metrics digest every few seconds.
func driveWorkload(ctx context.Context, orch *orchestrator.Orchestrator[string], log logr.Logger) {
	categories := core.Categories
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	digest := time.NewTicker(5 * time.Second)
	defer digest.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-digest.C:
			m := orch.GateMetrics()
			s := orch.CacheStats()
			log.Info("digest",
				"cpu", fmt.Sprintf("%.1f", m.CPUUsage),
				"throttling", m.Throttling,
				"queue", m.QueueLength,
				"processed", m.Processed,
				"throttled", m.Throttled,
				"threshold", m.MaxCPUThreshold,
				"cacheEntries", s.Entries,
				"cacheHitRate", fmt.Sprintf("%.2f", s.HitRate))
		case <-ticker.C:
			req := gate.Request{
				ID:       uuid.NewString(),
				Category: categories[i%len(categories)],
				Payload:  map[string]any{"series": fmt.Sprintf("series-%d", i%7)},
			}
			i++
			go func() {
				res, err := orch.Analyze(ctx, req)
				if err != nil && ctx.Err() == nil {
					log.V(logging.DEBUG).Info("analysis failed", "id", req.ID, "error", err.Error())
					return
				}
				if err == nil && !res.Available {
					log.V(logging.DEBUG).Info("analysis unavailable under load", "id", req.ID)
				}
			}()
		}
	}
}
