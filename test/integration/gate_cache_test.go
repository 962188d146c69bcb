package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/predictlab/prediction-gate/internal/collector"
	"github.com/predictlab/prediction-gate/internal/gate"
	"github.com/predictlab/prediction-gate/internal/orchestrator"
	"github.com/predictlab/prediction-gate/internal/resultcache"
	"github.com/predictlab/prediction-gate/pkg/core"
)

type fixture struct {
	source *collector.StaticSource
	cache  *resultcache.Cache[string]
	ctrl   *gate.Controller[string]
	orch   *orchestrator.Orchestrator[string]
	calls  atomic.Int64
}

func newFixture(queueMax int, policy gate.Policy) *fixture {
	f := &fixture{source: collector.NewStaticSource(10)}

	compute := func(ctx context.Context, req gate.Request) (string, error) {
		f.calls.Add(1)
		return "result:" + req.ID, nil
	}

	f.cache = resultcache.New[string](resultcache.Config{
		MaxSize:    100,
		DefaultTTL: time.Hour,
	}, logr.Discard())

	var err error
	f.ctrl, err = gate.New[string](gate.Config{
		SampleInterval: 2 * time.Millisecond,
		CPUWindowSize:  3,
		QueueMaxSize:   queueMax,
		DrainBatchSize: 2,
		DrainInterval:  time.Millisecond,
	}, compute, f.source, policy, logr.Discard())
	Expect(err).NotTo(HaveOccurred())

	f.orch, err = orchestrator.New[string](f.cache, f.ctrl, logr.Discard())
	Expect(err).NotTo(HaveOccurred())
	return f
}

func (f *fixture) close() {
	f.ctrl.Close()
	f.cache.Close()
}

func (f *fixture) waitThrottling(want bool) {
	Eventually(func() bool {
		return f.ctrl.Metrics().Throttling
	}).WithTimeout(2 * time.Second).WithPolling(time.Millisecond).Should(Equal(want))
}

func analysisReq(id, series string) gate.Request {
	return gate.Request{
		ID:       id,
		Category: core.CategoryTrend,
		Payload:  map[string]any{"series": series},
		Timeout:  time.Minute,
	}
}

var _ = Describe("prediction gate end to end", func() {
	var f *fixture

	AfterEach(func() {
		f.close()
	})

	Context("under light load", func() {
		BeforeEach(func() {
			f = newFixture(10, nil)
		})

		It("computes on the first request and answers repeats from the cache", func() {
			first, err := f.orch.Analyze(context.Background(), analysisReq("a", "cpu"))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Available).To(BeTrue())
			Expect(first.FromCache).To(BeFalse())

			second, err := f.orch.Analyze(context.Background(), analysisReq("b", "cpu"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.FromCache).To(BeTrue())
			Expect(second.Value).To(Equal(first.Value))
			Expect(f.calls.Load()).To(Equal(int64(1)))

			Expect(f.orch.CacheStats().Hits).To(Equal(uint64(1)))
		})
	})

	Context("under CPU pressure", func() {
		BeforeEach(func() {
			f = newFixture(10, nil)
			f.source.Set(95)
			f.waitThrottling(true)
		})

		It("parks misses in the queue and completes them when load subsides", func() {
			var wg sync.WaitGroup
			results := make([]orchestrator.Result[string], 3)
			for i, series := range []string{"s1", "s2", "s3"} {
				wg.Add(1)
				go func(i int, series string) {
					defer wg.Done()
					res, err := f.orch.Analyze(context.Background(), analysisReq(series, series))
					Expect(err).NotTo(HaveOccurred())
					results[i] = res
				}(i, series)
				Eventually(func() int {
					return f.ctrl.Metrics().QueueLength
				}).WithTimeout(2 * time.Second).WithPolling(time.Millisecond).Should(Equal(i + 1))
			}

			f.source.Set(10)
			f.waitThrottling(false)
			wg.Wait()

			for _, res := range results {
				Expect(res.Available).To(BeTrue())
				Expect(res.FromCache).To(BeFalse())
			}
			Expect(f.ctrl.Metrics().QueueLength).To(BeZero())
			Expect(f.calls.Load()).To(Equal(int64(3)))
		})

		It("still answers cached results without consuming admission capacity", func() {
			f.source.Set(10)
			f.waitThrottling(false)
			_, err := f.orch.Analyze(context.Background(), analysisReq("warm", "warm"))
			Expect(err).NotTo(HaveOccurred())

			f.source.Set(95)
			f.waitThrottling(true)

			res, err := f.orch.Analyze(context.Background(), analysisReq("again", "warm"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.FromCache).To(BeTrue())
			Expect(f.ctrl.Metrics().QueueLength).To(BeZero())
		})
	})

	Context("with a full queue", func() {
		BeforeEach(func() {
			f = newFixture(1, nil)
			f.source.Set(95)
			f.waitThrottling(true)
		})

		It("declines further work without reporting an error", func() {
			parked := make(chan struct{})
			go func() {
				defer close(parked)
				_, _ = f.orch.Analyze(context.Background(), analysisReq("parked", "p"))
			}()
			Eventually(func() int {
				return f.ctrl.Metrics().QueueLength
			}).WithTimeout(2 * time.Second).WithPolling(time.Millisecond).Should(Equal(1))

			res, err := f.orch.Analyze(context.Background(), analysisReq("rejected", "r"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Available).To(BeFalse())

			f.source.Set(10)
			f.waitThrottling(false)
			Eventually(parked).WithTimeout(2 * time.Second).Should(BeClosed())
		})
	})

	Context("with a category rate limit", func() {
		BeforeEach(func() {
			f = newFixture(10, gate.NewCategoryRateLimiter(map[core.Category]int{
				core.CategoryTrend: 1,
			}))
		})

		It("rejects requests past the per-minute allowance", func() {
			_, err := f.orch.Analyze(context.Background(), analysisReq("a", "s1"))
			Expect(err).NotTo(HaveOccurred())

			_, err = f.orch.Analyze(context.Background(), analysisReq("b", "s2"))
			Expect(err).To(MatchError(gate.ErrRateLimitExceeded))

			// A cached answer does not touch the limiter.
			res, err := f.orch.Analyze(context.Background(), analysisReq("c", "s1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.FromCache).To(BeTrue())
		})
	})
})
