package speech

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"overdub/internal/clipcache"
	"overdub/internal/logging"
	"overdub/internal/services"
)

// RetryPolicy describes the retry budget for backend failures. Attempt i
// (1-based) waits a randomized backoff drawn uniformly from [i, 3i] seconds
// before the next try, so the mean wait grows linearly with the attempt.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
}

// DefaultRetryPolicy matches the backend's observed tolerance: ten retries
// on top of the initial attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 11}
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// backoff returns the wait after the given failed 1-based attempt.
func (p RetryPolicy) backoff(attempt int, uniform func() float64) time.Duration {
	seconds := float64(attempt) * (1 + 2*uniform())
	return time.Duration(seconds * float64(time.Second))
}

// Item is one unit of generation work: a unique text keyed into the cache,
// tagged with the index of the first cue that needs it.
type Item struct {
	CueIndex int
	Text     string
	Key      string
}

// Generator drives a Synthesizer with retries, an optional client-side rate
// limit, and windowed batch concurrency.
type Generator struct {
	synth   Synthesizer
	cache   *clipcache.Store
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *slog.Logger

	// Injection points for tests.
	sleep   func(context.Context, time.Duration) error
	uniform func() float64
}

// NewGenerator builds a generator. A requestsPerMinute of zero disables the
// rate limiter.
func NewGenerator(synth Synthesizer, cache *clipcache.Store, policy RetryPolicy, requestsPerMinute int, logger *slog.Logger) *Generator {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Generator{
		synth:   synth,
		cache:   cache,
		policy:  policy,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "speech"),
		sleep:   sleepContext,
		uniform: rand.Float64,
	}
}

// GenerateOne synthesizes text with the retry policy and stores the clip
// under key. The returned error is a network error after the retry budget
// is exhausted; callers record it per cue rather than aborting the run.
func (g *Generator) GenerateOne(ctx context.Context, text, key string) error {
	var lastErr error
	total := g.policy.attempts()
	for attempt := 1; attempt <= total; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		data, err := g.synth.Synthesize(ctx, text)
		if err == nil {
			if _, storeErr := g.cache.Store(key, data); storeErr != nil {
				return services.Wrap(services.ErrIO, "speech", "store clip", key, storeErr)
			}
			return nil
		}
		lastErr = err

		if attempt == total {
			break
		}
		wait := g.policy.backoff(attempt, g.uniform)
		g.logger.Warn("synthesis failed, retrying",
			logging.Int("attempt", attempt),
			logging.Int("attempts", total),
			logging.Duration("backoff", wait),
			logging.Error(err))
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return services.Wrap(services.ErrNetwork, "speech", "synthesize",
		"retry budget exhausted", lastErr)
}

// GenerateBatch processes items in fixed-size windows. All items within a
// window run concurrently and are awaited as a unit before the next window
// starts; a single item's failure never cancels its siblings. The result
// map covers every submitted cue index exactly once, with nil marking
// success.
func (g *Generator) GenerateBatch(ctx context.Context, items []Item, batchSize int) map[int]error {
	results := make(map[int]error, len(items))
	if len(items) == 0 {
		return results
	}
	if batchSize < 1 {
		batchSize = 1
	}

	var mu sync.Mutex
	totalWindows := (len(items) + batchSize - 1) / batchSize

	for offset := 0; offset < len(items); offset += batchSize {
		end := offset + batchSize
		if end > len(items) {
			end = len(items)
		}
		window := items[offset:end]

		g.logger.Info("generating window",
			logging.Int("window", offset/batchSize+1),
			logging.Int("windows", totalWindows),
			logging.Int("items", len(window)))

		var wg sync.WaitGroup
		for _, item := range window {
			wg.Add(1)
			go func(item Item) {
				defer wg.Done()
				err := g.GenerateOne(ctx, item.Text, item.Key)
				mu.Lock()
				results[item.CueIndex] = err
				mu.Unlock()
			}(item)
		}
		wg.Wait()
	}
	return results
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
