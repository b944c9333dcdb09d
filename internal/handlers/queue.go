package handlers

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

// run is one bot's pending work for a submission. It starts when the bot's stream picks it up.
type run struct {
	submissionID string
	bot          string
	code         string
	verbosity    models.Verbosity
	queuedAt     time.Time
}

// runQueue holds a bounded FIFO of pending runs per bot. Runs nobody collects within ttl are dropped,
// so an abandoned submission never reaches another user's stream.
type runQueue struct {
	mu      sync.Mutex
	pending map[string][]run
	size    int
	ttl     time.Duration
	now     func() time.Time

	// changed is closed and replaced every time runs are pushed.
	changed chan struct{}
}

var (
	errQueueFull   = errors.New("too many pending submissions, try again later")
	errUnknownBot  = errors.New("unknown bot")
	errRunNotFound = errors.New("no pending run for this submission")
)

func newRunQueue(bots []string, size int, ttl time.Duration) *runQueue {
	pending := make(map[string][]run, len(bots))
	for _, bot := range bots {
		pending[bot] = nil
	}
	return &runQueue{
		pending: pending,
		size:    size,
		ttl:     ttl,
		now:     time.Now,
		changed: make(chan struct{}),
	}
}

// push enqueues every run or none of them.
func (q *runQueue) push(runs ...run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	added := make(map[string]int, len(runs))
	for _, r := range runs {
		if _, ok := q.pending[r.bot]; !ok {
			return errUnknownBot
		}
		q.expire(r.bot, now)
		added[r.bot]++
		if len(q.pending[r.bot])+added[r.bot] > q.size {
			return errQueueFull
		}
	}
	for _, r := range runs {
		r.queuedAt = now
		q.pending[r.bot] = append(q.pending[r.bot], r)
	}

	close(q.changed)
	q.changed = make(chan struct{})
	return nil
}

// next takes the run of submissionID for bot. It fails with errRunNotFound when that run is not queued,
// since runs are pushed before the submission is acknowledged. An empty submissionID takes the oldest
// run for bot, blocking until one is available or ctx is done.
func (q *runQueue) next(ctx context.Context, bot, submissionID string) (run, error) {
	for {
		q.mu.Lock()
		if _, ok := q.pending[bot]; !ok {
			q.mu.Unlock()
			return run{}, errUnknownBot
		}
		q.expire(bot, q.now())

		runs := q.pending[bot]
		i := slices.IndexFunc(runs, func(r run) bool {
			return submissionID == "" || r.submissionID == submissionID
		})
		if i >= 0 {
			r := runs[i]
			q.pending[bot] = slices.Delete(runs, i, i+1)
			q.mu.Unlock()
			return r, nil
		}
		if submissionID != "" {
			q.mu.Unlock()
			return run{}, errRunNotFound
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return run{}, ctx.Err()
		}
	}
}

// expire drops the runs of bot queued for longer than the ttl. The caller holds q.mu.
func (q *runQueue) expire(bot string, now time.Time) {
	q.pending[bot] = slices.DeleteFunc(q.pending[bot], func(r run) bool {
		return now.Sub(r.queuedAt) >= q.ttl
	})
}
