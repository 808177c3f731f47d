package collection

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the chunk size used when a bulk run does not set one.
const DefaultConcurrency = 5

const (
	Idle RunState = iota
	Running
	Settled
)

type (
	// Operation is applied to every id of a bulk run; a non-nil error counts the id as failed.
	Operation func(ctx context.Context, id string) error

	RunState int

	// Progress describes a bulk run after each chunk.
	Progress struct {
		State   RunState
		Chunk   int // 1-based index of the current chunk
		Chunks  int
		Success int
		Failure int
	}

	// Summary is the outcome of a bulk run. Failed lists the ids that failed, in input order.
	Summary struct {
		Label   string
		Total   int
		Success int
		Failure int
		Failed  []string
	}

	RunOption func(*runConfig)

	runConfig struct {
		concurrency int
		label       string
		progress    func(Progress)
	}

	CoordinatorOption func(*Coordinator)
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Settled:
		return "settled"
	default:
		return "idle"
	}
}

// Partial reports whether some items failed while others succeeded.
func (s Summary) Partial() bool {
	return s.Failure > 0 && s.Success > 0
}

// Err returns a *PartialFailureError when at least one item failed.
func (s Summary) Err() error {
	if s.Failure == 0 {
		return nil
	}
	return &PartialFailureError{Summary: s}
}

func (s Summary) label() string {
	if s.Label == "" {
		return "bulk run"
	}
	return s.Label
}

// WithConcurrency sets how many operations run at once. n <= 0 means DefaultConcurrency.
func WithConcurrency(n int) RunOption {
	return func(c *runConfig) { c.concurrency = n }
}

func WithLabel(label string) RunOption {
	return func(c *runConfig) { c.label = label }
}

// WithProgress registers fn to be called when the run starts and after every chunk.
func WithProgress(fn func(Progress)) RunOption {
	return func(c *runConfig) { c.progress = fn }
}

// WithDefaultConcurrency sets the chunk size of runs that do not pass WithConcurrency.
func WithDefaultConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithBulkMetrics(m Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Coordinator applies one operation to many ids in chunks of bounded size.
// A failing id never aborts the run and successes are never rolled back.
type Coordinator struct {
	concurrency int
	metrics     Metrics
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		concurrency: DefaultConcurrency,
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes ids in order, chunk by chunk: all operations of a chunk are issued
// concurrently and the whole chunk settles before the next one starts.
// Once ctx is done, the ids of the chunks not started yet are counted as failed.
func (c *Coordinator) Run(ctx context.Context, ids []string, op Operation, opts ...RunOption) Summary {
	conf := runConfig{concurrency: c.concurrency}
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.concurrency <= 0 {
		conf.concurrency = c.concurrency
	}

	if ctx == nil {
		ctx = context.Background()
	}

	summary := Summary{Label: conf.label, Total: len(ids)}
	if len(ids) == 0 {
		return summary
	}

	chunks := (len(ids) + conf.concurrency - 1) / conf.concurrency
	report := func(state RunState, chunk int) {
		if conf.progress != nil {
			conf.progress(Progress{
				State:   state,
				Chunk:   chunk,
				Chunks:  chunks,
				Success: summary.Success,
				Failure: summary.Failure,
			})
		}
	}
	report(Idle, 0)

	failed := make([]bool, len(ids))
	for chunk := 0; chunk < chunks; chunk++ {
		start := chunk * conf.concurrency
		end := start + conf.concurrency
		if end > len(ids) {
			end = len(ids)
		}

		if ctx.Err() != nil {
			for i := start; i < len(ids); i++ {
				failed[i] = true
			}
			summary.Failure += len(ids) - start
			break
		}

		report(Running, chunk+1)
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				err := op(ctx, ids[i])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed[i] = true
					summary.Failure++
				} else {
					summary.Success++
				}
				return nil // one failing item never cancels its siblings
			})
		}
		_ = g.Wait()
	}

	for i, f := range failed {
		if f {
			summary.Failed = append(summary.Failed, ids[i])
		}
	}
	report(Settled, chunks)
	c.metrics.ObserveBulkRun(summary)
	return summary
}
