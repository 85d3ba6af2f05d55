// Package runner analyzes a set of captured trace files. Runs are
// independent of each other, so traces are loaded and evaluated
// concurrently up to the configured limit, with results collected in a
// concurrent registry keyed by trace path.
package runner

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"traceidle/internal/analysis"
	"traceidle/internal/config"
	"traceidle/internal/logger"
	"traceidle/internal/maps"
	"traceidle/internal/trace"
)

// Result is the outcome of analyzing one trace file.
type Result struct {
	Path  string
	Trace *trace.Trace
	Eval  *analysis.Evaluation
}

// Runner loads and evaluates trace files.
type Runner struct {
	cfg     *config.AppConfig
	results maps.ConcurrentMap[string, *Result]
	log     log.Logger
}

// New creates a runner for the given configuration.
func New(cfg *config.AppConfig) *Runner {
	return &Runner{
		cfg:     cfg,
		results: maps.New[string, *Result](),
		log:     logger.NewLoggerCtx("runner"),
	}
}

// Run analyzes every trace file, bounded by the configured concurrency.
// The first fatal error cancels the remaining work and is returned; a
// fatal analysis error means the trace is malformed, so there are no
// partial results for it.
func (r *Runner) Run(ctx context.Context, paths []string) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.Runner.Concurrency)

	for _, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.analyze(path)
			if err != nil {
				return err
			}
			r.results.Store(path, res)
			return nil
		})
	}
	return group.Wait()
}

func (r *Runner) analyze(path string) (*Result, error) {
	trc, err := trace.Load(path)
	if err != nil {
		return nil, err
	}

	eval, err := analysis.NewEvaluation(trc, analysis.Options{
		Classifier: &analysis.NameClassifier{
			LaunchNames:      r.cfg.Analysis.LaunchNames,
			KernelDeviceType: "cuda",
			KernelExcludes:   r.cfg.Analysis.KernelExcludes,
		},
		DrainThreshold: r.cfg.Analysis.DrainThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze trace %s: %w", path, err)
	}

	r.log.Info().
		Str("trace", path).
		Int("host_events", eval.HostEventCount()).
		Int64("total_idle_ns", eval.TotalIdleTimeNs()).
		Int32("max_queue_depth", eval.MaxQueueDepth()).
		Msg("Trace analyzed")
	return &Result{Path: path, Trace: trc, Eval: eval}, nil
}

// Result returns the analysis result for one trace path.
func (r *Runner) Result(path string) (*Result, bool) {
	return r.results.Load(path)
}

// Range visits every collected result.
func (r *Runner) Range(f func(path string, res *Result) bool) {
	r.results.Range(f)
}
