package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"judgeflow/internal/judging/executor"
	appErr "judgeflow/pkg/errors"
	"judgeflow/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultMaxDispatchWidth = 16

// DispatchCase is one pending result and the fixture it runs against.
type DispatchCase struct {
	ResultID string
	Stdin    string
	Expected string
}

// DispatchJob fans out every case of one session.
type DispatchJob struct {
	SubmissionID string
	LanguageID   int
	Source       string
	Cases        []DispatchCase
}

// DispatcherConfig configures Dispatcher.
type DispatcherConfig struct {
	Client    executor.Client
	Callbacks CallbackURLs
	// MaxWidth caps concurrent requests per job.
	MaxWidth int
	// Timeout bounds each execution request.
	Timeout time.Duration
}

// Dispatcher sends test cases to the execution service in the background.
type Dispatcher struct {
	client    executor.Client
	callbacks CallbackURLs
	maxWidth  int
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher validates cfg. A non-positive MaxWidth takes the default.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("execution client is required")
	}
	if cfg.Callbacks == nil {
		return nil, fmt.Errorf("callback urls are required")
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = defaultMaxDispatchWidth
	}
	return &Dispatcher{
		client:    cfg.Client,
		callbacks: cfg.Callbacks,
		maxWidth:  cfg.MaxWidth,
		timeout:   cfg.Timeout,
	}, nil
}

// Dispatch starts the fan-out and returns immediately. The work outlives the
// caller's context; only its values are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, job DispatchJob) {
	if len(job.Cases) == 0 {
		return
	}
	ctx = logger.WithSubmission(context.WithoutCancel(ctx), job.SubmissionID)

	width := len(job.Cases)
	if width > d.maxWidth {
		width = d.maxWidth
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// A plain group: one failed case must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(width)
		for _, tc := range job.Cases {
			tc := tc
			g.Go(func() error {
				d.dispatchOne(ctx, job, tc)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every started job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WaitContext waits for in-flight jobs or until ctx is done.
func (d *Dispatcher) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, job DispatchJob, tc DispatchCase) {
	callbackURL, err := d.callbacks.URL(tc.ResultID, job.SubmissionID)
	if err != nil {
		d.logFailure(ctx, tc.ResultID, err)
		return
	}

	ctxExec := withTimeout(ctx, d.timeout)
	defer ctxExec.cancel()
	token, err := d.client.Submit(ctxExec.ctx, executor.ExecutionRequest{
		SourceCode:     job.Source,
		LanguageID:     job.LanguageID,
		Stdin:          tc.Stdin,
		ExpectedOutput: tc.Expected,
		CallbackURL:    callbackURL,
	})
	if err != nil {
		d.logFailure(ctx, tc.ResultID, err)
		return
	}
	logger.Debug(ctx, "test case dispatched",
		zap.String("result_id", tc.ResultID),
		zap.String("execution_token", token),
	)
}

func (d *Dispatcher) logFailure(ctx context.Context, resultID string, err error) {
	logger.Error(ctx, "dispatch test case failed",
		zap.Int("code", int(appErr.DispatchFailed)),
		zap.String("result_id", resultID),
		zap.Error(err),
	)
}
