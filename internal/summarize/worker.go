package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

// maxAttempts bounds how often a failing job is retried.
const maxAttempts = 3

// defaultRetryDelay is the wait before a failed job's second attempt; later
// attempts wait proportionally longer.
const defaultRetryDelay = 30 * time.Second

var errUnknownJob = errors.New("unknown job kind")

type ProcessStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Process drains the job queue with the configured number of workers,
// handling at most max jobs (0 means until the queue is empty). Turn jobs
// run before session and event jobs so those see the new turn titles. A
// failed job is queued again after a growing delay until it has been
// attempted maxAttempts times. Only claimed jobs count against max.
func (s *Summarizer) Process(ctx context.Context, max int) (ProcessStats, error) {
	var claimed, processed, failed atomic.Int64

	phases := [][]string{
		{index.JobTurnSummary},
		{index.JobSessionSummary, index.JobEventSummary},
	}
	for _, kinds := range phases {
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < s.cfg.Workers; w++ {
			workerID := fmt.Sprintf("worker-%d-%d", os.Getpid(), w)
			g.Go(func() error {
				for {
					if err := gctx.Err(); err != nil {
						return err
					}
					// reserve a slot before claiming so workers cannot overshoot max
					if max > 0 && claimed.Add(1) > int64(max) {
						claimed.Add(-1)
						return nil
					}

					job, err := s.db.ClaimJob(workerID, kinds...)
					if job == nil && max > 0 {
						claimed.Add(-1)
					}
					if err != nil {
						return err
					}
					if job == nil {
						return nil
					}

					if err := s.runJob(gctx, job); err != nil {
						failed.Add(1)
						retry := job.Attempts < maxAttempts && !errors.Is(err, errUnknownJob)
						s.log.Warn().Err(err).Str("job", job.ID).Str("kind", job.Kind).
							Int("attempt", job.Attempts).Bool("retry", retry).Msg("job failed")
						var ferr error
						if retry {
							ferr = s.db.RetryJob(job.ID, err.Error(), time.Duration(job.Attempts)*s.retryDelay)
						} else {
							ferr = s.db.FailJob(job.ID, err.Error())
						}
						if ferr != nil {
							return ferr
						}
						continue
					}
					if err := s.db.CompleteJob(job.ID); err != nil {
						return err
					}
					processed.Add(1)
				}
			})
		}
		if err := g.Wait(); err != nil {
			return ProcessStats{Processed: int(processed.Load()), Failed: int(failed.Load())}, err
		}
	}

	return ProcessStats{Processed: int(processed.Load()), Failed: int(failed.Load())}, nil
}

func (s *Summarizer) runJob(ctx context.Context, job *index.Job) error {
	switch job.Kind {
	case index.JobTurnSummary:
		var p index.TurnJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		turnID := p.TurnID
		if turnID == "" {
			t, err := s.db.GetTurnByNumber(p.SessionID, p.TurnNumber)
			if err != nil {
				return err
			}
			turnID = t.ID
		}
		_, err := s.SummarizeTurn(ctx, turnID)
		return err

	case index.JobSessionSummary:
		var p index.SessionJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		_, err := s.SummarizeSession(ctx, p.SessionID)
		return err

	case index.JobEventSummary:
		var p EventJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		_, err := s.SummarizeEvent(ctx, p.SessionIDs, p.EventID)
		return err
	}
	return fmt.Errorf("%w: %s", errUnknownJob, job.Kind)
}
