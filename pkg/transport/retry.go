package transport

import (
	"context"
	"time"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bft-labs/mutbatch/pkg/log"
)

// RetryPolicy bounds the per-entry retry loop shared by the adapters.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: DefaultBackoffInitial,
		MaxBackoff:     DefaultBackoffMax,
	}
}

// IsRetryable reports whether an entry or stream failing with code may
// succeed when sent again.
func IsRetryable(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}

// attemptFunc sends entries once and calls report for every response chunk.
// Response indices are positions in entries.
type attemptFunc func(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, report func([]*bigtablepb.MutateRowsResponse_Entry)) error

var errNoStatus = status.Error(codes.Internal, "no status returned for mutation")

// bulkApply drives attempts until every entry is resolved or retries stop.
func bulkApply(
	ctx context.Context,
	name string,
	policy RetryPolicy,
	logger log.Logger,
	entries []*bigtablepb.MutateRowsRequest_Entry,
	cb Callbacks,
	attempt attemptFunc,
) {
	cb = cb.withDefaults()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	remaining := make([]int, len(entries))
	for i := range remaining {
		remaining[i] = i
	}
	lastErr := make(map[int]error)
	bo := newBackoff(policy.InitialBackoff, policy.MaxBackoff)

	for n := 1; ; n++ {
		sent := make([]*bigtablepb.MutateRowsRequest_Entry, len(remaining))
		for pos, idx := range remaining {
			sent[pos] = entries[idx]
		}
		resolved := make([]bool, len(remaining))

		err := attempt(ctx, sent, func(chunk []*bigtablepb.MutateRowsResponse_Entry) {
			var ok []int
			var failed []FailedMutation
			for _, e := range chunk {
				pos := int(e.GetIndex())
				if pos < 0 || pos >= len(remaining) || resolved[pos] {
					continue
				}
				idx := remaining[pos]
				code := codes.Code(e.GetStatus().GetCode())
				switch {
				case code == codes.OK:
					resolved[pos] = true
					ok = append(ok, idx)
				case IsRetryable(code):
					lastErr[idx] = status.ErrorProto(e.GetStatus())
				default:
					resolved[pos] = true
					failed = append(failed, FailedMutation{Index: idx, Err: status.ErrorProto(e.GetStatus())})
				}
			}
			if len(ok) > 0 {
				entriesTotal.WithLabelValues("success").Add(float64(len(ok)))
				cb.OnSuccess(ok)
			}
			if len(failed) > 0 {
				entriesTotal.WithLabelValues("failure").Add(float64(len(failed)))
				cb.OnFailure(failed)
			}
		})

		result := "ok"
		if err != nil {
			result = status.Code(err).String()
		}
		attemptsTotal.WithLabelValues(name, result).Inc()
		cb.OnAttemptFinished(err)

		next := make([]int, 0, len(remaining))
		for pos, idx := range remaining {
			if resolved[pos] {
				continue
			}
			if err != nil {
				lastErr[idx] = err
			} else if lastErr[idx] == nil {
				lastErr[idx] = errNoStatus
			}
			next = append(next, idx)
		}
		if len(next) == 0 {
			return
		}

		finalErr := err
		stop := n >= policy.MaxAttempts || (err != nil && !IsRetryable(status.Code(err)))
		if !stop {
			logger.Debug("retrying unresolved mutations",
				log.String("transport", name),
				log.Int("attempt", n),
				log.Int("remaining", len(next)),
				log.Duration("backoff", bo.Current()),
			)
			retriedEntriesTotal.Add(float64(len(next)))
			if sleepErr := bo.Sleep(ctx); sleepErr != nil {
				stop = true
				finalErr = status.FromContextError(sleepErr).Err()
				for _, idx := range next {
					lastErr[idx] = finalErr
				}
			}
		}
		if stop {
			failed := make([]FailedMutation, len(next))
			for i, idx := range next {
				failed[i] = FailedMutation{Index: idx, Err: lastErr[idx]}
			}
			if finalErr == nil {
				finalErr = failed[0].Err
			}
			entriesTotal.WithLabelValues("terminal").Add(float64(len(failed)))
			logger.Warn("giving up on mutations",
				log.String("transport", name),
				log.Int("attempts", n),
				log.Int("failed", len(failed)),
				log.Err(failed[0].Err),
			)
			cb.OnTerminalFailure(failed, finalErr)
			return
		}
		remaining = next
	}
}
