// Package jobs holds the out-of-band maintenance work run by the scheduler:
// ledger reconciliation, promotion expiry and metadata key rotation.
package jobs

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"credit-ledger/internal/repository"
)

// Reconciler compares balances with ledger sums.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]repository.Mismatch, error)
}

// Reencrypter rewrites sealed ledger metadata to the active key.
type Reencrypter interface {
	ReencryptBatch(ctx context.Context, fromKeyID string, batchSize int) (int, error)
}

// PromotionExpirer ends promotions whose end time has passed.
type PromotionExpirer interface {
	ExpirePromotions(ctx context.Context, now time.Time) (int64, error)
}

// Options configures a Runner.
type Options struct {
	// Timeout bounds a single job run. Zero means one minute.
	Timeout time.Duration

	// ActiveKeyID and KeyIDs drive re-encryption: every key id other than the
	// active one, plus the unsealed "" id, is rotated away from.
	ActiveKeyID        string
	KeyIDs             []string
	ReencryptBatchSize int
	// MaxReencryptBatches caps the batches per key in one run. Zero means 100.
	MaxReencryptBatches int
}

// Runner coordinates all scheduled jobs.
type Runner struct {
	reconciler  Reconciler
	reencrypter Reencrypter
	expirer     PromotionExpirer
	opts        Options
	now         func() time.Time
}

// NewRunner creates a new job runner.
func NewRunner(reconciler Reconciler, reencrypter Reencrypter, expirer PromotionExpirer, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.MaxReencryptBatches <= 0 {
		opts.MaxReencryptBatches = 100
	}
	return &Runner{
		reconciler:  reconciler,
		reencrypter: reencrypter,
		expirer:     expirer,
		opts:        opts,
		now:         time.Now,
	}
}

// runWithRecovery wraps job execution with a timeout and panic recovery.
func (r *Runner) runWithRecovery(job string, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("job", job).Interface("panic", rec).Msg("Job panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()

	start := r.now()
	log.Debug().Str("job", job).Msg("Starting job")

	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("job", job).Msg("Job failed")
		return
	}

	log.Debug().Str("job", job).Dur("took", r.now().Sub(start)).Msg("Job completed")
}

// Reconcile checks every account against its ledger. Mismatches are logged
// by the reconciler itself; the job only summarizes.
func (r *Runner) Reconcile() {
	r.runWithRecovery("reconcile", func(ctx context.Context) error {
		mismatches, err := r.reconciler.Reconcile(ctx)
		if err != nil {
			return err
		}
		if len(mismatches) > 0 {
			log.Warn().Str("job", "reconcile").Int("mismatches", len(mismatches)).Msg("Ledger reconciliation found drift")
			return nil
		}
		log.Info().Str("job", "reconcile").Msg("Ledger reconciled")
		return nil
	})
}

// ExpirePromotions ends every active promotion past its end time.
func (r *Runner) ExpirePromotions() {
	r.runWithRecovery("expire_promotions", func(ctx context.Context) error {
		_, err := r.expirer.ExpirePromotions(ctx, r.now())
		return err
	})
}

// Reencrypt moves sealed metadata off retired keys.
func (r *Runner) Reencrypt() {
	r.runWithRecovery("reencrypt", func(ctx context.Context) error {
		for _, from := range r.retiredKeys() {
			total, err := r.drain(ctx, from)
			if total > 0 {
				log.Info().Str("job", "reencrypt").Str("from_key_id", from).Int("entries", total).Msg("Key rotation progressed")
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Runner) drain(ctx context.Context, from string) (int, error) {
	total := 0
	for i := 0; i < r.opts.MaxReencryptBatches; i++ {
		n, err := r.reencrypter.ReencryptBatch(ctx, from, r.opts.ReencryptBatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.opts.ReencryptBatchSize || n == 0 {
			break
		}
	}
	return total, nil
}

// retiredKeys lists the key ids to rotate away from, in a stable order.
func (r *Runner) retiredKeys() []string {
	if r.opts.ActiveKeyID == "" || r.opts.ReencryptBatchSize <= 0 {
		return nil
	}

	keys := []string{""}
	for _, id := range r.opts.KeyIDs {
		if id != r.opts.ActiveKeyID && id != "" {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}

// RunAll runs every job once, in order (for manual execution).
func (r *Runner) RunAll() {
	r.ExpirePromotions()
	r.Reencrypt()
	r.Reconcile()
}
