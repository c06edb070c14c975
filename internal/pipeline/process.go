package pipeline

import (
	"context"

	"github.com/jonathan/job-radar/internal/alert"
	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/dedup"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/metrics"
	"github.com/jonathan/job-radar/internal/scoring"
	"github.com/jonathan/job-radar/internal/types"
)

// sourceOutcome is a source's stats plus the counters that only roll up
// into the cycle totals.
type sourceOutcome struct {
	types.SourceStats
	persistFailures int
	alerts          int
}

// process runs one adapter's output through normalize, validate, filter,
// dedup, score, upsert and alert. A failure on one posting never affects the
// others. ctx is checked before every upsert so a shutdown stops writes.
func (o *Orchestrator) process(ctx context.Context, c *cycle, source string, postings []types.RawPosting) sourceOutcome {
	var out sourceOutcome
	out.Found = len(postings)

	prefs := c.cfg.Preferences
	weights := c.cfg.ScoringWeights()
	batch := dedup.NewBatch()
	log := c.logger.WithField("source", source)

	for i := range postings {
		if ctx.Err() != nil {
			break
		}
		p := postings[i]
		p.Source = source
		p.Normalize()

		if err := p.Validate(); err != nil {
			out.Invalid++
			log.WithError(err).WithField("url", p.URL).Debug("dropping invalid posting")
			continue
		}
		if ok, reason := scoring.Filter(&p, &prefs); !ok {
			out.Filtered++
			log.WithFields(logging.Fields{"title": p.Title, "company": p.Company, "reason": reason}).Debug("posting filtered")
			continue
		}

		fp := dedup.Of(&p)
		if !batch.Add(fp) {
			continue
		}

		scored := scoring.Score(scoring.Input{
			Posting:     &p,
			Preferences: prefs,
			Weights:     weights,
			Now:         o.now(),
		})

		res, err := o.store.UpsertPosting(ctx, db.UpsertInput{
			Fingerprint: fp,
			Posting:     p,
			Score:       scored.Score,
			Breakdown:   scored.Contributions(),
		})
		if err != nil {
			out.persistFailures++
			metrics.RecordUpsertFailure()
			log.WithField("fingerprint", fp).WithError(err).Warn("failed to persist posting")
			continue
		}
		if res.WasNew {
			out.New++
		} else {
			out.Updated++
		}

		if o.notifier == nil {
			continue
		}
		sent, err := o.notifier.MaybeNotify(ctx, alert.Candidate{
			Fingerprint: fp,
			Posting:     p,
			Score:       res.Score,
			Breakdown:   scored.Contributions(),
			AlertSent:   res.AlertSent,
		})
		if err != nil {
			log.WithField("fingerprint", fp).WithError(err).Warn("alert dispatch failed")
			continue
		}
		if sent {
			out.alerts++
			o.emit(ProgressEvent{
				Step:    StepAlertSent,
				Source:  source,
				CycleID: c.id,
				Message: p.Title + " at " + p.Company,
				Content: fp,
			})
		}
	}
	return out
}
