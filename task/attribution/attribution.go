package attribution

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	cacheRedis "revtrace/cache/redis"
	C "revtrace/config"
	"revtrace/metrics"
	"revtrace/model/model"
	"revtrace/model/store"
	U "revtrace/util"
)

const (
	runLockPrefix     = "attribution:run_lock"
	lastRunPrefix     = "attribution:last_run"
	runLockExpirySecs = 3600

	retryBackoff = 200 * time.Millisecond
)

// ErrRunInProgress Another run holds the project's lock. Scheduled and
// on-demand runs never interleave on one project.
var ErrRunInProgress = errors.New("attribution run already in progress for project")

// ResolveProjectIDs Expands a runner's project selection: the explicit ids as
// given, or every project known to the store when allProjects is set. Skipped
// ids are removed in both cases.
func ResolveProjectIDs(st store.Store, allProjects bool, explicit []int64,
	skip map[int64]bool) ([]int64, error) {

	ids := explicit
	if allProjects {
		var errCode int
		ids, errCode = st.GetAllProjectIDs()
		if errCode != http.StatusFound {
			return nil, errors.New("failed to list projects from store")
		}
	}

	resolved := make([]int64, 0, len(ids))
	for _, id := range ids {
		if skip[id] {
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

// RunBatch Attributes every conversion of the project needing
// (re)calculation since sinceTimestamp (0 = everything). Conversions are
// processed by a bounded pool of workers, each conversion claimed,
// calculated, committed and marked independently. Cancellation via ctx is
// cooperative and checked between conversions; a cancelled run leaves no
// partially written conversion behind.
func RunBatch(ctx context.Context, st store.Store, projectID int64,
	sinceTimestamp int64) (*model.RunSummary, error) {

	runID := xid.New().String()
	summary := &model.RunSummary{RunID: runID, ProjectID: projectID}
	logCtx := log.WithFields(log.Fields{"project_id": projectID, "run_id": runID,
		"since_timestamp": sinceTimestamp})

	runStartTime := U.TimeNowZ()

	acquired, err := acquireRunLock(projectID, runID)
	if err != nil {
		return summary, errors.Wrap(err, "failed to acquire attribution run lock")
	}
	if !acquired {
		return summary, ErrRunInProgress
	}
	defer releaseRunLock(projectID, runID)

	settings, errCode := st.GetAttributionSettings(projectID)
	if errCode != http.StatusFound {
		return summary, errors.New("failed to get attribution settings for run")
	}
	// Config errors abort the whole run before any result row is written.
	if err := settings.Validate(); err != nil {
		return summary, err
	}

	var sinceTime time.Time
	if sinceTimestamp > 0 {
		sinceTime = time.Unix(sinceTimestamp, 0).UTC()
	}
	staleBefore := U.TimeNowZ().Add(-time.Duration(C.GetProcessingStaleSecs()) * time.Second)

	conversions, errCode := st.GetConversionsPendingAttribution(projectID, sinceTime, staleBefore)
	if errCode != http.StatusFound {
		return summary, errors.New("failed to select conversions pending attribution")
	}
	if len(conversions) == 0 {
		logCtx.Info("No conversions pending attribution.")
		setLastRunTimestamp(projectID, runStartTime.Unix())
		return summary, nil
	}

	if C.GetAttributionDebug() == 1 {
		logCtx.WithField("no_of_conversions", len(conversions)).Info("Selected conversions for attribution.")
	}

	rollup := newRollupAccumulator()
	routineLimit := U.MinInt(len(conversions), C.AllowedConversionRoutines())

	cancelled := false
	for start := 0; start < len(conversions); start += routineLimit {
		// Cooperative cancellation at the conversion boundary. Conversions
		// already committed stay committed, nothing is half written.
		if ctx.Err() != nil {
			logCtx.WithError(ctx.Err()).Warn("Attribution run cancelled. Stopping before next batch of conversions.")
			cancelled = true
			break
		}

		end := U.MinInt(start+routineLimit, len(conversions))
		var waitGroup sync.WaitGroup
		waitGroup.Add(end - start)
		for i := start; i < end; i++ {
			go processConversion(st, settings, conversions[i], runID, staleBefore,
				summary, rollup, &waitGroup)
		}
		waitGroup.Wait()
	}

	applyRollupDeltas(st, projectID, rollup, logCtx)

	if !cancelled {
		setLastRunTimestamp(projectID, runStartTime.Unix())
	}

	metrics.RecordLatency(metrics.LatencyAttributionRun,
		float64(time.Since(runStartTime).Milliseconds()))
	logCtx.WithFields(log.Fields{"processed": summary.Processed, "skipped": summary.Skipped,
		"failed": summary.Failed, "result_rows": summary.ResultRows}).Info("Attribution run finished.")

	return summary, nil
}

// RunFullRecompute Recalculates the whole project from scratch, as triggered
// after settings changes. Every conversion is reset to pending and the batch
// runs with an unbounded working set.
func RunFullRecompute(ctx context.Context, st store.Store, projectID int64) (*model.RunSummary, error) {
	if errCode := st.ResetAttributionRuns(projectID); errCode != http.StatusAccepted {
		return nil, errors.New("failed to reset attribution runs for full recompute")
	}
	return RunBatch(ctx, st, projectID, 0)
}

// processConversion One worker unit: claim, build, calculate, commit, mark.
// Transient store failures are retried with doubling backoff; exhausted
// retries fail the conversion for this run only, the next scheduled run
// picks it up again.
func processConversion(st store.Store, settings *model.AttributionSettings,
	conversion model.Conversion, runID string, staleBefore time.Time,
	summary *model.RunSummary, rollup *rollupAccumulator, waitGroup *sync.WaitGroup) {

	defer waitGroup.Done()

	logCtx := log.WithFields(log.Fields{"project_id": conversion.ProjectID,
		"conversion_id": conversion.ID, "run_id": runID})
	conversionStartTime := time.Now()

	errCode := st.ClaimConversionForProcessing(conversion.ProjectID, conversion.ID,
		runID, staleBefore)
	if errCode == http.StatusConflict {
		summary.AddSkipped()
		metrics.Increment(metrics.IncrAttributionConversionsSkipped)
		return
	}
	if errCode != http.StatusAccepted {
		summary.AddFailed()
		metrics.Increment(metrics.IncrAttributionConversionsFailed)
		return
	}

	if err := conversion.Validate(); err != nil {
		logCtx.WithError(err).Warn("Skipped malformed conversion.")
		st.MarkConversionRunStatus(conversion.ProjectID, conversion.ID, runID, model.RunStatusFailed)
		summary.AddSkipped()
		metrics.Increment(metrics.IncrAttributionConversionsSkipped)
		return
	}

	fetchSince := touchpointFetchStart(settings, conversion.ConvertedAt)
	identity := model.IdentityKeysForConversion(&conversion)

	var results, replaced []model.AttributionResult
	committed := false
	backoff := retryBackoff
	for attempt := 0; attempt < C.GetStoreRetryCount(); attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		candidates, errCode := st.FetchTouchpoints(conversion.ProjectID, identity, fetchSince)
		if errCode == http.StatusBadRequest {
			// No linking keys on the conversion. Empty journey, zero rows.
			candidates = nil
		} else if errCode != http.StatusFound {
			continue
		}

		var err error
		results, err = model.CalculateAttribution(&conversion, candidates, settings, U.TimeNowZ())
		if err != nil {
			// Not transient. Validation failures skip the record, anything
			// else fails it for this run.
			logCtx.WithError(err).Warn("Attribution calculation rejected conversion.")
			st.MarkConversionRunStatus(conversion.ProjectID, conversion.ID, runID, model.RunStatusFailed)
			if model.IsValidationError(err) {
				summary.AddSkipped()
				metrics.Increment(metrics.IncrAttributionConversionsSkipped)
			} else {
				summary.AddFailed()
				metrics.Increment(metrics.IncrAttributionConversionsFailed)
			}
			return
		}

		replaced, errCode = st.ReplaceAttributionResults(conversion.ProjectID, conversion.ID, results)
		if errCode != http.StatusCreated {
			continue
		}
		committed = true
		break
	}

	if !committed {
		logCtx.Error("Failed to commit attribution results after retries. Conversion marked failed.")
		st.MarkConversionRunStatus(conversion.ProjectID, conversion.ID, runID, model.RunStatusFailed)
		summary.AddFailed()
		metrics.Increment(metrics.IncrAttributionConversionsFailed)
		return
	}

	rollup.addReplacement(results, replaced)

	errCode = st.MarkConversionRunStatus(conversion.ProjectID, conversion.ID, runID, model.RunStatusCompleted)
	if errCode != http.StatusAccepted {
		// Results are committed; the row is reclaimed as stale by a later
		// run and replaced idempotently.
		logCtx.Error("Failed to mark conversion completed after commit.")
	}

	summary.AddProcessed(len(results))
	metrics.Increment(metrics.IncrAttributionConversionsProcessed)
	metrics.CountInt(metrics.CountAttributionResultRowsWritten, int64(len(results)))
	metrics.RecordLatency(metrics.LatencyAttributionConversion,
		float64(time.Since(conversionStartTime).Milliseconds()))
}

// touchpointFetchStart The earliest touchpoint time any enabled window can
// use. Zero time when ltv is enabled (unbounded lookback).
func touchpointFetchStart(settings *model.AttributionSettings, convertedAt time.Time) time.Time {
	var maxLookback time.Duration
	for _, window := range settings.EnabledWindows {
		lookback, unbounded, found := model.GetWindowLookback(window)
		if !found {
			continue
		}
		if unbounded {
			return time.Time{}
		}
		if lookback > maxLookback {
			maxLookback = lookback
		}
	}
	return convertedAt.Add(-maxLookback)
}

// rollupAccumulator Collects signed summary deltas across workers: plus the
// rows written, minus the rows replaced. Applying the accumulated deltas
// keeps channel summaries exact under reprocessing without a full rebuild.
type rollupAccumulator struct {
	lock   sync.Mutex
	deltas map[model.ChannelSummaryKey]*model.ChannelSummaryDelta
}

func newRollupAccumulator() *rollupAccumulator {
	return &rollupAccumulator{deltas: make(map[model.ChannelSummaryKey]*model.ChannelSummaryDelta)}
}

func (acc *rollupAccumulator) addReplacement(written, replaced []model.AttributionResult) {
	acc.lock.Lock()
	defer acc.lock.Unlock()

	for _, delta := range model.AggregateResults(written) {
		acc.add(delta, 1)
	}
	for _, delta := range model.AggregateResults(replaced) {
		acc.add(delta, -1)
	}
}

func (acc *rollupAccumulator) add(delta model.ChannelSummaryDelta, sign int64) {
	entry, exists := acc.deltas[delta.Key]
	if !exists {
		entry = &model.ChannelSummaryDelta{Key: delta.Key}
		acc.deltas[delta.Key] = entry
	}
	entry.Touchpoints += sign * delta.Touchpoints
	entry.Conversions += sign * delta.Conversions
	entry.RevenueCents += sign * delta.RevenueCents
}

func applyRollupDeltas(st store.Store, projectID int64, rollup *rollupAccumulator,
	logCtx *log.Entry) {

	rollup.lock.Lock()
	defer rollup.lock.Unlock()

	updated := 0
	for _, delta := range rollup.deltas {
		if delta.Touchpoints == 0 && delta.Conversions == 0 && delta.RevenueCents == 0 {
			continue
		}
		if errCode := st.UpsertChannelSummary(projectID, *delta); errCode != http.StatusAccepted {
			logCtx.WithField("key", delta.Key).Error("Failed to upsert channel summary. Rebuild the day to reconcile.")
			continue
		}
		updated++
	}

	if updated > 0 {
		metrics.CountInt(metrics.CountAttributionRollupRowsUpdated, int64(updated))
	}
}

// GetLastRunTimestamp The watermark of the project's last completed run,
// 0 when never ran.
func GetLastRunTimestamp(projectID int64) int64 {
	key, err := cacheRedis.NewKey(projectID, lastRunPrefix, "")
	if err != nil {
		return 0
	}
	value, err := cacheRedis.Get(key)
	if err != nil {
		return 0
	}
	timestamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return timestamp
}

func setLastRunTimestamp(projectID int64, timestamp int64) {
	key, err := cacheRedis.NewKey(projectID, lastRunPrefix, "")
	if err != nil {
		return
	}
	if err := cacheRedis.Set(key, strconv.FormatInt(timestamp, 10), 0); err != nil {
		log.WithFields(log.Fields{"project_id": projectID}).WithError(err).
			Error("Failed to set attribution last run timestamp.")
	}
}

func acquireRunLock(projectID int64, runID string) (bool, error) {
	key, err := cacheRedis.NewKey(projectID, runLockPrefix, "")
	if err != nil {
		return false, err
	}
	return cacheRedis.SetNX(key, runID, runLockExpirySecs)
}

// releaseRunLock Releases the project's lock only while this run still holds
// it. An unconditional delete could remove a newer run's lock after the
// expiry reclaimed ours.
func releaseRunLock(projectID int64, runID string) {
	key, err := cacheRedis.NewKey(projectID, runLockPrefix, "")
	if err != nil {
		return
	}
	released, err := cacheRedis.DelIfEqual(key, runID)
	if err != nil {
		log.WithFields(log.Fields{"project_id": projectID, "run_id": runID}).WithError(err).
			Error("Failed to release attribution run lock.")
		return
	}
	if !released {
		log.WithFields(log.Fields{"project_id": projectID, "run_id": runID}).
			Warn("Attribution run lock already held by another run. Not released.")
	}
}
