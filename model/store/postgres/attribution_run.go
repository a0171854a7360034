package postgres

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

// ClaimConversionForProcessing Moves one conversion's run row to processing
// on behalf of runID. Creates the row when missing. A row already in
// processing is only taken over when stale (its owner crashed); otherwise
// the claim is refused so two runs never process the same conversion.
func (store *Postgres) ClaimConversionForProcessing(projectID int64,
	conversionID, runID string, staleBefore time.Time) int {

	logCtx := log.WithFields(log.Fields{"project_id": projectID,
		"conversion_id": conversionID, "run_id": runID})

	db := store.db().Exec(`INSERT INTO attribution_runs
		(project_id, conversion_id, status, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, now(), now())
		ON CONFLICT (project_id, conversion_id) DO UPDATE SET
		 status = excluded.status,
		 run_id = excluded.run_id,
		 updated_at = now()
		WHERE attribution_runs.status <> ?
		 OR attribution_runs.updated_at < ?`,
		projectID, conversionID, model.RunStatusProcessing, runID,
		model.RunStatusProcessing, staleBefore)
	if db.Error != nil {
		logCtx.WithError(db.Error).Error("Failed to claim conversion for processing.")
		return http.StatusInternalServerError
	}

	if db.RowsAffected == 0 {
		// Held by a live run.
		return http.StatusConflict
	}
	return http.StatusAccepted
}

// MarkConversionRunStatus Completes or fails a claimed conversion. Only the
// owning run may move the row.
func (store *Postgres) MarkConversionRunStatus(projectID int64,
	conversionID, runID, status string) int {

	logCtx := log.WithFields(log.Fields{"project_id": projectID,
		"conversion_id": conversionID, "run_id": runID, "status": status})

	if status != model.RunStatusCompleted && status != model.RunStatusFailed {
		return http.StatusBadRequest
	}

	db := store.db().Exec(`UPDATE attribution_runs
		SET status = ?, updated_at = now()
		WHERE project_id = ? AND conversion_id = ? AND run_id = ?`,
		status, projectID, conversionID, runID)
	if db.Error != nil {
		logCtx.WithError(db.Error).Error("Failed to mark conversion run status.")
		return http.StatusInternalServerError
	}
	if db.RowsAffected == 0 {
		return http.StatusNotFound
	}
	return http.StatusAccepted
}

// ResetAttributionRuns Marks every conversion of the project pending.
// Used for full recomputes after settings changes.
func (store *Postgres) ResetAttributionRuns(projectID int64) int {
	err := store.db().Exec(`UPDATE attribution_runs SET status = ?, updated_at = now()
		WHERE project_id = ?`, model.RunStatusPending, projectID).Error
	if err != nil {
		log.WithFields(log.Fields{"project_id": projectID}).WithError(err).
			Error("Failed to reset attribution runs.")
		return http.StatusInternalServerError
	}
	return http.StatusAccepted
}
