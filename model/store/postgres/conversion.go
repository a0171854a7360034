package postgres

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

// FetchConversions Pulls conversions created or updated from sinceTime
// onwards. zero sinceTime returns everything (full recompute).
func (store *Postgres) FetchConversions(projectID int64,
	sinceTime time.Time) ([]model.Conversion, int) {

	db := store.db().Where("project_id = ?", projectID)
	if !sinceTime.IsZero() {
		db = db.Where("updated_at >= ?", sinceTime)
	}

	var conversions []model.Conversion
	if err := db.Order("converted_at, id").Find(&conversions).Error; err != nil {
		log.WithFields(log.Fields{"project_id": projectID}).WithError(err).
			Error("Failed to fetch conversions.")
		return nil, http.StatusInternalServerError
	}

	return conversions, http.StatusFound
}

// GetAllProjectIDs Every project with at least one conversion. Backs the
// runner's all-projects flag.
func (store *Postgres) GetAllProjectIDs() ([]int64, int) {
	var projectIDs []int64
	err := store.db().Table("conversions").
		Order("project_id").
		Pluck("DISTINCT project_id", &projectIDs).Error
	if err != nil {
		log.WithError(err).Error("Failed to get all project ids.")
		return nil, http.StatusInternalServerError
	}
	return projectIDs, http.StatusFound
}

// GetConversionsPendingAttribution Selects conversions needing
// (re)calculation: changed since the watermark, left pending or failed by an
// earlier run, or stuck in processing past the stale cutoff (crashed run
// recovery). Completed conversions outside the watermark are not re-pulled.
func (store *Postgres) GetConversionsPendingAttribution(projectID int64,
	sinceTime time.Time, staleBefore time.Time) ([]model.Conversion, int) {

	logCtx := log.WithFields(log.Fields{"project_id": projectID,
		"since_time": sinceTime, "stale_before": staleBefore})

	db := store.db().
		Table("conversions").
		Joins("LEFT JOIN attribution_runs ON attribution_runs.project_id = conversions.project_id"+
			" AND attribution_runs.conversion_id = conversions.id").
		Where("conversions.project_id = ?", projectID)

	selection := "attribution_runs.conversion_id IS NULL" +
		" OR attribution_runs.status IN (?, ?)" +
		" OR (attribution_runs.status = ? AND attribution_runs.updated_at < ?)"
	selectionArgs := []interface{}{
		model.RunStatusPending, model.RunStatusFailed,
		model.RunStatusProcessing, staleBefore,
	}
	if !sinceTime.IsZero() {
		selection += " OR conversions.updated_at >= ?"
		selectionArgs = append(selectionArgs, sinceTime)
	}

	var conversions []model.Conversion
	err := db.Where(selection, selectionArgs...).
		Order("conversions.converted_at, conversions.id").
		Find(&conversions).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to get conversions pending attribution.")
		return nil, http.StatusInternalServerError
	}

	return conversions, http.StatusFound
}
