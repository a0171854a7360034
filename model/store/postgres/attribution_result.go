package postgres

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

// ReplaceAttributionResults Swaps all result rows of one conversion inside a
// single transaction: delete everything for the conversion, insert the new
// rows, commit. Either the whole (model, window) set lands or none of it
// does, so reprocessing after settings changes never leaves stale partial
// journeys behind. Returns the replaced rows.
func (store *Postgres) ReplaceAttributionResults(projectID int64,
	conversionID string, results []model.AttributionResult) ([]model.AttributionResult, int) {

	logCtx := log.WithFields(log.Fields{"project_id": projectID,
		"conversion_id": conversionID, "result_rows": len(results)})

	dbTx := store.db().Begin()
	if dbTx.Error != nil {
		logCtx.WithError(dbTx.Error).Error("Failed to begin results transaction.")
		return nil, http.StatusInternalServerError
	}

	var replaced []model.AttributionResult
	err := dbTx.Set("gorm:query_option", "FOR UPDATE").
		Where("project_id = ? AND conversion_id = ?", projectID, conversionID).
		Find(&replaced).Error
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to read existing attribution results.")
		return nil, http.StatusInternalServerError
	}

	err = dbTx.Where("project_id = ? AND conversion_id = ?",
		projectID, conversionID).Delete(&model.AttributionResult{}).Error
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to delete existing attribution results.")
		return nil, http.StatusInternalServerError
	}

	for i := range results {
		if results[i].ProjectID != projectID || results[i].ConversionID != conversionID {
			dbTx.Rollback()
			logCtx.Error("Result row does not belong to conversion. Aborted replace.")
			return nil, http.StatusBadRequest
		}
		if err := dbTx.Create(&results[i]).Error; err != nil {
			dbTx.Rollback()
			logCtx.WithError(err).Error("Failed to insert attribution result.")
			return nil, http.StatusInternalServerError
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit attribution results.")
		return nil, http.StatusInternalServerError
	}

	return replaced, http.StatusCreated
}

// GetAttributionResultsForRange Reads result rows whose conversion happened
// inside [from, to). Feeds rollup aggregation and reconciliation rebuilds.
func (store *Postgres) GetAttributionResultsForRange(projectID int64,
	from, to time.Time) ([]model.AttributionResult, int) {

	var results []model.AttributionResult
	err := store.db().
		Where("project_id = ? AND converted_at >= ? AND converted_at < ?",
			projectID, from, to).
		Order(`converted_at, conversion_id, model, "window", touchpoint_position`).
		Find(&results).Error
	if err != nil {
		log.WithFields(log.Fields{"project_id": projectID, "from": from, "to": to}).
			WithError(err).Error("Failed to get attribution results for range.")
		return nil, http.StatusInternalServerError
	}

	return results, http.StatusFound
}
