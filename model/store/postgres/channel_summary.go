package postgres

import (
	"net/http"
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

func summaryWhere(db *gorm.DB, projectID int64, key model.ChannelSummaryKey) *gorm.DB {
	// "window" is a reserved word on postgres, keep it quoted.
	return db.Where(`project_id = ? AND date = ? AND model = ? AND "window" = ?`+
		" AND channel = ? AND platform = ?",
		projectID, key.Date, key.Model, key.Window, key.Channel, key.Platform)
}

// summaryUpdateColumns Non-key columns as an explicit update map. An UPDATE
// through gorm's Save would run the create callbacks here since the summary
// key is composite; Updates with named columns always issues an UPDATE.
func summaryUpdateColumns(summary *model.ChannelSummary) map[string]interface{} {
	return map[string]interface{}{
		"touchpoints":     summary.Touchpoints,
		"conversions":     summary.Conversions,
		"revenue_cents":   summary.RevenueCents,
		"spend_cents":     summary.SpendCents,
		"roas":            summary.ROAS,
		"cpa_cents":       summary.CPACents,
		"conversion_rate": summary.ConversionRate,
		"updated_at":      summary.UpdatedAt,
	}
}

// UpsertChannelSummary Applies one aggregation delta to its rollup row and
// recomputes the derived metrics. The row is locked for the read-modify-write.
func (store *Postgres) UpsertChannelSummary(projectID int64,
	delta model.ChannelSummaryDelta) int {

	logCtx := log.WithFields(log.Fields{"project_id": projectID, "key": delta.Key})

	dbTx := store.db().Begin()
	if dbTx.Error != nil {
		logCtx.WithError(dbTx.Error).Error("Failed to begin summary transaction.")
		return http.StatusInternalServerError
	}

	var summary model.ChannelSummary
	err := summaryWhere(dbTx.Set("gorm:query_option", "FOR UPDATE"), projectID, delta.Key).
		Take(&summary).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to read channel summary.")
		return http.StatusInternalServerError
	}

	isNew := gorm.IsRecordNotFoundError(err)
	if isNew {
		summary = model.ChannelSummary{
			ProjectID: projectID,
			Date:      delta.Key.Date,
			Model:     delta.Key.Model,
			Window:    delta.Key.Window,
			Channel:   delta.Key.Channel,
			Platform:  delta.Key.Platform,
		}
	}

	summary.Touchpoints += delta.Touchpoints
	summary.Conversions += delta.Conversions
	summary.RevenueCents += delta.RevenueCents
	summary.ComputeDerivedMetrics()
	summary.UpdatedAt = time.Now().UTC()

	if isNew {
		summary.CreatedAt = summary.UpdatedAt
		err = dbTx.Create(&summary).Error
	} else {
		err = summaryWhere(dbTx, projectID, delta.Key).
			Model(&model.ChannelSummary{}).Updates(summaryUpdateColumns(&summary)).Error
	}
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to write channel summary.")
		return http.StatusInternalServerError
	}

	if err := dbTx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit channel summary.")
		return http.StatusInternalServerError
	}
	return http.StatusAccepted
}

// SetChannelSpend Records externally synced ad spend on a rollup row and
// refreshes ROAS/CPA. Spend may land before any attribution results do.
func (store *Postgres) SetChannelSpend(projectID int64,
	key model.ChannelSummaryKey, spendCents int64) int {

	logCtx := log.WithFields(log.Fields{"project_id": projectID, "key": key})

	dbTx := store.db().Begin()
	if dbTx.Error != nil {
		logCtx.WithError(dbTx.Error).Error("Failed to begin spend transaction.")
		return http.StatusInternalServerError
	}

	var summary model.ChannelSummary
	err := summaryWhere(dbTx.Set("gorm:query_option", "FOR UPDATE"), projectID, key).
		Take(&summary).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to read channel summary for spend.")
		return http.StatusInternalServerError
	}

	isNew := gorm.IsRecordNotFoundError(err)
	if isNew {
		summary = model.ChannelSummary{
			ProjectID: projectID,
			Date:      key.Date,
			Model:     key.Model,
			Window:    key.Window,
			Channel:   key.Channel,
			Platform:  key.Platform,
		}
	}

	summary.SpendCents = spendCents
	summary.ComputeDerivedMetrics()
	summary.UpdatedAt = time.Now().UTC()

	if isNew {
		summary.CreatedAt = summary.UpdatedAt
		err = dbTx.Create(&summary).Error
	} else {
		err = summaryWhere(dbTx, projectID, key).
			Model(&model.ChannelSummary{}).Updates(summaryUpdateColumns(&summary)).Error
	}
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to write channel spend.")
		return http.StatusInternalServerError
	}

	if err := dbTx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit channel spend.")
		return http.StatusInternalServerError
	}
	return http.StatusAccepted
}

// RebuildChannelSummaries Recomputes every rollup row of the date range from
// result rows, for reconciliation. Externally supplied spend survives the
// rebuild; everything else is derived data and replaced.
func (store *Postgres) RebuildChannelSummaries(projectID int64, from, to time.Time) int {
	logCtx := log.WithFields(log.Fields{"project_id": projectID, "from": from, "to": to})

	results, errCode := store.GetAttributionResultsForRange(projectID, from, to)
	if errCode != http.StatusFound {
		return errCode
	}
	deltas := model.AggregateResults(results)

	dbTx := store.db().Begin()
	if dbTx.Error != nil {
		logCtx.WithError(dbTx.Error).Error("Failed to begin rebuild transaction.")
		return http.StatusInternalServerError
	}

	var existing []model.ChannelSummary
	err := dbTx.Set("gorm:query_option", "FOR UPDATE").
		Where("project_id = ? AND date >= ? AND date < ?", projectID, from, to).
		Find(&existing).Error
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to read existing summaries for rebuild.")
		return http.StatusInternalServerError
	}

	spendByKey := make(map[model.ChannelSummaryKey]int64, len(existing))
	for i := range existing {
		key := model.ChannelSummaryKey{Date: existing[i].Date, Model: existing[i].Model,
			Window: existing[i].Window, Channel: existing[i].Channel, Platform: existing[i].Platform}
		spendByKey[key] = existing[i].SpendCents
	}

	err = dbTx.Where("project_id = ? AND date >= ? AND date < ?", projectID, from, to).
		Delete(&model.ChannelSummary{}).Error
	if err != nil {
		dbTx.Rollback()
		logCtx.WithError(err).Error("Failed to delete summaries for rebuild.")
		return http.StatusInternalServerError
	}

	rebuiltAt := time.Now().UTC()
	rebuiltKeys := make(map[model.ChannelSummaryKey]bool, len(deltas))
	for _, delta := range deltas {
		rebuiltKeys[delta.Key] = true
		summary := model.ChannelSummary{
			ProjectID:    projectID,
			Date:         delta.Key.Date,
			Model:        delta.Key.Model,
			Window:       delta.Key.Window,
			Channel:      delta.Key.Channel,
			Platform:     delta.Key.Platform,
			Touchpoints:  delta.Touchpoints,
			Conversions:  delta.Conversions,
			RevenueCents: delta.RevenueCents,
			SpendCents:   spendByKey[delta.Key],
			CreatedAt:    rebuiltAt,
			UpdatedAt:    rebuiltAt,
		}
		summary.ComputeDerivedMetrics()

		if err := dbTx.Create(&summary).Error; err != nil {
			dbTx.Rollback()
			logCtx.WithError(err).Error("Failed to insert rebuilt summary.")
			return http.StatusInternalServerError
		}
	}

	// Rows holding spend but no results in the range keep their spend.
	for key, spendCents := range spendByKey {
		if rebuiltKeys[key] || spendCents == 0 {
			continue
		}
		summary := model.ChannelSummary{
			ProjectID:  projectID,
			Date:       key.Date,
			Model:      key.Model,
			Window:     key.Window,
			Channel:    key.Channel,
			Platform:   key.Platform,
			SpendCents: spendCents,
			CreatedAt:  rebuiltAt,
			UpdatedAt:  rebuiltAt,
		}
		summary.ComputeDerivedMetrics()

		if err := dbTx.Create(&summary).Error; err != nil {
			dbTx.Rollback()
			logCtx.WithError(err).Error("Failed to reinsert spend-only summary.")
			return http.StatusInternalServerError
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit summary rebuild.")
		return http.StatusInternalServerError
	}

	logCtx.WithField("summary_rows", len(deltas)).Info("Rebuilt channel summaries.")
	return http.StatusAccepted
}
