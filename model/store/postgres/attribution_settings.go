package postgres

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

// attributionSettingsRow DB shape of model.AttributionSettings. Model and
// window sets are kept as json text columns, one settings row per project.
type attributionSettingsRow struct {
	ProjectID int64 `gorm:"primary_key:true"`

	EnabledModels  string
	EnabledWindows string

	AttributionMode        string
	TimeDecayHalfLifeHours float64

	PositionFirst  float64
	PositionMiddle float64
	PositionLast   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (attributionSettingsRow) TableName() string {
	return "attribution_settings"
}

func (row *attributionSettingsRow) toSettings() (*model.AttributionSettings, error) {
	settings := &model.AttributionSettings{
		ProjectID:              row.ProjectID,
		AttributionMode:        row.AttributionMode,
		TimeDecayHalfLifeHours: row.TimeDecayHalfLifeHours,
		PositionWeights: model.PositionWeights{
			First:  row.PositionFirst,
			Middle: row.PositionMiddle,
			Last:   row.PositionLast,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(row.EnabledModels), &settings.EnabledModels); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.EnabledWindows), &settings.EnabledWindows); err != nil {
		return nil, err
	}
	return settings, nil
}

func toSettingsRow(settings *model.AttributionSettings) (*attributionSettingsRow, error) {
	enabledModels, err := json.Marshal(settings.EnabledModels)
	if err != nil {
		return nil, err
	}
	enabledWindows, err := json.Marshal(settings.EnabledWindows)
	if err != nil {
		return nil, err
	}

	return &attributionSettingsRow{
		ProjectID:              settings.ProjectID,
		EnabledModels:          string(enabledModels),
		EnabledWindows:         string(enabledWindows),
		AttributionMode:        settings.AttributionMode,
		TimeDecayHalfLifeHours: settings.TimeDecayHalfLifeHours,
		PositionFirst:          settings.PositionWeights.First,
		PositionMiddle:         settings.PositionWeights.Middle,
		PositionLast:           settings.PositionWeights.Last,
	}, nil
}

// GetAttributionSettings Returns the project's settings snapshot. Projects
// that never saved settings get the defaults.
func (store *Postgres) GetAttributionSettings(projectID int64) (*model.AttributionSettings, int) {
	logCtx := log.WithFields(log.Fields{"project_id": projectID})

	var row attributionSettingsRow
	err := store.db().Where("project_id = ?", projectID).Take(&row).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return model.DefaultAttributionSettings(projectID), http.StatusFound
		}
		logCtx.WithError(err).Error("Failed to get attribution settings.")
		return nil, http.StatusInternalServerError
	}

	settings, err := row.toSettings()
	if err != nil {
		logCtx.WithError(err).Error("Failed to decode attribution settings row.")
		return nil, http.StatusInternalServerError
	}
	return settings, http.StatusFound
}

// UpdateAttributionSettings Validates and saves the project's settings and
// resets run bookkeeping so the next batch recomputes every conversion under
// the new configuration.
func (store *Postgres) UpdateAttributionSettings(settings *model.AttributionSettings) int {
	logCtx := log.WithFields(log.Fields{"project_id": settings.ProjectID})

	if err := settings.Validate(); err != nil {
		logCtx.WithError(err).Error("Rejected invalid attribution settings update.")
		return http.StatusBadRequest
	}

	row, err := toSettingsRow(settings)
	if err != nil {
		logCtx.WithError(err).Error("Failed to encode attribution settings.")
		return http.StatusInternalServerError
	}

	db := store.db()
	err = db.Exec(`INSERT INTO attribution_settings
		(project_id, enabled_models, enabled_windows, attribution_mode,
		 time_decay_half_life_hours, position_first, position_middle, position_last,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, now(), now())
		ON CONFLICT (project_id) DO UPDATE SET
		 enabled_models = excluded.enabled_models,
		 enabled_windows = excluded.enabled_windows,
		 attribution_mode = excluded.attribution_mode,
		 time_decay_half_life_hours = excluded.time_decay_half_life_hours,
		 position_first = excluded.position_first,
		 position_middle = excluded.position_middle,
		 position_last = excluded.position_last,
		 updated_at = now()`,
		row.ProjectID, row.EnabledModels, row.EnabledWindows, row.AttributionMode,
		row.TimeDecayHalfLifeHours, row.PositionFirst, row.PositionMiddle,
		row.PositionLast).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to upsert attribution settings.")
		return http.StatusInternalServerError
	}

	// Settings affect every (model, window) journey. Flag the whole project
	// for recompute rather than guessing what changed.
	if errCode := store.ResetAttributionRuns(settings.ProjectID); errCode != http.StatusAccepted {
		return errCode
	}

	return http.StatusAccepted
}
