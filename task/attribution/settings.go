package attribution

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"revtrace/model/model"
	"revtrace/model/store"
)

// UpdateSettingsAndRecompute Persists new attribution settings for the
// project and recomputes every conversion under them. Result rows written
// under the old settings are replaced; summaries follow through the rollup
// deltas. Invalid settings are rejected before anything is written.
func UpdateSettingsAndRecompute(ctx context.Context, st store.Store,
	settings *model.AttributionSettings) (*model.RunSummary, error) {

	if settings == nil || settings.ProjectID == 0 {
		return nil, errors.New("invalid attribution settings update")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if errCode := st.UpdateAttributionSettings(settings); errCode != http.StatusAccepted {
		return nil, errors.New("failed to update attribution settings")
	}

	return RunFullRecompute(ctx, st, settings.ProjectID)
}
