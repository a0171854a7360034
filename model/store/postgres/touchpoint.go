package postgres

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"revtrace/model/model"
)

// FetchTouchpoints Pulls all touchpoints matching any of the identity's
// linking keys, from sinceTime onwards. zero sinceTime means unbounded
// lookback (ltv window). Matching on any available key keeps the candidate
// set complete; journey building filters and orders it.
func (store *Postgres) FetchTouchpoints(projectID int64, identity model.IdentityKeys,
	sinceTime time.Time) ([]model.Touchpoint, int) {

	logCtx := log.WithFields(log.Fields{"project_id": projectID})

	if identity.VisitorID == "" && identity.SessionID == "" && identity.CustomerID == "" {
		return []model.Touchpoint{}, http.StatusBadRequest
	}

	db := store.db().Where("project_id = ?", projectID)

	identityQuery := ""
	identityArgs := make([]interface{}, 0, 3)
	appendKey := func(column, value string) {
		if value == "" {
			return
		}
		if identityQuery != "" {
			identityQuery += " OR "
		}
		identityQuery += column + " = ?"
		identityArgs = append(identityArgs, value)
	}
	appendKey("visitor_id", identity.VisitorID)
	appendKey("session_id", identity.SessionID)
	appendKey("customer_id", identity.CustomerID)
	db = db.Where(identityQuery, identityArgs...)

	if !sinceTime.IsZero() {
		db = db.Where("occurred_at >= ?", sinceTime)
	}

	var touchpoints []model.Touchpoint
	if err := db.Order("occurred_at, id").Find(&touchpoints).Error; err != nil {
		logCtx.WithError(err).Error("Failed to fetch touchpoints for identity.")
		return nil, http.StatusInternalServerError
	}

	return touchpoints, http.StatusFound
}
