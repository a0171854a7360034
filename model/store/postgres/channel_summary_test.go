package postgres

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	C "revtrace/config"
	"revtrace/model/model"
)

var summaryColumns = []string{"project_id", "date", "model", "window", "channel",
	"platform", "touchpoints", "conversions", "revenue_cents", "spend_cents",
	"roas", "cpa_cents", "conversion_rate", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open("postgres", db)
	require.NoError(t, err)

	C.GetServices().Db = gormDB
	return &Postgres{}, mock
}

func testSummaryKey() model.ChannelSummaryKey {
	return model.ChannelSummaryKey{
		Date:    time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		Model:   model.AttributionModelLinear,
		Window:  model.AttributionWindow7D,
		Channel: "google",
	}
}

func TestUpsertChannelSummaryUpdatesExistingRow(t *testing.T) {
	store, mock := newMockStore(t)
	key := testSummaryKey()

	// An existing row must receive an UPDATE, never a second INSERT; the
	// (date, model, window, channel, platform) key is unique per project.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "channel_summaries"`).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(int64(1), key.Date, key.Model, key.Window, key.Channel, "",
				int64(1), int64(1), int64(5000), int64(0),
				nil, nil, nil, key.Date, key.Date))
	mock.ExpectExec(`UPDATE "channel_summaries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	errCode := store.UpsertChannelSummary(1, model.ChannelSummaryDelta{
		Key: key, Touchpoints: 1, Conversions: 1, RevenueCents: 2500})

	assert.Equal(t, http.StatusAccepted, errCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertChannelSummaryCreatesMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "channel_summaries"`).
		WillReturnRows(sqlmock.NewRows(summaryColumns))
	// Inserts on postgres come back through RETURNING on the primary field.
	mock.ExpectQuery(`INSERT INTO "channel_summaries"`).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	errCode := store.UpsertChannelSummary(1, model.ChannelSummaryDelta{
		Key: testSummaryKey(), Touchpoints: 1, Conversions: 1, RevenueCents: 2500})

	assert.Equal(t, http.StatusAccepted, errCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetChannelSpendUpdatesExistingRow(t *testing.T) {
	store, mock := newMockStore(t)
	key := testSummaryKey()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "channel_summaries"`).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(int64(1), key.Date, key.Model, key.Window, key.Channel, "",
				int64(2), int64(1), int64(10000), int64(0),
				nil, nil, nil, key.Date, key.Date))
	mock.ExpectExec(`UPDATE "channel_summaries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	errCode := store.SetChannelSpend(1, key, 4000)

	assert.Equal(t, http.StatusAccepted, errCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
