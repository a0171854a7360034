package store

import (
	"time"

	"revtrace/model/model"
	storePostgres "revtrace/model/store/postgres"
)

// Store Persistence contract of the attribution engine. Methods return
// net/http status codes alongside values; 5xx codes are treated as transient
// and retried at the conversion level by the run controller.
type Store interface {
	// Input contracts. Touchpoints and conversions are written by ingestion,
	// the engine only reads them.
	FetchTouchpoints(projectID int64, identity model.IdentityKeys, sinceTime time.Time) ([]model.Touchpoint, int)
	FetchConversions(projectID int64, sinceTime time.Time) ([]model.Conversion, int)

	// Settings contract. Reads return a snapshot; one snapshot is loaded per
	// batch run and shared read-only across workers.
	GetAttributionSettings(projectID int64) (*model.AttributionSettings, int)
	UpdateAttributionSettings(settings *model.AttributionSettings) int

	// Project registry. Every project with at least one conversion, for
	// runners invoked with all projects.
	GetAllProjectIDs() ([]int64, int)

	// Run bookkeeping. Claiming moves a conversion to processing for one
	// run; processing rows older than staleBefore may be reclaimed.
	GetConversionsPendingAttribution(projectID int64, sinceTime time.Time, staleBefore time.Time) ([]model.Conversion, int)
	ClaimConversionForProcessing(projectID int64, conversionID, runID string, staleBefore time.Time) int
	MarkConversionRunStatus(projectID int64, conversionID, runID, status string) int
	ResetAttributionRuns(projectID int64) int

	// Output contracts. Result replacement is transactional per conversion:
	// all rows of that conversion are swapped or none are. The replaced rows
	// come back so callers can roll summaries forward incrementally.
	ReplaceAttributionResults(projectID int64, conversionID string, results []model.AttributionResult) ([]model.AttributionResult, int)
	GetAttributionResultsForRange(projectID int64, from, to time.Time) ([]model.AttributionResult, int)
	UpsertChannelSummary(projectID int64, delta model.ChannelSummaryDelta) int
	SetChannelSpend(projectID int64, key model.ChannelSummaryKey, spendCents int64) int
	RebuildChannelSummaries(projectID int64, from, to time.Time) int
}

// GetStore - Should decide on which store implementation to use by
// configuration and return the store.
func GetStore() Store {
	return &storePostgres.Postgres{}
}
