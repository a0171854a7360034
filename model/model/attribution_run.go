package model

import (
	"sync"
	"time"
)

const (
	RunStatusPending    = "pending"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// AttributionRun Per conversion bookkeeping row for batch runs. A crashed
// run leaves rows in processing; rows older than the stale timeout are
// reclaimed as pending by the next run instead of staying stuck.
type AttributionRun struct {
	ProjectID    int64  `gorm:"primary_key:true" json:"project_id"`
	ConversionID string `gorm:"primary_key:true" json:"conversion_id"`

	Status string `json:"status"`
	// Batch run that currently owns the row.
	RunID string `json:"run_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunSummary Outcome counters of one batch run. Written to concurrently by
// conversion workers.
type RunSummary struct {
	RunID      string `json:"run_id"`
	ProjectID  int64  `json:"project_id"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	ResultRows int    `json:"result_rows"`

	lock sync.Mutex
}

func (s *RunSummary) AddProcessed(resultRows int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Processed++
	s.ResultRows += resultRows
}

func (s *RunSummary) AddSkipped() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Skipped++
}

func (s *RunSummary) AddFailed() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Failed++
}
