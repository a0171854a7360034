package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	C "revtrace/config"
	"revtrace/model/model"
	"revtrace/model/store"
	"revtrace/task/attribution"
	U "revtrace/util"
)

// Rebuilds channel summaries of a date range from result rows, optionally
// applying a synced ad spend file first. Used for reconciliation when
// incremental rollups drifted or after manual result fixes.
func main() {
	env := flag.String("env", "development", "")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "revtrace", "")
	dbName := flag.String("db_name", "revtrace", "")
	dbPass := flag.String("db_pass", "revtrace", "")

	projectIds := flag.String("project_ids", "", "Projects to rebuild summaries for.")
	skipProjectIds := flag.String("skip_project_ids", "", "Projects excluded when running with *.")
	fromDate := flag.String("from_date", "", "Start date YYYY-MM-DD, inclusive.")
	toDate := flag.String("to_date", "", "End date YYYY-MM-DD, exclusive.")
	spendFile := flag.String("spend_file", "",
		"CSV of date,model,window,channel,platform,spend_cents applied before the rebuild.")

	flag.Parse()

	if *env != C.DEVELOPMENT &&
		*env != C.STAGING &&
		*env != C.PRODUCTION {
		err := fmt.Errorf("env [ %s ] not recognised", *env)
		panic(err)
	}

	config := &C.Configuration{
		AppName: "run_rollup_rebuild",
		Env:     *env,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
	}

	C.InitConf(config)
	if err := C.InitDB(config.DBInfo); err != nil {
		log.WithError(err).Fatal("Failed to initialize db in rollup rebuild.")
	}

	from, err := time.Parse(U.DATETIME_FORMAT_YYYYMMDD_HYPHEN, *fromDate)
	if err != nil {
		log.WithError(err).Fatal("Invalid --from_date.")
	}
	to, err := time.Parse(U.DATETIME_FORMAT_YYYYMMDD_HYPHEN, *toDate)
	if err != nil {
		log.WithError(err).Fatal("Invalid --to_date.")
	}
	if !to.After(from) {
		log.Fatal("--to_date must be after --from_date.")
	}

	st := store.GetStore()

	allProjects, allowedProjectIds, _, _, disallowedMap :=
		C.GetProjectsFromListWithAllProjectSupport(*projectIds, *skipProjectIds)
	runProjectIds, err := attribution.ResolveProjectIDs(st, allProjects,
		allowedProjectIds, disallowedMap)
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve projects to rebuild summaries for.")
	}
	if len(runProjectIds) == 0 {
		log.Error("No projects to rebuild summaries for. Pass --project_ids.")
		os.Exit(1)
	}

	anyFailure := false
	for _, projectID := range runProjectIds {
		logCtx := log.WithField("project_id", projectID)

		if *spendFile != "" {
			if err := applySpendFile(st, projectID, *spendFile); err != nil {
				anyFailure = true
				logCtx.WithError(err).Error("Failed to apply spend file for project.")
				continue
			}
		}

		if errCode := st.RebuildChannelSummaries(projectID, from, to); errCode != http.StatusAccepted {
			anyFailure = true
			logCtx.Error("Failed to rebuild channel summaries for project.")
			continue
		}
		logCtx.WithFields(log.Fields{"from": *fromDate, "to": *toDate}).
			Info("Rebuilt channel summaries for project.")
	}

	if anyFailure {
		os.Exit(1)
	}
}

// applySpendFile Reads date,model,window,channel,platform,spend_cents rows
// and sets the spend on each rollup row. A header line is skipped.
func applySpendFile(st store.Store, projectID int64, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		line++

		if len(record) != 6 {
			return fmt.Errorf("line %d: expected 6 fields, got %d", line, len(record))
		}
		if line == 1 && record[0] == "date" {
			continue
		}

		date, err := time.Parse(U.DATETIME_FORMAT_YYYYMMDD_HYPHEN, record[0])
		if err != nil {
			return fmt.Errorf("line %d: bad date: %v", line, err)
		}
		spendCents, err := strconv.ParseInt(record[5], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: bad spend_cents: %v", line, err)
		}

		key := model.ChannelSummaryKey{
			Date:     date,
			Model:    record[1],
			Window:   record[2],
			Channel:  record[3],
			Platform: record[4],
		}
		if errCode := st.SetChannelSpend(projectID, key, spendCents); errCode != http.StatusAccepted {
			return fmt.Errorf("line %d: failed to set channel spend", line)
		}
	}

	return nil
}
