package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	C "revtrace/config"
	"revtrace/metrics"
	"revtrace/model/model"
	"revtrace/model/store"
	"revtrace/task/attribution"
)

func main() {
	env := flag.String("env", "development", "")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "revtrace", "")
	dbName := flag.String("db_name", "revtrace", "")
	dbPass := flag.String("db_pass", "revtrace", "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	// projectIds: supports * (asterisk) for all projects.
	projectIds := flag.String("project_ids", "", "Projects to run attribution for.")
	skipProjectIds := flag.String("skip_project_ids", "", "Projects excluded when running with *.")
	numRoutines := flag.Int("num_routines", 4, "Number of conversion routines per project.")
	sinceTimestamp := flag.Int64("since_timestamp", -1,
		"Working set lower bound. -1 uses the last run watermark, 0 everything.")
	fullRecompute := flag.Bool("full_recompute", false,
		"Reset run state and recompute every conversion. Use after settings changes.")

	gcpProjectID := flag.String("gcp_project_id", "", "Project ID on Google Cloud for metrics.")
	gcpProjectLocation := flag.String("gcp_project_location", "", "Location of the project on Google Cloud.")

	flag.Parse()

	if *env != C.DEVELOPMENT &&
		*env != C.STAGING &&
		*env != C.PRODUCTION {
		err := fmt.Errorf("env [ %s ] not recognised", *env)
		panic(err)
	}

	config := &C.Configuration{
		AppName: "run_attribution",
		Env:     *env,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		RedisHost:             *redisHost,
		RedisPort:             *redisPort,
		NumConversionRoutines: *numRoutines,
	}

	C.InitConf(config)

	if err := C.InitDB(config.DBInfo); err != nil {
		log.WithError(err).Fatal("Failed to initialize db in run attribution.")
	}
	C.InitRedis(config.RedisHost, config.RedisPort)
	metrics.InitMetrics(config.Env, config.AppName, *gcpProjectID, *gcpProjectLocation)

	st := store.GetStore()

	allProjects, allowedProjectIds, _, _, disallowedMap :=
		C.GetProjectsFromListWithAllProjectSupport(*projectIds, *skipProjectIds)
	runProjectIds, err := attribution.ResolveProjectIDs(st, allProjects,
		allowedProjectIds, disallowedMap)
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve projects to run attribution for.")
	}
	if len(runProjectIds) == 0 {
		log.Error("No projects to run attribution for. Pass --project_ids.")
		os.Exit(1)
	}

	// Cancels between conversions on SIGINT/SIGTERM; committed conversions stay.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	anyFailure := false
	for _, projectID := range runProjectIds {
		logCtx := log.WithField("project_id", projectID)

		since := *sinceTimestamp
		if since < 0 {
			since = attribution.GetLastRunTimestamp(projectID)
		}

		var summary *model.RunSummary
		var err error
		if *fullRecompute {
			summary, err = attribution.RunFullRecompute(ctx, st, projectID)
		} else {
			summary, err = attribution.RunBatch(ctx, st, projectID, since)
		}
		if err != nil {
			anyFailure = true
			logCtx.WithError(err).Error("Attribution run failed for project.")
			continue
		}
		logCtx.WithField("summary", summary).Info("Attribution run completed for project.")

		if ctx.Err() != nil {
			logCtx.Warn("Stopping project loop on cancellation.")
			break
		}
	}

	if anyFailure {
		os.Exit(1)
	}
}
