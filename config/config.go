package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	DEVELOPMENT = "development"
	STAGING     = "staging"
	PRODUCTION  = "production"
)

type DBConf struct {
	Host     string `envconfig:"DB_HOST"`
	Port     int    `envconfig:"DB_PORT"`
	User     string `envconfig:"DB_USER"`
	Name     string `envconfig:"DB_NAME"`
	Password string `envconfig:"DB_PASS"`
}

type Configuration struct {
	AppName   string
	Env       string `envconfig:"ENV"`
	DBInfo    DBConf
	RedisHost string `envconfig:"REDIS_HOST"`
	RedisPort int    `envconfig:"REDIS_PORT"`

	// Attribution engine tunables.
	AttributionDebug int `envconfig:"ATTRIBUTION_DEBUG"`
	// Number of conversions processed concurrently per project.
	NumConversionRoutines int `envconfig:"NUM_CONVERSION_ROUTINES"`
	// Conversions stuck in processing longer than this are reclaimed as pending.
	ProcessingStaleSecs int64 `envconfig:"PROCESSING_STALE_SECS"`
	// Retries per conversion on transient store failures.
	StoreRetryCount int `envconfig:"STORE_RETRY_COUNT"`
}

type Services struct {
	Db        *gorm.DB
	RedisPool *redis.Pool
}

var configuration *Configuration
var services = &Services{}

// InitConf Loads the given configuration with RT_* env overrides and
// initializes logging. Must be called before InitDB / InitRedis.
func InitConf(config *Configuration) {
	if config.NumConversionRoutines <= 0 {
		config.NumConversionRoutines = 1
	}
	if config.ProcessingStaleSecs <= 0 {
		config.ProcessingStaleSecs = 1800
	}
	if config.StoreRetryCount <= 0 {
		config.StoreRetryCount = 3
	}

	if err := envconfig.Process("rt", config); err != nil {
		log.WithError(err).Error("Failed to apply env overrides on config.")
	}

	configuration = config
	initLogging()
}

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.DebugLevel)
	}
}

func InitDB(dbConf DBConf) error {
	db, err := gorm.Open("postgres", fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Name, dbConf.Password))
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Error("Failed db initialization.")
		return err
	}

	// Connection pooling and logging.
	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(50)
	db.LogMode(IsDevelopment())

	services.Db = db
	log.Info("Db service initialized.")
	return nil
}

func InitRedis(host string, port int) {
	services.RedisPool = &redis.Pool{
		MaxIdle:     20,
		MaxActive:   50,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		},
	}
	log.Info("Redis service initialized.")
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

func GetDB() *gorm.DB {
	return services.Db
}

// GetCacheRedisConnection Returns a pooled redis connection. Caller must close.
func GetCacheRedisConnection() redis.Conn {
	return services.RedisPool.Get()
}

func IsDevelopment() bool {
	return configuration != nil && configuration.Env == DEVELOPMENT
}

func GetAttributionDebug() int {
	if configuration == nil {
		return 0
	}
	return configuration.AttributionDebug
}

func AllowedConversionRoutines() int {
	if configuration == nil || configuration.NumConversionRoutines <= 0 {
		return 1
	}
	return configuration.NumConversionRoutines
}

func GetProcessingStaleSecs() int64 {
	if configuration == nil || configuration.ProcessingStaleSecs <= 0 {
		return 1800
	}
	return configuration.ProcessingStaleSecs
}

func GetStoreRetryCount() int {
	if configuration == nil || configuration.StoreRetryCount <= 0 {
		return 3
	}
	return configuration.StoreRetryCount
}

// GetProjectsFromListWithAllProjectSupport Parses comma separated project id
// lists. projectIdsList supports * (asterisk) for all projects. Ids present
// on the disallowed list are removed from the allowed list.
func GetProjectsFromListWithAllProjectSupport(projectIdsList,
	disallowedProjectIdsList string) (allProjects bool, allowedProjectIds, skipProjectIds []int64,
	allowedMap, disallowedMap map[int64]bool) {

	allowedProjectIds = []int64{}
	skipProjectIds = []int64{}
	allowedMap = map[int64]bool{}
	disallowedMap = map[int64]bool{}

	for _, idString := range strings.Split(disallowedProjectIdsList, ",") {
		idString = strings.TrimSpace(idString)
		if idString == "" {
			continue
		}
		id, err := strconv.ParseInt(idString, 10, 64)
		if err != nil {
			log.WithField("project_id", idString).Error("Invalid disallowed project id. Skipped.")
			continue
		}
		skipProjectIds = append(skipProjectIds, id)
		disallowedMap[id] = true
	}

	if strings.TrimSpace(projectIdsList) == "*" {
		return true, allowedProjectIds, skipProjectIds, allowedMap, disallowedMap
	}

	for _, idString := range strings.Split(projectIdsList, ",") {
		idString = strings.TrimSpace(idString)
		if idString == "" {
			continue
		}
		id, err := strconv.ParseInt(idString, 10, 64)
		if err != nil {
			log.WithField("project_id", idString).Error("Invalid project id. Skipped.")
			continue
		}
		// Prioritizing the skip list over project list.
		if disallowedMap[id] {
			continue
		}
		allowedProjectIds = append(allowedProjectIds, id)
		allowedMap[id] = true
	}

	return false, allowedProjectIds, skipProjectIds, allowedMap, disallowedMap
}
