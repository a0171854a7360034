package redis

import (
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	C "revtrace/config"
)

type Key struct {
	ProjectID int64
	// Prefix - Helps better grouping and searching
	// i.e table_name + index_name
	Prefix string
	// Suffix - optional
	Suffix string
}

var (
	ErrorInvalidProject = errors.New("invalid key project")
	ErrorInvalidPrefix  = errors.New("invalid key prefix")
	ErrorInvalidKey     = errors.New("invalid redis cache key")

	// ErrKeyNotExists Returned by Get when the key is missing.
	ErrKeyNotExists = redis.ErrNil
)

func NewKey(projectID int64, prefix string, suffix string) (*Key, error) {
	if projectID == 0 {
		return nil, ErrorInvalidProject
	}

	if prefix == "" {
		return nil, ErrorInvalidPrefix
	}

	return &Key{ProjectID: projectID, Prefix: prefix, Suffix: suffix}, nil
}

func (key *Key) Key() (string, error) {
	if key.ProjectID == 0 {
		return "", ErrorInvalidProject
	}

	if key.Prefix == "" {
		return "", ErrorInvalidPrefix
	}

	// key: i.e, attribution:last_run:pid:1
	return fmt.Sprintf("%s:pid:%d:%s", key.Prefix, key.ProjectID, key.Suffix), nil
}

func Set(key *Key, value string, expiryInSecs float64) error {
	if key == nil {
		return ErrorInvalidKey
	}

	if value == "" {
		return errors.New("empty cache key value")
	}

	cKey, err := key.Key()
	if err != nil {
		return err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	if expiryInSecs == 0 {
		_, err = redisConn.Do("SET", cKey, value)
	} else {
		_, err = redisConn.Do("SET", cKey, value, "EX", expiryInSecs)
	}

	return err
}

// SetNX Sets the key only if it does not exist already. Returns false
// without error when the key is held by someone else. Used as a lightweight
// lock for per-project batch runs.
func SetNX(key *Key, value string, expiryInSecs float64) (bool, error) {
	if key == nil {
		return false, ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return false, err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	reply, err := redisConn.Do("SET", cKey, value, "NX", "EX", expiryInSecs)
	if err != nil {
		return false, err
	}
	return reply != nil, nil
}

func Get(key *Key) (string, error) {
	if key == nil {
		return "", ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return "", err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	return redis.String(redisConn.Do("GET", cKey))
}

// DelIfEqual Deletes the key only when its current value matches the given
// one. Keeps an expired lock holder from deleting a newer holder's lock.
// Returns false without error when the key is missing or held by another
// value.
func DelIfEqual(key *Key, value string) (bool, error) {
	if key == nil {
		return false, ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return false, err
	}

	redisConn := C.GetCacheRedisConnection()
	defer redisConn.Close()

	holder, err := redis.String(redisConn.Do("GET", cKey))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if holder != value {
		return false, nil
	}

	_, err = redisConn.Do("DEL", cKey)
	if err != nil {
		return false, err
	}
	return true, nil
}
