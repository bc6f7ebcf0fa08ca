package bridge

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the bridge's pub/sub channel.
const DefaultPrefix = "notify:ws:"

// RedisConfig holds connection settings for the Redis pub/sub bridge.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix namespaces the broadcast channel so several deployments can
	// share one Redis.
	Prefix string `yaml:"prefix"`
}

// DefaultRedisConfig targets a local Redis on the default port.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: DefaultPrefix,
	}
}

// RedisConfigFromEnv layers environment variables over the defaults.
//
// REDIS_URL (redis://[:password@]host:port[/db]) is applied first, then
// REDIS_ADDR, REDIS_PASSWORD, REDIS_DB and REDIS_WS_PREFIX override single
// fields. Unparseable values are ignored.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()

	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if opts, err := redis.ParseURL(raw); err == nil {
			cfg.Addr = opts.Addr
			cfg.Password = opts.Password
			cfg.DB = opts.DB
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_WS_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg
}
