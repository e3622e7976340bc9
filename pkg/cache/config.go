package cache

import "time"

// RedisOption configures Redis cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string // overrides Host/Port when set
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	DialTimeout  time.Duration
	Prefix       string
}

// WithRedisAddr sets host:port directly.
func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) {
		c.Addr = addr
	}
}

// WithRedisHost sets Redis host.
func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
	}
}

// WithRedisPort sets Redis port.
func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) {
		c.Port = port
	}
}

// WithRedisPassword sets Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
	}
}

// WithRedisDB sets Redis database number.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisDialTimeout bounds dial, read and write on each connection.
func WithRedisDialTimeout(d time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if d > 0 {
			c.DialTimeout = d
		}
	}
}

// WithRedisPrefix sets key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// MemoryOption configures Memory cache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration.
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// WithMemoryMaxSize sets max cache size.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

// WithMemoryCleanup sets cleanup interval.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if interval > 0 {
			c.CleanupInterval = interval
		}
	}
}

// FallbackOption configures FallbackCache.
type FallbackOption func(*FallbackConfig)

// FallbackConfig holds tiered cache configuration.
type FallbackConfig struct {
	Memory       []MemoryOption
	PingInterval time.Duration
	PingTimeout  time.Duration
	// OnAvailabilityChange is called whenever the primary tier flips state.
	OnAvailabilityChange func(available bool, err error)
}

// WithFallbackMemory passes options to the in-process tier.
func WithFallbackMemory(opts ...MemoryOption) FallbackOption {
	return func(c *FallbackConfig) {
		c.Memory = append(c.Memory, opts...)
	}
}

// WithPingInterval sets how often an unavailable primary is pinged.
func WithPingInterval(d time.Duration) FallbackOption {
	return func(c *FallbackConfig) {
		if d > 0 {
			c.PingInterval = d
		}
	}
}

// WithAvailabilityHook registers a callback for primary tier state changes.
func WithAvailabilityHook(fn func(available bool, err error)) FallbackOption {
	return func(c *FallbackConfig) {
		c.OnAvailabilityChange = fn
	}
}
