package recurrence

import (
	"fmt"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Civil timezone occurrences are computed in; empty means DefaultZoneName.
	Zone string

	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxTakeCount caps every materialized sequence, whatever the caller asks for.
	MaxTakeCount int
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	Zone:         DefaultZoneName,
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,
	MaxTakeCount: 500,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	Zone:         DefaultZoneName,
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
	MaxTakeCount: 200,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	Zone:         DefaultZoneName,
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},
	MaxTakeCount: 100,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	Zone:         DefaultZoneName,
	CacheEnabled: false,
	MaxTakeCount: 1000,
}

// ConfigByProfile returns a copy of one of the preset configurations.
func ConfigByProfile(profile string) (EngineConfig, error) {
	switch profile {
	case "", "default":
		return DefaultEngineConfig, nil
	case "high-performance":
		return HighPerformanceConfig, nil
	case "low-memory":
		return LowMemoryConfig, nil
	case "disabled-cache":
		return DisabledCacheConfig, nil
	default:
		return EngineConfig{}, fmt.Errorf("unknown engine profile %q", profile)
	}
}
