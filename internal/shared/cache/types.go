// Package cache 缓存层类型定义
package cache

import (
	"time"
)

// ============================================================================
// Key 和 TTL 常量
// ============================================================================

const (
	// Key 常量
	KeyAdoptableListing  = "listing:adoptable"
	KeyRegistrationStats = "stats:registrations"

	// TTL 常量：写路径都会主动失效，TTL 只兜底
	TTLAdoptableListing  = 30 * time.Second
	TTLRegistrationStats = 5 * time.Minute
)
