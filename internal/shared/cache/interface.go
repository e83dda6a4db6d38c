// Package cache 缓存层抽象接口
//
// 给读多写少的公开列表和管理面板统计提供旁路缓存，当前由 Redis 实现。
// 未配置 Redis 时注入 Noop 实现，所有读取都视为未命中。
package cache

import (
	"context"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// ListingCache 公开领养列表缓存接口
//
// Get 未命中返回 (nil, nil)。任何登记写操作后调用 Invalidate。
type ListingCache interface {
	GetAdoptableListing(ctx context.Context) ([]*model.Registration, error)
	SetAdoptableListing(ctx context.Context, regs []*model.Registration) error
	InvalidateAdoptableListing(ctx context.Context) error
}

// StatsCache 管理面板统计缓存接口
type StatsCache interface {
	GetRegistrationStats(ctx context.Context) (*storage.RegistrationStats, error)
	SetRegistrationStats(ctx context.Context, stats storage.RegistrationStats) error
	InvalidateRegistrationStats(ctx context.Context) error
}

// ============================================================================
// 组合接口
// ============================================================================

// Cache 缓存组合接口
type Cache interface {
	ListingCache
	StatsCache
	Close() error
}
