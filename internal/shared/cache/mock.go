// Package cache 缓存层 mock 实现
package cache

import (
	"context"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// ============================================================================
// NoOpCache - 空操作的 Cache 实现（未配置 Redis 时使用，测试亦可）
// ============================================================================

// NoOpCache 是一个不做任何操作的 Cache 实现，所有读取都未命中
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Close 关闭缓存
func (c *NoOpCache) Close() error {
	return nil
}

// ListingCache 方法

func (c *NoOpCache) GetAdoptableListing(ctx context.Context) ([]*model.Registration, error) {
	return nil, nil
}
func (c *NoOpCache) SetAdoptableListing(ctx context.Context, regs []*model.Registration) error {
	return nil
}
func (c *NoOpCache) InvalidateAdoptableListing(ctx context.Context) error {
	return nil
}

// StatsCache 方法

func (c *NoOpCache) GetRegistrationStats(ctx context.Context) (*storage.RegistrationStats, error) {
	return nil, nil
}
func (c *NoOpCache) SetRegistrationStats(ctx context.Context, stats storage.RegistrationStats) error {
	return nil
}
func (c *NoOpCache) InvalidateRegistrationStats(ctx context.Context) error {
	return nil
}

// 确保 NoOpCache 实现了 Cache 接口
var _ Cache = (*NoOpCache)(nil)
