// Package redis 领养列表与统计的缓存操作
//
// 列表和统计整体序列化为 JSON 存单个 string key。缓存故障不致命，
// 调用方把错误当未命中降级处理。
package redis

import (
	"context"
	"encoding/json"
	"errors"

	"petmarket/internal/shared/cache"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"

	"github.com/redis/go-redis/v9"
)

// GetAdoptableListing 读取公开领养列表缓存，未命中返回 (nil, nil)
func (s *Store) GetAdoptableListing(ctx context.Context) ([]*model.Registration, error) {
	raw, err := s.client.Get(ctx, cache.KeyAdoptableListing).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var regs []*model.Registration
	if err := json.Unmarshal(raw, &regs); err != nil {
		// 反序列化失败按未命中处理并清掉脏数据
		s.client.Del(ctx, cache.KeyAdoptableListing)
		return nil, nil
	}
	return regs, nil
}

// SetAdoptableListing 写入公开领养列表缓存
func (s *Store) SetAdoptableListing(ctx context.Context, regs []*model.Registration) error {
	raw, err := json.Marshal(regs)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cache.KeyAdoptableListing, raw, cache.TTLAdoptableListing).Err()
}

// InvalidateAdoptableListing 失效公开领养列表缓存
func (s *Store) InvalidateAdoptableListing(ctx context.Context) error {
	return s.client.Del(ctx, cache.KeyAdoptableListing).Err()
}

// GetRegistrationStats 读取统计缓存，未命中返回 (nil, nil)
func (s *Store) GetRegistrationStats(ctx context.Context) (*storage.RegistrationStats, error) {
	raw, err := s.client.Get(ctx, cache.KeyRegistrationStats).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stats storage.RegistrationStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.client.Del(ctx, cache.KeyRegistrationStats)
		return nil, nil
	}
	return &stats, nil
}

// SetRegistrationStats 写入统计缓存
func (s *Store) SetRegistrationStats(ctx context.Context, stats storage.RegistrationStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cache.KeyRegistrationStats, raw, cache.TTLRegistrationStats).Err()
}

// InvalidateRegistrationStats 失效统计缓存
func (s *Store) InvalidateRegistrationStats(ctx context.Context) error {
	return s.client.Del(ctx, cache.KeyRegistrationStats).Err()
}

// 确保 Store 实现了 Cache 接口
var _ cache.Cache = (*Store)(nil)
