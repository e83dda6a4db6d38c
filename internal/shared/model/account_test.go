package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNextLockoutState 锁定策略状态转移
func TestNextLockoutState(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name         string
		attempts     int
		lockUntil    *time.Time
		wantAttempts int
		wantLocked   bool
	}{
		{"首次失败", 0, nil, 1, false},
		{"第四次失败不锁定", 3, nil, 4, false},
		{"第五次失败触发锁定", 4, nil, 5, true},
		{"旧锁过期后重置为 1", 5, &past, 1, false},
		{"锁定期内继续累加但不重复锁定", 5, &future, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{LoginAttempts: tt.attempts, LockUntil: tt.lockUntil}
			attempts, lockUntil := a.NextLockoutState(now)

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantLocked {
				if assert.NotNil(t, lockUntil) {
					assert.True(t, lockUntil.After(now))
				}
			} else {
				assert.Nil(t, lockUntil)
			}
		})
	}
}

// TestNextLockoutState_LockWindow 第五次失败锁定两小时
func TestNextLockoutState_LockWindow(t *testing.T) {
	now := time.Now()
	a := &Account{LoginAttempts: 4}

	attempts, lockUntil := a.NextLockoutState(now)
	assert.Equal(t, 5, attempts)
	if assert.NotNil(t, lockUntil) {
		assert.WithinDuration(t, now.Add(LockDuration), *lockUntil, time.Second)
	}
}

// TestLocked 锁定判定以 now 为准
func TestLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&Account{}).Locked(now))
	assert.True(t, (&Account{LockUntil: &future}).Locked(now))
	assert.False(t, (&Account{LockUntil: &past}).Locked(now))
}

// TestPasswordStale 改密早于签发则令牌有效
func TestPasswordStale(t *testing.T) {
	changed := time.Now()
	a := &Account{PasswordChangedAt: &changed}

	assert.True(t, a.PasswordStale(changed.Add(-time.Minute)))
	assert.False(t, a.PasswordStale(changed.Add(time.Minute)))
	assert.False(t, (&Account{}).PasswordStale(time.Now()))
}

// TestNormalizeEmail 邮箱归一化
func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.COM "))
	assert.Equal(t, "owner@pets.dev", NormalizeEmail("Owner@Pets.Dev"))
}
