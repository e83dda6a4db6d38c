// Package model 定义核心数据模型
//
// account.go 包含账号相关的数据模型定义：
//   - Account：统一账号实体（宠物主人、普通用户、管理员共用一张表）
//   - AccountRole：账号角色枚举
//   - 登录锁定策略的纯状态转移函数
package model

import (
	"strings"
	"time"
)

// ============================================================================
// AccountRole - 账号角色
// ============================================================================

// AccountRole 账号角色
type AccountRole string

const (
	// AccountRoleOwner 宠物主人（持有一条领养登记）
	AccountRoleOwner AccountRole = "owner"

	// AccountRoleUser 商城普通用户
	AccountRoleUser AccountRole = "user"

	// AccountRoleAdmin 管理员
	AccountRoleAdmin AccountRole = "admin"
)

// ValidAccountRole 校验角色枚举值
func ValidAccountRole(r AccountRole) bool {
	switch r {
	case AccountRoleOwner, AccountRoleUser, AccountRoleAdmin:
		return true
	}
	return false
}

// ============================================================================
// Account - 统一账号
// ============================================================================

// Account 统一账号实体
//
// 登录凭据只存在这一处：Registration 通过 AccountID 引用账号，
// 不再在登记文档里内嵌邮箱和密码。
type Account struct {
	ID           string      `json:"id" bson:"_id" db:"id"`
	Email        string      `json:"email" bson:"email" db:"email"`
	PasswordHash string      `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Phone        string      `json:"phone,omitempty" bson:"phone,omitempty" db:"phone"`
	Username     string      `json:"username,omitempty" bson:"username,omitempty" db:"username"`
	Bio          string      `json:"bio,omitempty" bson:"bio,omitempty" db:"bio"`
	Picture      string      `json:"picture,omitempty" bson:"picture,omitempty" db:"picture"`
	Role         AccountRole `json:"role" bson:"role" db:"role"`
	IsActive     bool        `json:"is_active" bson:"is_active" db:"is_active"`

	// 登录锁定状态
	LoginAttempts int        `json:"-" bson:"login_attempts" db:"login_attempts"`
	LockUntil     *time.Time `json:"-" bson:"lock_until,omitempty" db:"lock_until"`

	// 改密时间：早于该时间签发的令牌一律失效
	PasswordChangedAt *time.Time `json:"-" bson:"password_changed_at,omitempty" db:"password_changed_at"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ============================================================================
// 登录锁定策略
// ============================================================================

const (
	// MaxLoginAttempts 连续失败次数达到该值时锁定账号
	MaxLoginAttempts = 5

	// LockDuration 锁定时长
	LockDuration = 2 * time.Hour
)

// Locked 账号当前是否处于锁定期内
func (a *Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// NextLockoutState 计算一次密码校验失败后的锁定状态
//
// 规则与存储无关，由调用方以条件更新原子落盘：
//   - 存在已过期的旧锁：计数重置为 1，清除锁
//   - 否则计数 +1；达到 MaxLoginAttempts 且当前未锁定时，锁定 LockDuration
func (a *Account) NextLockoutState(now time.Time) (attempts int, lockUntil *time.Time) {
	if a.LockUntil != nil && a.LockUntil.Before(now) {
		return 1, nil
	}
	attempts = a.LoginAttempts + 1
	lockUntil = a.LockUntil
	if attempts >= MaxLoginAttempts && !a.Locked(now) {
		t := now.Add(LockDuration)
		lockUntil = &t
	}
	return attempts, lockUntil
}

// PasswordStale 令牌签发时间是否早于最近一次改密
func (a *Account) PasswordStale(issuedAt time.Time) bool {
	return a.PasswordChangedAt != nil && issuedAt.Before(*a.PasswordChangedAt)
}

// NormalizeEmail 邮箱归一化：去空白、转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
