package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petmarket/internal/config"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// EnsureAdminAccount 启动时保证管理员账号存在
//
// 从 ADMIN_EMAIL / ADMIN_PASSWORD 配置引导初始管理员。
// 两者任一为空则跳过；账号已存在则不做任何修改。
func EnsureAdminAccount(ctx context.Context, store storage.AccountStore, app config.AuthConfig) error {
	if app.AdminEmail == "" || app.AdminPassword == "" {
		return nil
	}
	email := model.NormalizeEmail(app.AdminEmail)
	existing, err := store.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup admin account: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := HashPassword(app.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	now := time.Now().UTC()
	acct := &model.Account{
		ID:           model.NewID("acct"),
		Email:        email,
		PasswordHash: hash,
		Username:     "admin",
		Role:         model.AccountRoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateAccount(ctx, acct); err != nil {
		// 多实例同时启动会撞唯一索引，视为已存在
		if errors.Is(err, storage.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("create admin account: %w", err)
	}
	return nil
}
