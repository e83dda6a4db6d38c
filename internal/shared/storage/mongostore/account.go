// account.go 实现 AccountStore 接口
package mongostore

import (
	"context"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateAccount 创建账号；邮箱撞唯一索引时返回 storage.ErrDuplicate
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return insertOne(ctx, s.col(ColAccounts), account)
}

// GetAccountByEmail 按邮箱查找账号，不存在返回 (nil, nil)
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "email", Value: email}})
}

// GetAccountByID 按 ID 查找账号，不存在返回 (nil, nil)
func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "_id", Value: id}})
}

// ListAccounts 列出全部账号，按创建时间倒序
func (s *Store) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	accounts, err := findMany[model.Account](ctx, s.col(ColAccounts), bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateAccountProfile 更新账号资料字段
func (s *Store) UpdateAccountProfile(ctx context.Context, account *model.Account) error {
	return updateFields(ctx, s.col(ColAccounts), account.ID, bson.D{
		{Key: "phone", Value: account.Phone},
		{Key: "username", Value: account.Username},
		{Key: "bio", Value: account.Bio},
		{Key: "picture", Value: account.Picture},
		{Key: "role", Value: account.Role},
		{Key: "updated_at", Value: time.Now()},
	})
}

// UpdateAccountPassword 更新密码哈希并记录改密时间
func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	return updateFields(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "password_changed_at", Value: changedAt},
		{Key: "updated_at", Value: changedAt},
	})
}

// UpdateLockoutState 以 login_attempts 旧值为条件写入新的锁定状态
//
// 并发的登录失败会让其中一方的期望值失配，返回 ErrConflict；
// 调用方把这视作"另一次失败已被记录"，不需要重试。
func (s *Store) UpdateLockoutState(ctx context.Context, id string, prevAttempts, attempts int, lockUntil *time.Time) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "login_attempts", Value: prevAttempts},
	}
	set := bson.D{
		{Key: "login_attempts", Value: attempts},
		{Key: "updated_at", Value: time.Now()},
	}
	var update bson.D
	if lockUntil != nil {
		set = append(set, bson.E{Key: "lock_until", Value: *lockUntil})
		update = bson.D{{Key: "$set", Value: set}}
	} else {
		update = bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "lock_until", Value: ""}}},
		}
	}
	return updateWhere(ctx, s.col(ColAccounts), filter, update)
}

// ResetLockout 登录成功后清零失败计数并解除锁定
func (s *Store) ResetLockout(ctx context.Context, id string) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "login_attempts", Value: 0},
			{Key: "updated_at", Value: time.Now()},
		}},
		{Key: "$unset", Value: bson.D{{Key: "lock_until", Value: ""}}},
	}
	res, err := s.col(ColAccounts).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteAccount 删除账号
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColAccounts), id)
}
