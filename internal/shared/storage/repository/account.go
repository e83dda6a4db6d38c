// account.go 账号相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

const accountColumns = `id, email, password_hash, phone, username, bio, picture, role, is_active,
	login_attempts, lock_until, password_changed_at, created_at, updated_at`

// CreateAccount 创建账号；邮箱撞唯一约束返回 storage.ErrDuplicate
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	query := s.rebind(`
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Phone, account.Username,
		account.Bio, account.Picture, account.Role, account.IsActive,
		account.LoginAttempts, account.LockUntil, account.PasswordChangedAt,
		account.CreatedAt, account.UpdatedAt)
	return wrapWriteError(err)
}

// GetAccountByEmail 按邮箱查找账号，不存在返回 (nil, nil)
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := s.rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`)
	return scanAccount(s.db.QueryRowContext(ctx, query, email))
}

// GetAccountByID 按 ID 查找账号，不存在返回 (nil, nil)
func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	query := s.rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`)
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// ListAccounts 列出全部账号，按创建时间倒序
func (s *Store) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UpdateAccountProfile 更新账号资料字段
func (s *Store) UpdateAccountProfile(ctx context.Context, account *model.Account) error {
	query := s.rebind(`
		UPDATE accounts SET phone = $1, username = $2, bio = $3, picture = $4, role = $5, updated_at = $6
		WHERE id = $7
	`)
	res, err := s.db.ExecContext(ctx, query,
		account.Phone, account.Username, account.Bio, account.Picture, account.Role,
		time.Now(), account.ID)
	return requireRow(res, err)
}

// UpdateAccountPassword 更新密码哈希并记录改密时间
func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	query := s.rebind(`
		UPDATE accounts SET password_hash = $1, password_changed_at = $2, updated_at = $3
		WHERE id = $4
	`)
	res, err := s.db.ExecContext(ctx, query, passwordHash, changedAt, changedAt, id)
	return requireRow(res, err)
}

// UpdateLockoutState 以 login_attempts 旧值为条件写入新的锁定状态
func (s *Store) UpdateLockoutState(ctx context.Context, id string, prevAttempts, attempts int, lockUntil *time.Time) error {
	query := s.rebind(`
		UPDATE accounts SET login_attempts = $1, lock_until = $2, updated_at = $3
		WHERE id = $4 AND login_attempts = $5
	`)
	res, err := s.db.ExecContext(ctx, query, attempts, lockUntil, time.Now(), id, prevAttempts)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

// ResetLockout 登录成功后清零计数并解除锁定
func (s *Store) ResetLockout(ctx context.Context, id string) error {
	query := s.rebind(`
		UPDATE accounts SET login_attempts = 0, lock_until = NULL, updated_at = $1
		WHERE id = $2
	`)
	res, err := s.db.ExecContext(ctx, query, time.Now(), id)
	return requireRow(res, err)
}

// DeleteAccount 删除账号（级联删除其登记与申请）
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM accounts WHERE id = $1`)
	res, err := s.db.ExecContext(ctx, query, id)
	return requireRow(res, err)
}

// requireRow 写操作必须命中一行，否则视为 ErrNotFound
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return wrapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	account, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return account, err
}

func scanAccountRow(row scanner) (*model.Account, error) {
	account := &model.Account{}
	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Phone, &account.Username,
		&account.Bio, &account.Picture, &account.Role, &account.IsActive,
		&account.LoginAttempts, &account.LockUntil, &account.PasswordChangedAt,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return account, nil
}
