// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
//
// 领养状态机的写入放在单个事务里，第一条语句总是对 registrations
// 行做条件 UPDATE：PostgreSQL 上它兼做行锁，SQLite 上写事务天然串行。
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"petmarket/internal/shared/storage"
	"petmarket/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// inTx 在事务中执行 fn，出错自动回滚
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// wrapWriteError 识别唯一约束冲突并转换为领域错误
//
// 通过错误文本识别，避免 repository 依赖具体驱动包：
// pgx 报 "duplicate key value violates unique constraint"，
// modernc.org/sqlite 报 "UNIQUE constraint failed"。
func wrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint") {
		return storage.ErrDuplicate
	}
	return err
}

// marshalPhotos 照片序列按 JSON 存入 TEXT 列
func marshalPhotos(photos []string) (string, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalPhotos TEXT 列回填照片序列；NULL/空串视为空序列
func unmarshalPhotos(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return []string{}, nil
	}
	var photos []string
	if err := json.Unmarshal([]byte(raw.String), &photos); err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []string{}
	}
	return photos, nil
}
