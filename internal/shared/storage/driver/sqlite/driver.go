// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"

	"petmarket/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

func (d *Dialect) BooleanLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	result := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET ", conflictColumn)
	for i, expr := range updateExprs {
		if i > 0 {
			result += ", "
		}
		result += expr
	}
	return result
}

func (d *Dialect) SupportsNullsLast() bool {
	return false
}

func (d *Dialect) NullsLastClause() string {
	return ""
}

func (d *Dialect) SupportsRecursiveCTE() bool {
	return true
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:petmarket.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（等价于 PostgreSQL 迁移文件）
const schema = `
-- accounts
CREATE TABLE IF NOT EXISTS accounts (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(128) NOT NULL,
    phone VARCHAR(32) DEFAULT '',
    username VARCHAR(100) DEFAULT '',
    bio TEXT DEFAULT '',
    picture TEXT DEFAULT '',
    role VARCHAR(16) NOT NULL DEFAULT 'user',
    is_active INTEGER NOT NULL DEFAULT 1,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    lock_until DATETIME,
    password_changed_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role);

-- registrations（宠物字段展开为 pet_* 列，照片序列存 JSON）
CREATE TABLE IF NOT EXISTS registrations (
    id VARCHAR(64) PRIMARY KEY,
    account_id VARCHAR(64) NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    is_active INTEGER NOT NULL DEFAULT 1,
    pet_name VARCHAR(100) NOT NULL,
    pet_type VARCHAR(50) NOT NULL DEFAULT 'Dog',
    pet_breed VARCHAR(100) DEFAULT '',
    pet_age VARCHAR(50) DEFAULT '',
    pet_gender VARCHAR(16) NOT NULL DEFAULT 'Male',
    pet_location VARCHAR(200) DEFAULT '',
    pet_description TEXT DEFAULT '',
    pet_vaccinated INTEGER NOT NULL DEFAULT 0,
    pet_trained INTEGER NOT NULL DEFAULT 0,
    pet_photos TEXT DEFAULT '[]',
    pet_license VARCHAR(100) DEFAULT '',
    pet_adoption_status VARCHAR(20) NOT NULL DEFAULT 'available',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_registrations_status ON registrations(status, pet_adoption_status);
CREATE INDEX IF NOT EXISTS idx_registrations_created ON registrations(created_at);

-- adoptions（领养申请子记录）
CREATE TABLE IF NOT EXISTS adoptions (
    id VARCHAR(64) PRIMARY KEY,
    registration_id VARCHAR(64) NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
    adopter_name VARCHAR(100) NOT NULL,
    adopter_email VARCHAR(255) NOT NULL,
    adopter_phone VARCHAR(32) DEFAULT '',
    message TEXT DEFAULT '',
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    requested_at DATETIME NOT NULL,
    decided_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_adoptions_registration ON adoptions(registration_id, status);
CREATE INDEX IF NOT EXISTS idx_adoptions_email ON adoptions(adopter_email);

-- products
CREATE TABLE IF NOT EXISTS products (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    category VARCHAR(50) NOT NULL,
    description TEXT DEFAULT '',
    price REAL NOT NULL,
    stock INTEGER NOT NULL DEFAULT 0,
    brand VARCHAR(50) DEFAULT '',
    image TEXT,
    in_stock INTEGER NOT NULL DEFAULT 0,
    rating REAL NOT NULL DEFAULT 0,
    reviews INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    featured INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category, is_active);
CREATE INDEX IF NOT EXISTS idx_products_featured ON products(featured, created_at);
`
