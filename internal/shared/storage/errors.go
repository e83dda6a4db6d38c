// Package storage 定义持久化存储层抽象接口与领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（mongostore/repository/memstore）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 条件更新未命中：文档存在但不处于期望的前置状态
	// （例如宠物已不可领养、锁定计数被并发修改）
	ErrConflict = errors.New("conflict: entity not in expected state")

	// ErrDuplicate 唯一键冲突（重复 ID 或重复邮箱）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
