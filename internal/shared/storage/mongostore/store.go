// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
//
// 领养状态机与登录锁定的变更全部走"单条条件 UpdateOne"：
// 过滤器带上期望前置状态，未命中即返回 storage.ErrConflict，
// 保证同一登记上的并发决定至多一个生效。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColAccounts      = "accounts"
	ColRegistrations = "registrations"
	ColProducts      = "products"
)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "petmarket"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	// 创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// accounts：邮箱全局唯一（两类身份空间合并后共用）
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "role", Value: 1}}, false},

		// registrations：一个账号至多一条登记
		{ColRegistrations, bson.D{{Key: "account_id", Value: 1}}, true},
		{ColRegistrations, bson.D{{Key: "status", Value: 1}, {Key: "pet.adoption_status", Value: 1}}, false},
		{ColRegistrations, bson.D{{Key: "adoptions.adopter_email", Value: 1}}, false},
		{ColRegistrations, bson.D{{Key: "created_at", Value: -1}}, false},

		// products：商品名唯一，并发创建由索引兜底
		{ColProducts, bson.D{{Key: "name", Value: 1}}, true},
		{ColProducts, bson.D{{Key: "category", Value: 1}, {Key: "is_active", Value: 1}}, false},
		{ColProducts, bson.D{{Key: "featured", Value: -1}, {Key: "created_at", Value: -1}}, false},
		{ColProducts, bson.D{{Key: "price", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
