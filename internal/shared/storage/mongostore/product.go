// product.go 实现 ProductStore 接口
package mongostore

import (
	"context"
	"regexp"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateProduct 创建商品；商品名撞唯一索引时返回 storage.ErrDuplicate
func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	return insertOne(ctx, s.col(ColProducts), product)
}

// GetProduct 按 ID 查找商品，不存在返回 (nil, nil)
func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return findOne[model.Product](ctx, s.col(ColProducts), bson.D{{Key: "_id", Value: id}})
}

// ListProducts 按过滤条件列出商品，按创建时间倒序
func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*model.Product, error) {
	query := bson.D{}
	if filter.OnlyActive {
		query = append(query, bson.E{Key: "is_active", Value: true})
	}
	if filter.Category != "" {
		query = append(query, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.InStock != nil {
		query = append(query, bson.E{Key: "in_stock", Value: *filter.InStock})
	}
	if filter.Featured != nil {
		query = append(query, bson.E{Key: "featured", Value: *filter.Featured})
	}
	if filter.Search != "" {
		// 大小写不敏感子串匹配，覆盖 name/description/brand
		pattern := regexp.QuoteMeta(filter.Search)
		re := bson.D{{Key: "$regex", Value: pattern}, {Key: "$options", Value: "i"}}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "brand", Value: re}},
		}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}
	return findMany[model.Product](ctx, s.col(ColProducts), query, opts)
}

// UpdateProduct 整体更新商品字段
func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	return updateFields(ctx, s.col(ColProducts), product.ID, bson.D{
		{Key: "name", Value: product.Name},
		{Key: "category", Value: product.Category},
		{Key: "description", Value: product.Description},
		{Key: "price", Value: product.Price},
		{Key: "stock", Value: product.Stock},
		{Key: "brand", Value: product.Brand},
		{Key: "image", Value: product.Image},
		{Key: "in_stock", Value: product.InStock},
		{Key: "rating", Value: product.Rating},
		{Key: "reviews", Value: product.Reviews},
		{Key: "featured", Value: product.Featured},
		{Key: "updated_at", Value: time.Now()},
	})
}

// UpdateProductStock 更新库存并同步 in_stock 派生字段
func (s *Store) UpdateProductStock(ctx context.Context, id string, stock int) error {
	return updateFields(ctx, s.col(ColProducts), id, bson.D{
		{Key: "stock", Value: stock},
		{Key: "in_stock", Value: stock > 0},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SoftDeleteProduct 软删除
func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	return updateFields(ctx, s.col(ColProducts), id, bson.D{
		{Key: "is_active", Value: false},
		{Key: "updated_at", Value: time.Now()},
	})
}

// DeleteProduct 物理删除
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColProducts), id)
}
