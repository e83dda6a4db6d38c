// product.go 商品目录的存储操作
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
	"petmarket/internal/shared/storage/dbutil"
)

const productColumns = `id, name, category, description, price, stock, brand, image,
	in_stock, rating, reviews, is_active, featured, created_at, updated_at`

// escapeLike 转义用户输入中的 LIKE 元字符，搜索词按字面匹配
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CreateProduct 创建商品
func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	query := s.rebind(`
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`)
	_, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Category, product.Description,
		product.Price, product.Stock, product.Brand, product.Image,
		product.InStock, product.Rating, product.Reviews, product.IsActive, product.Featured,
		product.CreatedAt, product.UpdatedAt)
	return wrapWriteError(err)
}

// GetProduct 按 ID 查找商品，不存在返回 (nil, nil)
func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	query := s.rebind(`SELECT ` + productColumns + ` FROM products WHERE id = $1`)
	product, err := scanProductRow(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return product, err
}

// ListProducts 按过滤条件列出商品，按创建时间倒序
func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*model.Product, error) {
	conditions := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + dbutil.Itoa(len(args))
	}

	if filter.OnlyActive {
		conditions = append(conditions, "is_active = "+s.dialect.BooleanLiteral(true))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(filter.Category))
	}
	if filter.InStock != nil {
		conditions = append(conditions, "in_stock = "+s.dialect.BooleanLiteral(*filter.InStock))
	}
	if filter.Featured != nil {
		conditions = append(conditions, "featured = "+s.dialect.BooleanLiteral(*filter.Featured))
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		conditions = append(conditions,
			"(LOWER(name) LIKE LOWER("+arg(pattern)+") ESCAPE '\\'"+
				" OR LOWER(description) LIKE LOWER("+arg(pattern)+") ESCAPE '\\'"+
				" OR LOWER(brand) LIKE LOWER("+arg(pattern)+") ESCAPE '\\')")
	}

	query, args := dbutil.BuildDynamicQuery(s.dialect,
		`SELECT `+productColumns+` FROM products`, conditions, args)
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + dbutil.Itoa(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*model.Product{}
	for rows.Next() {
		product, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpdateProduct 整体更新商品字段
func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	query := s.rebind(`
		UPDATE products SET
			name = $1, category = $2, description = $3, price = $4, stock = $5,
			brand = $6, image = $7, in_stock = $8, rating = $9, reviews = $10,
			featured = $11, updated_at = $12
		WHERE id = $13
	`)
	res, err := s.db.ExecContext(ctx, query,
		product.Name, product.Category, product.Description, product.Price, product.Stock,
		product.Brand, product.Image, product.InStock, product.Rating, product.Reviews,
		product.Featured, time.Now(), product.ID)
	return requireRow(res, err)
}

// UpdateProductStock 更新库存并同步 in_stock 派生字段
func (s *Store) UpdateProductStock(ctx context.Context, id string, stock int) error {
	query := s.rebind(`UPDATE products SET stock = $1, in_stock = $2, updated_at = $3 WHERE id = $4`)
	res, err := s.db.ExecContext(ctx, query, stock, stock > 0, time.Now(), id)
	return requireRow(res, err)
}

// SoftDeleteProduct 软删除
func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE products SET is_active = $1, updated_at = $2 WHERE id = $3`)
	res, err := s.db.ExecContext(ctx, query, false, time.Now(), id)
	return requireRow(res, err)
}

// DeleteProduct 物理删除
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM products WHERE id = $1`)
	res, err := s.db.ExecContext(ctx, query, id)
	return requireRow(res, err)
}

func scanProductRow(row scanner) (*model.Product, error) {
	product := &model.Product{}
	err := row.Scan(
		&product.ID, &product.Name, &product.Category, &product.Description,
		&product.Price, &product.Stock, &product.Brand, &product.Image,
		&product.InStock, &product.Rating, &product.Reviews, &product.IsActive, &product.Featured,
		&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}
