// product.go 包含商品目录的数据模型定义
package model

import (
	"fmt"
	"strings"
	"time"
)

// ProductCategory 商品分类（固定枚举）
type ProductCategory string

// 全部合法分类
var ProductCategories = []ProductCategory{
	"Food & Treats",
	"Toys",
	"Grooming",
	"Health & Wellness",
	"Beds & Furniture",
	"Collars & Leashes",
	"Bowls & Feeders",
	"Carriers & Crates",
	"Clothing & Accessories",
	"Training & Behavior",
}

// ValidProductCategory 校验分类枚举值
func ValidProductCategory(c ProductCategory) bool {
	for _, v := range ProductCategories {
		if v == c {
			return true
		}
	}
	return false
}

// 字段长度与数值范围约束
const (
	MaxProductNameLen        = 100
	MaxProductDescriptionLen = 1000
	MaxProductBrandLen       = 50
	MaxProductRating         = 5
)

// Product 商品
type Product struct {
	ID          string          `json:"id" bson:"_id" db:"id"`
	Name        string          `json:"name" bson:"name" db:"name"`
	Category    ProductCategory `json:"category" bson:"category" db:"category"`
	Description string          `json:"description" bson:"description" db:"description"`
	Price       float64         `json:"price" bson:"price" db:"price"`
	Stock       int             `json:"stock" bson:"stock" db:"stock"`
	Brand       string          `json:"brand" bson:"brand" db:"brand"`
	Image       *string         `json:"image,omitempty" bson:"image,omitempty" db:"image"`
	InStock     bool            `json:"in_stock" bson:"in_stock" db:"in_stock"` // 派生字段：stock > 0
	Rating      float64         `json:"rating" bson:"rating" db:"rating"`
	Reviews     int             `json:"reviews" bson:"reviews" db:"reviews"`
	IsActive    bool            `json:"is_active" bson:"is_active" db:"is_active"`
	Featured    bool            `json:"featured" bson:"featured" db:"featured"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Normalize 规整字符串字段并重算派生字段，任何写入前调用
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Brand = strings.TrimSpace(p.Brand)
	p.InStock = p.Stock > 0
}

// Validate 校验全部受约束的字段
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if len(p.Name) > MaxProductNameLen {
		return fmt.Errorf("product name cannot exceed %d characters", MaxProductNameLen)
	}
	if !ValidProductCategory(p.Category) {
		return fmt.Errorf("%q is not a valid category", p.Category)
	}
	if len(p.Description) > MaxProductDescriptionLen {
		return fmt.Errorf("description cannot exceed %d characters", MaxProductDescriptionLen)
	}
	if p.Price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if len(p.Brand) > MaxProductBrandLen {
		return fmt.Errorf("brand name cannot exceed %d characters", MaxProductBrandLen)
	}
	if p.Rating < 0 || p.Rating > MaxProductRating {
		return fmt.Errorf("rating must be between 0 and %d", MaxProductRating)
	}
	if p.Reviews < 0 {
		return fmt.Errorf("number of reviews cannot be negative")
	}
	return nil
}
