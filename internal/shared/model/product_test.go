package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProduct() *Product {
	return &Product{
		ID:       "prod-001",
		Name:     "Tough Chew Bone",
		Category: "Toys",
		Price:    12.99,
		Stock:    20,
		Brand:    "PawCo",
	}
}

// TestProductValidate 字段约束
func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Product)
		wantErr string
	}{
		{"合法商品", func(p *Product) {}, ""},
		{"缺少名称", func(p *Product) { p.Name = "" }, "name is required"},
		{"名称超长", func(p *Product) { p.Name = strings.Repeat("x", 101) }, "cannot exceed 100"},
		{"非法分类", func(p *Product) { p.Category = "Rockets" }, "not a valid category"},
		{"描述超长", func(p *Product) { p.Description = strings.Repeat("x", 1001) }, "cannot exceed 1000"},
		{"零价格", func(p *Product) { p.Price = 0 }, "greater than 0"},
		{"负价格", func(p *Product) { p.Price = -1 }, "greater than 0"},
		{"负库存", func(p *Product) { p.Stock = -1 }, "cannot be negative"},
		{"品牌超长", func(p *Product) { p.Brand = strings.Repeat("x", 51) }, "cannot exceed 50"},
		{"评分越界", func(p *Product) { p.Rating = 5.5 }, "between 0 and 5"},
		{"负评论数", func(p *Product) { p.Reviews = -1 }, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestProductNormalize 每次写入重算 in_stock 派生字段
func TestProductNormalize(t *testing.T) {
	p := validProduct()
	p.Name = "  Tough Chew Bone "
	p.Stock = 0
	p.InStock = true

	p.Normalize()
	assert.Equal(t, "Tough Chew Bone", p.Name)
	assert.False(t, p.InStock)

	p.Stock = 3
	p.Normalize()
	assert.True(t, p.InStock)
}

// TestValidProductCategory 枚举闭集
func TestValidProductCategory(t *testing.T) {
	for _, c := range ProductCategories {
		assert.True(t, ValidProductCategory(c))
	}
	assert.False(t, ValidProductCategory("Spaceships"))
	assert.False(t, ValidProductCategory(""))
}
