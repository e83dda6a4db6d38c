// interface.go 定义 PersistentStore 接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/（MongoDB，默认）、repository/（SQL）、memstore/（内存，测试用）
//   - 初始化时通过依赖注入传入实现
//
// 并发约定：同一登记上的状态变更必须是"条件更新"——以登记 ID 加期望前置状态
// 为条件原子生效，未命中返回 ErrConflict。两个并发的领养决定至多一个成功。
package storage

import (
	"context"
	"time"

	"petmarket/internal/shared/model"
)

// AccountStore 账号存储
//
// Get* 方法在实体不存在时返回 (nil, nil)，与旧 SQL 实现的
// sql.ErrNoRows → (nil, nil) 行为一致。
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]*model.Account, error)

	// UpdateAccountProfile 更新资料字段（phone/username/bio/picture/role）
	UpdateAccountProfile(ctx context.Context, account *model.Account) error

	// UpdateAccountPassword 更新密码哈希并记录改密时间（旧令牌随之失效）
	UpdateAccountPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error

	// UpdateLockoutState 以 prevAttempts 为期望前值写入新的锁定状态；
	// 期望值不符（并发登录失败竞争）返回 ErrConflict
	UpdateLockoutState(ctx context.Context, id string, prevAttempts, attempts int, lockUntil *time.Time) error

	// ResetLockout 登录成功后清零计数并解除锁定
	ResetLockout(ctx context.Context, id string) error

	// DeleteAccount 删除账号（登记创建失败时的回滚，以及管理员删除登记时联动）
	DeleteAccount(ctx context.Context, id string) error
}

// RegistrationStore 领养登记存储
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	GetRegistrationByAccount(ctx context.Context, accountID string) (*model.Registration, error)

	// ListRegistrations 按创建时间倒序；onlyActive 为 true 时过滤软删除记录
	ListRegistrations(ctx context.Context, onlyActive bool) ([]*model.Registration, error)

	// ListAdoptableRegistrations 公开浏览列表：
	// status=approved、is_active、pet.adoption_status=available
	ListAdoptableRegistrations(ctx context.Context) ([]*model.Registration, error)

	// ListRegistrationsByAdopterEmail 包含该申请人邮箱的全部登记
	ListRegistrationsByAdopterEmail(ctx context.Context, email string) ([]*model.Registration, error)

	// UpdateRegistrationStatus 管理员审核；id 不存在返回 ErrNotFound
	UpdateRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error

	// UpdatePet 更新宠物可编辑字段；不触碰 adoption_status（领养状态只走状态机）
	UpdatePet(ctx context.Context, id string, pet model.Pet) error

	// AppendAdoption 条件追加申请：仅当登记 approved、active 且宠物 available；
	// 前置状态不符返回 ErrConflict（调用方先 Get 区分 404）
	AppendAdoption(ctx context.Context, id string, req model.AdoptionRequest) error

	// DecideAdoption 原子落盘一次领养决定：目标申请必须仍为 pending。
	// approve=true 时连带拒绝其余 pending 兄弟并置宠物 adopted；
	// approve=false 时若无剩余 pending 则回退 available。
	// 目标不处于可决定状态返回 ErrConflict。
	DecideAdoption(ctx context.Context, id, adoptionID string, approve bool, now time.Time) error

	// DeleteRegistrationIfNoPending 仅当不存在 pending 申请时删除；否则 ErrConflict
	DeleteRegistrationIfNoPending(ctx context.Context, id string) error

	// DeleteRegistration 管理员无条件删除
	DeleteRegistration(ctx context.Context, id string) error

	// CountRegistrationsByStatus 管理面板统计（只计 active 记录）
	CountRegistrationsByStatus(ctx context.Context) (RegistrationStats, error)
}

// RegistrationStats 管理面板统计结果
type RegistrationStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ProductFilter 商品列表过滤条件
type ProductFilter struct {
	Category   string // 精确匹配
	InStock    *bool
	Featured   *bool
	Search     string // name/description/brand 大小写不敏感子串
	OnlyActive bool
	Limit      int // 0 = 不限
}

// ProductStore 商品存储
type ProductStore interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	// ListProducts 按创建时间倒序
	ListProducts(ctx context.Context, filter ProductFilter) ([]*model.Product, error)

	// UpdateProduct 整体更新（调用方已合并字段并通过 Validate）
	UpdateProduct(ctx context.Context, product *model.Product) error

	// UpdateProductStock 更新库存并同步重算 in_stock 派生字段
	UpdateProductStock(ctx context.Context, id string, stock int) error

	// SoftDeleteProduct 软删除（is_active=false）
	SoftDeleteProduct(ctx context.Context, id string) error

	// DeleteProduct 物理删除
	DeleteProduct(ctx context.Context, id string) error
}

// PersistentStore 持久化存储的完整接口
type PersistentStore interface {
	AccountStore
	RegistrationStore
	ProductStore

	Close() error
}
