package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	dbName := "petmarket_test"
	s, err := NewStore(uri, dbName)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	// 清空测试数据库
	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	// 重新创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

// Compile-time interface check
var _ storage.PersistentStore = (*Store)(nil)

func testAccount(id, email string) *model.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$12$fakefakefakefakefakefake",
		Role:         model.AccountRoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testRegistration(id, accountID string) *model.Registration {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Registration{
		ID:        id,
		AccountID: accountID,
		Pet: model.Pet{
			Name:           "Buddy",
			Type:           "Dog",
			Breed:          "Labrador",
			Age:            "2 years",
			Gender:         "Male",
			Location:       "Shanghai",
			Photos:         []string{"p1", "p2", "p3"},
			AdoptionStatus: model.PetAvailable,
		},
		Status:    model.RegistrationStatusApproved,
		Adoptions: []model.AdoptionRequest{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	acc := testAccount("acc-001", "owner@example.com")
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// 邮箱唯一索引
	dup := testAccount("acc-002", "owner@example.com")
	if err := s.CreateAccount(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicate", err)
	}

	got, err := s.GetAccountByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail: %v", err)
	}
	if got == nil || got.ID != "acc-001" {
		t.Fatalf("GetAccountByEmail = %+v, want acc-001", got)
	}

	// 不存在的账号返回 (nil, nil)
	missing, err := s.GetAccountByID(ctx, "acc-nope")
	if err != nil || missing != nil {
		t.Fatalf("missing account = (%v, %v), want (nil, nil)", missing, err)
	}

	got.Phone = "13800000000"
	got.Username = "buddy-owner"
	if err := s.UpdateAccountProfile(ctx, got); err != nil {
		t.Fatalf("UpdateAccountProfile: %v", err)
	}
	got, _ = s.GetAccountByID(ctx, "acc-001")
	if got.Phone != "13800000000" || got.Username != "buddy-owner" {
		t.Errorf("profile not updated: %+v", got)
	}

	if err := s.DeleteAccount(ctx, "acc-001"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if err := s.DeleteAccount(ctx, "acc-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete missing = %v, want ErrNotFound", err)
	}
}

func TestUpdateLockoutState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	acc := testAccount("acc-lock", "lock@example.com")
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// 前值匹配：0 → 1
	if err := s.UpdateLockoutState(ctx, "acc-lock", 0, 1, nil); err != nil {
		t.Fatalf("UpdateLockoutState: %v", err)
	}

	// 前值失配（并发失败已被记录）
	if err := s.UpdateLockoutState(ctx, "acc-lock", 0, 1, nil); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("stale attempt count = %v, want ErrConflict", err)
	}

	// 写入锁定
	lockUntil := time.Now().UTC().Add(model.LockDuration).Truncate(time.Millisecond)
	if err := s.UpdateLockoutState(ctx, "acc-lock", 1, 5, &lockUntil); err != nil {
		t.Fatalf("lock write: %v", err)
	}
	got, _ := s.GetAccountByID(ctx, "acc-lock")
	if got.LoginAttempts != 5 || got.LockUntil == nil {
		t.Fatalf("lockout state = attempts %d lock %v", got.LoginAttempts, got.LockUntil)
	}

	// 登录成功：清零并解锁
	if err := s.ResetLockout(ctx, "acc-lock"); err != nil {
		t.Fatalf("ResetLockout: %v", err)
	}
	got, _ = s.GetAccountByID(ctx, "acc-lock")
	if got.LoginAttempts != 0 || got.LockUntil != nil {
		t.Fatalf("after reset = attempts %d lock %v", got.LoginAttempts, got.LockUntil)
	}
}

func TestRegistrationAdoptionFlow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	reg := testRegistration("reg-001", "acc-001")
	if err := s.CreateRegistration(ctx, reg); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	// 同一账号第二条登记撞唯一索引
	dup := testRegistration("reg-002", "acc-001")
	if err := s.CreateRegistration(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate account registration = %v, want ErrDuplicate", err)
	}

	// 公开列表包含这条登记
	adoptable, err := s.ListAdoptableRegistrations(ctx)
	if err != nil || len(adoptable) != 1 {
		t.Fatalf("ListAdoptableRegistrations = %d, %v", len(adoptable), err)
	}

	// 追加两条申请
	now := time.Now().UTC().Truncate(time.Millisecond)
	first := model.AdoptionRequest{
		ID: "adopt-1", AdopterName: "Alice", AdopterEmail: "alice@example.com",
		AdopterPhone: "1", Status: model.AdoptionPending, RequestedAt: now,
	}
	if err := s.AppendAdoption(ctx, "reg-001", first); err != nil {
		t.Fatalf("AppendAdoption: %v", err)
	}
	// pending_adoption 状态下继续受理
	got, _ := s.GetRegistration(ctx, "reg-001")
	if got.Pet.AdoptionStatus != model.PetPendingAdoption {
		t.Fatalf("adoption_status = %q", got.Pet.AdoptionStatus)
	}

	second := first
	second.ID = "adopt-2"
	second.AdopterEmail = "bob@example.com"
	// pending_adoption 状态不再受理新申请
	if err := s.AppendAdoption(ctx, "reg-001", second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("append on pending pet = %v, want ErrConflict", err)
	}
	// 绕过守卫直接 push，模拟历史数据里存在多条 pending 的情形
	if _, err := s.col(ColRegistrations).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: "reg-001"}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "adoptions", Value: second}}}},
	); err != nil {
		t.Fatalf("raw push: %v", err)
	}

	// 批准 adopt-1：adopt-2 连带拒绝，宠物 adopted
	if err := s.DecideAdoption(ctx, "reg-001", "adopt-1", true, now); err != nil {
		t.Fatalf("DecideAdoption approve: %v", err)
	}
	got, _ = s.GetRegistration(ctx, "reg-001")
	if got.Pet.AdoptionStatus != model.PetAdopted {
		t.Errorf("adoption_status = %q, want adopted", got.Pet.AdoptionStatus)
	}
	if got.FindAdoption("adopt-1").Status != model.AdoptionApproved {
		t.Errorf("adopt-1 = %q, want approved", got.FindAdoption("adopt-1").Status)
	}
	if got.FindAdoption("adopt-2").Status != model.AdoptionRejected {
		t.Errorf("adopt-2 = %q, want rejected", got.FindAdoption("adopt-2").Status)
	}
	if got.ApprovedAdoptions() != 1 {
		t.Errorf("approved count = %d, want 1", got.ApprovedAdoptions())
	}

	// 重复决定失配
	if err := s.DecideAdoption(ctx, "reg-001", "adopt-1", true, now); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("double decide = %v, want ErrConflict", err)
	}

	// 申请人视角查询
	mine, err := s.ListRegistrationsByAdopterEmail(ctx, "alice@example.com")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListRegistrationsByAdopterEmail = %d, %v", len(mine), err)
	}
}

func TestRejectLastPendingResetsPet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	reg := testRegistration("reg-r", "acc-r")
	if err := s.CreateRegistration(ctx, reg); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	req := model.AdoptionRequest{
		ID: "adopt-r", AdopterName: "Carol", AdopterEmail: "carol@example.com",
		Status: model.AdoptionPending, RequestedAt: now,
	}
	if err := s.AppendAdoption(ctx, "reg-r", req); err != nil {
		t.Fatalf("AppendAdoption: %v", err)
	}

	if err := s.DecideAdoption(ctx, "reg-r", "adopt-r", false, now); err != nil {
		t.Fatalf("DecideAdoption reject: %v", err)
	}
	got, _ := s.GetRegistration(ctx, "reg-r")
	if got.Pet.AdoptionStatus != model.PetAvailable {
		t.Errorf("adoption_status = %q, want available", got.Pet.AdoptionStatus)
	}
	if got.FindAdoption("adopt-r").DecidedAt == nil {
		t.Error("decided_at not set")
	}
}

func TestDeleteRegistrationIfNoPending(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	reg := testRegistration("reg-d", "acc-d")
	if err := s.CreateRegistration(ctx, reg); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	now := time.Now().UTC()
	req := model.AdoptionRequest{ID: "adopt-d", AdopterEmail: "d@example.com", Status: model.AdoptionPending, RequestedAt: now}
	if err := s.AppendAdoption(ctx, "reg-d", req); err != nil {
		t.Fatalf("AppendAdoption: %v", err)
	}

	// 有 pending 申请：拒绝删除
	if err := s.DeleteRegistrationIfNoPending(ctx, "reg-d"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("delete with pending = %v, want ErrConflict", err)
	}

	if err := s.DecideAdoption(ctx, "reg-d", "adopt-d", false, now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := s.DeleteRegistrationIfNoPending(ctx, "reg-d"); err != nil {
		t.Fatalf("delete after reject: %v", err)
	}
	got, _ := s.GetRegistration(ctx, "reg-d")
	if got != nil {
		t.Fatal("registration still present after delete")
	}
}

func TestCountRegistrationsByStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mk := func(id, acc string, status model.RegistrationStatus, active bool) {
		r := testRegistration(id, acc)
		r.Status = status
		r.IsActive = active
		if err := s.CreateRegistration(ctx, r); err != nil {
			t.Fatalf("CreateRegistration %s: %v", id, err)
		}
	}
	mk("r1", "a1", model.RegistrationStatusPending, true)
	mk("r2", "a2", model.RegistrationStatusApproved, true)
	mk("r3", "a3", model.RegistrationStatusApproved, true)
	mk("r4", "a4", model.RegistrationStatusRejected, true)
	mk("r5", "a5", model.RegistrationStatusApproved, false) // 软删除不计入

	stats, err := s.CountRegistrationsByStatus(ctx)
	if err != nil {
		t.Fatalf("CountRegistrationsByStatus: %v", err)
	}
	want := storage.RegistrationStats{Total: 4, Pending: 1, Approved: 2, Rejected: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestProductCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := &model.Product{
		ID: "prod-001", Name: "Chew Toy", Category: "Toys",
		Price: 9.99, Stock: 3, Brand: "PetCo",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	p.Normalize()
	if err := s.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	got, err := s.GetProduct(ctx, "prod-001")
	if err != nil || got == nil {
		t.Fatalf("GetProduct = (%v, %v)", got, err)
	}
	if !got.InStock {
		t.Error("in_stock should be derived true")
	}

	// 商品名撞唯一索引
	dup := &model.Product{
		ID: "prod-002", Name: "Chew Toy", Category: "Toys",
		Price: 5, Stock: 1, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	dup.Normalize()
	if err := s.CreateProduct(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate product name error = %v, want ErrDuplicate", err)
	}

	// 库存归零联动 in_stock
	if err := s.UpdateProductStock(ctx, "prod-001", 0); err != nil {
		t.Fatalf("UpdateProductStock: %v", err)
	}
	got, _ = s.GetProduct(ctx, "prod-001")
	if got.InStock || got.Stock != 0 {
		t.Errorf("stock = %d in_stock = %v", got.Stock, got.InStock)
	}

	// 过滤查询
	inStock := false
	list, err := s.ListProducts(ctx, storage.ProductFilter{Category: "Toys", InStock: &inStock, OnlyActive: true})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListProducts = %d, %v", len(list), err)
	}
	list, _ = s.ListProducts(ctx, storage.ProductFilter{Search: "chew"})
	if len(list) != 1 {
		t.Errorf("search match = %d, want 1", len(list))
	}

	if err := s.SoftDeleteProduct(ctx, "prod-001"); err != nil {
		t.Fatalf("SoftDeleteProduct: %v", err)
	}
	list, _ = s.ListProducts(ctx, storage.ProductFilter{OnlyActive: true})
	if len(list) != 0 {
		t.Errorf("active list after soft delete = %d, want 0", len(list))
	}

	if err := s.DeleteProduct(ctx, "prod-001"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := s.DeleteProduct(ctx, "prod-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete missing = %v, want ErrNotFound", err)
	}
}
