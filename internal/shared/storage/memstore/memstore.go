// Package memstore 内存版 PersistentStore
//
// 供 handler 层测试和无持久化的本地演示使用。单把互斥锁保证
// 所有条件更新与 MongoDB/SQL 实现有相同的原子语义。
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// Store 内存存储实现
type Store struct {
	mu            sync.Mutex
	accounts      map[string]*model.Account
	registrations map[string]*model.Registration
	products      map[string]*model.Product
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*model.Account),
		registrations: make(map[string]*model.Registration),
		products:      make(map[string]*model.Product),
	}
}

// Close 无资源可释放
func (s *Store) Close() error { return nil }

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	return &c
}

func cloneRegistration(r *model.Registration) *model.Registration {
	c := *r
	c.Pet.Photos = append([]string(nil), r.Pet.Photos...)
	c.Adoptions = append([]model.AdoptionRequest(nil), r.Adoptions...)
	return &c
}

func cloneProduct(p *model.Product) *model.Product {
	c := *p
	return &c
}

// === AccountStore ===

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return storage.ErrDuplicate
	}
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return storage.ErrDuplicate
		}
	}
	s.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Account{}
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAccountProfile(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[account.ID]
	if !ok {
		return storage.ErrNotFound
	}
	a.Phone = account.Phone
	a.Username = account.Username
	a.Bio = account.Bio
	a.Picture = account.Picture
	a.Role = account.Role
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.PasswordHash = passwordHash
	t := changedAt
	a.PasswordChangedAt = &t
	a.UpdatedAt = changedAt
	return nil
}

func (s *Store) UpdateLockoutState(ctx context.Context, id string, prevAttempts, attempts int, lockUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.LoginAttempts != prevAttempts {
		return storage.ErrConflict
	}
	a.LoginAttempts = attempts
	a.LockUntil = lockUntil
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ResetLockout(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.LoginAttempts = 0
	a.LockUntil = nil
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

// === RegistrationStore ===

func (s *Store) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[reg.ID]; ok {
		return storage.ErrDuplicate
	}
	for _, r := range s.registrations {
		if r.AccountID == reg.AccountID {
			return storage.ErrDuplicate
		}
	}
	s.registrations[reg.ID] = cloneRegistration(reg)
	return nil
}

func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.registrations[id]; ok {
		return cloneRegistration(r), nil
	}
	return nil, nil
}

func (s *Store) GetRegistrationByAccount(ctx context.Context, accountID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.AccountID == accountID {
			return cloneRegistration(r), nil
		}
	}
	return nil, nil
}

func (s *Store) ListRegistrations(ctx context.Context, onlyActive bool) ([]*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Registration{}
	for _, r := range s.registrations {
		if onlyActive && !r.IsActive {
			continue
		}
		out = append(out, cloneRegistration(r))
	}
	sortRegistrations(out)
	return out, nil
}

func (s *Store) ListAdoptableRegistrations(ctx context.Context) ([]*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Registration{}
	for _, r := range s.registrations {
		if r.Adoptable() {
			out = append(out, cloneRegistration(r))
		}
	}
	sortRegistrations(out)
	return out, nil
}

func (s *Store) ListRegistrationsByAdopterEmail(ctx context.Context, email string) ([]*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Registration{}
	for _, r := range s.registrations {
		for i := range r.Adoptions {
			if r.Adoptions[i].AdopterEmail == email {
				out = append(out, cloneRegistration(r))
				break
			}
		}
	}
	sortRegistrations(out)
	return out, nil
}

func (s *Store) UpdateRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdatePet(ctx context.Context, id string, pet model.Pet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return storage.ErrNotFound
	}
	pet.AdoptionStatus = r.Pet.AdoptionStatus // 领养状态只走状态机
	r.Pet = pet
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AppendAdoption(ctx context.Context, id string, req model.AdoptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return storage.ErrConflict
	}
	if err := r.SubmitAdoption(req); err != nil {
		return storage.ErrConflict
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DecideAdoption(ctx context.Context, id, adoptionID string, approve bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return storage.ErrConflict
	}
	var err error
	if approve {
		err = r.ApproveAdoption(adoptionID, now)
	} else {
		err = r.RejectAdoption(adoptionID, now)
	}
	if err != nil {
		return storage.ErrConflict
	}
	r.UpdatedAt = now
	return nil
}

func (s *Store) DeleteRegistrationIfNoPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok || r.HasPendingAdoption() {
		return storage.ErrConflict
	}
	delete(s.registrations, id)
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.registrations, id)
	return nil
}

func (s *Store) CountRegistrationsByStatus(ctx context.Context) (storage.RegistrationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats storage.RegistrationStats
	for _, r := range s.registrations {
		if !r.IsActive {
			continue
		}
		stats.Total++
		switch r.Status {
		case model.RegistrationStatusPending:
			stats.Pending++
		case model.RegistrationStatusApproved:
			stats.Approved++
		case model.RegistrationStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// === ProductStore ===

func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return storage.ErrDuplicate
	}
	// 商品名唯一，与持久化驱动的唯一索引一致
	for _, p := range s.products {
		if p.Name == product.Name {
			return storage.ErrDuplicate
		}
	}
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return cloneProduct(p), nil
	}
	return nil, nil
}

func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Product{}
	for _, p := range s.products {
		if filter.OnlyActive && !p.IsActive {
			continue
		}
		if filter.Category != "" && string(p.Category) != filter.Category {
			continue
		}
		if filter.InStock != nil && p.InStock != *filter.InStock {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Search != "" && !productMatches(p, filter.Search) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[product.ID]
	if !ok {
		return storage.ErrNotFound
	}
	created := p.CreatedAt
	active := p.IsActive
	*p = *product
	p.CreatedAt = created
	p.IsActive = active
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateProductStock(ctx context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Stock = stock
	p.InStock = stock > 0
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func sortRegistrations(regs []*model.Registration) {
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.After(regs[j].CreatedAt) })
}

func productMatches(p *model.Product, search string) bool {
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Brand), q)
}
