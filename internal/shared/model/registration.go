// registration.go 包含领养登记相关的数据模型定义：
//   - Registration：一条登记 = 一个账号 + 一只宠物 + 领养申请列表
//   - RegistrationStatus：登记审核状态枚举
//   - PetAdoptionStatus / AdoptionRequestStatus：领养维度状态枚举
//   - 领养状态机的纯转移函数（ApproveAdoption / RejectAdoption）
package model

import (
	"errors"
	"time"
)

// ============================================================================
// 状态枚举
// ============================================================================

// RegistrationStatus 登记审核状态（唯一权威字段，pet 上不再有影子状态）
type RegistrationStatus string

const (
	// RegistrationStatusPending 待审核
	RegistrationStatusPending RegistrationStatus = "pending"

	// RegistrationStatusApproved 审核通过，可被公开浏览
	RegistrationStatusApproved RegistrationStatus = "approved"

	// RegistrationStatusRejected 审核驳回
	RegistrationStatusRejected RegistrationStatus = "rejected"
)

// ValidRegistrationStatus 校验审核状态枚举值
func ValidRegistrationStatus(s RegistrationStatus) bool {
	switch s {
	case RegistrationStatusPending, RegistrationStatusApproved, RegistrationStatusRejected:
		return true
	}
	return false
}

// PetAdoptionStatus 宠物的领养维度状态
type PetAdoptionStatus string

const (
	// PetAvailable 可被领养
	PetAvailable PetAdoptionStatus = "available"

	// PetPendingAdoption 存在待处理的领养申请
	PetPendingAdoption PetAdoptionStatus = "pending_adoption"

	// PetAdopted 已被领养（终态，无撤销操作）
	PetAdopted PetAdoptionStatus = "adopted"
)

// AdoptionRequestStatus 单条领养申请的状态
type AdoptionRequestStatus string

const (
	// AdoptionPending 待宠物主人处理
	AdoptionPending AdoptionRequestStatus = "pending"

	// AdoptionApproved 主人同意（同一登记至多一条）
	AdoptionApproved AdoptionRequestStatus = "approved"

	// AdoptionRejected 主人拒绝，或因其他申请被批准而连带拒绝
	AdoptionRejected AdoptionRequestStatus = "rejected"
)

// ============================================================================
// Pet / AdoptionRequest / Registration
// ============================================================================

// Pet 登记中内嵌的宠物信息
type Pet struct {
	Name        string   `json:"name" bson:"name" db:"name"`
	Type        string   `json:"type" bson:"type" db:"type"` // 默认 "Dog"
	Breed       string   `json:"breed" bson:"breed" db:"breed"`
	Age         string   `json:"age" bson:"age" db:"age"`
	Gender      string   `json:"gender" bson:"gender" db:"gender"` // 默认 "Male"
	Location    string   `json:"location" bson:"location" db:"location"`
	Description string   `json:"description" bson:"description" db:"description"`
	Vaccinated  bool     `json:"vaccinated" bson:"vaccinated" db:"vaccinated"`
	Trained     bool     `json:"trained" bson:"trained" db:"trained"`
	Photos      []string `json:"photos" bson:"photos" db:"photos"` // 照片引用（URL 或内联编码数据）
	License     string   `json:"license" bson:"license" db:"license"`

	AdoptionStatus PetAdoptionStatus `json:"adoption_status" bson:"adoption_status" db:"adoption_status"`
}

// AdoptionRequest 一条领养申请子记录
type AdoptionRequest struct {
	ID           string                `json:"id" bson:"id"`
	AdopterName  string                `json:"adopter_name" bson:"adopter_name"`
	AdopterEmail string                `json:"adopter_email" bson:"adopter_email"`
	AdopterPhone string                `json:"adopter_phone" bson:"adopter_phone"`
	Message      string                `json:"message,omitempty" bson:"message,omitempty"`
	Status       AdoptionRequestStatus `json:"status" bson:"status"`
	RequestedAt  time.Time             `json:"requested_at" bson:"requested_at"`
	DecidedAt    *time.Time            `json:"decided_at,omitempty" bson:"decided_at,omitempty"`
}

// Registration 领养登记：一个账号恰好绑定一只宠物及其领养申请序列
type Registration struct {
	ID        string             `json:"id" bson:"_id" db:"id"`
	AccountID string             `json:"account_id" bson:"account_id" db:"account_id"`
	Pet       Pet                `json:"pet" bson:"pet"`
	Status    RegistrationStatus `json:"status" bson:"status" db:"status"`
	Adoptions []AdoptionRequest  `json:"adoptions" bson:"adoptions"`
	IsActive  bool               `json:"is_active" bson:"is_active" db:"is_active"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ============================================================================
// 领养状态机
// ============================================================================

var (
	// ErrAdoptionNotFound 指定的领养申请不存在
	ErrAdoptionNotFound = errors.New("adoption request not found")

	// ErrAdoptionDecided 申请已被处理过，不能重复决定
	ErrAdoptionDecided = errors.New("adoption request already decided")

	// ErrPetAlreadyAdopted 宠物已被领养，不再接受任何状态变更
	ErrPetAlreadyAdopted = errors.New("pet already adopted")

	// ErrPetNotAvailable 宠物当前不可申请领养
	ErrPetNotAvailable = errors.New("pet is not available for adoption")

	// ErrPendingAdoptions 存在待处理申请，禁止删除登记
	ErrPendingAdoptions = errors.New("registration has pending adoption requests")
)

// FindAdoption 按子记录 ID 查找领养申请
func (r *Registration) FindAdoption(adoptionID string) *AdoptionRequest {
	for i := range r.Adoptions {
		if r.Adoptions[i].ID == adoptionID {
			return &r.Adoptions[i]
		}
	}
	return nil
}

// HasPendingAdoption 是否存在待处理的领养申请
func (r *Registration) HasPendingAdoption() bool {
	for i := range r.Adoptions {
		if r.Adoptions[i].Status == AdoptionPending {
			return true
		}
	}
	return false
}

// ApprovedAdoptions 已批准申请的数量（不变式：adopted ⇔ 恰好 1）
func (r *Registration) ApprovedAdoptions() int {
	n := 0
	for i := range r.Adoptions {
		if r.Adoptions[i].Status == AdoptionApproved {
			n++
		}
	}
	return n
}

// Adoptable 登记是否可以接受新的领养申请
func (r *Registration) Adoptable() bool {
	return r.IsActive &&
		r.Status == RegistrationStatusApproved &&
		r.Pet.AdoptionStatus == PetAvailable
}

// SubmitAdoption 追加一条领养申请并推进宠物状态
//
// 前置条件：登记已审核通过且宠物 available，否则返回 ErrPetNotAvailable
func (r *Registration) SubmitAdoption(req AdoptionRequest) error {
	if !r.Adoptable() {
		return ErrPetNotAvailable
	}
	req.Status = AdoptionPending
	r.Adoptions = append(r.Adoptions, req)
	r.Pet.AdoptionStatus = PetPendingAdoption
	return nil
}

// ApproveAdoption 批准一条待处理申请
//
// 副作用（同一事务内生效）：
//   - 目标申请置为 approved
//   - 其余所有 pending 申请连带置为 rejected；已决定的申请不受影响
//   - 宠物状态置为 adopted（终态）
func (r *Registration) ApproveAdoption(adoptionID string, now time.Time) error {
	if r.Pet.AdoptionStatus == PetAdopted {
		return ErrPetAlreadyAdopted
	}
	target := r.FindAdoption(adoptionID)
	if target == nil {
		return ErrAdoptionNotFound
	}
	if target.Status != AdoptionPending {
		return ErrAdoptionDecided
	}

	target.Status = AdoptionApproved
	target.DecidedAt = &now
	for i := range r.Adoptions {
		sib := &r.Adoptions[i]
		if sib.ID != adoptionID && sib.Status == AdoptionPending {
			sib.Status = AdoptionRejected
			sib.DecidedAt = &now
		}
	}
	r.Pet.AdoptionStatus = PetAdopted
	return nil
}

// RejectAdoption 拒绝一条待处理申请
//
// 若拒绝后不再有 pending 申请（且宠物未被领养），宠物状态回退为 available
func (r *Registration) RejectAdoption(adoptionID string, now time.Time) error {
	target := r.FindAdoption(adoptionID)
	if target == nil {
		return ErrAdoptionNotFound
	}
	if target.Status != AdoptionPending {
		return ErrAdoptionDecided
	}

	target.Status = AdoptionRejected
	target.DecidedAt = &now
	if !r.HasPendingAdoption() && r.Pet.AdoptionStatus != PetAdopted {
		r.Pet.AdoptionStatus = PetAvailable
	}
	return nil
}
