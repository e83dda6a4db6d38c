package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistration(adoptions ...AdoptionRequest) *Registration {
	status := PetAvailable
	if len(adoptions) > 0 {
		status = PetPendingAdoption
	}
	return &Registration{
		ID:        "reg-001",
		AccountID: "acc-001",
		Pet: Pet{
			Name:           "Rex",
			Type:           "Dog",
			Breed:          "Labrador",
			Age:            "3",
			Gender:         "Male",
			Location:       "Austin",
			Description:    "Friendly lab",
			Photos:         []string{"p1", "p2", "p3"},
			License:        "LIC-42",
			AdoptionStatus: status,
		},
		Status:    RegistrationStatusApproved,
		Adoptions: adoptions,
		IsActive:  true,
	}
}

func pendingAdoption(id string) AdoptionRequest {
	return AdoptionRequest{
		ID:           id,
		AdopterName:  "Alice",
		AdopterEmail: "alice@example.com",
		AdopterPhone: "555-0101",
		Status:       AdoptionPending,
		RequestedAt:  time.Now(),
	}
}

// TestSubmitAdoption 提交申请推进宠物状态
func TestSubmitAdoption(t *testing.T) {
	r := newTestRegistration()

	err := r.SubmitAdoption(pendingAdoption("ado-1"))
	require.NoError(t, err)
	assert.Equal(t, PetPendingAdoption, r.Pet.AdoptionStatus)
	require.Len(t, r.Adoptions, 1)
	assert.Equal(t, AdoptionPending, r.Adoptions[0].Status)
}

// TestSubmitAdoption_NotAvailable 未过审或已锁定的登记拒绝新申请
func TestSubmitAdoption_NotAvailable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
	}{
		{"登记未过审", func(r *Registration) { r.Status = RegistrationStatusPending }},
		{"登记被驳回", func(r *Registration) { r.Status = RegistrationStatusRejected }},
		{"已有待处理申请", func(r *Registration) { r.Pet.AdoptionStatus = PetPendingAdoption }},
		{"已被领养", func(r *Registration) { r.Pet.AdoptionStatus = PetAdopted }},
		{"登记已停用", func(r *Registration) { r.IsActive = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistration()
			tt.mutate(r)
			err := r.SubmitAdoption(pendingAdoption("ado-1"))
			assert.ErrorIs(t, err, ErrPetNotAvailable)
		})
	}
}

// TestApproveAdoption 批准申请：目标 approved、pending 兄弟连带 rejected、宠物 adopted
func TestApproveAdoption(t *testing.T) {
	now := time.Now()
	decided := now.Add(-time.Hour)
	rejected := pendingAdoption("ado-0")
	rejected.Status = AdoptionRejected
	rejected.DecidedAt = &decided

	r := newTestRegistration(rejected, pendingAdoption("ado-1"), pendingAdoption("ado-2"), pendingAdoption("ado-3"))

	err := r.ApproveAdoption("ado-2", now)
	require.NoError(t, err)

	assert.Equal(t, PetAdopted, r.Pet.AdoptionStatus)
	assert.Equal(t, AdoptionApproved, r.FindAdoption("ado-2").Status)
	assert.Equal(t, AdoptionRejected, r.FindAdoption("ado-1").Status)
	assert.Equal(t, AdoptionRejected, r.FindAdoption("ado-3").Status)

	// 早已被拒绝的兄弟不受影响（DecidedAt 不变）
	assert.Equal(t, decided, *r.FindAdoption("ado-0").DecidedAt)

	// 不变式：adopted ⇔ 恰好一条 approved
	assert.Equal(t, 1, r.ApprovedAdoptions())
}

// TestApproveAdoption_Errors 重复批准与缺失申请
func TestApproveAdoption_Errors(t *testing.T) {
	now := time.Now()
	r := newTestRegistration(pendingAdoption("ado-1"), pendingAdoption("ado-2"))

	require.NoError(t, r.ApproveAdoption("ado-1", now))

	// 终态之后一切决定都被拒绝
	assert.ErrorIs(t, r.ApproveAdoption("ado-2", now), ErrPetAlreadyAdopted)
	assert.ErrorIs(t, r.RejectAdoption("ado-1", now), ErrAdoptionDecided)

	r2 := newTestRegistration(pendingAdoption("ado-1"))
	assert.ErrorIs(t, r2.ApproveAdoption("missing", now), ErrAdoptionNotFound)
}

// TestRejectAdoption_LastPending 拒绝最后一条 pending 申请回退为 available
func TestRejectAdoption_LastPending(t *testing.T) {
	now := time.Now()
	r := newTestRegistration(pendingAdoption("ado-1"))

	require.NoError(t, r.RejectAdoption("ado-1", now))
	assert.Equal(t, PetAvailable, r.Pet.AdoptionStatus)
	assert.Equal(t, AdoptionRejected, r.Adoptions[0].Status)
}

// TestRejectAdoption_SiblingStillPending 仍有 pending 兄弟时保持 pending_adoption
func TestRejectAdoption_SiblingStillPending(t *testing.T) {
	now := time.Now()
	r := newTestRegistration(pendingAdoption("ado-1"), pendingAdoption("ado-2"))

	require.NoError(t, r.RejectAdoption("ado-1", now))
	assert.Equal(t, PetPendingAdoption, r.Pet.AdoptionStatus)
	assert.Equal(t, AdoptionPending, r.FindAdoption("ado-2").Status)
}

// TestHasPendingAdoption 删除登记前的守卫条件
func TestHasPendingAdoption(t *testing.T) {
	r := newTestRegistration(pendingAdoption("ado-1"))
	assert.True(t, r.HasPendingAdoption())

	require.NoError(t, r.RejectAdoption("ado-1", time.Now()))
	assert.False(t, r.HasPendingAdoption())
}

// TestAdoptedInvariant 批准路径永远保持恰好一条 approved
func TestAdoptedInvariant(t *testing.T) {
	now := time.Now()
	r := newTestRegistration(pendingAdoption("a"), pendingAdoption("b"), pendingAdoption("c"))

	require.NoError(t, r.ApproveAdoption("b", now))

	if r.Pet.AdoptionStatus == PetAdopted {
		assert.Equal(t, 1, r.ApprovedAdoptions())
	}
	for i := range r.Adoptions {
		assert.NotEqual(t, AdoptionPending, r.Adoptions[i].Status)
	}
}
