// registration.go 实现 RegistrationStore 接口
//
// 领养状态机的写入全部是条件更新：过滤器携带期望前置状态，
// MatchedCount 为 0 即 storage.ErrConflict。并发决定至多一个生效，
// 无需事务也不会出现两条 approved 申请。
package mongostore

import (
	"context"
	"time"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateRegistration 创建登记；account_id 撞唯一索引时返回 storage.ErrDuplicate
func (s *Store) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	return insertOne(ctx, s.col(ColRegistrations), reg)
}

// GetRegistration 按 ID 查找登记，不存在返回 (nil, nil)
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return findOne[model.Registration](ctx, s.col(ColRegistrations), bson.D{{Key: "_id", Value: id}})
}

// GetRegistrationByAccount 按账号 ID 查找登记，不存在返回 (nil, nil)
func (s *Store) GetRegistrationByAccount(ctx context.Context, accountID string) (*model.Registration, error) {
	return findOne[model.Registration](ctx, s.col(ColRegistrations), bson.D{{Key: "account_id", Value: accountID}})
}

// ListRegistrations 列出登记，按创建时间倒序
func (s *Store) ListRegistrations(ctx context.Context, onlyActive bool) ([]*model.Registration, error) {
	filter := bson.D{}
	if onlyActive {
		filter = bson.D{{Key: "is_active", Value: true}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Registration](ctx, s.col(ColRegistrations), filter, opts)
}

// ListAdoptableRegistrations 公开浏览列表：已审核通过且宠物可领养
func (s *Store) ListAdoptableRegistrations(ctx context.Context) ([]*model.Registration, error) {
	filter := bson.D{
		{Key: "is_active", Value: true},
		{Key: "status", Value: model.RegistrationStatusApproved},
		{Key: "pet.adoption_status", Value: model.PetAvailable},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Registration](ctx, s.col(ColRegistrations), filter, opts)
}

// ListRegistrationsByAdopterEmail 包含该申请人邮箱的全部登记
func (s *Store) ListRegistrationsByAdopterEmail(ctx context.Context, email string) ([]*model.Registration, error) {
	filter := bson.D{{Key: "adoptions.adopter_email", Value: email}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Registration](ctx, s.col(ColRegistrations), filter, opts)
}

// UpdateRegistrationStatus 管理员审核
func (s *Store) UpdateRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	return updateFields(ctx, s.col(ColRegistrations), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	})
}

// UpdatePet 更新宠物可编辑字段，保留 adoption_status 不动
func (s *Store) UpdatePet(ctx context.Context, id string, pet model.Pet) error {
	return updateFields(ctx, s.col(ColRegistrations), id, bson.D{
		{Key: "pet.name", Value: pet.Name},
		{Key: "pet.type", Value: pet.Type},
		{Key: "pet.breed", Value: pet.Breed},
		{Key: "pet.age", Value: pet.Age},
		{Key: "pet.gender", Value: pet.Gender},
		{Key: "pet.location", Value: pet.Location},
		{Key: "pet.description", Value: pet.Description},
		{Key: "pet.vaccinated", Value: pet.Vaccinated},
		{Key: "pet.trained", Value: pet.Trained},
		{Key: "pet.photos", Value: pet.Photos},
		{Key: "pet.license", Value: pet.License},
		{Key: "updated_at", Value: time.Now()},
	})
}

// AppendAdoption 条件追加领养申请
//
// 过滤器要求登记 approved、is_active 且宠物 available，
// 同一条 $push + $set 里推进宠物状态到 pending_adoption。
func (s *Store) AppendAdoption(ctx context.Context, id string, req model.AdoptionRequest) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "is_active", Value: true},
		{Key: "status", Value: model.RegistrationStatusApproved},
		{Key: "pet.adoption_status", Value: model.PetAvailable},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "adoptions", Value: req}}},
		{Key: "$set", Value: bson.D{
			{Key: "pet.adoption_status", Value: model.PetPendingAdoption},
			{Key: "updated_at", Value: time.Now()},
		}},
	}
	return updateWhere(ctx, s.col(ColRegistrations), filter, update)
}

// DecideAdoption 原子落盘一次领养决定
//
// 批准：单条 UpdateOne 用两个 arrayFilters 同时改目标申请和兄弟申请，
// 并把宠物置为 adopted——要么全部生效要么全不生效。
// 拒绝：先条件拒绝目标，再做一次"无剩余 pending 则回退 available"的条件更新。
func (s *Store) DecideAdoption(ctx context.Context, id, adoptionID string, approve bool, now time.Time) error {
	// 目标申请必须仍为 pending，且宠物未进入终态
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "pet.adoption_status", Value: bson.D{{Key: "$ne", Value: model.PetAdopted}}},
		{Key: "adoptions", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "id", Value: adoptionID},
			{Key: "status", Value: model.AdoptionPending},
		}}}},
	}

	if approve {
		update := bson.D{{Key: "$set", Value: bson.D{
			{Key: "adoptions.$[target].status", Value: model.AdoptionApproved},
			{Key: "adoptions.$[target].decided_at", Value: now},
			{Key: "adoptions.$[sibling].status", Value: model.AdoptionRejected},
			{Key: "adoptions.$[sibling].decided_at", Value: now},
			{Key: "pet.adoption_status", Value: model.PetAdopted},
			{Key: "updated_at", Value: now},
		}}}
		opts := options.UpdateOne().SetArrayFilters([]interface{}{
			bson.D{{Key: "target.id", Value: adoptionID}},
			bson.D{
				{Key: "sibling.id", Value: bson.D{{Key: "$ne", Value: adoptionID}}},
				{Key: "sibling.status", Value: model.AdoptionPending},
			},
		})
		return updateWhere(ctx, s.col(ColRegistrations), filter, update, opts)
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "adoptions.$[target].status", Value: model.AdoptionRejected},
		{Key: "adoptions.$[target].decided_at", Value: now},
		{Key: "updated_at", Value: now},
	}}}
	opts := options.UpdateOne().SetArrayFilters([]interface{}{
		bson.D{{Key: "target.id", Value: adoptionID}},
	})
	if err := updateWhere(ctx, s.col(ColRegistrations), filter, update, opts); err != nil {
		return err
	}

	// 拒绝后若不再有 pending 申请，宠物回退 available。
	// 并发新申请会让 $not $elemMatch 失配，此时保持 pending_adoption 是正确结果。
	resetFilter := bson.D{
		{Key: "_id", Value: id},
		{Key: "pet.adoption_status", Value: model.PetPendingAdoption},
		{Key: "adoptions", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "status", Value: model.AdoptionPending},
		}}}}}},
	}
	resetUpdate := bson.D{{Key: "$set", Value: bson.D{
		{Key: "pet.adoption_status", Value: model.PetAvailable},
		{Key: "updated_at", Value: now},
	}}}
	_, err := s.col(ColRegistrations).UpdateOne(ctx, resetFilter, resetUpdate)
	return wrapError(err)
}

// DeleteRegistrationIfNoPending 仅当不存在 pending 申请时删除
func (s *Store) DeleteRegistrationIfNoPending(ctx context.Context, id string) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "adoptions", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "status", Value: model.AdoptionPending},
		}}}}}},
	}
	res, err := s.col(ColRegistrations).DeleteOne(ctx, filter)
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrConflict
	}
	return nil
}

// DeleteRegistration 管理员无条件删除
func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColRegistrations), id)
}

// CountRegistrationsByStatus 管理面板统计，只计 active 记录
func (s *Store) CountRegistrationsByStatus(ctx context.Context) (storage.RegistrationStats, error) {
	var stats storage.RegistrationStats

	type row struct {
		Status model.RegistrationStatus `bson:"_id"`
		Count  int                      `bson:"count"`
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "is_active", Value: true}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.col(ColRegistrations).Aggregate(ctx, pipeline)
	if err != nil {
		return stats, wrapError(err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var r row
		if err := cursor.Decode(&r); err != nil {
			return stats, err
		}
		stats.Total += r.Count
		switch r.Status {
		case model.RegistrationStatusPending:
			stats.Pending = r.Count
		case model.RegistrationStatusApproved:
			stats.Approved = r.Count
		case model.RegistrationStatusRejected:
			stats.Rejected = r.Count
		}
	}
	return stats, cursor.Err()
}
