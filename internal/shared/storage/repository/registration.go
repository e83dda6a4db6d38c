// registration.go 领养登记相关的存储操作
//
// 登记主表 registrations + 子表 adoptions。状态机写入都在事务里，
// 第一条语句对登记行做条件 UPDATE 以兼做行锁。
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

const registrationColumns = `id, account_id, status, is_active,
	pet_name, pet_type, pet_breed, pet_age, pet_gender, pet_location, pet_description,
	pet_vaccinated, pet_trained, pet_photos, pet_license, pet_adoption_status,
	created_at, updated_at`

const adoptionColumns = `id, registration_id, adopter_name, adopter_email, adopter_phone,
	message, status, requested_at, decided_at`

// CreateRegistration 创建登记；account_id 撞唯一约束返回 storage.ErrDuplicate
func (s *Store) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	photos, err := marshalPhotos(reg.Pet.Photos)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind(`
			INSERT INTO registrations (` + registrationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`)
		_, err := tx.ExecContext(ctx, query,
			reg.ID, reg.AccountID, reg.Status, reg.IsActive,
			reg.Pet.Name, reg.Pet.Type, reg.Pet.Breed, reg.Pet.Age, reg.Pet.Gender,
			reg.Pet.Location, reg.Pet.Description, reg.Pet.Vaccinated, reg.Pet.Trained,
			photos, reg.Pet.License, reg.Pet.AdoptionStatus,
			reg.CreatedAt, reg.UpdatedAt)
		if err != nil {
			return wrapWriteError(err)
		}
		for i := range reg.Adoptions {
			if err := insertAdoption(ctx, tx, s, reg.ID, &reg.Adoptions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRegistration 按 ID 查找登记，不存在返回 (nil, nil)
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.getRegistrationBy(ctx, "id", id)
}

// GetRegistrationByAccount 按账号 ID 查找登记，不存在返回 (nil, nil)
func (s *Store) GetRegistrationByAccount(ctx context.Context, accountID string) (*model.Registration, error) {
	return s.getRegistrationBy(ctx, "account_id", accountID)
}

func (s *Store) getRegistrationBy(ctx context.Context, column, value string) (*model.Registration, error) {
	query := s.rebind(`SELECT ` + registrationColumns + ` FROM registrations WHERE ` + column + ` = $1`)
	reg, err := scanRegistrationRow(s.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadAdoptions(ctx, []*model.Registration{reg}); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListRegistrations 列出登记，按创建时间倒序
func (s *Store) ListRegistrations(ctx context.Context, onlyActive bool) ([]*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations`
	if onlyActive {
		query += ` WHERE is_active = ` + s.dialect.BooleanLiteral(true)
	}
	query += ` ORDER BY created_at DESC`
	return s.queryRegistrations(ctx, query)
}

// ListAdoptableRegistrations 公开浏览列表
func (s *Store) ListAdoptableRegistrations(ctx context.Context) ([]*model.Registration, error) {
	query := s.rebind(`
		SELECT ` + registrationColumns + ` FROM registrations
		WHERE is_active = ` + s.dialect.BooleanLiteral(true) + `
		  AND status = $1 AND pet_adoption_status = $2
		ORDER BY created_at DESC
	`)
	return s.queryRegistrations(ctx, query, model.RegistrationStatusApproved, model.PetAvailable)
}

// ListRegistrationsByAdopterEmail 包含该申请人邮箱的全部登记
func (s *Store) ListRegistrationsByAdopterEmail(ctx context.Context, email string) ([]*model.Registration, error) {
	query := s.rebind(`
		SELECT DISTINCT r.id, r.account_id, r.status, r.is_active,
			r.pet_name, r.pet_type, r.pet_breed, r.pet_age, r.pet_gender, r.pet_location, r.pet_description,
			r.pet_vaccinated, r.pet_trained, r.pet_photos, r.pet_license, r.pet_adoption_status,
			r.created_at, r.updated_at
		FROM registrations r
		JOIN adoptions a ON a.registration_id = r.id
		WHERE a.adopter_email = $1
		ORDER BY r.created_at DESC
	`)
	return s.queryRegistrations(ctx, query, email)
}

// UpdateRegistrationStatus 管理员审核
func (s *Store) UpdateRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	query := s.rebind(`UPDATE registrations SET status = $1, updated_at = $2 WHERE id = $3`)
	res, err := s.db.ExecContext(ctx, query, status, time.Now(), id)
	return requireRow(res, err)
}

// UpdatePet 更新宠物可编辑字段，保留 pet_adoption_status 不动
func (s *Store) UpdatePet(ctx context.Context, id string, pet model.Pet) error {
	photos, err := marshalPhotos(pet.Photos)
	if err != nil {
		return err
	}
	query := s.rebind(`
		UPDATE registrations SET
			pet_name = $1, pet_type = $2, pet_breed = $3, pet_age = $4, pet_gender = $5,
			pet_location = $6, pet_description = $7, pet_vaccinated = $8, pet_trained = $9,
			pet_photos = $10, pet_license = $11, updated_at = $12
		WHERE id = $13
	`)
	res, err := s.db.ExecContext(ctx, query,
		pet.Name, pet.Type, pet.Breed, pet.Age, pet.Gender,
		pet.Location, pet.Description, pet.Vaccinated, pet.Trained,
		photos, pet.License, time.Now(), id)
	return requireRow(res, err)
}

// AppendAdoption 条件追加领养申请
func (s *Store) AppendAdoption(ctx context.Context, id string, req model.AdoptionRequest) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// 条件推进宠物状态，兼做行锁
		query := s.rebind(`
			UPDATE registrations SET pet_adoption_status = $1, updated_at = $2
			WHERE id = $3 AND is_active = ` + s.dialect.BooleanLiteral(true) + `
			  AND status = $4 AND pet_adoption_status = $5
		`)
		res, err := tx.ExecContext(ctx, query,
			model.PetPendingAdoption, time.Now(), id,
			model.RegistrationStatusApproved, model.PetAvailable)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrConflict
		}
		return insertAdoption(ctx, tx, s, id, &req)
	})
}

// DecideAdoption 原子落盘一次领养决定
func (s *Store) DecideAdoption(ctx context.Context, id, adoptionID string, approve bool, now time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// 锁定登记行并排除终态
		lock := s.rebind(`
			UPDATE registrations SET updated_at = $1
			WHERE id = $2 AND pet_adoption_status <> $3
		`)
		res, err := tx.ExecContext(ctx, lock, now, id, model.PetAdopted)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrConflict
		}

		// 目标申请必须仍为 pending
		decided := model.AdoptionRejected
		if approve {
			decided = model.AdoptionApproved
		}
		target := s.rebind(`
			UPDATE adoptions SET status = $1, decided_at = $2
			WHERE id = $3 AND registration_id = $4 AND status = $5
		`)
		res, err = tx.ExecContext(ctx, target, decided, now, adoptionID, id, model.AdoptionPending)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrConflict
		}

		if approve {
			// 连带拒绝其余 pending 兄弟
			siblings := s.rebind(`
				UPDATE adoptions SET status = $1, decided_at = $2
				WHERE registration_id = $3 AND id <> $4 AND status = $5
			`)
			if _, err := tx.ExecContext(ctx, siblings, model.AdoptionRejected, now, id, adoptionID, model.AdoptionPending); err != nil {
				return err
			}
			adopt := s.rebind(`UPDATE registrations SET pet_adoption_status = $1, updated_at = $2 WHERE id = $3`)
			_, err := tx.ExecContext(ctx, adopt, model.PetAdopted, now, id)
			return err
		}

		// 拒绝后若不再有 pending 申请，宠物回退 available
		reset := s.rebind(`
			UPDATE registrations SET pet_adoption_status = $1, updated_at = $2
			WHERE id = $3 AND pet_adoption_status = $4
			  AND NOT EXISTS (SELECT 1 FROM adoptions WHERE registration_id = $5 AND status = $6)
		`)
		_, err = tx.ExecContext(ctx, reset, model.PetAvailable, now, id, model.PetPendingAdoption, id, model.AdoptionPending)
		return err
	})
}

// DeleteRegistrationIfNoPending 仅当不存在 pending 申请时删除
func (s *Store) DeleteRegistrationIfNoPending(ctx context.Context, id string) error {
	query := s.rebind(`
		DELETE FROM registrations
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM adoptions WHERE registration_id = $2 AND status = $3)
	`)
	res, err := s.db.ExecContext(ctx, query, id, id, model.AdoptionPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrConflict
	}
	return nil
}

// DeleteRegistration 管理员无条件删除
func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM registrations WHERE id = $1`)
	res, err := s.db.ExecContext(ctx, query, id)
	return requireRow(res, err)
}

// CountRegistrationsByStatus 管理面板统计，只计 active 记录
func (s *Store) CountRegistrationsByStatus(ctx context.Context) (storage.RegistrationStats, error) {
	var stats storage.RegistrationStats
	query := `
		SELECT status, COUNT(*) FROM registrations
		WHERE is_active = ` + s.dialect.BooleanLiteral(true) + `
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status model.RegistrationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		switch status {
		case model.RegistrationStatusPending:
			stats.Pending = count
		case model.RegistrationStatusApproved:
			stats.Approved = count
		case model.RegistrationStatusRejected:
			stats.Rejected = count
		}
	}
	return stats, rows.Err()
}

// === 内部工具 ===

func insertAdoption(ctx context.Context, tx *sql.Tx, s *Store, registrationID string, req *model.AdoptionRequest) error {
	query := s.rebind(`
		INSERT INTO adoptions (` + adoptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	_, err := tx.ExecContext(ctx, query,
		req.ID, registrationID, req.AdopterName, req.AdopterEmail, req.AdopterPhone,
		req.Message, req.Status, req.RequestedAt, req.DecidedAt)
	return wrapWriteError(err)
}

func (s *Store) queryRegistrations(ctx context.Context, query string, args ...interface{}) ([]*model.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := []*model.Registration{}
	for rows.Next() {
		reg, err := scanRegistrationRow(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadAdoptions(ctx, regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func scanRegistrationRow(row scanner) (*model.Registration, error) {
	reg := &model.Registration{Adoptions: []model.AdoptionRequest{}}
	var photos sql.NullString
	err := row.Scan(
		&reg.ID, &reg.AccountID, &reg.Status, &reg.IsActive,
		&reg.Pet.Name, &reg.Pet.Type, &reg.Pet.Breed, &reg.Pet.Age, &reg.Pet.Gender,
		&reg.Pet.Location, &reg.Pet.Description, &reg.Pet.Vaccinated, &reg.Pet.Trained,
		&photos, &reg.Pet.License, &reg.Pet.AdoptionStatus,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Pet.Photos, err = unmarshalPhotos(photos)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// loadAdoptions 批量回填登记的申请列表，按请求时间排序
func (s *Store) loadAdoptions(ctx context.Context, regs []*model.Registration) error {
	if len(regs) == 0 {
		return nil
	}
	byID := make(map[string]*model.Registration, len(regs))
	placeholders := make([]string, len(regs))
	args := make([]interface{}, len(regs))
	for i, reg := range regs {
		byID[reg.ID] = reg
		placeholders[i] = "$" + dbutil.Itoa(i+1)
		args[i] = reg.ID
	}
	query := s.rebind(`
		SELECT ` + adoptionColumns + ` FROM adoptions
		WHERE registration_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY requested_at ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var req model.AdoptionRequest
		var registrationID string
		if err := rows.Scan(
			&req.ID, &registrationID, &req.AdopterName, &req.AdopterEmail, &req.AdopterPhone,
			&req.Message, &req.Status, &req.RequestedAt, &req.DecidedAt); err != nil {
			return err
		}
		if reg := byID[registrationID]; reg != nil {
			reg.Adoptions = append(reg.Adoptions, req)
		}
	}
	return rows.Err()
}
