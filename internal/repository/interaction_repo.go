package repository

import (
	"Inkwell/internal/model"
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InteractionRepo interface {
	Upsert(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value *float64) error
	InsertIfAbsent(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value *float64) (bool, error)
	CompareAndSetValue(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, old, new float64) (bool, error)
	Has(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (bool, error)
	Get(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (*model.Interaction, error)
	Delete(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (bool, error)
	DeleteIfValue(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value float64) (bool, error)
	GetAllForActorItem(ctx context.Context, actor model.Actor, itemID uint64) (map[model.InteractionType]*model.Interaction, error)
	GetAllForActor(ctx context.Context, actor model.Actor) ([]*model.Interaction, error)
	Reattribute(ctx context.Context, anonKey, userKey string) (moved int64, discarded int64, err error)
	TouchItem(ctx context.Context, actor model.Actor, itemID uint64, ts time.Time) error
	CountByItemType(ctx context.Context, itemIDs []uint64, typ model.InteractionType) (int64, error)
	RatingAggregate(ctx context.Context, itemIDs []uint64) (float64, int64, error)
}

type interactionRepoImpl struct {
	db *gorm.DB
}

func NewInteractionRepo(db *gorm.DB) InteractionRepo {
	return &interactionRepoImpl{db: db}
}

func (r *interactionRepoImpl) scope(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Interaction{}).
		Where("actor_key = ? AND item_id = ? AND type = ?", actor.Key(), itemID, typ)
}

// Upsert 存在则覆盖 value
func (r *interactionRepoImpl) Upsert(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value *float64) error {
	row := &model.Interaction{ActorKey: actor.Key(), ItemID: itemID, Type: typ, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_key"}, {Name: "item_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
}

// InsertIfAbsent 条件插入，返回本次是否真正插入
func (r *interactionRepoImpl) InsertIfAbsent(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value *float64) (bool, error) {
	row := &model.Interaction{ActorKey: actor.Key(), ItemID: itemID, Type: typ, Value: value}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_key"}, {Name: "item_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompareAndSetValue 仅当库中的值仍为 old 时改为 new
func (r *interactionRepoImpl) CompareAndSetValue(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, old, new float64) (bool, error) {
	result := r.scope(ctx, actor, itemID, typ).
		Where("value = ?", old).
		Updates(map[string]interface{}{
			"value":      new,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *interactionRepoImpl) Has(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (bool, error) {
	var count int64
	err := r.scope(ctx, actor, itemID, typ).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *interactionRepoImpl) Get(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (*model.Interaction, error) {
	var row model.Interaction
	err := r.scope(ctx, actor, itemID, typ).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Delete 返回是否删除了已存在的行
func (r *interactionRepoImpl) Delete(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("actor_key = ? AND item_id = ? AND type = ?", actor.Key(), itemID, typ).
		Delete(&model.Interaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteIfValue 仅当库中的值仍为 value 时删除
func (r *interactionRepoImpl) DeleteIfValue(ctx context.Context, actor model.Actor, itemID uint64, typ model.InteractionType, value float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("actor_key = ? AND item_id = ? AND type = ? AND value = ?", actor.Key(), itemID, typ, value).
		Delete(&model.Interaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *interactionRepoImpl) GetAllForActorItem(ctx context.Context, actor model.Actor, itemID uint64) (map[model.InteractionType]*model.Interaction, error) {
	rows := make([]*model.Interaction, 0)
	err := r.db.WithContext(ctx).
		Where("actor_key = ? AND item_id = ?", actor.Key(), itemID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make(map[model.InteractionType]*model.Interaction, len(rows))
	for _, row := range rows {
		res[row.Type] = row
	}
	return res, nil
}

func (r *interactionRepoImpl) GetAllForActor(ctx context.Context, actor model.Actor) ([]*model.Interaction, error) {
	rows := make([]*model.Interaction, 0)
	err := r.db.WithContext(ctx).
		Where("actor_key = ?", actor.Key()).
		Order("item_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reattribute 将匿名主体的行迁移到登录用户名下，用户已有同类行或互斥的赞踩时丢弃匿名行
func (r *interactionRepoImpl) Reattribute(ctx context.Context, anonKey, userKey string) (int64, int64, error) {
	var moved, discarded int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anonRows := make([]*model.Interaction, 0)
		if err := tx.Where("actor_key = ?", anonKey).Find(&anonRows).Error; err != nil {
			return err
		}
		if len(anonRows) == 0 {
			return nil
		}

		itemIDs := make([]uint64, 0, len(anonRows))
		for _, row := range anonRows {
			itemIDs = append(itemIDs, row.ItemID)
		}
		userRows := make([]*model.Interaction, 0)
		if err := tx.Where("actor_key = ? AND item_id IN ?", userKey, itemIDs).Find(&userRows).Error; err != nil {
			return err
		}
		owned := make(map[interactionSlot]struct{}, len(userRows))
		for _, row := range userRows {
			owned[interactionSlot{row.ItemID, row.Type}] = struct{}{}
			if opposite, ok := exclusiveOf(row.Type); ok {
				owned[interactionSlot{row.ItemID, opposite}] = struct{}{}
			}
		}

		dupIDs := make([]uint64, 0)
		keep := make([]*model.Interaction, 0, len(anonRows))
		for _, row := range anonRows {
			if _, ok := owned[interactionSlot{row.ItemID, row.Type}]; ok {
				dupIDs = append(dupIDs, row.ID)
				continue
			}
			keep = append(keep, row)
		}
		if len(dupIDs) > 0 {
			result := tx.Where("id IN ?", dupIDs).Delete(&model.Interaction{})
			if result.Error != nil {
				return result.Error
			}
			discarded += result.RowsAffected
		}
		if len(keep) == 0 {
			return nil
		}

		result := tx.Model(&model.Interaction{}).
			Where("actor_key = ?", anonKey).
			UpdateColumn("actor_key", userKey)
		if result.Error == nil {
			moved += result.RowsAffected
			return nil
		}
		if !isDuplicateError(result.Error) {
			return result.Error
		}

		// 期间有并发写入，逐行迁移
		for _, row := range keep {
			err := tx.Model(&model.Interaction{}).
				Where("id = ?", row.ID).
				UpdateColumn("actor_key", userKey).Error
			if err == nil {
				moved++
				continue
			}
			if !isDuplicateError(err) {
				return err
			}
			if err := tx.Delete(&model.Interaction{}, row.ID).Error; err != nil {
				return err
			}
			discarded++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return moved, discarded, nil
}

// TouchItem 用指定时间覆盖主体在该条目上所有行的 updated_at
func (r *interactionRepoImpl) TouchItem(ctx context.Context, actor model.Actor, itemID uint64, ts time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Interaction{}).
		Where("actor_key = ? AND item_id = ?", actor.Key(), itemID).
		UpdateColumn("updated_at", ts).Error
}

func (r *interactionRepoImpl) CountByItemType(ctx context.Context, itemIDs []uint64, typ model.InteractionType) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Interaction{}).
		Where("item_id IN ? AND type = ?", itemIDs, typ).
		Count(&count).Error
	return count, err
}

// RatingAggregate 评分总和与人数
func (r *interactionRepoImpl) RatingAggregate(ctx context.Context, itemIDs []uint64) (float64, int64, error) {
	if len(itemIDs) == 0 {
		return 0, 0, nil
	}
	var agg struct {
		Total float64
		Cnt   int64
	}
	err := r.db.WithContext(ctx).Model(&model.Interaction{}).
		Select("COALESCE(SUM(value), 0) AS total, COUNT(*) AS cnt").
		Where("item_id IN ? AND type = ? AND value IS NOT NULL", itemIDs, model.InteractionRating).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, err
	}
	return agg.Total, agg.Cnt, nil
}

type interactionSlot struct {
	itemID uint64
	typ    model.InteractionType
}

// exclusiveOf 赞与踩互斥
func exclusiveOf(typ model.InteractionType) (model.InteractionType, bool) {
	switch typ {
	case model.InteractionLike:
		return model.InteractionDislike, true
	case model.InteractionDislike:
		return model.InteractionLike, true
	}
	return "", false
}

func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
