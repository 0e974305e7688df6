package repository

import (
	"Inkwell/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

// ItemRepo 内容条目只读访问
type ItemRepo interface {
	GetItem(ctx context.Context, id uint64) (*model.Item, error)
	GetItems(ctx context.Context, ids []uint64) (map[uint64]*model.Item, error)
	GetChapterIDs(ctx context.Context, storyID uint64) ([]uint64, error)
}

type itemRepoImpl struct {
	db *gorm.DB
}

func NewItemRepo(db *gorm.DB) ItemRepo {
	return &itemRepoImpl{db: db}
}

func (r *itemRepoImpl) GetItem(ctx context.Context, id uint64) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).Preload("CoAuthors").Where("id = ?", id).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *itemRepoImpl) GetItems(ctx context.Context, ids []uint64) (map[uint64]*model.Item, error) {
	res := make(map[uint64]*model.Item, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	items := make([]*model.Item, 0, len(ids))
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		res[item.ID] = item
	}
	return res, nil
}

func (r *itemRepoImpl) GetChapterIDs(ctx context.Context, storyID uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := r.db.WithContext(ctx).Model(&model.Item{}).
		Where("parent_id = ? AND type = ?", storyID, model.ItemTypeChapter).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
