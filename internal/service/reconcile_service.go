package service

import (
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/util"
	"Inkwell/internal/repository"
	"context"
	"fmt"
)

// ReconcileService 以明细行为准重算累计计数
type ReconcileService interface {
	ReconcileItem(ctx context.Context, itemID uint64) error
}

type reconcileServiceImpl struct {
	interactionRepo repository.InteractionRepo
	rollupRepo      repository.RollupRepo
	itemRepo        repository.ItemRepo
	statsSvc        StatsService
}

func NewReconcileService(
	interactionRepo repository.InteractionRepo,
	rollupRepo repository.RollupRepo,
	itemRepo repository.ItemRepo,
	statsSvc StatsService,
) ReconcileService {
	return &reconcileServiceImpl{
		interactionRepo: interactionRepo,
		rollupRepo:      rollupRepo,
		itemRepo:        itemRepo,
		statsSvc:        statsSvc,
	}
}

// ReconcileItem 作品的累计包含其全部章节，周/月窗口不参与重算
func (s *reconcileServiceImpl) ReconcileItem(ctx context.Context, itemID uint64) error {
	item, err := s.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load item %d: %w", itemID, err)
	}
	if item == nil {
		return nil
	}

	ids := []uint64{item.ID}
	if item.Type == model.ItemTypeStory {
		chapters, err := s.itemRepo.GetChapterIDs(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("load chapters of %d: %w", item.ID, err)
		}
		ids = append(ids, chapters...)
	}

	likes, err := s.interactionRepo.CountByItemType(ctx, ids, model.InteractionLike)
	if err != nil {
		return err
	}
	dislikes, err := s.interactionRepo.CountByItemType(ctx, ids, model.InteractionDislike)
	if err != nil {
		return err
	}
	sum, count, err := s.interactionRepo.RatingAggregate(ctx, ids)
	if err != nil {
		return err
	}
	var follows int64
	if item.Type == model.ItemTypeStory {
		if follows, err = s.interactionRepo.CountByItemType(ctx, ids, model.InteractionFollow); err != nil {
			return err
		}
	}

	totals := repository.RollupTotals{
		LikesTotal:       likes,
		DislikesTotal:    dislikes,
		RatingSumTotal:   util.Round(sum, 4),
		RatingCountTotal: count,
		FollowCount:      follows,
	}
	if count > 0 {
		totals.RatingAvgTotal = util.Round(sum/float64(count), 4)
	}
	if err = s.rollupRepo.ReplaceTotals(ctx, item.ID, totals); err != nil {
		return err
	}
	s.statsSvc.Invalidate(ctx, item.ID)
	return nil
}
