package service

import (
	"Inkwell/internal/api/config"
	"Inkwell/internal/api/dto"
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/pkg/util"
	"Inkwell/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"time"
)

const maxRatingWriteAttempts = 3

type InteractionService interface {
	RecordLike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)
	RemoveLike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)
	RecordDislike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)
	RemoveDislike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)
	RecordRating(ctx context.Context, itemID uint64, rating float64, userID uint64, anonToken string) (*dto.ActionResult, error)
	RemoveRating(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)
	RecordView(ctx context.Context, itemID, viewerID uint64) (*dto.ViewResult, error)
	RecordRead(ctx context.Context, itemID, userID uint64) (*dto.ActionResult, error)
	RemoveRead(ctx context.Context, itemID, userID uint64) (*dto.ActionResult, error)
}

type interactionServiceImpl struct {
	interactionRepo repository.InteractionRepo
	rollupRepo      repository.RollupRepo
	itemRepo        repository.ItemRepo
	resolver        *security.ActorResolver
	statsSvc        StatsService
	features        config.FeatureConfig
	now             Clock
}

func NewInteractionService(
	interactionRepo repository.InteractionRepo,
	rollupRepo repository.RollupRepo,
	itemRepo repository.ItemRepo,
	resolver *security.ActorResolver,
	statsSvc StatsService,
	features config.FeatureConfig,
	now Clock,
) InteractionService {
	if now == nil {
		now = time.Now
	}
	return &interactionServiceImpl{
		interactionRepo: interactionRepo,
		rollupRepo:      rollupRepo,
		itemRepo:        itemRepo,
		resolver:        resolver,
		statsSvc:        statsSvc,
		features:        features,
		now:             now,
	}
}

// loadItem 条目必须存在且已发布
func loadItem(ctx context.Context, itemRepo repository.ItemRepo, itemID uint64) (*model.Item, error) {
	if itemID == 0 {
		return nil, ErrInvalidItem
	}
	item, err := itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: load item %d: %w", ErrStorageUnavailable, itemID, err)
	}
	if item == nil || item.Status != model.ItemStatusPublished {
		return nil, ErrInvalidItem
	}
	return item, nil
}

// resolveActor 匿名开关关闭时只接受登录用户
func resolveActor(resolver *security.ActorResolver, features config.FeatureConfig, userID uint64, anonToken string) (model.Actor, error) {
	if userID == 0 && !features.Anonymous {
		return model.Actor{}, ErrActorUnresolved
	}
	actor := resolver.Resolve(userID, anonToken)
	if actor.IsAbsent() {
		return model.Actor{}, ErrActorUnresolved
	}
	return actor, nil
}

// parentOf 章节返回所属作品，作品返回 0
func parentOf(item *model.Item) uint64 {
	if item.Type == model.ItemTypeChapter {
		return item.ParentID
	}
	return 0
}

func (s *interactionServiceImpl) prepare(ctx context.Context, itemID, userID uint64, anonToken string) (*model.Item, model.Actor, error) {
	actor, err := resolveActor(s.resolver, s.features, userID, anonToken)
	if err != nil {
		return nil, model.Actor{}, err
	}
	item, err := loadItem(ctx, s.itemRepo, itemID)
	if err != nil {
		return nil, model.Actor{}, err
	}
	return item, actor, nil
}

func (s *interactionServiceImpl) result(ctx context.Context, item *model.Item, changed bool) *dto.ActionResult {
	if changed {
		s.statsSvc.AfterWrite(ctx, item.ID, parentOf(item))
	}
	stats, err := s.statsSvc.GetItemStats(ctx, item.ID)
	if err != nil {
		stats = &dto.ItemStats{ItemID: item.ID}
	}
	return &dto.ActionResult{Changed: changed, Stats: stats}
}

func (s *interactionServiceImpl) RecordLike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	return s.recordExclusive(ctx, itemID, userID, anonToken, model.InteractionLike)
}

func (s *interactionServiceImpl) RecordDislike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	if !s.features.Dislikes {
		return nil, ErrFeatureDisabled
	}
	return s.recordExclusive(ctx, itemID, userID, anonToken, model.InteractionDislike)
}

func (s *interactionServiceImpl) RemoveLike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	return s.removeExclusive(ctx, itemID, userID, anonToken, model.InteractionLike)
}

func (s *interactionServiceImpl) RemoveDislike(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	if !s.features.Dislikes {
		return nil, ErrFeatureDisabled
	}
	return s.removeExclusive(ctx, itemID, userID, anonToken, model.InteractionDislike)
}

func opposite(typ model.InteractionType) model.InteractionType {
	if typ == model.InteractionLike {
		return model.InteractionDislike
	}
	return model.InteractionLike
}

// applyDelta 点赞维护周/月窗口，点踩只维护累计
func (s *interactionServiceImpl) applyDelta(ctx context.Context, item *model.Item, typ model.InteractionType, delta int) error {
	if typ == model.InteractionLike {
		week, month := util.PeriodStamps(s.now())
		return s.rollupRepo.ApplyLikeDelta(ctx, item.ID, parentOf(item), delta, week, month)
	}
	return s.rollupRepo.ApplyDislikeDelta(ctx, item.ID, parentOf(item), delta)
}

// recordExclusive 点赞与点踩互斥，记录一方时撤销另一方
func (s *interactionServiceImpl) recordExclusive(ctx context.Context, itemID, userID uint64, anonToken string, typ model.InteractionType) (*dto.ActionResult, error) {
	item, actor, err := s.prepare(ctx, itemID, userID, anonToken)
	if err != nil {
		return nil, err
	}

	inserted, err := s.interactionRepo.InsertIfAbsent(ctx, actor, item.ID, typ, nil)
	if err != nil {
		return nil, wrapWrite("insert "+string(typ), err)
	}
	if !inserted {
		return s.result(ctx, item, false), nil
	}
	if err = s.applyDelta(ctx, item, typ, 1); err != nil {
		return nil, wrapWrite("apply "+string(typ)+" rollup", err)
	}

	other := opposite(typ)
	removed, err := s.interactionRepo.Delete(ctx, actor, item.ID, other)
	if err != nil {
		return nil, wrapWrite("delete "+string(other), err)
	}
	if removed {
		if err = s.applyDelta(ctx, item, other, -1); err != nil {
			return nil, wrapWrite("apply "+string(other)+" rollup", err)
		}
	}

	log.InfoContext(ctx, "interaction recorded", "type", typ, "item_id", item.ID, "actor", actor.Kind, "replaced", removed)
	return s.result(ctx, item, true), nil
}

func (s *interactionServiceImpl) removeExclusive(ctx context.Context, itemID, userID uint64, anonToken string, typ model.InteractionType) (*dto.ActionResult, error) {
	item, actor, err := s.prepare(ctx, itemID, userID, anonToken)
	if err != nil {
		return nil, err
	}
	removed, err := s.interactionRepo.Delete(ctx, actor, item.ID, typ)
	if err != nil {
		return nil, wrapWrite("delete "+string(typ), err)
	}
	if !removed {
		return s.result(ctx, item, false), nil
	}
	if err = s.applyDelta(ctx, item, typ, -1); err != nil {
		return nil, wrapWrite("apply "+string(typ)+" rollup", err)
	}
	return s.result(ctx, item, true), nil
}

// applyRating 分别作用于条目和所属作品
func (s *interactionServiceImpl) applyRating(ctx context.Context, item *model.Item, change model.RatingChange) error {
	week, month := util.PeriodStamps(s.now())
	compute := func(b model.RatingBuckets) model.RatingBuckets {
		return ComputeRatingRollup(b, change, week, month)
	}
	create := change.New != nil
	if err := s.rollupRepo.ApplyRating(ctx, item.ID, item.Type, create, compute); err != nil {
		return err
	}
	if parent := parentOf(item); parent > 0 {
		return s.rollupRepo.ApplyRating(ctx, parent, model.ItemTypeStory, create, compute)
	}
	return nil
}

func (s *interactionServiceImpl) RecordRating(ctx context.Context, itemID uint64, rating float64, userID uint64, anonToken string) (*dto.ActionResult, error) {
	if !s.features.Ratings {
		return nil, ErrFeatureDisabled
	}
	value, err := NormalizeRating(rating)
	if err != nil {
		return nil, err
	}
	item, actor, err := s.prepare(ctx, itemID, userID, anonToken)
	if err != nil {
		return nil, err
	}

	var change model.RatingChange
	for attempt := 0; ; attempt++ {
		if attempt == maxRatingWriteAttempts {
			return nil, wrapWrite("record rating", repository.ErrRollupConflict)
		}
		existing, err := s.interactionRepo.Get(ctx, actor, item.ID, model.InteractionRating)
		if err != nil {
			return nil, wrapWrite("load rating", err)
		}

		if existing == nil || existing.Value == nil {
			inserted, err := s.interactionRepo.InsertIfAbsent(ctx, actor, item.ID, model.InteractionRating, &value)
			if err != nil {
				return nil, wrapWrite("insert rating", err)
			}
			if !inserted {
				continue
			}
			change = model.RatingChange{New: &value}
			break
		}

		old := *existing.Value
		if old == value {
			return s.result(ctx, item, false), nil
		}
		ok, err := s.interactionRepo.CompareAndSetValue(ctx, actor, item.ID, model.InteractionRating, old, value)
		if err != nil {
			return nil, wrapWrite("update rating", err)
		}
		if !ok {
			continue
		}
		change = model.RatingChange{Old: &old, New: &value}
		break
	}

	if err = s.applyRating(ctx, item, change); err != nil {
		return nil, wrapWrite("apply rating rollup", err)
	}
	log.InfoContext(ctx, "rating recorded", "item_id", item.ID, "rating", value, "update", change.IsUpdate())
	return s.result(ctx, item, true), nil
}

func (s *interactionServiceImpl) RemoveRating(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	if !s.features.Ratings {
		return nil, ErrFeatureDisabled
	}
	item, actor, err := s.prepare(ctx, itemID, userID, anonToken)
	if err != nil {
		return nil, err
	}

	var old float64
	for attempt := 0; ; attempt++ {
		if attempt == maxRatingWriteAttempts {
			return nil, wrapWrite("remove rating", repository.ErrRollupConflict)
		}
		existing, err := s.interactionRepo.Get(ctx, actor, item.ID, model.InteractionRating)
		if err != nil {
			return nil, wrapWrite("load rating", err)
		}
		if existing == nil {
			return s.result(ctx, item, false), nil
		}
		if existing.Value == nil {
			removed, err := s.interactionRepo.Delete(ctx, actor, item.ID, model.InteractionRating)
			if err != nil {
				return nil, wrapWrite("delete rating", err)
			}
			return s.result(ctx, item, removed), nil
		}

		// 只删除读到的那个值，期间被改分则重读
		old = *existing.Value
		removed, err := s.interactionRepo.DeleteIfValue(ctx, actor, item.ID, model.InteractionRating, old)
		if err != nil {
			return nil, wrapWrite("delete rating", err)
		}
		if removed {
			break
		}
	}

	if err = s.applyRating(ctx, item, model.RatingChange{Old: &old}); err != nil {
		return nil, wrapWrite("apply rating rollup", err)
	}
	log.InfoContext(ctx, "rating removed", "item_id", item.ID, "rating", old)
	return s.result(ctx, item, true), nil
}

// RecordView 浏览不落明细，作者和合著者的浏览不计数
func (s *interactionServiceImpl) RecordView(ctx context.Context, itemID, viewerID uint64) (*dto.ViewResult, error) {
	if !s.features.Views {
		return nil, ErrFeatureDisabled
	}
	item, err := loadItem(ctx, s.itemRepo, itemID)
	if err != nil {
		return nil, err
	}
	if item.IsAuthoredBy(viewerID) {
		res := s.result(ctx, item, false)
		return &dto.ViewResult{Skipped: true, Stats: res.Stats}, nil
	}

	week, month := util.PeriodStamps(s.now())
	if err = s.rollupRepo.ApplyView(ctx, item.ID, parentOf(item), week, month); err != nil {
		return nil, wrapWrite("apply view rollup", err)
	}
	res := s.result(ctx, item, true)
	return &dto.ViewResult{Stats: res.Stats}, nil
}

// RecordRead 阅读标记只对登录用户开放，不影响计数
func (s *interactionServiceImpl) RecordRead(ctx context.Context, itemID, userID uint64) (*dto.ActionResult, error) {
	if userID == 0 {
		return nil, ErrActorUnresolved
	}
	item, err := loadItem(ctx, s.itemRepo, itemID)
	if err != nil {
		return nil, err
	}
	inserted, err := s.interactionRepo.InsertIfAbsent(ctx, model.UserActor(userID), item.ID, model.InteractionRead, nil)
	if err != nil {
		return nil, wrapWrite("insert read", err)
	}
	return &dto.ActionResult{Changed: inserted}, nil
}

func (s *interactionServiceImpl) RemoveRead(ctx context.Context, itemID, userID uint64) (*dto.ActionResult, error) {
	if userID == 0 {
		return nil, ErrActorUnresolved
	}
	if itemID == 0 {
		return nil, ErrInvalidItem
	}
	removed, err := s.interactionRepo.Delete(ctx, model.UserActor(userID), itemID, model.InteractionRead)
	if err != nil {
		return nil, wrapWrite("delete read", err)
	}
	return &dto.ActionResult{Changed: removed}, nil
}
