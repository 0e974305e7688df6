package service

import (
	"Inkwell/internal/api/config"
	"Inkwell/internal/api/dto"
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/repository"
	"context"
	log "log/slog"
	"time"
)

// FollowEventSink 关注事件投递，失败不影响主流程
type FollowEventSink interface {
	PublishFollow(ctx context.Context, event *dto.FollowEvent)
}

type noopFollowSink struct{}

func (noopFollowSink) PublishFollow(context.Context, *dto.FollowEvent) {}

// NoopFollowSink 未启用消息队列时使用
func NoopFollowSink() FollowEventSink {
	return noopFollowSink{}
}

type FollowService interface {
	ToggleFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error)
	HasFollow(ctx context.Context, postID, userID uint64, anonToken string) (bool, error)
	UpsertFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error)
	RemoveFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error)
}

type followServiceImpl struct {
	interactionRepo repository.InteractionRepo
	rollupRepo      repository.RollupRepo
	itemRepo        repository.ItemRepo
	resolver        *security.ActorResolver
	statsSvc        StatsService
	sink            FollowEventSink
	features        config.FeatureConfig
	now             Clock
}

func NewFollowService(
	interactionRepo repository.InteractionRepo,
	rollupRepo repository.RollupRepo,
	itemRepo repository.ItemRepo,
	resolver *security.ActorResolver,
	statsSvc StatsService,
	sink FollowEventSink,
	features config.FeatureConfig,
	now Clock,
) FollowService {
	if sink == nil {
		sink = NoopFollowSink()
	}
	if now == nil {
		now = time.Now
	}
	return &followServiceImpl{
		interactionRepo: interactionRepo,
		rollupRepo:      rollupRepo,
		itemRepo:        itemRepo,
		resolver:        resolver,
		statsSvc:        statsSvc,
		sink:            sink,
		features:        features,
		now:             now,
	}
}

func (s *followServiceImpl) prepare(ctx context.Context, postID, userID uint64, anonToken string) (*model.Item, model.Actor, error) {
	actor, err := resolveActor(s.resolver, s.features, userID, anonToken)
	if err != nil {
		return nil, model.Actor{}, err
	}
	item, err := loadItem(ctx, s.itemRepo, postID)
	if err != nil {
		return nil, model.Actor{}, err
	}
	return item, actor, nil
}

// ToggleFollow 先尝试删除，没有删除到则插入；章节的关注计入所属作品
func (s *followServiceImpl) ToggleFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error) {
	item, actor, err := s.prepare(ctx, postID, userID, anonToken)
	if err != nil {
		return nil, err
	}
	res, err := s.unfollow(ctx, item, actor)
	if err != nil || res.Changed {
		return res, err
	}
	return s.follow(ctx, item, actor)
}

func (s *followServiceImpl) HasFollow(ctx context.Context, postID, userID uint64, anonToken string) (bool, error) {
	actor := s.resolver.Resolve(userID, anonToken)
	if actor.IsAbsent() || postID == 0 {
		return false, nil
	}
	ok, err := s.interactionRepo.Has(ctx, actor, postID, model.InteractionFollow)
	if err != nil {
		log.WarnContext(ctx, "check follow failed", "post_id", postID, "err", err)
		return false, nil
	}
	return ok, nil
}

// UpsertFollow 只增不减，已关注时无变化
func (s *followServiceImpl) UpsertFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error) {
	item, actor, err := s.prepare(ctx, postID, userID, anonToken)
	if err != nil {
		return nil, err
	}
	return s.follow(ctx, item, actor)
}

func (s *followServiceImpl) RemoveFollow(ctx context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error) {
	item, actor, err := s.prepare(ctx, postID, userID, anonToken)
	if err != nil {
		return nil, err
	}
	return s.unfollow(ctx, item, actor)
}

func (s *followServiceImpl) follow(ctx context.Context, item *model.Item, actor model.Actor) (*dto.FollowResult, error) {
	inserted, err := s.interactionRepo.InsertIfAbsent(ctx, actor, item.ID, model.InteractionFollow, nil)
	if err != nil {
		return nil, wrapWrite("insert follow", err)
	}
	if !inserted {
		return &dto.FollowResult{Changed: false, IsFollowed: true}, nil
	}
	if err = s.rollupRepo.ApplyFollowDelta(ctx, item.StoryID(), 1); err != nil {
		return nil, wrapWrite("apply follow rollup", err)
	}
	s.afterChange(ctx, item, actor, true)
	return &dto.FollowResult{Changed: true, IsFollowed: true}, nil
}

func (s *followServiceImpl) unfollow(ctx context.Context, item *model.Item, actor model.Actor) (*dto.FollowResult, error) {
	removed, err := s.interactionRepo.Delete(ctx, actor, item.ID, model.InteractionFollow)
	if err != nil {
		return nil, wrapWrite("delete follow", err)
	}
	if !removed {
		return &dto.FollowResult{Changed: false, IsFollowed: false}, nil
	}
	if err = s.rollupRepo.ApplyFollowDelta(ctx, item.StoryID(), -1); err != nil {
		return nil, wrapWrite("apply follow rollup", err)
	}
	s.afterChange(ctx, item, actor, false)
	return &dto.FollowResult{Changed: true, IsFollowed: false}, nil
}

func (s *followServiceImpl) afterChange(ctx context.Context, item *model.Item, actor model.Actor, followed bool) {
	s.statsSvc.AfterWrite(ctx, item.StoryID())
	s.sink.PublishFollow(ctx, &dto.FollowEvent{
		ItemID:    item.ID,
		StoryID:   item.StoryID(),
		ActorKey:  actor.Key(),
		UserID:    actor.UserID,
		Followed:  followed,
		Timestamp: s.now().UnixMilli(),
	})
	log.InfoContext(ctx, "follow changed", "item_id", item.ID, "story_id", item.StoryID(), "followed", followed)
}
