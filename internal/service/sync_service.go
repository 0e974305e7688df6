package service

import (
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/consts"
	"Inkwell/internal/pkg/redis"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/pkg/util"
	"Inkwell/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"time"
)

type SyncService interface {
	SyncOnLogin(ctx context.Context, userID uint64, local map[string]*model.LocalEntry, anonToken string) (map[string]*model.LocalEntry, error)
	MarkPendingSync(ctx context.Context, userID uint64) error
	HasPendingSync(ctx context.Context, userID uint64) (bool, error)
}

type syncServiceImpl struct {
	interactionSvc  InteractionService
	followSvc       FollowService
	interactionRepo repository.InteractionRepo
	itemRepo        repository.ItemRepo
	resolver        *security.ActorResolver
}

func NewSyncService(
	interactionSvc InteractionService,
	followSvc FollowService,
	interactionRepo repository.InteractionRepo,
	itemRepo repository.ItemRepo,
	resolver *security.ActorResolver,
) SyncService {
	return &syncServiceImpl{
		interactionSvc:  interactionSvc,
		followSvc:       followSvc,
		interactionRepo: interactionRepo,
		itemRepo:        itemRepo,
		resolver:        resolver,
	}
}

func syncPendingKey(userID uint64) string {
	return consts.SyncPendingKey + strconv.FormatUint(userID, 10)
}

func (s *syncServiceImpl) MarkPendingSync(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return ErrActorUnresolved
	}
	return redis.SetWithExpiration(ctx, syncPendingKey(userID), "1", consts.SyncPendingTTLHours*time.Hour)
}

func (s *syncServiceImpl) HasPendingSync(ctx context.Context, userID uint64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return redis.Exists(ctx, syncPendingKey(userID))
}

// SyncOnLogin 迁移匿名记录后按时间戳合并本地快照，本地严格更新时才覆盖服务端
func (s *syncServiceImpl) SyncOnLogin(ctx context.Context, userID uint64, local map[string]*model.LocalEntry, anonToken string) (map[string]*model.LocalEntry, error) {
	if userID == 0 {
		return nil, ErrActorUnresolved
	}
	user := model.UserActor(userID)

	if hash, ok := s.resolver.HashToken(anonToken); ok {
		anon := model.AnonymousActor(hash)
		moved, discarded, err := s.interactionRepo.Reattribute(ctx, anon.Key(), user.Key())
		if err != nil {
			return nil, wrapWrite("reattribute anonymous interactions", err)
		}
		log.InfoContext(ctx, "anonymous interactions reattributed", "user_id", userID, "moved", moved, "discarded", discarded)
	}

	server, err := s.serverSnapshot(ctx, user)
	if err != nil {
		return nil, err
	}

	candidates, err := s.canonicalEntries(ctx, local)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*model.LocalEntry, len(candidates)+len(server))
	applied := 0
	for key, c := range candidates {
		remote := server[key]
		if remote != nil && c.entry.Timestamp <= remote.Timestamp {
			merged[key] = remote
			continue
		}
		complete, err := s.applyLocalEntry(ctx, userID, c.item, c.entry, remote)
		if err != nil {
			return nil, err
		}
		if complete {
			merged[key] = c.entry
			applied++
			continue
		}
		// 有步骤被拒时回传库中的实际状态
		actual, err := s.itemSnapshot(ctx, user, c.item)
		if err != nil {
			return nil, err
		}
		if actual != nil {
			merged[key] = actual
		} else {
			delete(server, key)
		}
	}
	for key, entry := range server {
		if _, ok := merged[key]; !ok {
			merged[key] = entry
		}
	}

	if err = redis.DeleteKey(ctx, syncPendingKey(userID)); err != nil {
		log.WarnContext(ctx, "clear pending sync flag failed", "user_id", userID, "err", err)
	}
	log.InfoContext(ctx, "sync on login finished", "user_id", userID, "local", len(local), "server", len(server), "applied", applied)
	return merged, nil
}

type syncCandidate struct {
	key   string
	item  *model.Item
	entry *model.LocalEntry
}

// canonicalEntries 校验本地条目并按作品的真实归属改写为规范键，作品不存在或未发布的条目整体跳过
func (s *syncServiceImpl) canonicalEntries(ctx context.Context, local map[string]*model.LocalEntry) (map[string]*syncCandidate, error) {
	res := make(map[string]*syncCandidate, len(local))
	for key, entry := range local {
		if entry == nil {
			continue
		}
		storyID, chapterID, ok := util.ParseSyncKey(key)
		if !ok {
			log.WarnContext(ctx, "skip invalid sync key", "key", key)
			continue
		}
		if err := util.ValidateDTO(entry); err != nil {
			log.WarnContext(ctx, "skip invalid sync entry", "key", key, "err", err)
			continue
		}
		itemID := storyID
		if chapterID > 0 {
			itemID = chapterID
		}
		item, err := loadItem(ctx, s.itemRepo, itemID)
		if err != nil {
			if errors.Is(err, ErrInvalidItem) {
				log.WarnContext(ctx, "skip sync entry for unavailable item", "key", key, "item_id", itemID)
				continue
			}
			return nil, err
		}

		canonical := snapshotKey(item)
		if canonical != key {
			log.WarnContext(ctx, "sync key rewritten", "key", key, "canonical", canonical)
		}
		if cur, ok := res[canonical]; ok && !preferEntry(key, entry, cur, canonical) {
			continue
		}
		res[canonical] = &syncCandidate{key: key, item: item, entry: entry}
	}
	return res, nil
}

// preferEntry 同一作品出现多个键时取时间戳较新的，相同时优先规范键，再按键名排序
func preferEntry(key string, entry *model.LocalEntry, cur *syncCandidate, canonical string) bool {
	if entry.Timestamp != cur.entry.Timestamp {
		return entry.Timestamp > cur.entry.Timestamp
	}
	if key == canonical || cur.key == canonical {
		return key == canonical
	}
	return key < cur.key
}

func snapshotKey(item *model.Item) string {
	if item.Type == model.ItemTypeChapter {
		return util.BuildSyncKey(item.ParentID, item.ID)
	}
	return util.BuildSyncKey(item.ID, 0)
}

// serverSnapshot 将用户的明细行折叠成快照键的形式
func (s *syncServiceImpl) serverSnapshot(ctx context.Context, user model.Actor) (map[string]*model.LocalEntry, error) {
	rows, err := s.interactionRepo.GetAllForActor(ctx, user)
	if err != nil {
		return nil, wrapWrite("load user interactions", err)
	}
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ItemID)
	}
	items, err := s.itemRepo.GetItems(ctx, util.UniqueUint64(ids))
	if err != nil {
		return nil, wrapWrite("load items", err)
	}

	res := make(map[string]*model.LocalEntry)
	for _, row := range rows {
		item, ok := items[row.ItemID]
		if !ok {
			continue
		}
		key := snapshotKey(item)
		entry, ok := res[key]
		if !ok {
			entry = &model.LocalEntry{}
			res[key] = entry
		}
		foldRow(entry, row)
	}
	return res, nil
}

// itemSnapshot 单个作品的服务端状态，没有任何明细时返回 nil
func (s *syncServiceImpl) itemSnapshot(ctx context.Context, user model.Actor, item *model.Item) (*model.LocalEntry, error) {
	rows, err := s.interactionRepo.GetAllForActorItem(ctx, user, item.ID)
	if err != nil {
		return nil, wrapWrite("load item interactions", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	entry := &model.LocalEntry{}
	for _, row := range rows {
		foldRow(entry, row)
	}
	return entry, nil
}

func foldRow(entry *model.LocalEntry, row *model.Interaction) {
	switch row.Type {
	case model.InteractionLike:
		entry.Like = true
	case model.InteractionDislike:
		entry.Dislike = true
	case model.InteractionRead:
		entry.Read = true
	case model.InteractionView:
		entry.View = true
	case model.InteractionFollow:
		entry.Follow = true
	case model.InteractionRating:
		if row.Value != nil {
			entry.Rating = util.PtrFloat64(*row.Value)
		}
	}
	if ts := row.UpdatedAt.UnixMilli(); ts > entry.Timestamp {
		entry.Timestamp = ts
	}
}

// applyLocalEntry 本地有则记录，本地无而服务端有则撤销，返回是否所有步骤都已生效
func (s *syncServiceImpl) applyLocalEntry(ctx context.Context, userID uint64, item *model.Item, local, remote *model.LocalEntry) (bool, error) {
	if remote == nil {
		remote = &model.LocalEntry{}
	}
	itemID := item.ID

	steps := []struct {
		name string
		run  func() error
	}{
		{"like", func() error {
			if local.Like {
				_, err := s.interactionSvc.RecordLike(ctx, itemID, userID, "")
				return err
			}
			if remote.Like {
				_, err := s.interactionSvc.RemoveLike(ctx, itemID, userID, "")
				return err
			}
			return nil
		}},
		{"dislike", func() error {
			if local.Dislike && !local.Like {
				_, err := s.interactionSvc.RecordDislike(ctx, itemID, userID, "")
				return err
			}
			if !local.Dislike && remote.Dislike {
				_, err := s.interactionSvc.RemoveDislike(ctx, itemID, userID, "")
				return err
			}
			return nil
		}},
		{"rating", func() error {
			if local.Rating != nil {
				_, err := s.interactionSvc.RecordRating(ctx, itemID, *local.Rating, userID, "")
				return err
			}
			if remote.Rating != nil {
				_, err := s.interactionSvc.RemoveRating(ctx, itemID, userID, "")
				return err
			}
			return nil
		}},
		{"read", func() error {
			if local.Read {
				_, err := s.interactionSvc.RecordRead(ctx, itemID, userID)
				return err
			}
			if remote.Read {
				_, err := s.interactionSvc.RemoveRead(ctx, itemID, userID)
				return err
			}
			return nil
		}},
		{"follow", func() error {
			if local.Follow {
				_, err := s.followSvc.UpsertFollow(ctx, itemID, userID, "")
				return err
			}
			if remote.Follow {
				_, err := s.followSvc.RemoveFollow(ctx, itemID, userID, "")
				return err
			}
			return nil
		}},
		{"view", func() error {
			if item.Type != model.ItemTypeChapter {
				return nil
			}
			// 章节键隐含一次浏览，只落明细不计数
			_, err := s.interactionRepo.InsertIfAbsent(ctx, model.UserActor(userID), itemID, model.InteractionView, nil)
			if err != nil {
				return wrapWrite("insert view", err)
			}
			return nil
		}},
	}

	complete := true
	for _, step := range steps {
		err := step.run()
		if err == nil {
			continue
		}
		if isFatalSyncError(err) {
			return false, err
		}
		complete = false
		log.WarnContext(ctx, "skip sync step", "step", step.name, "item_id", itemID, "err", err)
	}

	if local.Timestamp > 0 {
		err := s.interactionRepo.TouchItem(ctx, model.UserActor(userID), itemID, time.UnixMilli(local.Timestamp))
		if err != nil {
			return false, wrapWrite("touch interactions", err)
		}
	}
	return complete, nil
}

// isFatalSyncError 存储异常中止合并，业务校验错误只跳过当前项
func isFatalSyncError(err error) bool {
	return errors.Is(err, ErrWriteFailed) || errors.Is(err, ErrStorageUnavailable)
}
