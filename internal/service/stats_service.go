package service

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/consts"
	"Inkwell/internal/pkg/redis"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/pkg/util"
	"Inkwell/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

// Clock 可注入的时钟，测试中用于跨周期
type Clock func() time.Time

type StatsService interface {
	GetItemStats(ctx context.Context, itemID uint64) (*dto.ItemStats, error)
	BatchGetStats(ctx context.Context, itemIDs []uint64) (map[uint64]*dto.ItemStats, error)
	GetStoryStats(ctx context.Context, storyID uint64) (*dto.StoryStats, error)
	TopRated(ctx context.Context, window string, limit int, itemType string, minVotes int64) ([]*dto.RankItemDTO, error)
	MostViewed(ctx context.Context, window string, limit int, itemType string) ([]*dto.RankItemDTO, error)
	Trending(ctx context.Context, window string, limit int, itemType string) ([]*dto.RankItemDTO, error)
	GetActorState(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActorState, error)
	Invalidate(ctx context.Context, itemIDs ...uint64)
	AfterWrite(ctx context.Context, itemIDs ...uint64)
}

type statsServiceImpl struct {
	rollupRepo      repository.RollupRepo
	interactionRepo repository.InteractionRepo
	resolver        *security.ActorResolver
	cacheTTL        time.Duration
	trackDirty      bool
	now             Clock
}

func NewStatsService(
	rollupRepo repository.RollupRepo,
	interactionRepo repository.InteractionRepo,
	resolver *security.ActorResolver,
	cacheTTL time.Duration,
	trackDirty bool,
	now Clock,
) StatsService {
	if cacheTTL <= 0 {
		cacheTTL = consts.DefaultStatsTTLSeconds * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &statsServiceImpl{
		rollupRepo:      rollupRepo,
		interactionRepo: interactionRepo,
		resolver:        resolver,
		cacheTTL:        cacheTTL,
		trackDirty:      trackDirty,
		now:             now,
	}
}

func statsKey(itemID uint64) string {
	return consts.ItemStatsKey + strconv.FormatUint(itemID, 10)
}

func toItemStats(itemID uint64, row *model.ItemRollup) *dto.ItemStats {
	stats := &dto.ItemStats{ItemID: itemID}
	if row == nil {
		return stats
	}
	stats.Views = row.ViewsTotal
	stats.Likes = row.LikesTotal
	stats.Dislikes = row.DislikesTotal
	stats.RatingAvg = RoundDisplay(row.RatingAvgTotal)
	stats.RatingCount = row.RatingCountTotal
	return stats
}

// GetItemStats 缓存旁路读取，存储异常时返回零值
func (s *statsServiceImpl) GetItemStats(ctx context.Context, itemID uint64) (*dto.ItemStats, error) {
	if itemID == 0 {
		return nil, ErrParamInvalid
	}
	key := statsKey(itemID)
	if cached, err := redis.GetValue(ctx, key); err == nil && cached != "" {
		stats := &dto.ItemStats{}
		if err = json.Unmarshal([]byte(cached), stats); err == nil {
			return stats, nil
		}
	}

	row, err := s.rollupRepo.Get(ctx, itemID)
	if err != nil {
		log.WarnContext(ctx, "load item rollup failed, fallback to zero", "item_id", itemID, "err", err)
		return toItemStats(itemID, nil), nil
	}
	stats := toItemStats(itemID, row)
	if data, err := json.Marshal(stats); err == nil {
		_ = redis.SetWithExpiration(ctx, key, data, s.cacheTTL)
	}
	return stats, nil
}

// BatchGetStats 一次 MGET 加一次 IN 查询
func (s *statsServiceImpl) BatchGetStats(ctx context.Context, itemIDs []uint64) (map[uint64]*dto.ItemStats, error) {
	ids := util.UniqueUint64(itemIDs)
	res := make(map[uint64]*dto.ItemStats, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	if len(ids) > consts.MaxBatchStatsSize {
		return nil, ErrParamInvalid
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statsKey(id)
	}
	missing := make([]uint64, 0, len(ids))
	cached, err := redis.MGetValues(ctx, keys...)
	if err != nil {
		log.WarnContext(ctx, "batch stats cache read failed", "err", err)
		missing = append(missing, ids...)
	} else {
		for i, v := range cached {
			stats := &dto.ItemStats{}
			if v == "" || json.Unmarshal([]byte(v), stats) != nil {
				missing = append(missing, ids[i])
				continue
			}
			res[ids[i]] = stats
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	rows, err := s.rollupRepo.BatchGet(ctx, missing)
	if err != nil {
		log.WarnContext(ctx, "batch load item rollups failed, fallback to zero", "count", len(missing), "err", err)
		for _, id := range missing {
			res[id] = toItemStats(id, nil)
		}
		return res, nil
	}

	toCache := make(map[string]interface{}, len(missing))
	for _, id := range missing {
		stats := toItemStats(id, rows[id])
		res[id] = stats
		if data, err := json.Marshal(stats); err == nil {
			toCache[statsKey(id)] = data
		}
	}
	if err = redis.SetManyWithExpiration(ctx, toCache, s.cacheTTL); err != nil {
		log.WarnContext(ctx, "batch stats cache write failed", "err", err)
	}
	return res, nil
}

func (s *statsServiceImpl) GetStoryStats(ctx context.Context, storyID uint64) (*dto.StoryStats, error) {
	if storyID == 0 {
		return nil, ErrParamInvalid
	}
	row, err := s.rollupRepo.Get(ctx, storyID)
	if err != nil {
		log.WarnContext(ctx, "load story rollup failed, fallback to zero", "story_id", storyID, "err", err)
		row = nil
	}
	res := &dto.StoryStats{ItemStats: *toItemStats(storyID, row)}
	if row != nil {
		res.Follows = row.FollowCount
	}
	return res, nil
}

func parseWindow(window string) (repository.RankWindow, error) {
	switch repository.RankWindow(window) {
	case "", repository.WindowTotal:
		return repository.WindowTotal, nil
	case repository.WindowWeek, repository.WindowMonth:
		return repository.RankWindow(window), nil
	default:
		return "", ErrParamInvalid
	}
}

func parseItemType(itemType string) (model.ItemType, error) {
	switch model.ItemType(itemType) {
	case "", model.ItemTypeStory, model.ItemTypeChapter:
		return model.ItemType(itemType), nil
	default:
		return "", ErrParamInvalid
	}
}

func (s *statsServiceImpl) rank(ctx context.Context, metric repository.RankMetric, window string, limit int, itemType string, minVotes int64) ([]*dto.RankItemDTO, error) {
	w, err := parseWindow(window)
	if err != nil {
		return nil, err
	}
	t, err := parseItemType(itemType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = consts.DefaultRankLimit
	}
	if limit > consts.MaxRankLimit {
		limit = consts.MaxRankLimit
	}

	week, month := util.PeriodStamps(s.now())
	rows, err := s.rollupRepo.Rank(ctx, repository.RankQuery{
		Metric:   metric,
		Window:   w,
		ItemType: t,
		Limit:    limit,
		MinVotes: minVotes,
		Week:     week,
		Month:    month,
	})
	if err != nil {
		log.WarnContext(ctx, "rank query failed, fallback to empty", "metric", metric, "window", w, "err", err)
		return []*dto.RankItemDTO{}, nil
	}

	items := make([]*dto.RankItemDTO, 0, len(rows))
	if err = copier.Copy(&items, rows); err != nil {
		return nil, err
	}
	for i, row := range rows {
		items[i].Score = rankScore(metric, w, row)
		items[i].RatingAvgTotal = RoundDisplay(row.RatingAvgTotal)
	}
	return items, nil
}

func rankScore(metric repository.RankMetric, window repository.RankWindow, row *model.ItemRollup) float64 {
	switch metric {
	case repository.RankByRating:
		switch window {
		case repository.WindowWeek:
			return RoundDisplay(row.RatingAvgWeek)
		case repository.WindowMonth:
			return RoundDisplay(row.RatingAvgMonth)
		}
		return RoundDisplay(row.RatingAvgTotal)
	case repository.RankByViews:
		switch window {
		case repository.WindowWeek:
			return float64(row.ViewsWeek)
		case repository.WindowMonth:
			return float64(row.ViewsMonth)
		}
		return float64(row.ViewsTotal)
	default:
		switch window {
		case repository.WindowWeek:
			return float64(row.TrendingWeek)
		case repository.WindowMonth:
			return float64(row.TrendingMonth)
		}
		return float64(row.ViewsTotal)
	}
}

func (s *statsServiceImpl) TopRated(ctx context.Context, window string, limit int, itemType string, minVotes int64) ([]*dto.RankItemDTO, error) {
	return s.rank(ctx, repository.RankByRating, window, limit, itemType, minVotes)
}

func (s *statsServiceImpl) MostViewed(ctx context.Context, window string, limit int, itemType string) ([]*dto.RankItemDTO, error) {
	return s.rank(ctx, repository.RankByViews, window, limit, itemType, 0)
}

func (s *statsServiceImpl) Trending(ctx context.Context, window string, limit int, itemType string) ([]*dto.RankItemDTO, error) {
	return s.rank(ctx, repository.RankByTrending, window, limit, itemType, 0)
}

// GetActorState 身份无法识别时返回空状态
func (s *statsServiceImpl) GetActorState(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActorState, error) {
	state := &dto.ActorState{}
	if itemID == 0 {
		return nil, ErrParamInvalid
	}
	actor := s.resolver.Resolve(userID, anonToken)
	if actor.IsAbsent() {
		return state, nil
	}
	rows, err := s.interactionRepo.GetAllForActorItem(ctx, actor, itemID)
	if err != nil {
		log.WarnContext(ctx, "load actor state failed", "item_id", itemID, "err", err)
		return state, nil
	}
	_, state.Liked = rows[model.InteractionLike]
	_, state.Disliked = rows[model.InteractionDislike]
	_, state.Read = rows[model.InteractionRead]
	_, state.Followed = rows[model.InteractionFollow]
	if r, ok := rows[model.InteractionRating]; ok && r.Value != nil {
		state.UserRating = util.PtrFloat64(*r.Value)
	}
	return state, nil
}

// Invalidate 清理计数缓存
func (s *statsServiceImpl) Invalidate(ctx context.Context, itemIDs ...uint64) {
	ids := util.UniqueUint64(itemIDs)
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, statsKey(id))
	}
	if err := redis.DeleteKey(ctx, keys...); err != nil {
		log.WarnContext(ctx, "invalidate stats cache failed", "item_ids", ids, "err", err)
	}
}

// AfterWrite 写入后清理缓存并登记待对账条目
func (s *statsServiceImpl) AfterWrite(ctx context.Context, itemIDs ...uint64) {
	s.Invalidate(ctx, itemIDs...)
	if !s.trackDirty {
		return
	}
	ids := util.UniqueUint64(itemIDs)
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		members = append(members, strconv.FormatUint(id, 10))
	}
	if err := redis.AddToSet(ctx, consts.ItemRollupDirtyKey, members...); err != nil {
		log.WarnContext(ctx, "mark rollup dirty failed", "item_ids", ids, "err", err)
	}
}
