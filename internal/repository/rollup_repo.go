package repository

import (
	"Inkwell/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRollupConflict 乐观锁重试耗尽
var ErrRollupConflict = errors.New("rollup 并发更新冲突")

const maxRatingAttempts = 5

type RankMetric string

const (
	RankByRating   RankMetric = "rating"
	RankByViews    RankMetric = "views"
	RankByTrending RankMetric = "trending"
)

type RankWindow string

const (
	WindowTotal RankWindow = "total"
	WindowWeek  RankWindow = "week"
	WindowMonth RankWindow = "month"
)

// RankQuery 排行查询，Week/Month 为当前周期标记
type RankQuery struct {
	Metric   RankMetric
	Window   RankWindow
	ItemType model.ItemType
	Limit    int
	MinVotes int64
	Week     int
	Month    int
}

// RollupTotals 对账任务重算出的累计值
type RollupTotals struct {
	LikesTotal       int64
	DislikesTotal    int64
	RatingSumTotal   float64
	RatingCountTotal int64
	RatingAvgTotal   float64
	FollowCount      int64
}

type RollupRepo interface {
	ApplyView(ctx context.Context, itemID, parentID uint64, week, month int) error
	ApplyLikeDelta(ctx context.Context, itemID, parentID uint64, delta int, week, month int) error
	ApplyDislikeDelta(ctx context.Context, itemID, parentID uint64, delta int) error
	ApplyFollowDelta(ctx context.Context, storyID uint64, delta int) error
	ApplyRating(ctx context.Context, itemID uint64, itemType model.ItemType, create bool, compute func(model.RatingBuckets) model.RatingBuckets) error
	Get(ctx context.Context, itemID uint64) (*model.ItemRollup, error)
	BatchGet(ctx context.Context, itemIDs []uint64) (map[uint64]*model.ItemRollup, error)
	Rank(ctx context.Context, q RankQuery) ([]*model.ItemRollup, error)
	ReplaceTotals(ctx context.Context, itemID uint64, totals RollupTotals) error
}

type rollupRepoImpl struct {
	db *gorm.DB
}

func NewRollupRepo(db *gorm.DB) RollupRepo {
	return &rollupRepoImpl{db: db}
}

// seedRows 条目及其所属作品的初始行，parentID 为 0 时只有条目本身
func seedRows(itemID, parentID uint64, fill func(*model.ItemRollup)) []*model.ItemRollup {
	rows := make([]*model.ItemRollup, 0, 2)
	itemType := model.ItemTypeStory
	if parentID > 0 {
		itemType = model.ItemTypeChapter
	}
	rows = append(rows, &model.ItemRollup{ItemID: itemID, ItemType: itemType})
	if parentID > 0 && parentID != itemID {
		rows = append(rows, &model.ItemRollup{ItemID: parentID, ItemType: model.ItemTypeStory})
	}
	for _, row := range rows {
		fill(row)
	}
	return rows
}

func targetIDs(itemID, parentID uint64) []uint64 {
	if parentID > 0 && parentID != itemID {
		return []uint64{itemID, parentID}
	}
	return []uint64{itemID}
}

// windowIncr 周期一致时 +1，否则从 1 重新计数
func windowIncr(col, stampCol string, stamp int) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: col},
		Value:  gorm.Expr(fmt.Sprintf("CASE WHEN %s = ? THEN %s + 1 ELSE 1 END", stampCol, col), stamp),
	}
}

func assign(col string, value interface{}) clause.Assignment {
	return clause.Assignment{Column: clause.Column{Name: col}, Value: value}
}

// 值列必须排在 stamp 列之前，MySQL 按从左到右的顺序求值
func (r *rollupRepoImpl) upsert(ctx context.Context, rows []*model.ItemRollup, set clause.Set) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: set,
	}).Create(&rows).Error
}

// ApplyView 浏览量 +1，同时计入所属作品
func (r *rollupRepoImpl) ApplyView(ctx context.Context, itemID, parentID uint64, week, month int) error {
	rows := seedRows(itemID, parentID, func(row *model.ItemRollup) {
		row.ViewsTotal, row.ViewsWeek, row.ViewsMonth = 1, 1, 1
		row.ViewsWeekStamp, row.ViewsMonthStamp = week, month
		row.TrendingWeek, row.TrendingMonth = 1, 1
	})
	return r.upsert(ctx, rows, clause.Set{
		assign("views_total", gorm.Expr("views_total + 1")),
		windowIncr("views_week", "views_week_stamp", week),
		windowIncr("views_month", "views_month_stamp", month),
		windowIncr("trending_week", "views_week_stamp", week),
		windowIncr("trending_month", "views_month_stamp", month),
		assign("views_week_stamp", week),
		assign("views_month_stamp", month),
		assign("updated_at", time.Now()),
	})
}

// ApplyLikeDelta 点赞 ±1；减少只更新已存在的行，且不低于 0
func (r *rollupRepoImpl) ApplyLikeDelta(ctx context.Context, itemID, parentID uint64, delta int, week, month int) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		rows := seedRows(itemID, parentID, func(row *model.ItemRollup) {
			row.LikesTotal, row.LikesWeek, row.LikesMonth = 1, 1, 1
			row.LikesWeekStamp, row.LikesMonthStamp = week, month
		})
		return r.upsert(ctx, rows, clause.Set{
			assign("likes_total", gorm.Expr("likes_total + 1")),
			windowIncr("likes_week", "likes_week_stamp", week),
			windowIncr("likes_month", "likes_month_stamp", month),
			assign("likes_week_stamp", week),
			assign("likes_month_stamp", month),
			assign("updated_at", time.Now()),
		})
	}
	return r.db.WithContext(ctx).Exec(
		"UPDATE item_rollups SET "+
			"likes_total = CASE WHEN likes_total > 0 THEN likes_total - 1 ELSE 0 END, "+
			"likes_week = CASE WHEN likes_week_stamp = ? AND likes_week > 0 THEN likes_week - 1 ELSE 0 END, "+
			"likes_month = CASE WHEN likes_month_stamp = ? AND likes_month > 0 THEN likes_month - 1 ELSE 0 END, "+
			"likes_week_stamp = ?, likes_month_stamp = ?, updated_at = ? "+
			"WHERE item_id IN ?",
		week, month, week, month, time.Now(), targetIDs(itemID, parentID),
	).Error
}

// ApplyDislikeDelta 点踩只维护累计值
func (r *rollupRepoImpl) ApplyDislikeDelta(ctx context.Context, itemID, parentID uint64, delta int) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		rows := seedRows(itemID, parentID, func(row *model.ItemRollup) {
			row.DislikesTotal = 1
		})
		return r.upsert(ctx, rows, clause.Set{
			assign("dislikes_total", gorm.Expr("dislikes_total + 1")),
			assign("updated_at", time.Now()),
		})
	}
	return r.db.WithContext(ctx).Model(&model.ItemRollup{}).
		Where("item_id IN ?", targetIDs(itemID, parentID)).
		UpdateColumns(map[string]interface{}{
			"dislikes_total": gorm.Expr("CASE WHEN dislikes_total > 0 THEN dislikes_total - 1 ELSE 0 END"),
			"updated_at":     time.Now(),
		}).Error
}

// ApplyFollowDelta 关注数记在作品行上
func (r *rollupRepoImpl) ApplyFollowDelta(ctx context.Context, storyID uint64, delta int) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		rows := []*model.ItemRollup{{ItemID: storyID, ItemType: model.ItemTypeStory, FollowCount: 1}}
		return r.upsert(ctx, rows, clause.Set{
			assign("follow_count", gorm.Expr("follow_count + 1")),
			assign("updated_at", time.Now()),
		})
	}
	return r.db.WithContext(ctx).Model(&model.ItemRollup{}).
		Where("item_id = ?", storyID).
		UpdateColumns(map[string]interface{}{
			"follow_count": gorm.Expr("CASE WHEN follow_count > 0 THEN follow_count - 1 ELSE 0 END"),
			"updated_at":   time.Now(),
		}).Error
}

// ApplyRating 基于 rating_version 的乐观锁读改写，create 为 false 时行不存在直接返回
func (r *rollupRepoImpl) ApplyRating(ctx context.Context, itemID uint64, itemType model.ItemType, create bool, compute func(model.RatingBuckets) model.RatingBuckets) error {
	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < maxRatingAttempts; attempt++ {
		var row model.ItemRollup
		err := db.Where("item_id = ?", itemID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !create {
				return nil
			}
			err = db.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.ItemRollup{ItemID: itemID, ItemType: itemType}).Error
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		next := compute(row.RatingBuckets())
		result := db.Model(&model.ItemRollup{}).
			Where("item_id = ? AND rating_version = ?", itemID, row.RatingVersion).
			UpdateColumns(map[string]interface{}{
				"rating_sum_total":   next.Total.Sum,
				"rating_count_total": next.Total.Count,
				"rating_avg_total":   next.Total.Avg,
				"rating_sum_week":    next.Week.Sum,
				"rating_count_week":  next.Week.Count,
				"rating_avg_week":    next.Week.Avg,
				"rating_sum_month":   next.Month.Sum,
				"rating_count_month": next.Month.Count,
				"rating_avg_month":   next.Month.Avg,
				"rating_week_stamp":  next.WeekStamp,
				"rating_month_stamp": next.MonthStamp,
				"rating_version":     row.RatingVersion + 1,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}
	return ErrRollupConflict
}

func (r *rollupRepoImpl) Get(ctx context.Context, itemID uint64) (*model.ItemRollup, error) {
	var row model.ItemRollup
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// BatchGet 单次 IN 查询
func (r *rollupRepoImpl) BatchGet(ctx context.Context, itemIDs []uint64) (map[uint64]*model.ItemRollup, error) {
	res := make(map[uint64]*model.ItemRollup, len(itemIDs))
	if len(itemIDs) == 0 {
		return res, nil
	}
	rows := make([]*model.ItemRollup, 0, len(itemIDs))
	if err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		res[row.ItemID] = row
	}
	return res, nil
}

// rankColumns 排序列、过滤列、周期标记列
func rankColumns(q RankQuery) (orderCol, filterCol, stampCol string, stamp int, err error) {
	switch q.Window {
	case WindowTotal, "":
	case WindowWeek:
		stamp = q.Week
	case WindowMonth:
		stamp = q.Month
	default:
		return "", "", "", 0, fmt.Errorf("未知的统计窗口: %s", q.Window)
	}
	window := q.Window
	if window == "" {
		window = WindowTotal
	}

	switch q.Metric {
	case RankByRating:
		orderCol = "rating_avg_" + string(window)
		filterCol = "rating_count_" + string(window)
		if window != WindowTotal {
			stampCol = "rating_" + string(window) + "_stamp"
		}
	case RankByViews:
		orderCol = "views_" + string(window)
		filterCol = orderCol
		if window != WindowTotal {
			stampCol = "views_" + string(window) + "_stamp"
		}
	case RankByTrending:
		if window == WindowTotal {
			orderCol = "views_total"
		} else {
			orderCol = "trending_" + string(window)
			stampCol = "views_" + string(window) + "_stamp"
		}
		filterCol = orderCol
	default:
		return "", "", "", 0, fmt.Errorf("未知的排序指标: %s", q.Metric)
	}
	return orderCol, filterCol, stampCol, stamp, nil
}

// Rank 只读冗余列，窗口查询只取当前周期的数据
func (r *rollupRepoImpl) Rank(ctx context.Context, q RankQuery) ([]*model.ItemRollup, error) {
	orderCol, filterCol, stampCol, stamp, err := rankColumns(q)
	if err != nil {
		return nil, err
	}
	minCount := int64(1)
	if q.Metric == RankByRating && q.MinVotes > minCount {
		minCount = q.MinVotes
	}

	db := r.db.WithContext(ctx).Model(&model.ItemRollup{}).
		Where(filterCol+" >= ?", minCount)
	if stampCol != "" {
		db = db.Where(stampCol+" = ?", stamp)
	}
	if q.ItemType != "" {
		db = db.Where("item_type = ?", q.ItemType)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	rows := make([]*model.ItemRollup, 0)
	err = db.Order(orderCol + " DESC").Order("item_id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceTotals 用重算结果覆盖累计值，不创建新行
func (r *rollupRepoImpl) ReplaceTotals(ctx context.Context, itemID uint64, totals RollupTotals) error {
	return r.db.WithContext(ctx).Model(&model.ItemRollup{}).
		Where("item_id = ?", itemID).
		UpdateColumns(map[string]interface{}{
			"likes_total":        totals.LikesTotal,
			"dislikes_total":     totals.DislikesTotal,
			"rating_sum_total":   totals.RatingSumTotal,
			"rating_count_total": totals.RatingCountTotal,
			"rating_avg_total":   totals.RatingAvgTotal,
			"follow_count":       totals.FollowCount,
			"rating_version":     gorm.Expr("rating_version + 1"),
			"updated_at":         time.Now(),
		}).Error
}
