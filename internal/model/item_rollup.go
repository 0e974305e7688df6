package model

import (
	"time"
)

// ItemRollup 条目维度的冗余计数，周/月桶以 stamp 标记所属周期，stamp 过期时下次写入重置
type ItemRollup struct {
	ItemID   uint64   `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	ItemType ItemType `gorm:"type:varchar(16);not null;default:'chapter'" json:"item_type"`

	ViewsTotal      int64 `gorm:"not null;default:0" json:"views_total"`
	ViewsWeek       int64 `gorm:"not null;default:0;index:idx_views_week" json:"views_week"`
	ViewsMonth      int64 `gorm:"not null;default:0" json:"views_month"`
	ViewsWeekStamp  int   `gorm:"not null;default:0" json:"views_week_stamp"`
	ViewsMonthStamp int   `gorm:"not null;default:0" json:"views_month_stamp"`

	LikesTotal      int64 `gorm:"not null;default:0" json:"likes_total"`
	LikesWeek       int64 `gorm:"not null;default:0" json:"likes_week"`
	LikesMonth      int64 `gorm:"not null;default:0" json:"likes_month"`
	LikesWeekStamp  int   `gorm:"not null;default:0" json:"likes_week_stamp"`
	LikesMonthStamp int   `gorm:"not null;default:0" json:"likes_month_stamp"`

	DislikesTotal int64 `gorm:"not null;default:0" json:"dislikes_total"`

	RatingSumTotal   float64 `gorm:"type:decimal(14,4);not null;default:0" json:"rating_sum_total"`
	RatingCountTotal int64   `gorm:"not null;default:0" json:"rating_count_total"`
	RatingAvgTotal   float64 `gorm:"type:decimal(6,4);not null;default:0;index:idx_rating_avg_total" json:"rating_avg_total"`
	RatingSumWeek    float64 `gorm:"type:decimal(14,4);not null;default:0" json:"rating_sum_week"`
	RatingCountWeek  int64   `gorm:"not null;default:0" json:"rating_count_week"`
	RatingAvgWeek    float64 `gorm:"type:decimal(6,4);not null;default:0" json:"rating_avg_week"`
	RatingSumMonth   float64 `gorm:"type:decimal(14,4);not null;default:0" json:"rating_sum_month"`
	RatingCountMonth int64   `gorm:"not null;default:0" json:"rating_count_month"`
	RatingAvgMonth   float64 `gorm:"type:decimal(6,4);not null;default:0" json:"rating_avg_month"`
	RatingWeekStamp  int     `gorm:"not null;default:0" json:"rating_week_stamp"`
	RatingMonthStamp int     `gorm:"not null;default:0" json:"rating_month_stamp"`
	RatingVersion    int64   `gorm:"not null;default:0" json:"-"`

	TrendingWeek  int64 `gorm:"not null;default:0" json:"trending_week"`
	TrendingMonth int64 `gorm:"not null;default:0" json:"trending_month"`

	// 仅作品行累计，章节的关注计入所属作品
	FollowCount int64 `gorm:"not null;default:0" json:"follow_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (ItemRollup) TableName() string {
	return "item_rollups"
}
