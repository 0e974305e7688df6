package dto

// ItemStats 条目累计计数
type ItemStats struct {
	ItemID      uint64  `json:"item_id"`
	Views       int64   `json:"views"`
	Likes       int64   `json:"likes"`
	Dislikes    int64   `json:"dislikes"`
	RatingAvg   float64 `json:"rating_avg"`
	RatingCount int64   `json:"rating_count"`
}

// StoryStats 作品计数，含关注数
type StoryStats struct {
	ItemStats
	Follows int64 `json:"follows"`
}

// BatchStatsReq 批量获取计数请求
type BatchStatsReq struct {
	ItemIDs []uint64 `json:"item_ids" binding:"required,min=1,max=200"`
}

// RankReq 排行查询参数
type RankReq struct {
	Window   string `form:"window" binding:"omitempty,oneof=total week month"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Type     string `form:"type" binding:"omitempty,oneof=story chapter"`
	MinVotes int64  `form:"min_votes" binding:"omitempty,min=1"`
}

// RankItemDTO 排行项
type RankItemDTO struct {
	ItemID           uint64  `json:"item_id"`
	ItemType         string  `json:"item_type"`
	Score            float64 `json:"score"`
	ViewsTotal       int64   `json:"views_total"`
	ViewsWeek        int64   `json:"views_week"`
	ViewsMonth       int64   `json:"views_month"`
	LikesTotal       int64   `json:"likes_total"`
	RatingAvgTotal   float64 `json:"rating_avg_total"`
	RatingCountTotal int64   `json:"rating_count_total"`
	FollowCount      int64   `json:"follow_count"`
}
