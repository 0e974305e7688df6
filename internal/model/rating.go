package model

// RatingBucket 单个统计窗口的评分累计
type RatingBucket struct {
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
}

// RatingBuckets 条目的三个评分窗口及其周期标记
type RatingBuckets struct {
	Total      RatingBucket `json:"total"`
	Week       RatingBucket `json:"week"`
	Month      RatingBucket `json:"month"`
	WeekStamp  int          `json:"week_stamp"`
	MonthStamp int          `json:"month_stamp"`
}

// RatingChange 一次评分变化：Old 为空表示新评分，New 为空表示撤销
type RatingChange struct {
	Old *float64
	New *float64
}

func (c RatingChange) IsAdd() bool {
	return c.Old == nil && c.New != nil
}

func (c RatingChange) IsRemove() bool {
	return c.Old != nil && c.New == nil
}

func (c RatingChange) IsUpdate() bool {
	return c.Old != nil && c.New != nil
}

// RatingBuckets 从冗余行中取出评分窗口
func (r *ItemRollup) RatingBuckets() RatingBuckets {
	return RatingBuckets{
		Total:      RatingBucket{Sum: r.RatingSumTotal, Count: r.RatingCountTotal, Avg: r.RatingAvgTotal},
		Week:       RatingBucket{Sum: r.RatingSumWeek, Count: r.RatingCountWeek, Avg: r.RatingAvgWeek},
		Month:      RatingBucket{Sum: r.RatingSumMonth, Count: r.RatingCountMonth, Avg: r.RatingAvgMonth},
		WeekStamp:  r.RatingWeekStamp,
		MonthStamp: r.RatingMonthStamp,
	}
}
