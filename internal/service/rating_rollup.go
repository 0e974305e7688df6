package service

import (
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/util"
	"math"
)

const (
	MinRating = 0.5
	MaxRating = 5.0
)

// NormalizeRating 校验范围并取最近的 0.5 档
func NormalizeRating(v float64) (float64, error) {
	if math.IsNaN(v) || v < MinRating || v > MaxRating {
		return 0, ErrRatingOutOfRange
	}
	return math.Round(v*2) / 2, nil
}

// RoundDisplay 展示用平均分，保留两位
func RoundDisplay(avg float64) float64 {
	return util.Round(avg, 2)
}

// ComputeRatingRollup 根据一次评分变化计算新的评分窗口，纯函数
func ComputeRatingRollup(existing model.RatingBuckets, change model.RatingChange, week, month int) model.RatingBuckets {
	next := model.RatingBuckets{
		Total:      applyRatingChange(existing.Total, change),
		WeekStamp:  week,
		MonthStamp: month,
	}
	next.Week = applyWindowChange(existing.Week, existing.WeekStamp == week, change)
	next.Month = applyWindowChange(existing.Month, existing.MonthStamp == month, change)
	return next
}

func applyWindowChange(b model.RatingBucket, current bool, change model.RatingChange) model.RatingBucket {
	if current {
		return applyRatingChange(b, change)
	}
	// 周期已过期，撤销清零，其余以本次评分重新开始
	if change.IsRemove() || change.New == nil {
		return model.RatingBucket{}
	}
	return withAvg(model.RatingBucket{Sum: *change.New, Count: 1})
}

func applyRatingChange(b model.RatingBucket, change model.RatingChange) model.RatingBucket {
	switch {
	case change.IsAdd():
		b.Sum += *change.New
		b.Count++
	case change.IsRemove():
		b.Sum = math.Max(0, b.Sum-*change.Old)
		b.Count = max(0, b.Count-1)
	case change.IsUpdate():
		b.Sum = math.Max(0, b.Sum+(*change.New-*change.Old))
	}
	if b.Count == 0 {
		b.Sum = 0
	}
	return withAvg(b)
}

func withAvg(b model.RatingBucket) model.RatingBucket {
	b.Sum = util.Round(b.Sum, 4)
	if b.Count > 0 {
		b.Avg = util.Round(b.Sum/float64(b.Count), 4)
	} else {
		b.Avg = 0
	}
	return b
}
