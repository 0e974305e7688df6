package util

import "time"

// WeekStamp ISO 周标记，如 2026 年第 42 周 => 202642
func WeekStamp(t time.Time) int {
	year, week := t.ISOWeek()
	return year*100 + week
}

// MonthStamp 自然月标记，如 2026 年 10 月 => 202610
func MonthStamp(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

// PeriodStamps 同时返回周、月标记
func PeriodStamps(t time.Time) (week, month int) {
	return WeekStamp(t), MonthStamp(t)
}
