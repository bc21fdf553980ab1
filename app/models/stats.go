package models

import "time"

// DailyStat aggregates generation counts per day and kind ("lesson", "planb").
// Rows are written by the metrics counter flush, not per request.
type DailyStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       string    `gorm:"type:char(10);not null;index:ux_daily_stats_day_kind,unique,priority:1" json:"day"`
	Kind      string    `gorm:"type:varchar(20);not null;index:ux_daily_stats_day_kind,unique,priority:2" json:"kind"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
