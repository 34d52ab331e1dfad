package service

import (
	"time"

	"nft_auction/model"
)

// AntiSnipingPolicy 截止前窗口内出价时，将结束时间重置为出价时间+延长时长
type AntiSnipingPolicy struct{}

// Apply 返回新的结束时间；未触发或新时间不晚于原时间时extended为false
func (AntiSnipingPolicy) Apply(now, endTime time.Time, s model.AdminSettings) (newEnd time.Time, extended bool) {
	if s.AntiSnipeWindow <= 0 || s.AntiSnipeExtension <= 0 {
		return endTime, false
	}
	if endTime.Sub(now) > s.Window() {
		return endTime, false
	}
	candidate := now.Add(s.Extension())
	if !candidate.After(endTime) {
		return endTime, false
	}
	return candidate, true
}
