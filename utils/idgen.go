package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewEventID 生成事件ID：{时间戳毫秒}-{UUID}
func NewEventID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
