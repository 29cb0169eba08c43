// Package platform 汇总所有平台 导入后各平台通过 init 注册
package platform

import (
	_ "danmaku-sync/internal/platform/niconico"
	_ "danmaku-sync/internal/platform/youtube"
)
