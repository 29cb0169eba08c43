package niconico

import (
	"danmaku-sync/internal/danmaku"

	"google.golang.org/protobuf/encoding/protowire"
)

// 弹幕命令 https://dic.nicovideo.jp/a/%E3%82%B3%E3%83%A1%E3%83%B3%E3%83%88
var colorMap = map[string]uint32{
	"white":  0xFFFFFF,
	"red":    0xFF0000,
	"pink":   0xFF8080,
	"orange": 0xFFC000,
	"yellow": 0xFFFF00,
	"green":  0x00FF00,
	"cyan":   0x00FFFF,
	"blue":   0x0000FF,
	"purple": 0xC000FF,
	"black":  0x000000,
	// 会员颜色
	"white2":         0xCCCCCC,
	"niconicoWhite":  0xCCCC99,
	"red2":           0xCC0033,
	"truered":        0xCC0033,
	"pink2":          0xFF33CC,
	"orange2":        0xFF6600,
	"passionorange":  0xFF7F00,
	"yellow2":        0x999900,
	"madyellow":      0x999900,
	"green2":         0x00CC66,
	"elementalgreen": 0x00CC66,
	"cyan2":          0x00CCCC,
	"blue2":          0x3399FF,
	"marineblue":     0x3399FF,
	"purple2":        0x6633FF,
	"nobleviolet":    0x6633FF,
	"black2":         0x666666,
}

var positionMap = map[string]danmaku.Position{
	"top":    danmaku.Top,
	"bottom": danmaku.Bottom,
	"ue":     danmaku.Top,
	"shita":  danmaku.Bottom,
}

var sizeMap = map[string]float64{
	"small": danmaku.SmallFontSize,
	"big":   danmaku.DefaultFontSize,
}

// modifier 枚举值对应的命令 下标即枚举值
var (
	positionNames = []string{"naka", "shita", "ue"}
	sizeNames     = []string{"medium", "small", "big"}
	colorNames    = []string{
		"white", "red", "pink", "orange", "yellow", "green", "cyan", "blue", "purple", "black",
		"white2", "red2", "pink2", "orange2", "yellow2", "green2", "cyan2", "blue2", "purple2", "black2",
	}
)

const (
	modifierPosition  protowire.Number = 1
	modifierSize      protowire.Number = 2
	modifierColor     protowire.Number = 3
	modifierFullColor protowire.Number = 4
)

type style struct {
	commands     []string
	fullColor    uint32
	hasFullColor bool
}

// applyCommands 每一类样式取第一个认识的命令
func applyCommands(c danmaku.Comment, commands []string) danmaku.Comment {
	var colorSet, positionSet, sizeSet bool
	for _, command := range commands {
		if v, ok := colorMap[command]; ok && !colorSet {
			c.ARGBColor = 0xFF000000 | v
			colorSet = true
		}
		if v, ok := positionMap[command]; ok && !positionSet {
			c.Position = v
			positionSet = true
		}
		if v, ok := sizeMap[command]; ok && !sizeSet {
			c.RelativeFontSize = v
			sizeSet = true
		}
	}
	return c
}

func (s style) apply(c danmaku.Comment) danmaku.Comment {
	c = applyCommands(c, s.commands)
	if s.hasFullColor {
		c.ARGBColor = 0xFF000000 | s.fullColor
	}
	return c
}

// parseModifier 解析失败的部分直接忽略 样式不影响弹幕本身
func parseModifier(b []byte) style {
	var s style
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s
		}
		b = b[n:]
		if typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s
			}
			b = b[m:]
			switch num {
			case modifierPosition:
				s.commands = appendName(s.commands, positionNames, v)
			case modifierSize:
				s.commands = appendName(s.commands, sizeNames, v)
			case modifierColor:
				s.commands = appendName(s.commands, colorNames, v)
			}
			continue
		}
		if num == modifierFullColor && typ == protowire.BytesType {
			rgb, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return s
			}
			b = b[m:]
			s.fullColor, s.hasFullColor = parseRGB(rgb)
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return s
		}
		b = b[m:]
	}
	return s
}

func appendName(commands []string, names []string, v uint64) []string {
	if v < uint64(len(names)) {
		return append(commands, names[v])
	}
	return commands
}

// parseRGB r g b 分别是字段 1 2 3
func parseRGB(b []byte) (uint32, bool) {
	var rgb uint32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.VarintType {
			return 0, false
		}
		b = b[n:]
		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return 0, false
		}
		b = b[m:]
		if num >= 1 && num <= 3 {
			rgb |= uint32(v&0xFF) << (8 * (3 - uint32(num)))
		}
	}
	return rgb, true
}
