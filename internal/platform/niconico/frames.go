package niconico

import (
	"bytes"
	"danmaku-sync/internal/danmaku"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// 分段数据没有使用完整的消息定义 能按字段解析时按字段解析 否则按固定标记扫描
// 标记就是 chat 消息中对应字段的 tag
const (
	frameDelimiter byte = 0x0A
	textDelimiter       = "\x12"
	identityMarker byte = 0x40
	vposMarker     byte = 0x18

	vposField     protowire.Number = 3
	modifierField protowire.Number = 7
	noField       protowire.Number = 8

	vposUnit = 10 * time.Millisecond
	// 实时弹幕整体延后显示 避免同时到达的弹幕挤在一起
	vposBias = 15 * time.Second

	// view 流中 ChunkedEntry.next 字段
	nextField protowire.Number = 4
	atField   protowire.Number = 1
)

var chatMarker = []byte{0x82, 0x01}

// scanVarint 从第一个 marker 之后读取一个 base-128 varint
func scanVarint(b []byte, marker byte) (uint64, bool) {
	i := bytes.IndexByte(b, marker)
	if i < 0 {
		return 0, false
	}
	v, n := protowire.ConsumeVarint(b[i+1:])
	if n < 0 {
		return 0, false
	}
	return v, true
}

// splitFrames 只保留包含弹幕标记的行
func splitFrames(segment []byte) [][]byte {
	var frames [][]byte
	for _, line := range bytes.Split(segment, []byte{frameDelimiter}) {
		if bytes.Contains(line, chatMarker) {
			frames = append(frames, line)
		}
	}
	return frames
}

func decodeFrame(frame []byte) (danmaku.Comment, error) {
	// 文字之后才是id和vpos 文字本身可能包含标记字节
	fields := frame
	if i := bytes.IndexByte(frame, textDelimiter[0]); i >= 0 {
		fields = frame[i:]
	} else if len(frame) > 0 {
		fields = frame[1:]
	}

	chat, ok := walkChat(fields)
	if !ok {
		chat = scanChat(fields)
	}
	if !chat.hasId {
		return danmaku.Comment{}, danmaku.DecodeError("frame without identity, size %d", len(frame))
	}
	c := danmaku.NewComment(strconv.FormatUint(chat.id, 10), frameText(frame))
	if chat.hasVpos {
		c = c.WithOffset(time.Duration(chat.vpos)*vposUnit + vposBias)
	}
	if chat.modifier != nil {
		c = parseModifier(chat.modifier).apply(c)
	}
	return c, nil
}

type chatFields struct {
	id       uint64
	hasId    bool
	vpos     uint64
	hasVpos  bool
	modifier []byte
}

// walkChat 从名字字段开始逐个字段解析 任何字段不完整都算失败
func walkChat(fields []byte) (chatFields, bool) {
	var chat chatFields
	for len(fields) > 0 {
		num, typ, n := protowire.ConsumeTag(fields)
		if n < 0 {
			return chat, false
		}
		fields = fields[n:]
		switch {
		case num == vposField && typ == protowire.VarintType:
			chat.vpos, n = protowire.ConsumeVarint(fields)
			chat.hasVpos = n >= 0
		case num == noField && typ == protowire.VarintType:
			chat.id, n = protowire.ConsumeVarint(fields)
			chat.hasId = n >= 0
		case num == modifierField && typ == protowire.BytesType:
			chat.modifier, n = protowire.ConsumeBytes(fields)
		default:
			n = protowire.ConsumeFieldValue(num, typ, fields)
		}
		if n < 0 {
			return chat, false
		}
		fields = fields[n:]
	}
	return chat, chat.hasId
}

func scanChat(fields []byte) chatFields {
	var chat chatFields
	chat.id, chat.hasId = scanVarint(fields, identityMarker)
	chat.vpos, chat.hasVpos = scanVarint(fields, vposMarker)
	return chat
}

// frameText 第一段去掉开头的字段标记
func frameText(frame []byte) string {
	first, _, _ := strings.Cut(string(frame), textDelimiter)
	_, size := utf8.DecodeRuneInString(first)
	return strings.ToValidUTF8(first[size:], "")
}

// viewEntries 按长度前缀切分 view 流 无法解析的剩余部分作为最后一个元素
func viewEntries(stream []byte) [][]byte {
	var entries [][]byte
	for len(stream) > 0 {
		size, n := protowire.ConsumeVarint(stream)
		if n < 0 || size > uint64(len(stream)-n) {
			return append(entries, stream)
		}
		entries = append(entries, stream[n:n+int(size)])
		stream = stream[n+int(size):]
	}
	return entries
}

// nextAt 返回最后一个 next.at
func nextAt(stream []byte) (uint64, bool) {
	var at uint64
	var found bool
	for _, entry := range viewEntries(stream) {
		if v, ok := nextFromEntry(entry); ok {
			at, found = v, true
		}
	}
	return at, found
}

// segmentURIs 在每个 entry 内匹配 避免把下一个长度前缀当成地址的一部分
func segmentURIs(stream []byte) []string {
	var result []string
	for _, entry := range viewEntries(stream) {
		for _, m := range segmentURIRegex.FindAll(entry, -1) {
			result = append(result, string(m))
		}
	}
	return result
}

func nextFromEntry(entry []byte) (uint64, bool) {
	for len(entry) > 0 {
		num, typ, n := protowire.ConsumeTag(entry)
		if n < 0 {
			return 0, false
		}
		entry = entry[n:]
		if num == nextField && typ == protowire.BytesType {
			next, m := protowire.ConsumeBytes(entry)
			if m < 0 {
				return 0, false
			}
			return varintField(next, atField)
		}
		m := protowire.ConsumeFieldValue(num, typ, entry)
		if m < 0 {
			return 0, false
		}
		entry = entry[m:]
	}
	return 0, false
}

func varintField(msg []byte, field protowire.Number) (uint64, bool) {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return 0, false
		}
		msg = msg[n:]
		if num == field && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(msg)
			return v, m >= 0
		}
		m := protowire.ConsumeFieldValue(num, typ, msg)
		if m < 0 {
			return 0, false
		}
		msg = msg[m:]
	}
	return 0, false
}
