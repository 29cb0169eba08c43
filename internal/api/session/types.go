package session

type CreateParam struct {
	Platform string `json:"platform"`
	Id       string `json:"id"`
}

type PositionParam struct {
	OffsetMs *int64 `json:"offsetMs"`
}

type StatusResult struct {
	SessionId string `json:"sessionId"`
	Platform  string `json:"platform"`
	VideoId   string `json:"videoId"`
	Mode      string `json:"mode"`
	Live      bool   `json:"live"`
	Disabled  bool   `json:"disabled"`
	Running   bool   `json:"running"`
	CreatedAt string `json:"createdAt"`
}

// CommentResult 兼容 dandan api 的 comment 返回格式
type CommentResult struct {
	Count    int64      `json:"count"`
	Comments []*Comment `json:"comments"`
}

type Comment struct {
	CID int64  `json:"cid"`
	P   string `json:"p"`
	M   string `json:"m"`
	// 以下为原始字段
	Identity  string  `json:"identity"`
	Color     uint32  `json:"color"`
	Position  string  `json:"position"`
	FontSize  float64 `json:"fontSize"`
	OffsetMs  int64   `json:"offsetMs"`
	HasOffset bool    `json:"hasOffset"`
	Live      bool    `json:"live"`
}
