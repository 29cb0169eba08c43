package niconico

// embeddedData 观看页 data-props 中需要的字段
type embeddedData struct {
	Program struct {
		NicoliveProgramId string `json:"nicoliveProgramId"`
		Title             string `json:"title"`
		// ON_AIR ENDED RELEASED
		Status       string `json:"status"`
		BeginTime    int64  `json:"beginTime"`
		VposBaseTime int64  `json:"vposBaseTime"`
		EndTime      int64  `json:"endTime"`
	} `json:"program"`
}
