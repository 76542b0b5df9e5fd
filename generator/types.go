package generator

// PostContent 要求模型输出的书摘贴文结构。
type PostContent struct {
	Chapter    string   `json:"chapter"`
	Title      string   `json:"title"`
	Intro      string   `json:"intro"`
	Quote      string   `json:"quote"`
	Highlights []string `json:"highlights"`
	Hashtags   []string `json:"hashtags"`
	Schedule   string   `json:"schedule"`
}

// Result 是模型回复的解析结果：要么解析成 PostContent，要么只保留原文。
// 两种情况下 Raw 都是去掉首尾空白后的原始回复，落盘时使用它。
type Result struct {
	Raw    string
	Parsed bool
	Post   PostContent
	// HasChapter 区分 "chapter 缺失" 与 "chapter 为空字符串"。
	HasChapter bool
}

// Content 返回用于预览的字段；未解析时所有字段为空。
func (r Result) Content() PostContent {
	if !r.Parsed {
		return PostContent{}
	}
	return r.Post
}
