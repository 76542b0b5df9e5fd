package generator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseResult 尽力把模型回复解析为 PostContent。
// 非 JSON、JSON 但不是对象，都视为未解析；字段类型不对时按字符串处理，缺失则为空。
func ParseResult(raw string) Result {
	text := strings.TrimSpace(raw)
	res := Result{Raw: text}
	if !gjson.Valid(text) {
		return res
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return res
	}

	chapter := doc.Get("chapter")
	res.Parsed = true
	res.HasChapter = chapter.Exists()
	res.Post = PostContent{
		Chapter:    chapter.String(),
		Title:      doc.Get("title").String(),
		Intro:      doc.Get("intro").String(),
		Quote:      doc.Get("quote").String(),
		Highlights: stringList(doc.Get("highlights")),
		Hashtags:   stringList(doc.Get("hashtags")),
		Schedule:   doc.Get("schedule").String(),
	}
	return res
}

func stringList(v gjson.Result) []string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if !v.IsArray() {
		return []string{v.String()}
	}
	items := v.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}
