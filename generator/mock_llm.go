package generator

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

var mockScheduleRe = regexp.MustCompile(`固定填入 ([^）]+)）`)

// MockLLM 本地调试用，不调用外部模型，直接用 OCR 文本拼一篇贴文 JSON。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	lines := nonEmptyLines(prompt.User)
	post := PostContent{
		Chapter:    "第1章",
		Title:      "自動生成示例標題",
		Intro:      "這是一段本地生成的引導語。",
		Hashtags:   []string{"#書摘", "#閱讀", "#讀書筆記", "#好書推薦", "#每日一句", "#自我成長"},
		Highlights: []string{},
	}
	if len(lines) > 0 {
		post.Quote = lines[0]
	}
	for i, line := range lines {
		if i >= 3 {
			break
		}
		post.Highlights = append(post.Highlights, "✅ "+line)
	}
	if m := mockScheduleRe.FindStringSubmatch(prompt.System); len(m) == 2 {
		post.Schedule = m[1]
	}
	out, err := json.Marshal(post)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
