package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的一轮对话：System 为指令，User 为 OCR 得到的正文。
type Prompt struct {
	System string
	User   string
}

// ChapterTag 根据流水号生成贴文标签，例如 #07。
func ChapterTag(seq int) string {
	return fmt.Sprintf("#%02d", seq)
}

// BuildDefaultPrompt 生成书摘小编的默认指令。
func BuildDefaultPrompt(seq int, schedule string) string {
	var sb strings.Builder
	sb.WriteString("你是一位社群小編，請把以下多個章節的內容整合成一篇 IG/Threads 書摘貼文，只回傳純 JSON，不要用 ```json 包起來。\n\n")
	sb.WriteString(fmt.Sprintf("📘【%s｜自動產生標題】\n", ChapterTag(seq)))
	sb.WriteString("統整所有段落，把每章精華融合成一篇連貫的貼文。\n")
	sb.WriteString("開頭補一句引導語，讓讀者快速進入主題。\n")
	sb.WriteString("正文分段書寫，重點句以 ✅、📌、🎯 開頭（5 條以內），最後附上一段 🔖 hashtag（6~9 個）。\n\n")
	sb.WriteString("JSON 只能包含以下欄位：\n")
	sb.WriteString("- chapter（章節範圍，例如：第24～28章）\n")
	sb.WriteString("- title（貼文標題）\n")
	sb.WriteString("- intro（開場引導語）\n")
	sb.WriteString("- quote（一句金句）\n")
	sb.WriteString("- highlights（3~6 句帶 emoji 的重點句，字串陣列）\n")
	sb.WriteString("- hashtags（6~9 個話題標籤，字串陣列）\n")
	sb.WriteString(fmt.Sprintf("- schedule（固定填入 %s）\n", schedule))
	return sb.String()
}

// ResolvePrompt 组装最终 Prompt。instruction 非空（包括只有空白）时原样替换默认指令，
// 此时模型拿不到 JSON 结构说明，回复很可能无法解析。
func ResolvePrompt(instruction string, seq int, schedule, text string) Prompt {
	system := BuildDefaultPrompt(seq, schedule)
	if IsCustom(instruction) {
		system = instruction
	}
	return Prompt{System: system, User: strings.TrimSpace(text)}
}

// IsCustom 报告 instruction 是否会覆盖默认指令。
func IsCustom(instruction string) bool {
	return instruction != ""
}
