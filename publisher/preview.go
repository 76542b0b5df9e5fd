package publisher

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"

	"chapter_post_generator/generator"
)

const slugMaxRunes = 20

var unsafeRe = regexp.MustCompile(`[^\p{L}\p{N}_\p{Han}]`)

// Slug 把 chapter 转成文件系统安全的标识（最多 20 个字符）。
// 未解析、缺少 chapter 或 chapter 为空时回落为 post_<seq>。
func Slug(res generator.Result, seq int) string {
	if res.Parsed && res.HasChapter {
		if safe := SafeName(res.Post.Chapter); safe != "" {
			return safe
		}
	}
	return fmt.Sprintf("post_%d", seq)
}

// SafeName replaces every rune outside letters, digits, underscore and Han
// ideographs with '_'.
func SafeName(s string) string {
	safe := []rune(unsafeRe.ReplaceAllString(s, "_"))
	if len(safe) > slugMaxRunes {
		safe = safe[:slugMaxRunes]
	}
	return string(safe)
}

// Preview assembles the plain-text preview returned to the uploader. Unparsed
// results yield the separators only.
func Preview(res generator.Result) string {
	post := res.Content()
	var sb strings.Builder
	sb.WriteString(post.Intro)
	sb.WriteString("\n\n")
	sb.WriteString(post.Chapter)
	sb.WriteString("\n")
	sb.WriteString(post.Quote)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(post.Highlights, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(post.Hashtags, " "))
	return sb.String()
}

// RenderHTML renders a result as HTML for the artifact viewer. Raw HTML in
// model output is not passed through.
func RenderHTML(res generator.Result) (string, error) {
	return mdToHTML(toMarkdown(res))
}

func toMarkdown(res generator.Result) string {
	if !res.Parsed {
		fence := codeFence(res.Raw)
		return fence + "\n" + res.Raw + "\n" + fence + "\n"
	}
	post := res.Post
	var sb strings.Builder
	if post.Title != "" {
		sb.WriteString("## " + post.Title + "\n\n")
	}
	if post.Chapter != "" {
		sb.WriteString("**" + post.Chapter + "**\n\n")
	}
	if post.Intro != "" {
		sb.WriteString(post.Intro + "\n\n")
	}
	if post.Quote != "" {
		sb.WriteString("> " + post.Quote + "\n\n")
	}
	for _, h := range post.Highlights {
		sb.WriteString("- " + h + "\n")
	}
	if len(post.Highlights) > 0 {
		sb.WriteString("\n")
	}
	if len(post.Hashtags) > 0 {
		sb.WriteString(strings.Join(post.Hashtags, " ") + "\n\n")
	}
	if post.Schedule != "" {
		sb.WriteString("*" + post.Schedule + "*\n")
	}
	return sb.String()
}

// codeFence picks a backtick fence longer than any run inside s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
