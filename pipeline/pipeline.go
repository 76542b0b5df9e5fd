// Package pipeline 串起一次上传的完整流程：OCR、组装 Prompt、调用模型、写文件、生成预览。
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chapter_post_generator/generator"
	"chapter_post_generator/ocr"
	"chapter_post_generator/publisher"
)

// ScheduleLayout formats the default schedule; the offset comes from the zone.
const ScheduleLayout = "2006-01-02T15:04:05-07:00"

// StatusSuccess is the only status a completed run reports, including runs
// whose model output could not be parsed.
const StatusSuccess = "success"

// ErrNoImages 请求中没有任何图片。
var ErrNoImages = errors.New("at least one image is required")

// Request 一次上传：按页序排列的图片、可选的发布时间与自定义指令。
type Request struct {
	Uploads     []ocr.Image
	Schedule    string
	Instruction string
}

// FileResult 描述本次请求写出的文件。
type FileResult struct {
	File     string `json:"file"`
	Path     string `json:"path"`
	Schedule string `json:"schedule"`
	Slug     string `json:"slug"`
}

// Response 返回给上传方的结果。
type Response struct {
	Status  string       `json:"status"`
	Results []FileResult `json:"results"`
	Preview string       `json:"preview"`
}

// Options 流水线依赖的各个组件。
type Options struct {
	Engine    ocr.Engine
	Language  string
	Agent     *generator.Agent
	Sequencer publisher.Sequencer
	Publisher *publisher.Publisher
	Location  *time.Location
	Logger    zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline 处理上传请求，流水号由 Sequencer 分配。
type Pipeline struct {
	engine ocr.Engine
	lang   string
	agent  *generator.Agent
	seq    publisher.Sequencer
	pub    *publisher.Publisher
	loc    *time.Location
	log    zerolog.Logger
	now    func() time.Time
}

// New 校验必填组件并补齐默认的语言、时区与时钟。
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Engine == nil:
		return nil, errors.New("ocr engine is required")
	case opts.Agent == nil:
		return nil, errors.New("generator agent is required")
	case opts.Sequencer == nil:
		return nil, errors.New("sequencer is required")
	case opts.Publisher == nil:
		return nil, errors.New("publisher is required")
	}
	p := &Pipeline{
		engine: opts.Engine,
		lang:   opts.Language,
		agent:  opts.Agent,
		seq:    opts.Sequencer,
		pub:    opts.Publisher,
		loc:    opts.Location,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if p.lang == "" {
		p.lang = ocr.LangTraditionalChinese
	}
	if p.loc == nil {
		p.loc = time.FixedZone("UTC+8", 8*3600)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Run 处理一次请求。OCR 或模型调用失败时不写任何文件，也不占用流水号。
func (p *Pipeline) Run(ctx context.Context, req Request) (Response, error) {
	if len(req.Uploads) == 0 {
		return Response{}, ErrNoImages
	}
	schedule := req.Schedule
	if schedule == "" {
		schedule = p.now().In(p.loc).Format(ScheduleLayout)
	}
	names := make([]string, 0, len(req.Uploads))
	for _, up := range req.Uploads {
		names = append(names, up.Name)
	}
	log := p.log.With().Strs("files", names).Logger()

	text, err := ocr.Extract(ctx, p.engine, req.Uploads, p.lang)
	if err != nil {
		return Response{}, err
	}
	log.Debug().Int("chars", len([]rune(text))).Msg("ocr done")

	seq, err := p.seq.Next()
	if err != nil {
		return Response{}, err
	}
	defer p.seq.Release(seq)
	prompt := generator.ResolvePrompt(req.Instruction, seq, schedule, text)
	custom := generator.IsCustom(req.Instruction)
	log.Debug().Int("seq", seq).Bool("custom_instruction", custom).Msg("calling model")

	res, err := p.agent.Generate(ctx, prompt)
	if err != nil {
		return Response{}, err
	}
	if !res.Parsed {
		log.Warn().Int("seq", seq).Bool("custom_instruction", custom).Msg("model reply is not a JSON object; keeping raw text")
	}

	slug := publisher.Slug(res, seq)
	path, err := p.pub.Write(seq, res.Raw, p.now().In(p.loc))
	if err != nil {
		return Response{}, err
	}
	log.Info().Int("seq", seq).Str("path", path).Str("slug", slug).Bool("parsed", res.Parsed).Msg("post written")

	return Response{
		Status: StatusSuccess,
		Results: []FileResult{{
			File:     strings.Join(names, " + "),
			Path:     path,
			Schedule: schedule,
			Slug:     slug,
		}},
		Preview: publisher.Preview(res),
	}, nil
}
