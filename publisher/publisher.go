// Package publisher persists generated posts as numbered JSON artifacts and
// renders them for preview.
package publisher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// TimestampLayout is the file-name timestamp, e.g. 20250601_203000.
const TimestampLayout = "20060102_150405"

var (
	artifactRe = regexp.MustCompile(`^post_\d+_\d{8}_\d{6}\.json$`)

	// ErrNotFound 文件名不存在或不符合 post_<seq>_<时间戳>.json 格式时由 Read 返回。
	ErrNotFound = errors.New("artifact not found")
)

// Artifact 输出目录中的一份贴文文件。
type Artifact struct {
	Name     string    `json:"name"`
	Sequence int       `json:"sequence"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Publisher 把生成结果写入 Dir 目录。
type Publisher struct {
	Dir string
}

func New(dir string) (*Publisher, error) {
	if dir == "" {
		return nil, errors.New("output dir is required")
	}
	return &Publisher{Dir: dir}, nil
}

// FileName 生成 post_<seq>_<时间戳>.json。
func FileName(seq int, at time.Time) string {
	return fmt.Sprintf("post_%d_%s.json", seq, at.Format(TimestampLayout))
}

// Write 原样保存模型回复并返回文件路径，已存在的文件不会被覆盖。
func (p *Publisher) Write(seq int, raw string, at time.Time) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(p.Dir, FileName(seq, at))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.WriteString(raw); err != nil {
		f.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return path, nil
}

// List 按流水号倒序列出所有贴文文件。
func (p *Publisher) List() ([]Artifact, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Artifact{}, nil
		}
		return nil, err
	}
	out := []Artifact{}
	for _, e := range entries {
		if e.IsDir() || !artifactRe.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		seq, _ := sequenceOf(e.Name())
		out = append(out, Artifact{Name: e.Name(), Sequence: seq, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence > out[j].Sequence
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Read loads the raw text of an artifact by file name.
func (p *Publisher) Read(name string) (string, error) {
	if !artifactRe.MatchString(name) {
		return "", ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}
