package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter_post_generator/config"
	"chapter_post_generator/generator"
	"chapter_post_generator/ocr"
	"chapter_post_generator/pipeline"
	"chapter_post_generator/publisher"
)

type pageTextEngine struct{}

func (pageTextEngine) Recognize(context.Context, image.Image, string) (string, error) {
	return "第一行\n第二行", nil
}

func useFakeEngine(t *testing.T) {
	t.Helper()
	orig := newEngine
	newEngine = func(config.Config) ocr.Engine { return pageTextEngine{} }
	t.Cleanup(func() { newEngine = orig })
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestGenerateCommand(t *testing.T) {
	useFakeEngine(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output_dir: "+outDir+"\nllm:\n  provider: mock\nlog:\n  level: error\n"), 0o644))
	img1 := writePNG(t, dir, "p1.png")
	img2 := writePNG(t, dir, "p2.png")

	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"generate", "--config", cfgPath, "--image", img1, "--image", img2, "--schedule", "2025-06-01T20:00:00+08:00"})
	require.NoError(t, root.Execute())

	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.Equal(t, "p1.png + p2.png", r.File)
	assert.Equal(t, "2025-06-01T20:00:00+08:00", r.Schedule)
	assert.Equal(t, "第1章", r.Slug)
	assert.Equal(t, outDir, filepath.Dir(r.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(r.Path), "post_1_"))
	assert.Contains(t, resp.Preview, "第一行")

	data, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.True(t, generator.ParseResult(string(data)).Parsed)
}

func TestGenerateCommandRequiresImage(t *testing.T) {
	useFakeEngine(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"generate"})
	assert.Error(t, root.Execute())
}

func TestBuildLLM(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	llm, err := buildLLM(cfg)
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	cfg.LLM.Provider = "deepseek"
	cfg.LLM.APIKey = "k"
	cfg.LLM.BaseURL = "https://api.deepseek.com"
	llm, err = buildLLM(cfg)
	require.NoError(t, err)
	assert.IsType(t, &generator.OpenAILLM{}, llm)

	cfg.LLM.Provider = "gemini"
	_, err = buildLLM(cfg)
	assert.Error(t, err)
}

func TestBuildSequencer(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	assert.IsType(t, &publisher.LockedSequencer{}, buildSequencer(cfg))

	cfg.SequenceMode = config.SequenceScan
	assert.IsType(t, publisher.ScanSequencer{}, buildSequencer(cfg))
}
