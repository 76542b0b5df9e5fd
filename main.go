package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chapter_post_generator/config"
	"chapter_post_generator/generator"
	"chapter_post_generator/logging"
	"chapter_post_generator/ocr"
	"chapter_post_generator/ocr/tesseract"
	"chapter_post_generator/pipeline"
	"chapter_post_generator/publisher"
	"chapter_post_generator/server"
)

// newEngine builds the OCR engine. Tests replace it to avoid needing tesseract.
var newEngine = func(cfg config.Config) ocr.Engine {
	return tesseract.New(cfg.OCR.TessdataPrefix)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "chapter-post",
		Short:         "OCR book chapter photos and turn them into social media posts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.json or config.yaml")
	root.AddCommand(newServeCmd(&configPath), newGenerateCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, pub, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			srv, err := server.New(p, pub, log)
			if err != nil {
				return err
			}
			listen := cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			log.Info().Str("addr", listen).Str("output_dir", cfg.OutputDir).Str("provider", cfg.LLM.Provider).Msg("starting web server")
			httpSrv := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return httpSrv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config.server_addr)")
	return cmd
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		images      []string
		schedule    string
		instruction string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one post from local image files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, _, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			uploads := make([]ocr.Image, 0, len(images))
			for _, path := range images {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, ocr.Image{Name: filepath.Base(path), Data: data})
			}
			resp, err := p.Run(context.Background(), pipeline.Request{
				Uploads:     uploads,
				Schedule:    schedule,
				Instruction: instruction,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringArrayVar(&images, "image", nil, "page image path (repeatable, in page order)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "publish time, e.g. 2025-06-01T20:00:00+08:00 (default now)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "replace the default prompt entirely")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func setup(configPath string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}

func buildPipeline(cfg config.Config, log zerolog.Logger) (*pipeline.Pipeline, *publisher.Publisher, error) {
	llm, err := buildLLM(cfg)
	if err != nil {
		return nil, nil, err
	}
	agent, err := generator.NewAgent(llm, cfg.LLMTimeout())
	if err != nil {
		return nil, nil, err
	}
	pub, err := publisher.New(cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(pipeline.Options{
		Engine:    newEngine(cfg),
		Language:  cfg.OCR.Language,
		Agent:     agent,
		Sequencer: buildSequencer(cfg),
		Publisher: pub,
		Location:  cfg.Location(),
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, pub, nil
}

func buildSequencer(cfg config.Config) publisher.Sequencer {
	if cfg.SequenceMode == config.SequenceScan {
		return publisher.ScanSequencer{Dir: cfg.OutputDir}
	}
	return publisher.NewLockedSequencer(cfg.OutputDir)
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai", "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，base_url 已在 config.Validate 中检查。
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
		})
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}
