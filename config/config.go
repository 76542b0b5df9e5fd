package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath 未显式指定时尝试读取的配置文件。
const DefaultPath = "config/config.json"

// Config 描述整个服务的运行参数。
type Config struct {
	ServerAddr          string    `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	OutputDir           string    `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	TimezoneOffsetHours *int      `json:"timezone_offset_hours,omitempty" yaml:"timezone_offset_hours,omitempty"`
	SequenceMode        string    `json:"sequence_mode,omitempty" yaml:"sequence_mode,omitempty"`
	OCR                 OCRConfig `json:"ocr" yaml:"ocr"`
	LLM                 LLMConfig `json:"llm" yaml:"llm"`
	Log                 LogConfig `json:"log" yaml:"log"`
}

// OCRConfig 控制 tesseract 的语言与数据目录。
type OCRConfig struct {
	Language       string `json:"language,omitempty" yaml:"language,omitempty"`
	TessdataPrefix string `json:"tessdata_prefix,omitempty" yaml:"tessdata_prefix,omitempty"`
}

// LLMConfig 模型配置；api_key 为空时从 api_key_env 指定的环境变量读取。
type LLMConfig struct {
	Provider       string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model          string   `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey         string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv      string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL        string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// LogConfig 日志级别与输出格式（console / json）。
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

const (
	SequenceScan   = "scan"
	SequenceLocked = "locked"
)

// Default 返回内置默认配置。
func Default() Config {
	offset := 8
	temp := 0.3
	return Config{
		ServerAddr:          ":8000",
		OutputDir:           "output",
		TimezoneOffsetHours: &offset,
		SequenceMode:        SequenceLocked,
		OCR:                 OCRConfig{Language: "chi_tra"},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			APIKeyEnv:      "OPENAI_API_KEY",
			Temperature:    &temp,
			TimeoutSeconds: 60,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load 读取 .env 与配置文件，补全默认值并校验。
// path 为默认路径且文件不存在时直接使用默认配置。
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return Config{}, err
	}

	cfg.applyDefaults()
	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// 配置文件里显式写成空值的字段回落到默认值。
func (c *Config) applyDefaults() {
	def := Default()
	if c.ServerAddr == "" {
		c.ServerAddr = def.ServerAddr
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.TimezoneOffsetHours == nil {
		c.TimezoneOffsetHours = def.TimezoneOffsetHours
	}
	if c.SequenceMode == "" {
		c.SequenceMode = def.SequenceMode
	}
	if c.OCR.Language == "" {
		c.OCR.Language = def.OCR.Language
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = def.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.Temperature == nil {
		c.LLM.Temperature = def.LLM.Temperature
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = def.LLM.TimeoutSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate 检查互相依赖的字段。
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "mock":
	case "deepseek":
		// DeepSeek 走 OpenAI 兼容接口，必须指定 base_url。
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key missing; set llm.api_key or %s", c.LLM.APIKeyEnv)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	switch c.SequenceMode {
	case SequenceScan, SequenceLocked:
	default:
		return fmt.Errorf("sequence_mode %q not supported", c.SequenceMode)
	}
	return nil
}

// Location 返回 schedule 与文件时间戳使用的固定时区。
func (c Config) Location() *time.Location {
	hours := 8
	if c.TimezoneOffsetHours != nil {
		hours = *c.TimezoneOffsetHours
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600)
}

// LLMTimeout 单次模型调用的超时。
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
