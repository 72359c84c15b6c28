package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	APIKey            string `json:"api_key"`
	BaseURL           string `json:"base_url"`
	ChatModel         string `json:"chat_model"`
	VisionModel       string `json:"vision_model"`
	WhisperModel      string `json:"whisper_model"`
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingEndpoint string `json:"embedding_endpoint"`
	PostgresURL       string `json:"postgres_url"`
	MilvusAddr        string `json:"milvus_addr"`
	Store             string `json:"store"` // "memory", "pgvector", "milvus"
	DataRoot          string `json:"data_root"`
}

var globalConfig *Config

func LoadConfig() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Try to load from config.json first
	if data, err := os.ReadFile("config.json"); err == nil {
		var config Config
		if err := json.Unmarshal(data, &config); err == nil {
			applyEnvOverrides(&config)
			fillDefaults(&config)
			globalConfig = &config
			return globalConfig, nil
		}
	}

	// Fallback to environment variables only
	config := &Config{
		APIKey:            os.Getenv("API_KEY"),
		BaseURL:           getEnvOrDefault("BASE_URL", "https://api.openai.com/v1"),
		ChatModel:         getEnvOrDefault("CHAT_MODEL", "gpt-4o-mini"),
		VisionModel:       getEnvOrDefault("VISION_MODEL", "gpt-4o-mini"),
		WhisperModel:      getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		EmbeddingModel:    getEnvOrDefault("EMBEDDING_MODEL", "clip-vit-base-patch32"),
		EmbeddingEndpoint: os.Getenv("EMBEDDING_ENDPOINT"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		MilvusAddr:        getEnvOrDefault("MILVUS_ADDR", "localhost:19530"),
		Store:             getEnvOrDefault("STORE", "memory"),
		DataRoot:          getEnvOrDefault("DATA_ROOT", "./data"),
	}
	globalConfig = config
	return globalConfig, nil
}

// ResetForTest 清空缓存的全局配置，仅测试使用
func ResetForTest() {
	globalConfig = nil
}

func applyEnvOverrides(config *Config) {
	if key := os.Getenv("API_KEY"); key != "" {
		config.APIKey = key
	}
	if url := os.Getenv("BASE_URL"); url != "" {
		config.BaseURL = url
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		config.ChatModel = model
	}
	if model := os.Getenv("VISION_MODEL"); model != "" {
		config.VisionModel = model
	}
	if model := os.Getenv("WHISPER_MODEL"); model != "" {
		config.WhisperModel = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.EmbeddingModel = model
	}
	if ep := os.Getenv("EMBEDDING_ENDPOINT"); ep != "" {
		config.EmbeddingEndpoint = ep
	}
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		config.PostgresURL = url
	}
	if addr := os.Getenv("MILVUS_ADDR"); addr != "" {
		config.MilvusAddr = addr
	}
	if store := os.Getenv("STORE"); store != "" {
		config.Store = store
	}
	if root := os.Getenv("DATA_ROOT"); root != "" {
		config.DataRoot = root
	}
}

func fillDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	if config.VisionModel == "" {
		config.VisionModel = config.ChatModel
	}
	if config.WhisperModel == "" {
		config.WhisperModel = "whisper-1"
	}
	if config.Store == "" {
		config.Store = "memory"
	}
	if config.DataRoot == "" {
		config.DataRoot = "./data"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.APIKey) == "" {
		errors = append(errors, "API Key is required")
	}

	if strings.TrimSpace(c.BaseURL) == "" {
		errors = append(errors, "Base URL is required")
	}

	if strings.TrimSpace(c.ChatModel) == "" {
		errors = append(errors, "Chat model is required")
	}

	switch c.Store {
	case "memory", "pgvector", "milvus":
	default:
		errors = append(errors, fmt.Sprintf("unknown store backend %q", c.Store))
	}

	if c.Store == "pgvector" && strings.TrimSpace(c.PostgresURL) == "" {
		errors = append(errors, "postgres_url is required when store is pgvector")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURL) != ""
}

func PrintConfigInstructions() {
	fmt.Println("\n=== 配置说明 ===")
	fmt.Println("请在 config.json 文件中填写以下配置：")
	fmt.Println("1. api_key: 您的 API 密钥")
	fmt.Println("2. base_url: API 基础 URL (默认: https://api.openai.com/v1)")
	fmt.Println("3. chat_model: 审核决策模型 (默认: gpt-4o-mini)")
	fmt.Println("4. vision_model: 图像理解模型 (默认与 chat_model 相同)")
	fmt.Println("5. whisper_model: 语音转写模型 (默认: whisper-1)")
	fmt.Println("6. embedding_endpoint: 帧嵌入服务地址 (可选，留空则禁用视觉边界检测)")
	fmt.Println("7. postgres_url: PostgreSQL 连接 URL (store=pgvector 时必填)")
	fmt.Println("8. store: 嵌入缓存后端 (memory/pgvector/milvus, 默认: memory)")
	fmt.Println("\n配置完成后重新启动。")
	fmt.Println("==================")
}
