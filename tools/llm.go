package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoModerate/config"
	"videoModerate/core"
)

// LLM 审核用大模型接口，返回解析后的JSON对象与token消耗
type LLM interface {
	Invoke(ctx context.Context, prompt string, maxTokens int, temperature float32, timeout time.Duration) (map[string]interface{}, *core.TokenUsage, error)
	Model() string
}

// SafetyLLM 基于OpenAI兼容接口的审核模型客户端
type SafetyLLM struct {
	cli   *openai.Client
	model string
}

// NewSafetyLLM 创建客户端
func NewSafetyLLM(cfg *config.Config) *SafetyLLM {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &SafetyLLM{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.ChatModel,
	}
}

// Model 返回模型标识
func (s *SafetyLLM) Model() string {
	return s.model
}

// Invoke 发送prompt并解析JSON响应
func (s *SafetyLLM) Invoke(ctx context.Context, prompt string, maxTokens int, temperature float32, timeout time.Duration) (map[string]interface{}, *core.TokenUsage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := s.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a content safety analyst. Return responses in JSON format.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	parsed, err := ParseJSONResponse(content)
	if err != nil {
		return nil, nil, err
	}

	usage := &core.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return parsed, usage, nil
}

// ParseJSONResponse 解析模型输出的JSON，容忍markdown围栏与前后噪声文本
func ParseJSONResponse(content string) (map[string]interface{}, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return parsed, nil
	}

	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		if nl := strings.Index(cleaned, "\n"); nl != -1 {
			cleaned = cleaned[nl+1:]
		}
		if fence := strings.LastIndex(cleaned, "```"); fence != -1 {
			cleaned = cleaned[:fence]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		candidate := cleaned[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid JSON response from model")
}
