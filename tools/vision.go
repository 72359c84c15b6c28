package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoModerate/config"
	"videoModerate/core"
)

// ImageClassifier 图像理解接口
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, framePath string) ([]core.Label, error)
}

// VisionClassifier 基于多模态模型的图像描述实现
type VisionClassifier struct {
	cli   *openai.Client
	model string
}

// NewVisionClassifier 创建图像理解客户端
func NewVisionClassifier(cfg *config.Config) *VisionClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &VisionClassifier{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.VisionModel,
	}
}

// ClassifyImage 生成帧画面描述
func (v *VisionClassifier) ClassifyImage(ctx context.Context, framePath string) ([]core.Label, error) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取帧文件 %s: %v", framePath, err)
	}
	imageURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(data))

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := v.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe this video frame in one concise sentence, noting any text, people, objects, or potentially sensitive content.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
		MaxTokens: 120,
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision request returned no choices")
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return nil, nil
	}
	return []core.Label{{Category: "caption", Label: caption, Confidence: 1.0}}, nil
}

// OCRProvider 文字识别接口
type OCRProvider interface {
	RunOCR(ctx context.Context, framePath string) (string, error)
}

// TesseractOCR 基于tesseract命令行的OCR实现
type TesseractOCR struct {
	binary string
}

// NewTesseractOCR 创建OCR实例，TESSERACT_BINARY可覆盖默认路径
func NewTesseractOCR() *TesseractOCR {
	binary := os.Getenv("TESSERACT_BINARY")
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractOCR{binary: binary}
}

// RunOCR 识别帧中的文字
func (t *TesseractOCR) RunOCR(ctx context.Context, framePath string) (string, error) {
	// tesseract 输出到stdout，psm 6 适合多行文本块
	cmd := exec.CommandContext(ctx, t.binary, framePath, "stdout", "--psm", "6")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ocr failed for %s: %v", framePath, err)
	}
	return strings.TrimSpace(string(out)), nil
}
