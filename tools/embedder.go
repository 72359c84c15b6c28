package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// FrameEmbedder 帧嵌入接口，向量按输入顺序返回
type FrameEmbedder interface {
	EmbedFrames(ctx context.Context, paths []string) ([][]float32, error)
	Close() error
}

// HTTPFrameEmbedder 远程嵌入服务客户端
type HTTPFrameEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// embeddingRequest 嵌入请求
type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// embeddingResponse 嵌入响应
type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

// embeddingData 单条嵌入数据
type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// NewHTTPFrameEmbedder 创建远程嵌入客户端
func NewHTTPFrameEmbedder(endpoint, model string) *HTTPFrameEmbedder {
	return &HTTPFrameEmbedder{
		endpoint: endpoint,
		model:    model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// EmbedFrames 批量计算帧嵌入，图片以base64传输
func (e *HTTPFrameEmbedder) EmbedFrames(ctx context.Context, paths []string) ([][]float32, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	inputs := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("无法读取帧文件 %s: %v", path, err)
		}
		inputs = append(inputs, base64.StdEncoding.EncodeToString(data))
	}

	req := embeddingRequest{
		Model:          e.model,
		Input:          inputs,
		EncodingFormat: "float",
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %v", err)
	}
	if len(embResp.Data) != len(paths) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embResp.Data), len(paths))
	}

	vectors := make([][]float32, len(paths))
	for _, item := range embResp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Close 释放资源
func (e *HTTPFrameEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// 嵌入器注册表，按 endpoint+model 复用实例，避免重复建连
var (
	embedderMu       sync.Mutex
	embedderRegistry = make(map[string]FrameEmbedder)
)

// GetFrameEmbedder 获取或创建共享的嵌入器实例
func GetFrameEmbedder(endpoint, model string) FrameEmbedder {
	embedderMu.Lock()
	defer embedderMu.Unlock()
	key := endpoint + "|" + model
	if emb, ok := embedderRegistry[key]; ok {
		return emb
	}
	emb := NewHTTPFrameEmbedder(endpoint, model)
	embedderRegistry[key] = emb
	return emb
}

// CloseAllEmbedders 关闭并清空全部共享嵌入器
func CloseAllEmbedders() {
	embedderMu.Lock()
	defer embedderMu.Unlock()
	for key, emb := range embedderRegistry {
		if err := emb.Close(); err != nil {
			log.Printf("关闭嵌入器失败 %s: %v", key, err)
		}
		delete(embedderRegistry, key)
	}
}
