package processors

import (
	"context"
	"fmt"
	"time"

	"videoModerate/core"
)

// fakeLLM 脚本化的模型替身，按调用顺序返回预置响应
type fakeLLM struct {
	responses []map[string]interface{}
	usage     *core.TokenUsage
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Invoke(ctx context.Context, prompt string, maxTokens int, temperature float32,
	timeout time.Duration) (map[string]interface{}, *core.TokenUsage, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, nil, f.err
	}
	if len(f.responses) == 0 {
		return map[string]interface{}{}, f.usage, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, f.usage, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

// fakeExtractor 跳过ffmpeg，直接按时间戳返回帧占位
type fakeExtractor struct {
	failAll bool
}

func (f *fakeExtractor) ExtractFrames(videoPath string, timestamps []float64, outDir string) ([]core.Frame, error) {
	if f.failAll {
		return nil, fmt.Errorf("extraction disabled")
	}
	frames := make([]core.Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		frames = append(frames, core.Frame{
			TimestampSec: ts,
			Path:         fmt.Sprintf("%s/frame_%d.jpg", outDir, int(ts*1000)),
		})
	}
	return frames, nil
}

type fakeClassifier struct {
	labels []core.Label
	err    error
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, framePath string) ([]core.Label, error) {
	return f.labels, f.err
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) RunOCR(ctx context.Context, framePath string) (string, error) {
	return f.text, f.err
}

// fakeReportStore 记录保存过的报告
type fakeReportStore struct {
	saved  []*core.Report
	err    error
	closed bool
}

func (f *fakeReportStore) SaveReport(ctx context.Context, report *core.Report) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReportStore) LoadReport(ctx context.Context, videoID string) (*core.Report, error) {
	for _, r := range f.saved {
		if r.VideoID == videoID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) Close() error {
	f.closed = true
	return nil
}
