package processors

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"videoModerate/core"
)

func TestSampleFramesWithTimestamps(t *testing.T) {
	g := NewEvidenceGatherer(&fakeExtractor{}, nil, nil, core.NewGPUGuard(0, 0), core.NewMetricsCollector())

	// 越界时间戳被裁掉，数量超限时截断
	timestamps := []float64{-2.0, 1.0, 3.0, 5.0, 7.0, 99.0}
	frames := g.SampleFrames("video.mp4", 0, 10, 3.0, 3, timestamps)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[0].TimestampSec != 1.0 || frames[2].TimestampSec != 5.0 {
		t.Errorf("unexpected frame timestamps: %v", frames)
	}
}

func TestSampleFramesPeriodic(t *testing.T) {
	g := NewEvidenceGatherer(&fakeExtractor{}, nil, nil, core.NewGPUGuard(0, 0), core.NewMetricsCollector())

	frames := g.SampleFrames("video.mp4", 0, 10, 3.0, 10, nil)
	if len(frames) != 4 {
		t.Fatalf("expected 4 periodic frames (0,3,6,9), got %d", len(frames))
	}
}

func TestSampleFramesExtractionFailure(t *testing.T) {
	g := NewEvidenceGatherer(&fakeExtractor{failAll: true}, nil, nil, core.NewGPUGuard(0, 0), core.NewMetricsCollector())
	if frames := g.SampleFrames("video.mp4", 0, 10, 3.0, 10, nil); frames != nil {
		t.Errorf("expected nil on extraction failure, got %v", frames)
	}
}

func TestGatherCollectsCaptionsAndOCR(t *testing.T) {
	classifier := &fakeClassifier{labels: []core.Label{{Category: "caption", Label: "a street scene", Confidence: 0.9}}}
	ocr := &fakeOCR{text: "STOP"}
	g := NewEvidenceGatherer(&fakeExtractor{}, classifier, ocr, core.NewGPUGuard(0, 0), core.NewMetricsCollector())

	frames := []core.Frame{
		{TimestampSec: 1.0, Path: "f1.jpg"},
		{TimestampSec: 4.0, Path: "f2.jpg"},
	}
	evidence := g.Gather(context.Background(), frames)
	if evidence.NumFrames != 2 {
		t.Errorf("expected NumFrames=2, got %d", evidence.NumFrames)
	}
	if len(evidence.Captions) != 2 {
		t.Fatalf("expected 2 caption lines, got %d", len(evidence.Captions))
	}
	if evidence.Captions[0] != "[1.0s] Caption: a street scene" {
		t.Errorf("unexpected caption format: %q", evidence.Captions[0])
	}
	if len(evidence.OCRTexts) != 2 || evidence.OCRTexts[0] != "[1.0s] STOP" {
		t.Errorf("unexpected OCR lines: %v", evidence.OCRTexts)
	}
}

func TestGatherDegradesOnGuardTimeout(t *testing.T) {
	guard := core.NewGPUGuard(1, 20*time.Millisecond)
	release, err := guard.Acquire(context.Background(), "holder")
	if err != nil {
		t.Fatalf("setup acquire failed: %v", err)
	}
	defer release()

	classifier := &fakeClassifier{labels: []core.Label{{Category: "caption", Label: "x"}}}
	g := NewEvidenceGatherer(&fakeExtractor{}, classifier, &fakeOCR{text: "y"}, guard, core.NewMetricsCollector())

	evidence := g.Gather(context.Background(), []core.Frame{{TimestampSec: 1.0, Path: "f.jpg"}})
	// 抢不到GPU槽位时降级为仅帧数信息
	if evidence.NumFrames != 1 {
		t.Errorf("expected NumFrames preserved, got %d", evidence.NumFrames)
	}
	if len(evidence.Captions) != 0 || len(evidence.OCRTexts) != 0 {
		t.Errorf("expected degraded evidence, got %+v", evidence)
	}
}

func TestGatherSkipsFailedFrames(t *testing.T) {
	classifier := &fakeClassifier{err: fmt.Errorf("vision backend down")}
	ocr := &fakeOCR{err: fmt.Errorf("tesseract missing")}
	g := NewEvidenceGatherer(&fakeExtractor{}, classifier, ocr, core.NewGPUGuard(0, 0), core.NewMetricsCollector())

	evidence := g.Gather(context.Background(), []core.Frame{{TimestampSec: 1.0, Path: "f.jpg"}})
	if len(evidence.Captions) != 0 || len(evidence.OCRTexts) != 0 {
		t.Errorf("expected no evidence from failing providers, got %+v", evidence)
	}
	if evidence.NumFrames != 1 {
		t.Errorf("expected NumFrames=1, got %d", evidence.NumFrames)
	}
}

func TestFormatLabelsPriority(t *testing.T) {
	labels := []core.Label{
		{Category: "classification", Label: "street"},
		{Category: "caption", Label: "busy road"},
		{Category: "summary", Label: "traffic scene"},
	}
	if got := formatLabels(2.0, labels); got != "[2.0s] traffic scene" {
		t.Errorf("expected summary priority, got %q", got)
	}

	if got := formatLabels(2.0, labels[:2]); got != "[2.0s] Caption: busy road" {
		t.Errorf("expected caption fallback, got %q", got)
	}

	if got := formatLabels(2.0, labels[:1]); got != "[2.0s] Classification: street" {
		t.Errorf("expected classification fallback, got %q", got)
	}

	if got := formatLabels(2.0, nil); got != "" {
		t.Errorf("expected empty result for no labels, got %q", got)
	}
}

func TestApplyTextHygieneDeduplication(t *testing.T) {
	parts := []string{
		"[1.0s] a street scene",
		"[2.0s] a street scene",
		"[3.0s] a park",
		"[4.0s] a street scene",
	}
	got := ApplyTextHygiene(parts, 1000)
	// 仅连续重复被去除
	want := "[1.0s] a street scene; [3.0s] a park; [4.0s] a street scene"
	if got != want {
		t.Errorf("unexpected hygiene output:\n got: %q\nwant: %q", got, want)
	}
}

func TestApplyTextHygieneTruncation(t *testing.T) {
	var parts []string
	for i := 0; i < 50; i++ {
		parts = append(parts, fmt.Sprintf("[%d.0s] unique description number %d.", i, i))
	}
	got := ApplyTextHygiene(parts, 200)
	if len(got) > 210 {
		t.Errorf("expected output near 200 chars, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated output to end with ellipsis, got %q", got[len(got)-10:])
	}
}

func TestApplyTextHygieneMultibyteTruncation(t *testing.T) {
	parts := []string{"[1.0s] " + strings.Repeat("危险内容", 400)}
	got := ApplyTextHygiene(parts, 1500)
	// 按字符截断，不能把多字节字符切成半个
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8, tail %q", got[len(got)-12:])
	}
	if n := utf8.RuneCountInString(got); n > 1503 {
		t.Errorf("expected at most 1503 chars, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got tail %q", got[len(got)-12:])
	}
}

func TestApplyTextHygieneEmpty(t *testing.T) {
	if got := ApplyTextHygiene(nil, 100); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
