package processors

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"videoModerate/core"
	"videoModerate/tools"
)

// EvidenceGatherer 对采样帧执行视觉理解与OCR，汇总为证据文本
type EvidenceGatherer struct {
	extractor  tools.FrameExtractor
	classifier tools.ImageClassifier
	ocr        tools.OCRProvider
	guard      *core.GPUGuard
	metrics    *core.MetricsCollector
}

// NewEvidenceGatherer 创建证据收集器
func NewEvidenceGatherer(extractor tools.FrameExtractor, classifier tools.ImageClassifier,
	ocr tools.OCRProvider, guard *core.GPUGuard, metrics *core.MetricsCollector) *EvidenceGatherer {
	return &EvidenceGatherer{
		extractor:  extractor,
		classifier: classifier,
		ocr:        ocr,
		guard:      guard,
		metrics:    metrics,
	}
}

// SampleFrames 在分段内采样帧。提供timestamps时按列表裁剪，否则按间隔周期采样
func (g *EvidenceGatherer) SampleFrames(videoPath string, start, end, intervalSec float64,
	maxFrames int, timestamps []float64) []core.Frame {
	var sampleTimes []float64
	if timestamps != nil {
		for _, ts := range timestamps {
			if ts >= start && ts <= end {
				sampleTimes = append(sampleTimes, ts)
			}
		}
		if len(sampleTimes) > maxFrames {
			sampleTimes = sampleTimes[:maxFrames]
		}
	} else {
		sampleTimes = tools.SampleTimestamps(start, end, intervalSec, maxFrames)
	}

	framesDir := filepath.Join(filepath.Dir(videoPath), "evidence_frames")
	frames, err := g.extractor.ExtractFrames(videoPath, sampleTimes, framesDir)
	if err != nil {
		log.Printf("Failed to sample frames from segment [%.1fs-%.1fs]: %v", start, end, err)
		return nil
	}
	log.Printf("Sampled %d frames from segment [%.1fs-%.1fs]", len(frames), start, end)
	return frames
}

// Gather 在资源保护下逐帧收集描述与OCR文本。
// 保护器获取失败时降级为仅帧数信息，不中断分析。
func (g *EvidenceGatherer) Gather(ctx context.Context, frames []core.Frame) core.Evidence {
	evidence := core.Evidence{NumFrames: len(frames)}
	if len(frames) == 0 {
		return evidence
	}

	release, err := g.guard.Acquire(ctx, fmt.Sprintf("vision_analysis_%d_frames", len(frames)))
	if err != nil {
		log.Printf("GPU guard acquire failed, skipping frame evidence: %v", err)
		return evidence
	}
	defer release()

	var captionParts, ocrParts []string
	for _, frame := range frames {
		ts := frame.TimestampSec

		if g.classifier != nil {
			done := g.metrics.MeasureOperation("frame_vision_analysis", map[string]interface{}{
				"video_ts":   ts,
				"frame_path": frame.Path,
			})
			labels, err := g.classifier.ClassifyImage(ctx, frame.Path)
			done(err)
			if err != nil {
				log.Printf("Vision analysis failed for frame at %.1fs: %v", ts, err)
			} else if part := formatLabels(ts, labels); part != "" {
				captionParts = append(captionParts, part)
			}
		}

		if g.ocr != nil {
			done := g.metrics.MeasureOperation("frame_ocr_analysis", map[string]interface{}{
				"video_ts":   ts,
				"frame_path": frame.Path,
			})
			text, err := g.ocr.RunOCR(ctx, frame.Path)
			done(err)
			if err != nil {
				log.Printf("OCR analysis failed for frame at %.1fs: %v", ts, err)
			} else if text = strings.TrimSpace(text); text != "" {
				ocrParts = append(ocrParts, fmt.Sprintf("[%.1fs] %s", ts, text))
			}
		}
	}

	evidence.Captions = captionParts
	evidence.OCRTexts = ocrParts
	return evidence
}

// formatLabels 按 summary > caption > 首个分类 的优先级生成描述行
func formatLabels(ts float64, labels []core.Label) string {
	var summary, caption *core.Label
	for i := range labels {
		switch labels[i].Category {
		case "summary":
			if summary == nil {
				summary = &labels[i]
			}
		case "caption":
			if caption == nil {
				caption = &labels[i]
			}
		}
	}
	switch {
	case summary != nil:
		return fmt.Sprintf("[%.1fs] %s", ts, summary.Label)
	case caption != nil:
		return fmt.Sprintf("[%.1fs] Caption: %s", ts, caption.Label)
	case len(labels) > 0:
		return fmt.Sprintf("[%.1fs] Classification: %s", ts, labels[0].Label)
	default:
		return ""
	}
}

// ApplyTextHygiene 去除连续重复行并限制总长度
func ApplyTextHygiene(parts []string, maxChars int) string {
	if len(parts) == 0 {
		return ""
	}

	var deduped []string
	prevContent := ""
	havePrev := false
	for _, part := range parts {
		content := part
		if idx := strings.Index(part, "] "); idx != -1 {
			content = part[idx+2:]
		}
		if !havePrev || content != prevContent {
			deduped = append(deduped, part)
			prevContent = content
			havePrev = true
		}
	}

	fullText := strings.Join(deduped, "; ")
	runes := []rune(fullText)
	if len(runes) <= maxChars {
		return fullText
	}

	// 按字符截断，避免把多字节字符切成半个
	truncated := runes[:maxChars]
	cutPoint := -1
	for i := len(truncated) - 1; i >= 0; i-- {
		if truncated[i] == '.' || truncated[i] == ';' {
			cutPoint = i
			break
		}
	}
	// 截断点太靠前会损失过多内容，此时直接硬切
	if float64(cutPoint) > float64(maxChars)*0.8 {
		return string(truncated[:cutPoint+1]) + "..."
	}
	return string(truncated) + "..."
}
