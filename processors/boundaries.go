package processors

import (
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/storage"
	"videoModerate/tools"
)

// BoundaryDetector 基于帧嵌入相似度的视觉场景边界检测
type BoundaryDetector struct {
	extractor tools.FrameExtractor
	embedder  tools.FrameEmbedder
	store     storage.EmbeddingStore
	guard     *core.GPUGuard
	metrics   *core.MetricsCollector
	cfg       config.SegmentationConfig
}

// NewBoundaryDetector 创建检测器，embedder可为nil表示禁用视觉检测
func NewBoundaryDetector(extractor tools.FrameExtractor, embedder tools.FrameEmbedder,
	store storage.EmbeddingStore, guard *core.GPUGuard, metrics *core.MetricsCollector,
	cfg config.SegmentationConfig) *BoundaryDetector {
	return &BoundaryDetector{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		guard:     guard,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// FindBoundaries 在(start,end)内寻找场景切换点。
// 检测是尽力而为的：任何失败都退化为无边界，不影响主流程。
func (d *BoundaryDetector) FindBoundaries(ctx context.Context, videoID, videoPath string, start, end float64) []float64 {
	if d.embedder == nil {
		return nil
	}
	log.Printf("Finding visual boundaries in [%.1f, %.1f]", start, end)

	done := d.metrics.MeasureOperation("visual_boundary_detection", map[string]interface{}{
		"video_id": videoID,
		"start":    start,
		"end":      end,
	})
	boundaries, err := d.findBoundaries(ctx, videoID, videoPath, start, end)
	done(err)
	if err != nil {
		log.Printf("Visual boundary detection failed: %v", err)
		return nil
	}
	return boundaries
}

func (d *BoundaryDetector) findBoundaries(ctx context.Context, videoID, videoPath string, start, end float64) ([]float64, error) {
	info, err := tools.ProbeVideo(videoPath)
	if err != nil {
		return nil, err
	}
	if info.FPS <= 0 {
		log.Printf("Invalid FPS: %f", info.FPS)
		return nil, nil
	}

	sampleTimes := tools.SampleTimestamps(start, end, d.cfg.SampleIntervalSec, math.MaxInt32)
	if len(sampleTimes) < 2 {
		log.Printf("Not enough samples for boundary detection")
		return nil, nil
	}
	log.Printf("Sampling %d frames at %.1fs intervals", len(sampleTimes), d.cfg.SampleIntervalSec)

	framesDir := filepath.Join(filepath.Dir(videoPath), "boundary_frames")
	frames, err := d.extractor.ExtractFrames(videoPath, sampleTimes, framesDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, frame := range frames {
			_ = os.Remove(frame.Path)
		}
	}()
	if len(frames) < 2 {
		log.Printf("Not enough valid frames extracted")
		return nil, nil
	}

	embeddings, err := d.embedFrames(ctx, videoID, frames)
	if err != nil {
		return nil, err
	}

	var boundaries []float64
	for i := 1; i < len(embeddings); i++ {
		similarity := cosineSimilarity(embeddings[i-1], embeddings[i])
		if similarity < d.cfg.SceneThreshold {
			boundaryTime := frames[i].TimestampSec
			// 只保留严格落在区间内部的边界
			if boundaryTime > start && boundaryTime < end {
				boundaries = append(boundaries, boundaryTime)
			}
		}
	}

	sort.Float64s(boundaries)
	log.Printf("Found %d visual boundaries", len(boundaries))
	return boundaries, nil
}

// embedFrames 计算帧嵌入，优先走存储缓存，批量大小按配置
func (d *BoundaryDetector) embedFrames(ctx context.Context, videoID string, frames []core.Frame) ([][]float32, error) {
	embeddings := make([][]float32, len(frames))
	var missing []int
	for i, frame := range frames {
		if d.store != nil {
			if vec, ok := d.store.GetFrameEmbedding(ctx, videoID, frame.TimestampSec); ok {
				embeddings[i] = vec
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	release, err := d.guard.Acquire(ctx, "frame_embedding")
	if err != nil {
		return nil, err
	}
	defer release()

	for batchStart := 0; batchStart < len(missing); batchStart += d.cfg.BatchSize {
		batchEnd := batchStart + d.cfg.BatchSize
		if batchEnd > len(missing) {
			batchEnd = len(missing)
		}
		batch := missing[batchStart:batchEnd]

		paths := make([]string, len(batch))
		for j, idx := range batch {
			paths[j] = frames[idx].Path
		}
		vectors, err := d.embedder.EmbedFrames(ctx, paths)
		if err != nil {
			return nil, err
		}
		for j, idx := range batch {
			embeddings[idx] = vectors[j]
			if d.store != nil {
				if err := d.store.PutFrameEmbedding(ctx, videoID, frames[idx].TimestampSec, vectors[j]); err != nil {
					log.Printf("嵌入缓存写入失败 ts=%.1fs: %v", frames[idx].TimestampSec, err)
				}
			}
		}
	}

	return embeddings, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
