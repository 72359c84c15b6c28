package processors

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"videoModerate/config"
	"videoModerate/core"
)

// SegmentRefiner 对初始分段做合并/切分/归一化，产出互不重叠的分析窗口
type SegmentRefiner struct {
	detector *BoundaryDetector
	cfg      config.SegmentationConfig
}

// NewSegmentRefiner 创建精炼器
func NewSegmentRefiner(detector *BoundaryDetector, cfg config.SegmentationConfig) *SegmentRefiner {
	return &SegmentRefiner{detector: detector, cfg: cfg}
}

// SplitLongSegment 切分超长分段，候选点来自视觉边界与落入区间的转写句尾
func (r *SegmentRefiner) SplitLongSegment(ctx context.Context, videoID, videoPath string,
	seg core.Segment, transcript []core.Segment) []core.Segment {
	start := seg.Start
	end := seg.End
	if end-start <= r.cfg.MaxLenSec {
		return []core.Segment{seg}
	}
	log.Printf("Splitting long segment [%.1f, %.1f]", start, end)

	var candidates []float64
	if r.detector != nil {
		candidates = append(candidates, r.detector.FindBoundaries(ctx, videoID, videoPath, start, end)...)
	}
	for _, tSeg := range transcript {
		if tSeg.End > start && tSeg.End < end {
			candidates = append(candidates, tSeg.End)
		}
	}
	if len(candidates) == 0 {
		return r.ForceSplit(seg)
	}

	candidates = dedupeSorted(candidates)
	log.Printf("Found %d candidate split points", len(candidates))

	validSplits := []float64{start}
	for _, candidate := range candidates {
		if candidate <= validSplits[len(validSplits)-1] {
			continue
		}
		prevEnd := validSplits[len(validSplits)-1]
		if candidate-prevEnd >= r.cfg.MinLenSec {
			remaining := end - candidate
			if remaining >= r.cfg.MinLenSec {
				validSplits = append(validSplits, candidate)
			} else if len(validSplits) > 1 {
				// 尾段过短时把上一个切点后移，让余量并入前段
				validSplits[len(validSplits)-1] = candidate
			}
		}
	}
	validSplits = append(validSplits, end)

	var result []core.Segment
	for i := 0; i < len(validSplits)-1; i++ {
		segStart := validSplits[i]
		segEnd := validSplits[i+1]
		if segEnd-segStart >= r.cfg.MinLenSec {
			result = append(result, core.Segment{
				Start: segStart,
				End:   segEnd,
				Text:  fmt.Sprintf("Split segment %d", i+1),
			})
		}
	}
	if len(result) == 0 {
		log.Printf("No valid splits found, using force split")
		return r.ForceSplit(seg)
	}
	log.Printf("Split into %d segments", len(result))
	return result
}

// ForceSplit 没有候选点时按时长均分
func (r *SegmentRefiner) ForceSplit(seg core.Segment) []core.Segment {
	start := seg.Start
	end := seg.End
	duration := end - start
	if duration <= r.cfg.MaxLenSec {
		return []core.Segment{seg}
	}

	numSegments := int(math.Ceil(duration / r.cfg.MaxLenSec))
	segmentDuration := duration / float64(numSegments)
	if segmentDuration < r.cfg.MinLenSec {
		numSegments = int(math.Floor(duration / r.cfg.MinLenSec))
		if numSegments < 1 {
			numSegments = 1
		}
		segmentDuration = duration / float64(numSegments)
	}

	var result []core.Segment
	currentStart := start
	for i := 0; i < numSegments; i++ {
		var segmentEnd float64
		if i == numSegments-1 {
			segmentEnd = end
		} else {
			segmentEnd = currentStart + segmentDuration
		}

		// 倒数第二段结束后若余量不足最小时长，直接并成一段收尾
		if i == numSegments-2 && end-segmentEnd < r.cfg.MinLenSec {
			result = append(result, core.Segment{
				Start: currentStart,
				End:   end,
				Text:  fmt.Sprintf("Force split segment %d-%d", i+1, numSegments),
			})
			break
		}
		result = append(result, core.Segment{
			Start: currentStart,
			End:   segmentEnd,
			Text:  fmt.Sprintf("Force split segment %d", i+1),
		})
		currentStart = segmentEnd
	}
	log.Printf("Force split into %d segments", len(result))
	return result
}

// mergeTinySegments 收尾时把过短分段并入后一段，允许临时超长后再切
func (r *SegmentRefiner) mergeTinySegments(ctx context.Context, videoID, videoPath string,
	segments, transcript []core.Segment) []core.Segment {
	if len(segments) <= 1 {
		return segments
	}
	log.Printf("Merging tiny segments from %d segments", len(segments))

	var result []core.Segment
	i := 0
	for i < len(segments) {
		current := segments[i]
		if current.End-current.Start >= r.cfg.MinLenSec {
			result = append(result, current)
			i++
			continue
		}

		if i+1 < len(segments) {
			next := segments[i+1]
			mergedDuration := next.End - current.Start
			if mergedDuration <= r.cfg.MaxLenSec*1.5 {
				merged := core.Segment{
					Start: current.Start,
					End:   next.End,
					Text:  truncateText("Merged: "+current.Text+" + "+next.Text, 200),
				}
				if mergedDuration > r.cfg.MaxLenSec {
					result = append(result, r.SplitLongSegment(ctx, videoID, videoPath, merged, transcript)...)
				} else {
					result = append(result, merged)
				}
				i += 2
			} else {
				result = append(result, current)
				i++
			}
		} else {
			result = append(result, current)
			i++
		}
	}
	log.Printf("Merged to %d segments", len(result))
	return result
}

// ProcessSegments 迭代执行合并与切分直至收敛，最后做非重叠归一化。
// 以分段数稳定作为收敛条件，数量震荡时由迭代上限兜底。
func (r *SegmentRefiner) ProcessSegments(ctx context.Context, videoID, videoPath string,
	transcriptSegments []core.Segment) []core.Segment {
	log.Printf("Processing %d transcript segments", len(transcriptSegments))
	if len(transcriptSegments) == 0 {
		log.Printf("No transcript segments provided")
		return nil
	}

	segments := make([]core.Segment, len(transcriptSegments))
	copy(segments, transcriptSegments)
	sort.Slice(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	log.Printf("Starting iterative processing with %d segments", len(segments))
	for iteration := 0; iteration < r.cfg.MaxIterations; iteration++ {
		log.Printf("Iteration %d/%d", iteration+1, r.cfg.MaxIterations)
		initialCount := len(segments)

		// 先合并过短的分段
		var merged []core.Segment
		i := 0
		for i < len(segments) {
			current := segments[i]
			if current.End-current.Start < r.cfg.MinLenSec && i+1 < len(segments) {
				next := segments[i+1]
				mergedDuration := next.End - current.Start
				if mergedDuration <= r.cfg.MaxLenSec*r.cfg.MergeThresholdFactor {
					merged = append(merged, core.Segment{
						Start: current.Start,
						End:   next.End,
						Text:  truncateText("Merged: "+current.Text+" + "+next.Text, 200),
					})
					i += 2
					continue
				}
			}
			merged = append(merged, current)
			i++
		}
		segments = merged

		// 再切分超长的分段
		var split []core.Segment
		for _, seg := range segments {
			if seg.End-seg.Start > r.cfg.MaxLenSec {
				split = append(split, r.SplitLongSegment(ctx, videoID, videoPath, seg, transcriptSegments)...)
			} else {
				split = append(split, seg)
			}
		}
		segments = split

		sort.Slice(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
		log.Printf("Iteration %d complete: %d -> %d segments", iteration+1, initialCount, len(segments))

		if len(segments) == initialCount {
			log.Printf("Converged early")
			break
		}
	}

	segments = r.mergeTinySegments(ctx, videoID, videoPath, segments, transcriptSegments)

	// 清理：任何正时长的分段都保留，越界的只记警告
	var finalSegments []core.Segment
	for _, seg := range segments {
		duration := seg.End - seg.Start
		if duration <= 0 {
			continue
		}
		if duration < r.cfg.MinLenSec || duration > r.cfg.MaxLenSec {
			log.Printf("Segment [%.1f, %.1f] duration %.1fs outside ideal range", seg.Start, seg.End, duration)
		}
		finalSegments = append(finalSegments, core.Segment{Start: seg.Start, End: seg.End})
	}
	sort.Slice(finalSegments, func(i, j int) bool { return finalSegments[i].Start < finalSegments[j].Start })
	log.Printf("Final processing complete: %d segments", len(finalSegments))

	var transcriptBounds []float64
	for _, seg := range transcriptSegments {
		transcriptBounds = append(transcriptBounds, seg.Start, seg.End)
	}
	transcriptBounds = dedupeSorted(transcriptBounds)

	return r.NormalizeNonOverlap(finalSegments, transcriptBounds)
}

// NormalizeNonOverlap 消除分段重叠：小幅重叠吸收合并，否则前移起点，过碎的丢弃
func (r *SegmentRefiner) NormalizeNonOverlap(segments []core.Segment, transcriptBounds []float64) []core.Segment {
	if len(segments) == 0 {
		return nil
	}

	segs := make([]core.Segment, len(segments))
	copy(segs, segments)
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		return segs[i].End < segs[j].End
	})

	softMax := r.cfg.MaxLenSec * r.cfg.MaxLenSoftFactor
	tol := r.cfg.NonOverlapToleranceSec
	dropTinyFactor := r.cfg.DropTinyAfterTrimFactor

	snapUpToTranscript := func(t float64) float64 {
		if !r.cfg.TrimToTranscriptBoundaries || len(transcriptBounds) == 0 {
			return t
		}
		best := math.Inf(1)
		for _, b := range transcriptBounds {
			if b >= t && b-t <= tol && b < best {
				best = b
			}
		}
		if math.IsInf(best, 1) {
			return t
		}
		return best
	}

	log.Printf("Normalizing %d segments for non-overlap", len(segs))

	var final []core.Segment
	haveLast := false
	lastEnd := 0.0
	for _, seg := range segs {
		s, e := seg.Start, seg.End
		if !haveLast {
			final = append(final, core.Segment{Start: s, End: e})
			lastEnd = e
			haveLast = true
			continue
		}

		if s < lastEnd-tol {
			prev := &final[len(final)-1]
			mergedEnd := math.Max(prev.End, e)
			if mergedEnd-prev.Start <= softMax {
				prev.End = mergedEnd
				lastEnd = prev.End
				continue
			}

			newStart := snapUpToTranscript(math.Max(lastEnd, s))
			if e-newStart < r.cfg.MinLenSec*dropTinyFactor {
				continue
			}
			s = newStart
		}

		// 超出软上限的异常长段应早在切分阶段处理，这里强制截断兜底
		if e-s > softMax {
			e = s + softMax
		}

		final = append(final, core.Segment{Start: s, End: e})
		lastEnd = e
	}

	// 末扫：消除残留的微小重叠
	var out []core.Segment
	haveLast = false
	lastEnd = 0.0
	for _, seg := range final {
		s, e := seg.Start, seg.End
		if haveLast && s < lastEnd-tol {
			s = lastEnd
		}
		if e <= s {
			continue
		}
		out = append(out, core.Segment{Start: s, End: e})
		lastEnd = e
		haveLast = true
	}

	log.Printf("Normalization complete: %d -> %d segments", len(segments), len(out))
	return out
}

func dedupeSorted(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	sort.Float64s(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
