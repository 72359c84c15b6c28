package processors

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/tools"
)

// Planner 在可疑分段内向LLM请求额外的探测时间点
type Planner struct {
	llm   tools.LLM
	cache *core.ResultCache
	cfg   config.PlannerConfig
}

// NewPlanner 创建规划器
func NewPlanner(llm tools.LLM, cache *core.ResultCache, cfg config.PlannerConfig) *Planner {
	return &Planner{llm: llm, cache: cache, cfg: cfg}
}

// ProposePoints 提议分段内的额外探测点，返回绝对时间戳。
// 仅在分段已判定可疑且预算未耗尽时调用。
func (p *Planner) ProposePoints(ctx context.Context, text string, segStart, segEnd float64,
	videoID string, segIndex int) []float64 {
	if p.llm == nil {
		return nil
	}
	if len(strings.TrimSpace(text)) < p.cfg.SuspicionMinTextChars {
		log.Printf("Segment %d text too short for planning", segIndex)
		return nil
	}

	segmentDuration := segEnd - segStart
	if segmentDuration < p.cfg.PlannerMinGapSec {
		log.Printf("Segment %d too short for additional probes (%.1fs)", segIndex, segmentDuration)
		return nil
	}

	key := core.CacheKey(videoID, segIndex, text, "points")
	if cached, ok := p.cache.Get(key); ok {
		if plan, ok := cached.(core.PlanResult); ok {
			log.Printf("Planning cache hit for segment %d", segIndex)
			return plan.Points
		}
	}

	// 每段探测点上限随时长走，但不超过3个
	maxPointsForSegment := int(segmentDuration / p.cfg.PlannerMinGapSec)
	if maxPointsForSegment < 1 {
		maxPointsForSegment = 1
	}
	if maxPointsForSegment > 3 {
		maxPointsForSegment = 3
	}

	prompt := fmt.Sprintf(`Analyze this video segment and propose timestamps where additional visual analysis would be most helpful.

SEGMENT: %.1fs to %.1fs (duration: %.1fs)

TRANSCRIPT:
%s

Propose up to %d timestamps (in seconds relative to segment start) where visual evidence would clarify potentially harmful content. Focus on moments that might contain visual elements not captured in audio.

Respond with JSON in exactly this format:
{
  "points": [2.5, 8.1, 12.3],
  "reason": "brief explanation"
}

Points should be:
- Between 0.0 and %.1f (relative to segment start)
- At least %.1fs apart
- Focused on potentially suspicious moments`,
		segStart, segEnd, segmentDuration, strings.TrimSpace(text),
		maxPointsForSegment, segmentDuration, p.cfg.PlannerMinGapSec)

	startTime := time.Now()
	timeout := time.Duration(p.cfg.SuspicionLLMTimeoutSec * float64(time.Second))
	raw, _, err := p.llm.Invoke(ctx, prompt, 200, 0.5, timeout)
	latencyMS := time.Since(startTime).Milliseconds()
	if err != nil {
		log.Printf("LLM planning error for segment %d: %v", segIndex, err)
		return nil
	}

	// 相对时间转绝对时间并过滤越界值
	var absolutePoints []float64
	for _, relative := range asFloatList(raw["points"]) {
		if relative >= 0 && relative <= segmentDuration {
			absolutePoints = append(absolutePoints, segStart+relative)
		}
	}
	sort.Float64s(absolutePoints)

	// 贪心保留满足最小间隔的点
	var filtered []float64
	for _, point := range absolutePoints {
		if len(filtered) == 0 || point-filtered[len(filtered)-1] >= p.cfg.PlannerMinGapSec {
			filtered = append(filtered, point)
		}
	}
	if len(filtered) > maxPointsForSegment {
		filtered = filtered[:maxPointsForSegment]
	}

	p.cache.Set(key, core.PlanResult{Points: filtered, Reason: asString(raw["reason"])})
	log.Printf("LLM planning for segment %d: %d points, latency=%dms", segIndex, len(filtered), latencyMS)
	return filtered
}

// MergeTimestampsWithPlanning 合并周期采样点与规划探测点。
// 周期点始终保留；额外点受段内帧上限、剩余点预算与全局额外帧上限约束。
func MergeTimestampsWithPlanning(periodic, planned []float64, cfg config.PlannerConfig,
	maxFramesPerSegment, remainingPointsBudget int) []float64 {
	seen := make(map[float64]struct{})
	var all []float64
	for _, ts := range periodic {
		if _, ok := seen[ts]; !ok {
			seen[ts] = struct{}{}
			all = append(all, ts)
		}
	}
	for _, ts := range planned {
		if _, ok := seen[ts]; !ok {
			seen[ts] = struct{}{}
			all = append(all, ts)
		}
	}
	sort.Float64s(all)

	// 全局最小间隔过滤
	var filtered []float64
	for _, ts := range all {
		if len(filtered) == 0 || ts-filtered[len(filtered)-1] >= cfg.PlannerMinGapSec {
			filtered = append(filtered, ts)
		}
	}

	periodicSet := make(map[float64]struct{}, len(periodic))
	for _, ts := range periodic {
		periodicSet[ts] = struct{}{}
	}
	plannedSet := make(map[float64]struct{}, len(planned))
	for _, ts := range planned {
		plannedSet[ts] = struct{}{}
	}

	maxExtra := cfg.PlannerMaxExtraFrames
	if bySegment := maxFramesPerSegment - len(periodic); maxFramesPerSegment > 0 && bySegment < maxExtra {
		maxExtra = bySegment
	}
	if remainingPointsBudget >= 0 && remainingPointsBudget < maxExtra {
		maxExtra = remainingPointsBudget
	}

	var final []float64
	extraAdded := 0
	for _, ts := range filtered {
		_, isPlanned := plannedSet[ts]
		_, isPeriodic := periodicSet[ts]
		if isPlanned && !isPeriodic {
			if extraAdded < maxExtra {
				final = append(final, ts)
				extraAdded++
			}
			continue
		}
		final = append(final, ts)
	}

	sort.Float64s(final)
	return final
}
