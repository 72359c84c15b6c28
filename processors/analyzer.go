package processors

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/tools"
	"videoModerate/utils"
)

// SegmentAnalyzer 逐段执行 可疑度打分 → 探测点规划 → 采样取证 → 审核判定。
// 单个视频内严格串行，预算计数依赖调用顺序。
type SegmentAnalyzer struct {
	cfg         config.SegmentationConfig
	plannerCfg  config.PlannerConfig
	llm         tools.LLM
	scorer      *SuspicionScorer
	planner     *Planner
	gatherer    *EvidenceGatherer
	transcriber tools.Transcriber
	metrics     *core.MetricsCollector
}

// NewSegmentAnalyzer 创建分析器
func NewSegmentAnalyzer(cfg config.SegmentationConfig, plannerCfg config.PlannerConfig,
	llm tools.LLM, scorer *SuspicionScorer, planner *Planner, gatherer *EvidenceGatherer,
	transcriber tools.Transcriber, metrics *core.MetricsCollector) *SegmentAnalyzer {
	return &SegmentAnalyzer{
		cfg:         cfg,
		plannerCfg:  plannerCfg,
		llm:         llm,
		scorer:      scorer,
		planner:     planner,
		gatherer:    gatherer,
		transcriber: transcriber,
		metrics:     metrics,
	}
}

// AnalyzeSegments 分析全部分段，返回有害事件列表与累计token消耗
func (a *SegmentAnalyzer) AnalyzeSegments(ctx context.Context, videoID, videoPath string,
	segments []core.Segment, transcript *core.Transcript, planningMode string) ([]core.HarmfulEvent, core.TokenUsage) {
	log.Printf("Analyzing %d segments for video %s", len(segments), videoID)
	log.Printf("Planning mode: %s, Suspicion mode: %s", planningMode, a.cfg.SuspicionMode)
	log.Printf("Safe sampling: %.1fs, Suspicious sampling: %.1fs", a.cfg.SafeSampleSec, a.cfg.SuspiciousSampleSec)
	log.Printf("LLM budgets: suspicion=%d segments, planning=%d points, extra_frames=%d",
		a.plannerCfg.SuspicionLLMMaxSegments, a.plannerCfg.PlannerLLMMaxPoints, a.plannerCfg.PlannerMaxExtraFrames)

	// 预算按运行归零，不触碰配置
	budget := core.NewBudgetTracker(a.plannerCfg.SuspicionLLMMaxSegments, a.plannerCfg.PlannerLLMMaxPoints)

	var harmfulEvents []core.HarmfulEvent
	var totalTokens core.TokenUsage

	for i, segment := range segments {
		if ctx.Err() != nil {
			log.Printf("Analysis canceled after %d/%d segments: %v", i, len(segments), ctx.Err())
			break
		}

		start := segment.Start
		end := segment.End
		segmentStartTime := time.Now()
		log.Printf("Processing segment %d/%d: [%.1fs-%.1fs]", i+1, len(segments), start, end)

		// 1. 分段文本
		var segmentText string
		if transcript != nil && (transcript.FullText != "" || len(transcript.Words) > 0) {
			segmentText = SegmentTranscript(transcript.FullText, transcript.Words, start, end)
		} else {
			segmentText = a.transcribeClip(ctx, videoPath, start, end)
		}

		// 2. 可疑度打分（预算检查在打分器内部逐次进行）
		suspicion := a.scorer.Score(ctx, segmentText, a.cfg.SuspicionMode, videoID, i, budget)
		isSuspicious := suspicion.Suspicious

		// 3. 规划额外探测点
		var plannedTimestamps []float64
		if (planningMode == "llm" || planningMode == "hybrid") && isSuspicious && budget.RemainingPoints() > 0 {
			done := a.metrics.MeasureOperation("llm_planner", map[string]interface{}{
				"video_id":      videoID,
				"segment_index": i,
				"segment_start": start,
				"segment_end":   end,
			})
			proposed := a.planner.ProposePoints(ctx, segmentText, start, end, videoID, i)
			done(nil)

			granted := budget.ConsumePoints(len(proposed))
			plannedTimestamps = proposed[:granted]
			if len(plannedTimestamps) > 0 {
				log.Printf("LLM planner proposed %d points for segment [%.1fs-%.1fs]", len(plannedTimestamps), start, end)
			}
		}

		// 4. 周期采样点 + 规划点合并
		interval := a.cfg.SafeSampleSec
		if isSuspicious {
			interval = a.cfg.SuspiciousSampleSec
		}
		periodicTimestamps := tools.SampleTimestamps(start, end, interval, a.cfg.MaxFramesPerSegment)

		finalTimestamps := periodicTimestamps
		if len(plannedTimestamps) > 0 {
			finalTimestamps = MergeTimestampsWithPlanning(periodicTimestamps, plannedTimestamps,
				a.plannerCfg, a.cfg.MaxFramesPerSegment, budget.RemainingPoints())
		}

		// 5. 采样帧
		frames := a.gatherer.SampleFrames(videoPath, start, end, interval, a.cfg.MaxFramesPerSegment, finalTimestamps)
		if len(frames) == 0 {
			log.Printf("No frames sampled for segment [%.1fs-%.1fs], skipping", start, end)
			continue
		}

		// 6. 收集证据
		evidence := a.gatherer.Gather(ctx, frames)
		captionsText := ApplyTextHygiene(evidence.Captions, 1500)
		ocrText := ApplyTextHygiene(evidence.OCRTexts, 1500)

		// 7. 审核判定
		segmentInfo := fmt.Sprintf("[%.1fs-%.1fs]", start, end)
		done := a.metrics.MeasureOperation("llm_decision", map[string]interface{}{
			"video_id":      videoID,
			"segment_index": i,
			"segment_start": start,
			"segment_end":   end,
		})
		decision := LLMDecide(ctx, a.llm, segmentText, ocrText, captionsText,
			time.Duration(a.cfg.LLMTimeoutSec*float64(time.Second)), segmentInfo)
		done(nil)

		// 8. 有害则记录事件
		if decision.IsHarmful {
			analysisPerformed := []string{"frame_extraction", "audio_analysis"}
			if captionsText != "" {
				if strings.Contains(captionsText, "Caption:") {
					analysisPerformed = append(analysisPerformed, "image_captioning")
				} else {
					analysisPerformed = append(analysisPerformed, "image_classification")
				}
			}
			if ocrText != "" {
				analysisPerformed = append(analysisPerformed, "ocr")
			}

			harmfulEvents = append(harmfulEvents, core.HarmfulEvent{
				SegmentStart:      utils.FormatTimestamp(start),
				SegmentEnd:        utils.FormatTimestamp(end),
				AnalysisMode:      "region",
				NumFrames:         evidence.NumFrames,
				AnalysisPerformed: analysisPerformed,
				AudioEvidence:     segmentText,
				AnalysisData: core.AnalysisData{
					IsHarmful:       true,
					Confidence:      int(decision.Confidence * 100),
					Explanation:     decision.Explanation,
					Categories:      decision.Categories,
					SuspicionMethod: suspicion.Method,
					PlanningMode:    planningMode,
					PlannedPoints:   len(plannedTimestamps),
				},
			})
			log.Printf("Harmful content detected in segment [%.1fs-%.1fs]: %v", start, end, decision.Categories)
		} else {
			log.Printf("Segment [%.1fs-%.1fs] deemed safe", start, end)
		}

		if decision.TokenUsage != nil {
			totalTokens.Add(*decision.TokenUsage)
		}

		a.metrics.LogSegmentMetrics(videoID, i, start, end,
			time.Since(segmentStartTime).Milliseconds(), evidence.NumFrames,
			a.cfg.SuspicionMode, isSuspicious, decision)
	}

	usage := budget.Usage()
	log.Printf("Analysis complete: %d harmful events detected out of %d segments", len(harmfulEvents), len(segments))
	log.Printf("Budget usage: LLM suspicion %d/%d, planned points %d/%d",
		usage.SuspicionLLMCallsUsed, usage.SuspicionLLMLimit,
		usage.PlannedPointsUsed, usage.PlannedPointsLimit)
	log.Printf("Token usage: %d prompt + %d completion = %d total",
		totalTokens.PromptTokens, totalTokens.CompletionTokens, totalTokens.Total())
	return harmfulEvents, totalTokens
}

// transcribeClip 没有整段转写时退而转写音频片段
func (a *SegmentAnalyzer) transcribeClip(ctx context.Context, videoPath string, start, end float64) string {
	// 优先复用缓存的整段转写
	if cached := tools.LoadCachedTranscript(filepath.Dir(videoPath)); cached != nil {
		return SegmentTranscript(cached.FullText, cached.Words, start, end)
	}
	if a.transcriber == nil {
		return ""
	}

	log.Printf("Extracting and transcribing audio clip [%.1fs-%.1fs]", start, end)
	clipPath, err := tools.ExtractAudioClip(videoPath, start, end)
	if err != nil {
		log.Printf("Audio clip extraction failed for [%.1fs-%.1fs]: %v", start, end, err)
		return ""
	}

	done := a.metrics.MeasureOperation("clip_transcription", map[string]interface{}{
		"video_path":    videoPath,
		"start":         start,
		"end":           end,
		"clip_duration": end - start,
	})
	transcript, err := a.transcriber.Transcribe(ctx, clipPath)
	done(err)
	if err != nil {
		log.Printf("Clip transcription failed for [%.1fs-%.1fs]: %v", start, end, err)
		return ""
	}

	text := transcript.FullText
	if runes := []rune(text); len(runes) > 1000 {
		text = string(runes[:1000]) + "..."
	}
	log.Printf("Successfully transcribed clip [%.1fs-%.1fs]: %d chars", start, end, len(text))
	return text
}
