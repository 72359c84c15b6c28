package processors

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/storage"
	"videoModerate/tools"
	"videoModerate/utils"
)

// Pipeline 串联完整的视频内容安全分析流程:
// 转写 -> 切分 -> 细化 -> 逐段分析 -> 报告
type Pipeline struct {
	cfg         config.SegmentationConfig
	plannerCfg  config.PlannerConfig
	transcriber tools.Transcriber
	refiner     *SegmentRefiner
	analyzer    *SegmentAnalyzer
	reportStore storage.ReportStore
	metrics     *core.MetricsCollector
	cache       *core.ResultCache
	modelUsed   string
}

// NewPipeline 根据应用配置和环境变量组装所有处理组件
func NewPipeline(appCfg *config.Config) (*Pipeline, error) {
	segCfg := config.SegmentationConfigFromEnv()
	if err := segCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmentation config: %w", err)
	}
	plannerCfg := config.PlannerConfigFromEnv()
	if err := plannerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}

	metrics := core.NewMetricsCollector()
	guard := core.NewGPUGuardFromEnv()
	cache := core.NewResultCache(time.Duration(plannerCfg.SuspicionCacheTTLSec)*time.Second, 10000)
	extractor := tools.NewFFmpegFrameExtractor()

	var llm tools.LLM
	var classifier tools.ImageClassifier
	var transcriber tools.Transcriber
	if appCfg.HasValidAPI() {
		llm = tools.NewSafetyLLM(appCfg)
		classifier = tools.NewVisionClassifier(appCfg)
		transcriber = tools.NewWhisperTranscriber(appCfg)
	} else {
		log.Printf("API credentials missing, LLM features disabled")
	}

	var embedder tools.FrameEmbedder
	if appCfg.EmbeddingEndpoint != "" {
		embedder = tools.GetFrameEmbedder(appCfg.EmbeddingEndpoint, appCfg.EmbeddingModel)
	} else {
		log.Printf("Embedding endpoint not configured, visual boundary detection disabled")
	}

	embeddingStore := storage.NewEmbeddingStore(appCfg)
	detector := NewBoundaryDetector(extractor, embedder, embeddingStore, guard, metrics, segCfg)
	refiner := NewSegmentRefiner(detector, segCfg)
	scorer := NewSuspicionScorer(llm, cache, plannerCfg, metrics)
	planner := NewPlanner(llm, cache, plannerCfg)
	gatherer := NewEvidenceGatherer(extractor, classifier, tools.NewTesseractOCR(), guard, metrics)
	analyzer := NewSegmentAnalyzer(segCfg, plannerCfg, llm, scorer, planner, gatherer, transcriber, metrics)

	reportStore, err := storage.NewReportStore(appCfg)
	if err != nil {
		log.Printf("Warning: report store unavailable (%v), reports kept on disk only", err)
		reportStore = nil
	}

	return &Pipeline{
		cfg:         segCfg,
		plannerCfg:  plannerCfg,
		transcriber: transcriber,
		refiner:     refiner,
		analyzer:    analyzer,
		reportStore: reportStore,
		metrics:     metrics,
		cache:       cache,
		modelUsed:   appCfg.ChatModel,
	}, nil
}

// AnalyzeVideo 对单个视频执行完整分析并生成安全报告
func (p *Pipeline) AnalyzeVideo(ctx context.Context, videoID, videoPath string) (*core.Report, error) {
	startTime := time.Now()
	videoDir := filepath.Dir(videoPath)

	transcript := tools.LoadCachedTranscript(videoDir)
	if transcript == nil {
		if p.transcriber == nil {
			return nil, fmt.Errorf("no cached transcript and no transcriber configured")
		}
		var err error
		transcript, err = p.transcriber.Transcribe(ctx, videoPath)
		if err != nil {
			return nil, fmt.Errorf("转写失败: %w", err)
		}
		if err := tools.SaveTranscript(videoDir, transcript); err != nil {
			log.Printf("转写缓存写入失败: %v", err)
		}
	}

	baseSegments := BuildTranscriptSegments(transcript.Segments, transcript.FullText, transcript.Words, p.cfg.MinSentenceChars)
	if len(baseSegments) == 0 {
		return nil, fmt.Errorf("transcript produced no usable segments for video %s", videoID)
	}

	segments := p.refiner.ProcessSegments(ctx, videoID, videoPath, baseSegments)
	if len(segments) == 0 {
		return nil, fmt.Errorf("segment refinement produced no segments for video %s", videoID)
	}
	log.Printf("视频 %s 切分为 %d 个片段", videoID, len(segments))

	events, tokens := p.analyzer.AnalyzeSegments(ctx, videoID, videoPath, segments, transcript, p.plannerCfg.PlanningMode)

	report := BuildReport(videoID, events, p.modelUsed, p.plannerCfg.PlanningMode, utils.NewID())
	if err := ValidateReport(report); err != nil {
		return nil, fmt.Errorf("report validation failed: %w", err)
	}
	if err := SaveReport(report, videoDir); err != nil {
		return nil, fmt.Errorf("保存报告失败: %w", err)
	}
	if p.reportStore != nil {
		if err := p.reportStore.SaveReport(ctx, report); err != nil {
			log.Printf("Warning: failed to persist report for %s: %v", videoID, err)
		}
	}

	framesAnalyzed := 0
	for _, ev := range events {
		framesAnalyzed += ev.NumFrames
	}
	elapsedMS := time.Since(startTime).Milliseconds()
	p.metrics.LogVideoMetrics(videoID, elapsedMS, len(segments), framesAnalyzed, len(events), p.plannerCfg.PlanningMode, p.modelUsed)
	log.Printf("视频 %s 分析完成: %d 个有害事件, tokens=%d, 耗时 %dms", videoID, len(events), tokens.Total(), elapsedMS)

	return report, nil
}

// Close 释放流水线持有的外部资源
func (p *Pipeline) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
	if p.reportStore != nil {
		if err := p.reportStore.Close(); err != nil {
			log.Printf("Warning: closing report store: %v", err)
		}
	}
}
