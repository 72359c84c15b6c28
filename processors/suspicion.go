package processors

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/tools"
)

// suspicionCategory 关键词类目。顺序即匹配优先级，首个命中生效
type suspicionCategory struct {
	name     string
	keywords []string
}

// 关键词表按误报率从低到高排列，保证同一文本的判定是确定性的
var suspicionCategories = []suspicionCategory{
	{"hate", []string{
		"nazi", "hitler", "swastika", "kkk", "white power", "n-word", "jew", "kike",
		"spic", "chink", "towelhead", "raghead", "faggot", "tranny", "retard",
	}},
	{"self_harm", []string{
		"suicide", "kill myself", "end it all", "razor", "cutting", "self-harm",
		"overdose", "pills", "jump off", "hang myself",
	}},
	{"nudity", []string{
		"naked", "nude", "penis", "vagina", "boobs", "tits", "ass", "porn",
		"sex tape", "masturbat", "orgasm", "horny",
	}},
	{"drugs", []string{
		"cocaine", "heroin", "meth", "crack", "weed", "marijuana", "molly",
		"ecstasy", "lsd", "acid", "shrooms", "xanax", "oxy", "fentanyl",
	}},
	{"violence", []string{
		"kill", "murder", "shoot", "stab", "beat up", "fight", "blood",
		"weapon", "gun", "knife", "bomb", "explosive", "torture",
	}},
	{"abuse", []string{
		"molest", "rape", "assault", "abuse", "victim", "predator",
		"kidnap", "traffick", "exploit", "coerce",
	}},
}

// SuspicionScorer 分段可疑度打分
type SuspicionScorer struct {
	llm     tools.LLM
	cache   *core.ResultCache
	cfg     config.PlannerConfig
	metrics *core.MetricsCollector
}

// NewSuspicionScorer 创建打分器，llm可为nil表示仅关键词模式可用
func NewSuspicionScorer(llm tools.LLM, cache *core.ResultCache, cfg config.PlannerConfig,
	metrics *core.MetricsCollector) *SuspicionScorer {
	return &SuspicionScorer{llm: llm, cache: cache, cfg: cfg, metrics: metrics}
}

// Score 对分段文本打分。策略按顺序尝试，前者失败时回退后者；
// 回退路径不消耗LLM预算。
func (s *SuspicionScorer) Score(ctx context.Context, text, mode, videoID string, segIndex int,
	budget *core.BudgetTracker) core.SuspicionResult {
	var strategies []string
	switch mode {
	case "off":
		return core.SuspicionResult{
			Method: "off",
			Reason: "Suspicion scoring disabled",
		}
	case "llm":
		strategies = []string{"llm", "keywords"}
	case "keywords":
		strategies = []string{"keywords"}
	default:
		log.Printf("Unknown suspicion mode %q, defaulting to keywords", mode)
		strategies = []string{"keywords"}
	}

	for _, strategy := range strategies {
		switch strategy {
		case "llm":
			result, ok := s.scoreLLM(ctx, text, videoID, segIndex, budget)
			if ok {
				return result
			}
			log.Printf("LLM suspicion unavailable for segment %d, falling back to keywords", segIndex)
		case "keywords":
			return s.scoreKeywords(text, segIndex)
		}
	}
	return s.scoreKeywords(text, segIndex)
}

// scoreKeywords 确定性的关键词打分，命中置信度0.8，未命中按安全0.9
func (s *SuspicionScorer) scoreKeywords(text string, segIndex int) core.SuspicionResult {
	if text == "" {
		return core.SuspicionResult{
			Method: "keywords",
			Reason: "No text available",
		}
	}

	textLower := strings.ToLower(text)
	for _, category := range suspicionCategories {
		for _, keyword := range category.keywords {
			if strings.Contains(textLower, keyword) {
				log.Printf("Suspicion detected in segment %d: '%s' in category '%s'", segIndex, keyword, category.name)
				return core.SuspicionResult{
					Suspicious: true,
					Confidence: 0.8,
					Method:     "keywords",
					Category:   category.name,
					Keyword:    keyword,
					Reason:     fmt.Sprintf("Keyword '%s' found in %s", keyword, category.name),
				}
			}
		}
	}
	return core.SuspicionResult{
		Suspicious: false,
		Confidence: 0.9,
		Method:     "keywords",
		Reason:     "No suspicious keywords found",
	}
}

// scoreLLM LLM打分。返回ok=false表示需要回退到关键词。
func (s *SuspicionScorer) scoreLLM(ctx context.Context, text, videoID string, segIndex int,
	budget *core.BudgetTracker) (core.SuspicionResult, bool) {
	if s.llm == nil {
		return core.SuspicionResult{}, false
	}
	if len(strings.TrimSpace(text)) < s.cfg.SuspicionMinTextChars {
		return core.SuspicionResult{
			Method: "llm",
			Reason: "Text too short for analysis",
		}, true
	}

	key := core.CacheKey(videoID, segIndex, text, "suspicion")
	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(core.SuspicionResult); ok {
			log.Printf("Suspicion cache hit for segment %d", segIndex)
			result.CacheHit = true
			return result, true
		}
	}

	// 逐次调用前检查预算，额度耗尽后本次运行一律走关键词
	if budget != nil && !budget.AllowSuspicionLLM() {
		log.Printf("LLM suspicion budget exhausted, using keywords for segment %d", segIndex)
		return core.SuspicionResult{}, false
	}

	prompt := fmt.Sprintf(`Analyze this video segment transcript for harmful content and respond with valid JSON only.

TRANSCRIPT:
%s

Classify whether the excerpt likely contains or refers to harmful content (hate speech, violence, self-harm, nudity, drugs, abuse, harassment, misinformation).

Respond with JSON in exactly this format:
{
  "suspicious": true/false,
  "confidence": 0.85,
  "category": "hate_speech"|null,
  "reason": "brief explanation"
}

Categories can be: hate_speech, violence, nudity, self_harm, drugs, abuse, harassment, misinformation, or null.
Confidence should be 0.0 to 1.0. Only mark as suspicious if you have reasonable evidence.`, strings.TrimSpace(text))

	startTime := time.Now()
	timeout := time.Duration(s.cfg.SuspicionLLMTimeoutSec * float64(time.Second))
	raw, _, err := s.llm.Invoke(ctx, prompt, 150, 0.3, timeout)
	latencyMS := time.Since(startTime).Milliseconds()
	if err != nil {
		log.Printf("LLM suspicion error for segment %d: %v", segIndex, err)
		return core.SuspicionResult{}, false
	}

	confidence := clampUnit(asFloat(raw["confidence"]))
	result := core.SuspicionResult{
		Suspicious: asBool(raw["suspicious"]),
		Confidence: confidence,
		Method:     "llm",
		Category:   asString(raw["category"]),
		Reason:     asString(raw["reason"]),
		LatencyMS:  latencyMS,
	}
	// 阈值判定优先于模型自身的布尔值
	if confidence >= s.cfg.SuspicionConfThreshold {
		result.Suspicious = true
	}

	cached := result
	cached.CacheHit = false
	s.cache.Set(key, cached)

	if budget != nil {
		budget.NoteSuspicionCall()
	}

	if s.metrics != nil {
		done := s.metrics.MeasureOperation("llm_suspicion", map[string]interface{}{
			"video_id":      videoID,
			"segment_index": segIndex,
			"suspicious":    result.Suspicious,
			"confidence":    result.Confidence,
			"cache_hit":     false,
			"latency_ms":    latencyMS,
		})
		done(nil)
	}

	log.Printf("LLM suspicion for segment %d: suspicious=%v, confidence=%.2f, latency=%dms",
		segIndex, result.Suspicious, result.Confidence, latencyMS)
	return result, true
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
