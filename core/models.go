package core

// Segment 表示一个时间区段及其对应的转写文本
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Frame 表示一个抽取出的视频帧
type Frame struct {
	TimestampSec float64 `json:"timestamp_sec"`
	Path         string  `json:"path"`
}

// WordStamp 带时间戳的单词
type WordStamp struct {
	Word string  `json:"word"`
	Time float64 `json:"time"`
}

// Transcript 完整转写结果
type Transcript struct {
	FullText string      `json:"full_text"`
	Words    []WordStamp `json:"words"`
	Segments []Segment   `json:"segments"`
}

// VideoInfo 视频基础元信息
type VideoInfo struct {
	DurationSec float64 `json:"duration_sec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
}

// SuspicionResult 可疑度打分结果
type SuspicionResult struct {
	Suspicious bool    `json:"suspicious"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"` // keywords|llm|off
	Category   string  `json:"category,omitempty"`
	Keyword    string  `json:"keyword,omitempty"`
	Reason     string  `json:"reason"`
	CacheHit   bool    `json:"cache_hit"`
	LatencyMS  int64   `json:"latency_ms,omitempty"`
}

// PlanResult 探测点规划结果，缓存整体存取
type PlanResult struct {
	Points []float64 `json:"points"`
	Reason string    `json:"reason"`
}

// Evidence 为单个分段收集的多模态证据
type Evidence struct {
	Captions  []string `json:"captions"`
	OCRTexts  []string `json:"ocr_texts"`
	NumFrames int      `json:"num_frames"`
}

// Label 图像分类/描述结果，Category 为 summary/caption/classification
type Label struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// TokenUsage LLM token消耗
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add 累加另一份消耗
func (t *TokenUsage) Add(other TokenUsage) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
}

// Total 返回总token数
func (t TokenUsage) Total() int {
	return t.PromptTokens + t.CompletionTokens
}

// Decision 单个分段的审核判定
type Decision struct {
	IsHarmful         bool        `json:"is_harmful"`
	NeedsVerification bool        `json:"needs_verification"`
	Confidence        float64     `json:"confidence"`
	Categories        []string    `json:"categories"`
	Explanation       string      `json:"explanation"`
	TokenUsage        *TokenUsage `json:"token_usage,omitempty"`
}

// AnalysisData 事件内嵌的判定详情，confidence为0-100整数
type AnalysisData struct {
	IsHarmful         bool     `json:"is_harmful"`
	NeedsVerification bool     `json:"needs_verification"`
	Confidence        int      `json:"confidence"`
	Explanation       string   `json:"explanation"`
	Categories        []string `json:"categories"`
	SuspicionMethod   string   `json:"suspicion_method,omitempty"`
	PlanningMode      string   `json:"planning_mode,omitempty"`
	PlannedPoints     int      `json:"planned_points,omitempty"`
}

// HarmfulEvent 报告中的一条有害事件，时间以 HH:MM:SS.mmm 字符串表示
type HarmfulEvent struct {
	SegmentStart      string       `json:"segment_start"`
	SegmentEnd        string       `json:"segment_end"`
	AnalysisMode      string       `json:"analysis_mode"` // 固定为 "region"
	NumFrames         int          `json:"num_frames"`
	AnalysisPerformed []string     `json:"analysis_performed"`
	AudioEvidence     string       `json:"audio_evidence"`
	AnalysisData      AnalysisData `json:"analysis_data"`
}

// Report v2格式的视频审核报告
type Report struct {
	FormatVersion int            `json:"format_version"`
	VideoID       string         `json:"video_id"`
	PlanningMode  string         `json:"planning_mode"`
	HarmfulEvents []HarmfulEvent `json:"harmful_events"`
	ModelUsed     string         `json:"model_used,omitempty"`
	AnalysisRunID string         `json:"analysis_run_id,omitempty"`
}
