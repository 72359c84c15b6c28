package core

import "sync"

// BudgetTracker 单次视频分析的开销计数器。
// 每次运行新建一份，只增不减，达到上限后走低成本路径。
type BudgetTracker struct {
	mu             sync.Mutex
	suspicionLimit int
	pointsLimit    int
	suspicionUsed  int
	pointsUsed     int
}

// BudgetUsage 计数快照
type BudgetUsage struct {
	SuspicionLLMCallsUsed int `json:"suspicion_llm_calls_used"`
	SuspicionLLMLimit     int `json:"suspicion_llm_limit"`
	PlannedPointsUsed     int `json:"planned_points_used"`
	PlannedPointsLimit    int `json:"planned_points_limit"`
}

// NewBudgetTracker 创建计数器
func NewBudgetTracker(suspicionLimit, pointsLimit int) *BudgetTracker {
	return &BudgetTracker{suspicionLimit: suspicionLimit, pointsLimit: pointsLimit}
}

// AllowSuspicionLLM 判断是否还允许一次LLM可疑度打分
func (b *BudgetTracker) AllowSuspicionLLM() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspicionUsed < b.suspicionLimit
}

// NoteSuspicionCall 记录一次实际发生的LLM打分调用
func (b *BudgetTracker) NoteSuspicionCall() {
	b.mu.Lock()
	b.suspicionUsed++
	b.mu.Unlock()
}

// RemainingPoints 返回剩余可用的规划点数
func (b *BudgetTracker) RemainingPoints() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.pointsLimit - b.pointsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ConsumePoints 申请n个规划点，返回实际授予的数量
func (b *BudgetTracker) ConsumePoints(n int) int {
	if n <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.pointsLimit - b.pointsUsed
	if remaining <= 0 {
		return 0
	}
	granted := n
	if granted > remaining {
		granted = remaining
	}
	b.pointsUsed += granted
	return granted
}

// Usage 返回当前用量快照
func (b *BudgetTracker) Usage() BudgetUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetUsage{
		SuspicionLLMCallsUsed: b.suspicionUsed,
		SuspicionLLMLimit:     b.suspicionLimit,
		PlannedPointsUsed:     b.pointsUsed,
		PlannedPointsLimit:    b.pointsLimit,
	}
}
