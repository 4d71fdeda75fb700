package types

import "time"

// MemoryType 长期记忆类型
type MemoryType string

const (
	MemoryFact       MemoryType = "fact"       // 客观事实
	MemoryPreference MemoryType = "preference" // 用户偏好
	MemoryInsight    MemoryType = "insight"    // 会话洞察
)

// Valid 校验记忆类型是否合法。
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryFact, MemoryPreference, MemoryInsight:
		return true
	}
	return false
}

// Memory 会话级长期记忆
// importance 始终被钳制在 [0,1]；每会话数量超限时淘汰最不重要的记录。
type Memory struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	Content        string     `json:"content"`
	Type           MemoryType `json:"type"`
	Importance     float64    `json:"importance"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
}

// ClampImportance 将 importance 钳制到 [0,1]。
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
