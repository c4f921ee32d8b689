package dto

// ── 通用 ──

// ScopeRequest 场馆范围参数（查询串或请求体）
type ScopeRequest struct {
	OwnerType string `json:"owner_type" form:"owner_type" binding:"required,oneof=instructor studio"`
	OwnerID   string `json:"owner_id"   form:"owner_id"   binding:"required,uuid"`
	StaffID   string `json:"staff_id"   form:"staff_id"   binding:"omitempty,uuid"`
}

// ScopeResponse 学员可预约的场馆范围
type ScopeResponse struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	StaffID   string `json:"staff_id,omitempty"`
}

// DateRangeRequest 日期区间查询参数
type DateRangeRequest struct {
	From string `form:"from" binding:"required,civildate"`
	To   string `form:"to"   binding:"required,civildate"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewListResponse 构造列表响应
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}
