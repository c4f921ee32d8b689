package dto

// ── 候补模块 DTO ──

// JoinWaitlistRequest 加入候补
type JoinWaitlistRequest struct {
	ScopeRequest
	Date      string `json:"date"       binding:"required,civildate"`
	StartTime string `json:"start_time" binding:"required,clock"`
}

// WaitlistResponse 候补记录
type WaitlistResponse struct {
	ID        string `json:"id"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	StaffID   string `json:"staff_id,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Position  int    `json:"position"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}
