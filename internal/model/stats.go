package model

// Stats 注册表与市场的汇总统计
type Stats struct {
	TotalProjects      int    `json:"total_projects"`
	PendingProjects    int    `json:"pending_projects"`
	VerifiedProjects   int    `json:"verified_projects"`
	RejectedProjects   int    `json:"rejected_projects"`
	IssuedProjects     int    `json:"issued_projects"`
	TotalCredits       uint64 `json:"total_credits"`
	TotalCreditsIssued uint64 `json:"total_credits_issued"`
	TotalListings      int    `json:"total_listings"`
	ActiveListings     int    `json:"active_listings"`
	TokensListed       uint64 `json:"tokens_listed"`
}
