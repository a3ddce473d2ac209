package models

// Identity is the authenticated caller. Session handling lives outside the pipeline.
type Identity struct {
	UserID string `json:"userId"`
}

// Account is what the identity/quota provider knows about a caller.
type Account struct {
	UserID             string `json:"userId"`
	WorkspaceID        string `json:"workspaceId"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	QuotaUsed          int    `json:"quotaUsed"`
	QuotaLimit         int    `json:"quotaLimit"`
}

// Remaining is the number of billable searches left.
func (a Account) Remaining() int {
	if a.QuotaUsed >= a.QuotaLimit {
		return 0
	}
	return a.QuotaLimit - a.QuotaUsed
}
