package auth

// Scopes granted to carbon tracker clients.
const (
	ScopeCarbonRead     = "carbon:read"
	ScopeCarbonWrite    = "carbon:write"
	ScopeCommunityWrite = "community:write"
	// ScopePointsWrite guards manual point adjustments for arbitrary users.
	ScopePointsWrite = "points:write"
)
