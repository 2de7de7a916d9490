package auth

// Scopes granted to member tokens.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeProfileRead     = "profile:read"
	ScopeProfileWrite    = "profile:write"
	ScopeGoalsRead       = "goals:read"
	ScopeGoalsWrite      = "goals:write"
)

// MemberScopes is the scope set issued on sign in.
var MemberScopes = []string{
	ScopeActivitiesWrite,
	ScopeActivitiesRead,
	ScopeProfileRead,
	ScopeProfileWrite,
	ScopeGoalsRead,
	ScopeGoalsWrite,
}
