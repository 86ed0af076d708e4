package capabilities

import "github.com/agentgate-dev/agentgate/internal/domain/values"

// RepoCapability is an abstract, human-meaningful grant over an external
// repository, distinct from any provider's concrete permission scopes.
type RepoCapability string

// Repository-level capabilities a human may grant to an agent.
const (
	CapReadRepo      RepoCapability = "read_repo"
	CapCreateBranch  RepoCapability = "create_branch"
	CapPushBranch    RepoCapability = "push_branch"
	CapOpenPR        RepoCapability = "open_pr"
	CapComment       RepoCapability = "comment"
	CapRequestReview RepoCapability = "request_review"
	CapLabelIssuePR  RepoCapability = "label_issue_pr"
	CapReviewPR      RepoCapability = "review_pr"
	CapMergePR       RepoCapability = "merge_pr"
)

// Scope identifies a provider permission scope.
type Scope string

// Provider permission scopes.
const (
	ScopeContents     Scope = "contents"
	ScopePullRequests Scope = "pull_requests"
	ScopeIssues       Scope = "issues"
	ScopeChecks       Scope = "checks"
	ScopeActions      Scope = "actions"
)

// PermissionMap is the resolved provider permission set: scope -> level.
type PermissionMap map[Scope]values.PermissionLevel

// Set raises the level for a scope. Aggregation is max-wins: an
// already-resolved level is never lowered by a later, narrower grant.
func (m PermissionMap) Set(scope Scope, level values.PermissionLevel) {
	m[scope] = m[scope].Max(level)
}

// Clone returns an independent copy of the map.
func (m PermissionMap) Clone() PermissionMap {
	out := make(PermissionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// scopeGrant pairs a scope with the level a capability implies for it.
type scopeGrant struct {
	scope Scope
	level values.PermissionLevel
}

// capabilityScopes maps each abstract capability to the provider scopes it
// implies. Pull-request-lifecycle capabilities additionally imply read
// access to checks and workflow runs so the agent can see CI status.
var capabilityScopes = map[RepoCapability][]scopeGrant{
	CapReadRepo: {
		{ScopeContents, values.PermRead},
	},
	CapCreateBranch: {
		{ScopeContents, values.PermWrite},
	},
	CapPushBranch: {
		{ScopeContents, values.PermWrite},
	},
	CapOpenPR: {
		{ScopePullRequests, values.PermWrite},
		{ScopeChecks, values.PermRead},
		{ScopeActions, values.PermRead},
	},
	CapComment: {
		{ScopeIssues, values.PermWrite},
	},
	CapRequestReview: {
		{ScopePullRequests, values.PermWrite},
		{ScopeChecks, values.PermRead},
		{ScopeActions, values.PermRead},
	},
	CapLabelIssuePR: {
		{ScopeIssues, values.PermWrite},
		{ScopePullRequests, values.PermWrite},
		{ScopeChecks, values.PermRead},
		{ScopeActions, values.PermRead},
	},
	CapReviewPR: {
		{ScopePullRequests, values.PermWrite},
		{ScopeChecks, values.PermRead},
		{ScopeActions, values.PermRead},
	},
	CapMergePR: {
		{ScopeContents, values.PermWrite},
		{ScopePullRequests, values.PermWrite},
		{ScopeChecks, values.PermRead},
		{ScopeActions, values.PermRead},
	},
}

// AllCapabilities returns every recognized abstract capability.
func AllCapabilities() []RepoCapability {
	out := make([]RepoCapability, 0, len(capabilityScopes))
	for c := range capabilityScopes {
		out = append(out, c)
	}
	return out
}

// KnownCapability reports whether c is a recognized abstract capability.
func KnownCapability(c RepoCapability) bool {
	_, ok := capabilityScopes[c]
	return ok
}

// ResolvePermissions converts abstract capabilities into a provider
// permission map. Pure and stateless; idempotent over repeated inputs,
// monotonic over overlapping ones.
func ResolvePermissions(caps []RepoCapability) PermissionMap {
	resolved := make(PermissionMap)
	for _, c := range caps {
		for _, g := range capabilityScopes[c] {
			resolved.Set(g.scope, g.level)
		}
	}
	return resolved
}
