// Package identity defines the resolved requester information used for
// access decisions: who is asking, how trusted they are, and which cultural
// communities they belong to. Credentials themselves are issued and validated
// by an external collaborator.
package identity

// Context is the per-request identity. A zero UserID means the request is
// anonymous. VerificationLevel is metadata only; it does not gate read
// access.
type Context struct {
	UserID            string
	VerificationLevel int
	memberships       map[string]struct{}
}

// Anonymous returns the identity of an unauthenticated request.
func Anonymous() Context {
	return Context{}
}

// New builds an authenticated identity with the given community memberships.
func New(userID string, verificationLevel int, memberships []string) Context {
	set := make(map[string]struct{}, len(memberships))
	for _, id := range memberships {
		set[id] = struct{}{}
	}
	return Context{UserID: userID, VerificationLevel: verificationLevel, memberships: set}
}

// IsAnonymous reports whether the request carries no authenticated identity.
func (c Context) IsAnonymous() bool {
	return c.UserID == ""
}

// MemberOf reports whether the identity belongs to the given community.
func (c Context) MemberOf(communityID string) bool {
	_, ok := c.memberships[communityID]
	return ok
}

// Memberships returns the community ids as a slice, for repository queries.
func (c Context) Memberships() []string {
	out := make([]string, 0, len(c.memberships))
	for id := range c.memberships {
		out = append(out, id)
	}
	return out
}
