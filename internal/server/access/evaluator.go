// Package access decides whether an identity may read an archived artifact.
// Evaluate is a pure function over the record and the request identity: no
// I/O, fully deterministic, so it can be tested exhaustively.
package access

import (
	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/server/identity"
	"github.com/openheritage/memoryvault/internal/server/models"
)

// DenyReason explains a denial for logging and metrics. It must never reach
// an unauthorized caller: they all collapse into the same ErrAccessDenied so
// private artifact identifiers cannot be enumerated.
type DenyReason string

const (
	ReasonNone            DenyReason = ""
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonPrivateArtifact DenyReason = "private_artifact"
	ReasonNotMember       DenyReason = "not_a_member"
)

// Decision is the outcome of an access evaluation.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Evaluate applies the decision table, first match wins:
//
//  1. the owner always reads their own artifact
//  2. public artifacts are readable by anyone, including anonymous
//  3. community artifacts are readable by members of any associated community
//  4. everything else is denied
//
// Verification level is deliberately not consulted; it is carried as
// metadata only.
func Evaluate(m *models.Memory, id identity.Context) Decision {
	if !id.IsAnonymous() && id.UserID == m.OwnerID {
		return Allow
	}

	if m.AccessLevel == common.AccessLevelPublic {
		return Allow
	}

	if m.AccessLevel == common.AccessLevelCommunity {
		for _, communityID := range m.Communities {
			if id.MemberOf(communityID) {
				return Allow
			}
		}
	}

	switch {
	case id.IsAnonymous():
		return Deny(ReasonUnauthenticated)
	case m.AccessLevel == common.AccessLevelPrivate:
		return Deny(ReasonPrivateArtifact)
	default:
		return Deny(ReasonNotMember)
	}
}
