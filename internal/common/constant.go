package common

// AccessTokenHeaderName is the metadata key an embedding transport uses to
// carry the externally issued access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Recognized artifact content types.
const (
	ContentTypeImage    = "image"
	ContentTypeVideo    = "video"
	ContentTypeAudio    = "audio"
	ContentTypeDocument = "document"
)

// Access tiers governing which identities may read an artifact.
const (
	AccessLevelPublic    = "public"
	AccessLevelCommunity = "community"
	AccessLevelPrivate   = "private"
)

// ValidContentType reports whether t is one of the four recognized kinds.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeImage, ContentTypeVideo, ContentTypeAudio, ContentTypeDocument:
		return true
	}
	return false
}

// ValidAccessLevel reports whether l is a recognized access tier.
func ValidAccessLevel(l string) bool {
	switch l {
	case AccessLevelPublic, AccessLevelCommunity, AccessLevelPrivate:
		return true
	}
	return false
}
