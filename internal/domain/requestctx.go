package domain

// RequestContext carries the per-request facts the protocol needs for
// authorization decisions. It is passed explicitly into every entry point
// instead of living in ambient/global state.
type RequestContext struct {
	// UserID is the authenticated platform account, empty for anonymous
	// token-holding recipients.
	UserID string
	// VerifiedEmail is the email the platform's own authentication has
	// already proven for UserID; it feeds the trusted-identity shortcut.
	VerifiedEmail string
	ClientIP      string
	Origin        string
}

func (rc RequestContext) Authenticated() bool {
	return rc.UserID != ""
}

// ActorType classifies the caller relative to a deal's creator for audit
// entries.
func (rc RequestContext) ActorType(creatorID string) AuditActorType {
	if rc.UserID != "" && rc.UserID == creatorID {
		return AuditActorCreator
	}
	return AuditActorRecipient
}
