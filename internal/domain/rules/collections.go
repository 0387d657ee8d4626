package rules

import (
	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
)

// Document field names used by ownership and reference checks.
// Ownership always compares against the existing document (or the document
// id for profile collections), never against a claimed value in the
// proposed write.
const (
	fieldOwnerID = "ownerId"
	fieldUserID  = "userId"
	fieldAgentID = "agentId"
	fieldViews   = "views"
	fieldSavedBy = "savedBy"
)

// usersRules governs the users collection: profile documents are
// self-service. Reads require authentication; writes require ownership,
// where the document id is the owning subject.
func usersRules() ruleSet {
	return ruleSet{
		access.OperationRead: {
			{name: "users:authenticated-read", allow: func(_ access.Request, p principal.Principal) bool {
				return p.Authenticated()
			}},
		},
		access.OperationCreate: {{name: "users:self-write", allow: profileOwner}},
		access.OperationUpdate: {{name: "users:self-write", allow: profileOwner}},
		access.OperationDelete: {{name: "users:self-write", allow: profileOwner}},
	}
}

// agentsRules governs the agents collection: profiles are public marketing
// content, writable only by the owning subject while it holds an elevated
// role.
//
// The elevated-role gate is self-referential: the role comes from the
// subject's own users profile, which the users rules let the subject write.
// An authenticated user can therefore stage its own elevation. That gap is
// preserved deliberately; see DESIGN.md before tightening it, since closing
// it changes who is allowed to become an agent.
func agentsRules() ruleSet {
	elevatedOwner := condition{name: "agents:elevated-owner", allow: func(req access.Request, p principal.Principal) bool {
		return profileOwner(req, p) && p.Elevated()
	}}
	return ruleSet{
		access.OperationRead: {
			{name: "agents:public-read", allow: alwaysAllow},
		},
		access.OperationCreate: {elevatedOwner},
		access.OperationUpdate: {elevatedOwner},
		access.OperationDelete: {elevatedOwner},
	}
}

// propertiesRules governs listings. Reads are public. Creates require
// authentication only. Updates allow the owner a full write, and allow any
// principal two narrowly field-scoped writes: incrementing the view counter
// by exactly one, and toggling exactly one subject in the saved-by set.
// Deletes require ownership.
func propertiesRules() ruleSet {
	return ruleSet{
		access.OperationRead: {
			{name: "properties:public-read", allow: alwaysAllow},
		},
		access.OperationCreate: {
			{name: "properties:authenticated-create", allow: func(_ access.Request, p principal.Principal) bool {
				return p.Authenticated()
			}},
		},
		access.OperationUpdate: {
			{name: "properties:owner-write", allow: propertyOwner},
			{name: "properties:view-increment", allow: viewIncrement},
			{name: "properties:saved-by-toggle", allow: savedByToggle},
		},
		access.OperationDelete: {
			{name: "properties:owner-write", allow: propertyOwner},
		},
	}
}

// inquiriesRules governs buyer inquiries. An inquiry is visible only to its
// buyer and its target agent; the target agent or an admin may update it
// (status changes); only an admin may delete it. Admins get no special read
// grant; that is intentional.
func inquiriesRules() ruleSet {
	return ruleSet{
		access.OperationRead: {
			{name: "inquiries:buyer-read", allow: existingFieldMatchesSubject(fieldUserID)},
			{name: "inquiries:agent-read", allow: existingFieldMatchesSubject(fieldAgentID)},
		},
		access.OperationCreate: {
			{name: "inquiries:authenticated-create", allow: func(_ access.Request, p principal.Principal) bool {
				return p.Authenticated()
			}},
		},
		access.OperationUpdate: {
			{name: "inquiries:agent-update", allow: existingFieldMatchesSubject(fieldAgentID)},
			{name: "inquiries:admin-update", allow: adminOnly},
		},
		access.OperationDelete: {
			{name: "inquiries:admin-delete", allow: adminOnly},
		},
	}
}

// propertyViewsRules governs the anonymous analytics collection, which is
// deliberately open in every direction.
func propertyViewsRules() ruleSet {
	open := []condition{{name: "propertyViews:open", allow: alwaysAllow}}
	return ruleSet{
		access.OperationRead:   open,
		access.OperationCreate: open,
		access.OperationUpdate: open,
		access.OperationDelete: open,
	}
}

func alwaysAllow(_ access.Request, _ principal.Principal) bool { return true }

// profileOwner grants when the document id is the principal's own subject.
func profileOwner(req access.Request, p principal.Principal) bool {
	return p.Authenticated() && req.DocumentID == p.Subject
}

// propertyOwner grants when the existing document's ownerId matches the
// principal. On create there is no existing document, so ownership falls to
// the proposed document, but properties only gate create on
// authentication, so this path only matters for update and delete.
func propertyOwner(req access.Request, p principal.Principal) bool {
	if !p.Authenticated() {
		return false
	}
	doc := req.Existing
	if doc == nil {
		return false
	}
	owner, ok := doc.String(fieldOwnerID)
	return ok && owner == p.Subject
}

// adminOnly grants admins regardless of document contents.
func adminOnly(_ access.Request, p principal.Principal) bool {
	return p.Admin()
}

// existingFieldMatchesSubject grants when the named field of the existing
// document equals the principal's subject id.
func existingFieldMatchesSubject(field string) func(access.Request, principal.Principal) bool {
	return func(req access.Request, p principal.Principal) bool {
		if !p.Authenticated() || req.Existing == nil {
			return false
		}
		v, ok := req.Existing.String(field)
		return ok && v == p.Subject
	}
}

// viewIncrement grants an update whose change set is exactly {views} and
// whose new counter is the old counter plus one. Any other field change, a
// decrease, or a jump by more than one falls through to ownership.
func viewIncrement(req access.Request, _ principal.Principal) bool {
	if req.Existing == nil || req.Proposed == nil {
		return false
	}
	if !changedOnly(req, fieldViews) {
		return false
	}
	return viewsIncrementedByOne(req.Existing[fieldViews], req.Proposed[fieldViews])
}

// savedByToggle grants an update whose change set is exactly {savedBy} and
// whose new value is a list differing from the old one by exactly one
// element (a single add or a single remove).
//
// Bootstrap (any list accepted) applies only when no document exists at
// the target path. A document that predates the field gets the add case
// against an empty list, so the first toggle on it may establish exactly
// one element; anything larger is bulk tampering.
func savedByToggle(req access.Request, _ principal.Principal) bool {
	if req.Proposed == nil {
		return false
	}
	if !changedOnly(req, fieldSavedBy) {
		return false
	}
	if req.Existing == nil {
		return singleElementChange(nil, req.Proposed[fieldSavedBy])
	}
	existing := req.Existing[fieldSavedBy]
	if existing == nil {
		existing = []any{}
	}
	return singleElementChange(existing, req.Proposed[fieldSavedBy])
}

// changedOnly reports whether the change set between existing and proposed
// is exactly {field}.
func changedOnly(req access.Request, field string) bool {
	changed := document.ChangedFields(req.Existing, req.Proposed)
	return len(changed) == 1 && changed[0] == field
}
