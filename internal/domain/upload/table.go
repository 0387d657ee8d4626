// Package upload implements the access rules for the object store.
//
// Object paths embed their owner as a path segment; ownership checks compare
// that segment against the principal's subject id, never against anything in
// the upload itself.
package upload

import (
	"context"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
)

// MaxUploadBytes is the upload size ceiling. The comparison is strictly
// less-than: an object of exactly this size is rejected.
const MaxUploadBytes = 5 * 1024 * 1024

// pathRule binds an object path pattern to the index of its owner segment.
type pathRule struct {
	pattern      string
	ownerSegment int
}

// Governed object path shapes. The patterns are part of the external
// contract with the hosting object store.
var pathRules = []pathRule{
	{pattern: "properties/*/*", ownerSegment: 1},
	{pattern: "agent-photos/*", ownerSegment: 1},
	{pattern: "users/*/*", ownerSegment: 1},
}

// metadata is the shape-validated upload descriptor for writes.
type metadata struct {
	ContentType string `validate:"required,image_mime"`
	Size        int64  `validate:"gte=0,upload_size"`
}

// Table evaluates object-store requests.
// Immutable after construction and safe for concurrent use.
type Table struct {
	resolver principal.Resolver
	validate *validator.Validate
}

// NewTable builds the object-store rule table over the given resolver.
func NewTable(resolver principal.Resolver) *Table {
	v := validator.New(validator.WithRequiredStructEnabled())
	// image_mime: any image/* content type.
	_ = v.RegisterValidation("image_mime", func(fl validator.FieldLevel) bool {
		ct := fl.Field().String()
		return strings.HasPrefix(ct, "image/") && len(ct) > len("image/")
	})
	// upload_size: strictly below the ceiling; an object of exactly
	// MaxUploadBytes is rejected.
	_ = v.RegisterValidation("upload_size", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() < MaxUploadBytes
	})
	return &Table{resolver: resolver, validate: v}
}

// Evaluate decides an object-store request. Reads are public (listing
// photos are the site's marketing content); creates require authentication
// plus a valid image upload below the size ceiling; updates additionally
// require the path owner, and deletes require the path owner.
func (t *Table) Evaluate(ctx context.Context, req access.StorageRequest) access.Decision {
	p := t.resolver.Resolve(ctx, req.Subject)
	return t.EvaluateAs(req, p)
}

// EvaluateAs decides a request for an already-resolved principal.
func (t *Table) EvaluateAs(req access.StorageRequest, p principal.Principal) access.Decision {
	if !req.Operation.Valid() {
		return access.Deny("unknown operation")
	}

	owner, ok := pathOwner(req.Path)
	if !ok {
		return access.Deny("path not governed")
	}

	if req.Operation == access.OperationRead {
		return access.Allow("storage:public-read")
	}

	switch req.Operation {
	case access.OperationCreate:
		if !p.Authenticated() {
			return access.Deny("no allow condition satisfied")
		}
		if !t.validUpload(req) {
			return access.Deny("upload validation failed")
		}
		return access.Allow("storage:authenticated-upload")

	case access.OperationUpdate:
		if !p.Authenticated() || owner != p.Subject {
			return access.Deny("no allow condition satisfied")
		}
		// Replacing an object is still an upload; the same content
		// constraints apply.
		if !t.validUpload(req) {
			return access.Deny("upload validation failed")
		}
		return access.Allow("storage:owner-replace")

	case access.OperationDelete:
		if p.Authenticated() && owner == p.Subject {
			return access.Allow("storage:owner-delete")
		}
		return access.Deny("no allow condition satisfied")
	}

	return access.Deny("no allow condition satisfied")
}

func (t *Table) validUpload(req access.StorageRequest) bool {
	return t.validate.Struct(metadata{ContentType: req.ContentType, Size: req.Size}) == nil
}

// pathOwner extracts the owner subject id embedded in a governed object
// path. The second return is false for paths outside the governed shapes.
func pathOwner(objectPath string) (string, bool) {
	for _, rule := range pathRules {
		matched, err := path.Match(rule.pattern, objectPath)
		if err != nil || !matched {
			continue
		}
		segments := strings.Split(objectPath, "/")
		if rule.ownerSegment >= len(segments) {
			continue
		}
		owner := segments[rule.ownerSegment]
		if owner == "" {
			return "", false
		}
		return owner, true
	}
	return "", false
}
