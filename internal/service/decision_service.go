// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/uuid"

	celeval "github.com/parcelgate/parcelgate/internal/adapter/outbound/cel"
	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/audit"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
	"github.com/parcelgate/parcelgate/internal/domain/rules"
	"github.com/parcelgate/parcelgate/internal/domain/upload"
)

// OverlayRule is an operator-authored deny condition loaded from
// configuration. A matching condition blocks the request before the base
// table runs; overlays never grant.
type OverlayRule struct {
	Name      string
	Condition string
}

// overlay is a compiled deny condition.
type overlay struct {
	name string
	prg  celgo.Program
}

// CompileOverlays validates and compiles the configured overlay rules.
// A rule that fails validation aborts startup rather than silently running
// without it.
func CompileOverlays(ev *celeval.Evaluator, rules []OverlayRule) ([]overlay, error) {
	compiled := make([]overlay, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("overlay rule has no name")
		}
		if err := ev.ValidateExpression(r.Condition); err != nil {
			return nil, fmt.Errorf("overlay %q: %w", r.Name, err)
		}
		prg, err := ev.Compile(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", r.Name, err)
		}
		compiled = append(compiled, overlay{name: r.Name, prg: prg})
	}
	return compiled, nil
}

// DecisionService evaluates access requests.
//
// For every request it resolves the principal fresh, runs the deny
// overlays, then consults the base rule table, and finally appends a
// record to the audit trail. Nothing is cached between evaluations, so a
// role change in the directory takes effect on the very next request.
type DecisionService struct {
	documents *rules.Table
	storage   *upload.Table
	resolver  principal.Resolver
	evaluator *celeval.Evaluator
	overlays  []overlay
	trail     *AuditService
	logger    *slog.Logger
}

// NewDecisionService wires the decision pipeline. trail may be nil when no
// audit trail is configured (the check subcommand).
func NewDecisionService(
	documents *rules.Table,
	storage *upload.Table,
	resolver principal.Resolver,
	evaluator *celeval.Evaluator,
	overlays []overlay,
	trail *AuditService,
	logger *slog.Logger,
) *DecisionService {
	return &DecisionService{
		documents: documents,
		storage:   storage,
		resolver:  resolver,
		evaluator: evaluator,
		overlays:  overlays,
		trail:     trail,
		logger:    logger,
	}
}

// EvaluateDocument decides a document-store request.
func (s *DecisionService) EvaluateDocument(ctx context.Context, req access.Request) access.Decision {
	p := s.resolver.Resolve(ctx, req.Subject)

	decision, matched := s.overlayCheck(celeval.DocumentActivation(req, p))
	if !matched {
		decision = s.documents.EvaluateAs(req, p)
	}

	s.record(ctx, audit.Record{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Kind:        audit.KindDocument,
		Operation:   string(req.Operation),
		Collection:  req.Collection,
		DocumentID:  req.DocumentID,
		Subject:     req.Subject,
		Role:        string(p.Role),
		Decision:    decisionLabel(decision),
		Rule:        decision.Rule,
		Reason:      decision.Reason,
		Fingerprint: audit.FingerprintDocument(req),
	})

	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("evaluated document request",
			"operation", req.Operation,
			"collection", req.Collection,
			"document_id", req.DocumentID,
			"subject", req.Subject,
			"decision", decisionLabel(decision),
			"rule", decision.Rule,
			"proposed", audit.RedactDocument(req.Proposed),
		)
	}

	return decision
}

// EvaluateStorage decides an object-store request.
func (s *DecisionService) EvaluateStorage(ctx context.Context, req access.StorageRequest) access.Decision {
	p := s.resolver.Resolve(ctx, req.Subject)

	decision, matched := s.overlayCheck(celeval.StorageActivation(req, p))
	if !matched {
		decision = s.storage.EvaluateAs(req, p)
	}

	s.record(ctx, audit.Record{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Kind:        audit.KindStorage,
		Operation:   string(req.Operation),
		Path:        req.Path,
		Subject:     req.Subject,
		Role:        string(p.Role),
		Decision:    decisionLabel(decision),
		Rule:        decision.Rule,
		Reason:      decision.Reason,
		Fingerprint: audit.FingerprintStorage(req),
	})

	return decision
}

// overlayCheck runs the deny overlays against an activation. It returns
// the deny decision and true when an overlay matched. An overlay that
// errors denies: a broken lockout rule must not reopen what it was meant
// to close.
func (s *DecisionService) overlayCheck(activation map[string]any) (access.Decision, bool) {
	for _, o := range s.overlays {
		matched, err := s.evaluator.Evaluate(o.prg, activation)
		if err != nil {
			s.logger.Warn("overlay evaluation failed, denying request",
				"overlay", o.name,
				"error", err,
			)
			return access.DenyRule(o.name, "overlay evaluation error"), true
		}
		if matched {
			return access.DenyRule(o.name, "denied by overlay"), true
		}
	}
	return access.Decision{}, false
}

// record appends a record to the audit trail if one is configured.
func (s *DecisionService) record(_ context.Context, rec audit.Record) {
	if s.trail == nil {
		return
	}
	s.trail.Record(rec)
}

func decisionLabel(d access.Decision) string {
	if d.Allowed {
		return audit.DecisionAllow
	}
	return audit.DecisionDeny
}

// Compile-time interface verification.
var _ access.Engine = (*DecisionService)(nil)
