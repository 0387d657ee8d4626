// Package http serves the decision API.
//
// The API accepts request descriptors from the hosting platform and answers
// with an allow/deny boolean. Rule names and deny reasons stay in the audit
// trail; the wire response never carries them.
//
// # Endpoints
//
//	POST /v1/decisions          - evaluate a document-store request
//	POST /v1/storage/decisions  - evaluate an object-store request
//	GET  /v1/audit/recent       - recent audit trail records
//	GET  /health                - component health
//	GET  /metrics               - Prometheus metrics
//
// When API keys are configured, the decision and audit endpoints require
// an Authorization: Bearer header; health and metrics stay open.
package http
