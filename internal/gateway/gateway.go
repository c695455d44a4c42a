// Package gateway orchestrates the request pipeline: auth guard, rate
// limiter, schema guard, router, audit logger. No request reaches the
// router without passing every guard before it; the ordering here is the
// only place that invariant lives.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/assistdeck/gateway/internal/audit"
	"github.com/assistdeck/gateway/internal/authguard"
	"github.com/assistdeck/gateway/internal/errors"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/metrics"
	"github.com/assistdeck/gateway/internal/ratelimit"
	"github.com/assistdeck/gateway/internal/router"
	"github.com/assistdeck/gateway/internal/schemaguard"
	"github.com/assistdeck/gateway/internal/trust"
)

// Request is a gateway invocation.
type Request struct {
	// Target is the symbolic downstream handler name.
	Target string `json:"target"`

	// Action is the operation name passed to the handler.
	Action string `json:"action"`

	// Payload is the handler payload, passed through verbatim.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Operation optionally carries a data-mutation instruction that the
	// schema guard must screen.
	Operation string `json:"operation,omitempty"`

	// Credential and SourceName identify the caller (from headers).
	Credential string `json:"-"`
	SourceName string `json:"-"`
}

// Response is the gateway's answer.
type Response struct {
	// Status is the HTTP-equivalent status of the decision.
	Status int

	// Body is the raw handler result on success.
	Body interface{}

	// Err is the terminal pipeline error, nil on success.
	Err *errors.ServiceError
}

// Config carries the per-process gateway settings. It is constructed
// once at startup and treated as immutable; request handling never reads
// ambient environment state.
type Config struct {
	// TestingMode disables auth, rate limiting and schema protection.
	// Every bypass is logged.
	TestingMode bool
}

// Gateway is the pipeline orchestrator.
type Gateway struct {
	cfg      Config
	auth     *authguard.Guard
	limiter  *ratelimit.Limiter
	schema   *schemaguard.Guard
	routes   *router.Table
	registry *trust.Registry
	auditor  *audit.Logger
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// New wires a gateway from its components.
func New(cfg Config, auth *authguard.Guard, limiter *ratelimit.Limiter, schema *schemaguard.Guard,
	routes *router.Table, registry *trust.Registry, auditor *audit.Logger, m *metrics.Metrics,
	logger *logging.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		auth:     auth,
		limiter:  limiter,
		schema:   schema,
		routes:   routes,
		registry: registry,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}
}

// Handle runs one request through the pipeline. Exactly one audit entry
// is recorded per request regardless of where it terminates.
func (g *Gateway) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	entryID := audit.NewEntryID()

	ctx = logging.WithTraceID(ctx, entryID)
	ctx = logging.WithSource(ctx, req.SourceName)

	var callRecord *audit.CallRecord

	defer func() {
		if r := recover(); r != nil {
			g.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"panic": r,
			}).Error("pipeline panic")
			resp = g.fail(errors.Internal("internal error", nil))
		}

		elapsed := time.Since(start)
		entry := audit.Entry{
			ID:         entryID,
			Source:     req.SourceName,
			Target:     req.Target,
			Action:     req.Action,
			StartedAt:  start,
			DurationMs: elapsed.Milliseconds(),
			Outcome:    outcomeFor(resp.Err),
		}
		if resp.Err != nil {
			entry.ErrorMessage = resp.Err.Message
		}
		if !g.auditor.Record(entry, callRecord) {
			g.metrics.AuditQueueDrops.Inc()
		}

		g.metrics.RequestsTotal.WithLabelValues(string(entry.Outcome)).Inc()
		g.metrics.RequestDuration.Observe(elapsed.Seconds())
	}()

	// AUTHENTICATED
	if err := g.auth.Authenticate(ctx, authguard.Credential{
		Token:      req.Credential,
		SourceName: req.SourceName,
	}); err != nil {
		return g.fail(err)
	}

	// RATE_CHECKED
	if g.cfg.TestingMode {
		g.logger.WithContext(ctx).Debug("rate limit bypassed in testing mode")
	} else {
		tier := g.registry.TierFor(req.SourceName)
		endpoint := req.Target + ":" + req.Action
		if err := g.limiter.Allow(ctx, req.SourceName, endpoint, tier); err != nil {
			g.metrics.RateLimitRejections.Inc()
			return g.fail(err)
		}
	}

	// SCHEMA_CHECKED (only when the request carries a mutation)
	if operation, ok := g.operationText(req); ok {
		if err := g.schema.Check(ctx, req.Target, operation); err != nil {
			if se := errors.GetServiceError(err); se != nil && se.Code == errors.CodeOperationBlocked {
				if rule, ok := se.Details["rule"].(string); ok {
					g.metrics.SchemaBlocks.WithLabelValues(rule).Inc()
				}
			}
			return g.fail(err)
		}
	}

	// ROUTED
	routeStart := time.Now()
	result, err := g.routes.Route(ctx, req.Target, req.Action, req.Payload)
	if result != nil {
		callRecord = &audit.CallRecord{
			EntryID:     entryID,
			Target:      req.Target,
			Action:      req.Action,
			PayloadSize: len(req.Payload),
			StartedAt:   routeStart,
			DurationMs:  result.Duration.Milliseconds(),
			Success:     err == nil,
		}
	}
	if err != nil {
		return g.fail(err)
	}

	// COMPLETED
	return Response{Status: http.StatusOK, Body: result.Output}
}

// operationText extracts the mutation text the schema guard must screen:
// the explicit Operation field, an "operation" field embedded in the
// payload, or anything targeting the schema manager.
func (g *Gateway) operationText(req Request) (string, bool) {
	if req.Operation != "" {
		return req.Operation, true
	}
	if len(req.Payload) > 0 {
		if op := gjson.GetBytes(req.Payload, "operation"); op.Exists() {
			return op.String(), true
		}
	}
	if req.Target == schemaguard.SchemaManagerTarget {
		return string(req.Payload), true
	}
	return "", false
}

// fail converts a pipeline error into the terminal response. Unexpected
// error types are masked as InternalError so no internal detail leaks.
func (g *Gateway) fail(err error) Response {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal error", err)
	}
	if se.Code == errors.CodeInternal && se.Err != nil {
		g.logger.WithError(se.Err).Error("internal pipeline error")
	}
	return Response{Status: se.HTTPStatus, Err: se}
}

func outcomeFor(se *errors.ServiceError) audit.Outcome {
	if se == nil {
		return audit.OutcomeCompleted
	}
	switch se.Code {
	case errors.CodeUnauthorized:
		return audit.OutcomeUnauthorized
	case errors.CodeRateLimitExceeded:
		return audit.OutcomeRateLimited
	case errors.CodeOperationBlocked:
		return audit.OutcomeSchemaProtection
	case errors.CodeSchemaValidation:
		return audit.OutcomeSchemaRejected
	case errors.CodeUnknownTarget:
		return audit.OutcomeNotFound
	case errors.CodeDownstream:
		return audit.OutcomeDownstreamError
	default:
		return audit.OutcomeError
	}
}
