// Package schemaguard blocks or defers validation of data-mutating
// operations before they reach storage. A static rule table catches
// outright destructive statements; borderline operations are delegated to
// an external validator, with rejected ones handed to a fixer for
// asynchronous remediation.
package schemaguard

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/assistdeck/gateway/internal/errors"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/rules"
	"github.com/assistdeck/gateway/internal/worker"
)

// SchemaManagerTarget is the target name of the schema-management
// collaborator. Operations routed to it skip delegated validation, since
// the collaborator validates its own input.
const SchemaManagerTarget = "schema-manager"

// remediationTimeout bounds each fire-and-forget fixer call.
const remediationTimeout = 30 * time.Second

// Validator approves or rejects an operation that passed the rule table.
type Validator interface {
	Validate(ctx context.Context, operation string) error
}

// Fixer is asked to remediate an operation the validator rejected.
type Fixer interface {
	RequestFix(ctx context.Context, operation, reason string) error
}

// Config configures the schema guard.
type Config struct {
	// TestingMode disables both the rule scan and delegated validation.
	TestingMode bool
}

// Guard screens data-mutation operations.
type Guard struct {
	cfg       Config
	table     *rules.Table
	validator Validator
	fixer     Fixer
	pool      *worker.Pool
	logger    *logging.Logger

	// fixThrottle caps remediation dispatch so a burst of rejected
	// operations cannot storm the fixer collaborator.
	fixThrottle *rate.Limiter
}

// New creates a schema guard. validator and fixer may be nil, in which
// case delegated validation and remediation are skipped.
func New(cfg Config, table *rules.Table, validator Validator, fixer Fixer, pool *worker.Pool, logger *logging.Logger) *Guard {
	return &Guard{
		cfg:         cfg,
		table:       table,
		validator:   validator,
		fixer:       fixer,
		pool:        pool,
		logger:      logger,
		fixThrottle: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Check screens the operation destined for target. It returns nil when
// the operation is clear, DangerousOperationBlocked when it matches the
// rule table, and SchemaValidationFailed when the delegated validator
// rejects it. The rule scan applies regardless of caller trust tier.
func (g *Guard) Check(ctx context.Context, target, operation string) error {
	if g.cfg.TestingMode {
		g.logger.LogSecurityEvent(ctx, "schema_guard_bypass_testing_mode", map[string]interface{}{
			"target": target,
		})
		return nil
	}

	if rule, matched := g.table.Match(operation); matched {
		g.logger.LogSecurityEvent(ctx, "dangerous_operation_blocked", map[string]interface{}{
			"target":   target,
			"pattern":  rule.Pattern.String(),
			"rule":     rule.Description,
			"severity": string(rule.Severity),
		})
		return errors.DangerousOperationBlocked(rule.Pattern.String(), rule.Description)
	}

	// The schema manager validates its own operations.
	if target == SchemaManagerTarget || g.validator == nil {
		return nil
	}

	if err := g.validator.Validate(ctx, operation); err != nil {
		autoFix := g.dispatchRemediation(ctx, operation, err.Error())
		return errors.SchemaValidationFailed(err.Error(), autoFix)
	}

	return nil
}

// dispatchRemediation hands the rejected operation to the fixer on the
// background pool. The result never affects the current response; the
// return value only reports whether a fix was requested at all.
func (g *Guard) dispatchRemediation(ctx context.Context, operation, reason string) bool {
	if g.fixer == nil {
		return false
	}
	if !g.fixThrottle.Allow() {
		g.logger.WithContext(ctx).Warn("remediation throttled, fix not requested")
		return false
	}

	traceID := logging.GetTraceID(ctx)
	submitted := g.pool.Submit(func() {
		// Detached from the request context: the caller may be gone by
		// the time the fix request runs.
		fixCtx, cancel := context.WithTimeout(context.Background(), remediationTimeout)
		defer cancel()
		fixCtx = logging.WithTraceID(fixCtx, traceID)

		if err := g.fixer.RequestFix(fixCtx, operation, reason); err != nil {
			g.logger.WithContext(fixCtx).WithError(err).Warn("remediation request failed")
			return
		}
		g.logger.WithContext(fixCtx).Info("remediation requested")
	})
	return submitted
}
