// Package guard is the single checkpoint through which every
// tool-capable request passes. It chains the mode allowlist, the
// workspace tool allowlist, the policy DSL, the permission broker, path
// containment against workspace scopes, and the quarantine decision.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/pathsec"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
	"github.com/Geo-fs/NeroAI/internal/domain/policy"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
)

// Decision reasons the guard returns verbatim to callers.
const (
	ReasonGranted            = "Granted"
	ReasonSafeMode           = "Safe mode blocks this permission"
	ReasonQuarantineRequired = "Quarantine required"
	ReasonNoPolicy           = "No policy rules"
	ReasonPolicyDenied       = "Policy denied action"
	ReasonAllowed            = "Allowed"
)

// elevated lists the permissions safe mode blocks outright.
var elevated = map[permission.Permission]struct{}{
	permission.WebSearch:      {},
	permission.ScreenCapture:  {},
	permission.ClipboardRead:  {},
	permission.ClipboardWrite: {},
	permission.ProcessRun:     {},
}

// modeToolAllowlist is the static per-mode tool allowlist.
var modeToolAllowlist = map[string]map[string]struct{}{
	run.ModeChat: {
		"file_read": {},
	},
	run.ModeWorkflow: {
		"file_read":       {},
		"file_write":      {},
		"file_list":       {},
		"file_read_batch": {},
	},
}

// Identity is the active identity snapshot the guard evaluates under:
// the active profile and workspace with their policy texts. Loaded per
// request, never cached across requests.
type Identity struct {
	ProfileName   string
	ProfilePolicy string

	HasWorkspace    bool
	WorkspaceName   string
	WorkspaceScopes []string
	WorkspaceTools  []string
	WorkspacePolicy string
}

// PolicyText concatenates the profile and workspace policy rules in
// evaluation order.
func (id Identity) PolicyText() string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(id.ProfilePolicy) != "" {
		parts = append(parts, id.ProfilePolicy)
	}
	if strings.TrimSpace(id.WorkspacePolicy) != "" {
		parts = append(parts, id.WorkspacePolicy)
	}
	return strings.Join(parts, "\n")
}

// IdentityLoader reads the active identity from the store.
type IdentityLoader interface {
	ActiveIdentity(ctx context.Context) (Identity, error)
}

// PermissionChecker is the broker surface the guard depends on. Check
// consumes a matching once grant; Validate answers the same question
// without consuming anything.
type PermissionChecker interface {
	Check(ctx context.Context, perm permission.Permission, sessionID, path string) (bool, string, error)
	Validate(ctx context.Context, perm permission.Permission, sessionID, path string) (bool, string, error)
}

// Decision is the outcome of AssertAllowed. Quarantine is set when the
// request is allowed only through the quarantine copy path; only
// read-family tools may honor it, write-family callers must treat it as
// a denial.
type Decision struct {
	Allowed    bool
	Reason     string
	Quarantine bool
}

// Guard composes the checks. All methods are safe for concurrent use.
type Guard struct {
	broker   PermissionChecker
	identity IdentityLoader
	policies *policy.Cache
	logger   *slog.Logger
}

// New creates a Guard. logger may be nil.
func New(broker PermissionChecker, identity IdentityLoader, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		broker:   broker,
		identity: identity,
		policies: policy.NewCache(),
		logger:   logger,
	}
}

// AssertAllowed decides whether the permission is usable right now.
// Safe mode blocks the elevated set outright. Otherwise the broker
// decides, and a supplied path is re-checked against active workspace
// scopes; a workspace miss turns into a quarantine signal when
// quarantine mode is on, a denial otherwise.
func (g *Guard) AssertAllowed(ctx context.Context, perm permission.Permission, sessionID, path string, safeMode, quarantineMode bool) (Decision, error) {
	return g.decide(ctx, perm, sessionID, path, safeMode, quarantineMode, true)
}

// ValidatePath is AssertAllowed without grant consumption. The runner
// uses it for the path arguments beyond the one the consuming check
// already covered, so one once grant spans a whole batch call.
func (g *Guard) ValidatePath(ctx context.Context, perm permission.Permission, sessionID, path string, safeMode, quarantineMode bool) (Decision, error) {
	return g.decide(ctx, perm, sessionID, path, safeMode, quarantineMode, false)
}

func (g *Guard) decide(ctx context.Context, perm permission.Permission, sessionID, path string, safeMode, quarantineMode, consume bool) (Decision, error) {
	if safeMode {
		if _, ok := elevated[perm]; ok {
			return Decision{Reason: ReasonSafeMode}, nil
		}
	}

	check := g.broker.Validate
	if consume {
		check = g.broker.Check
	}
	allowed, reason, err := check(ctx, perm, sessionID, path)
	if err != nil {
		return Decision{}, err
	}
	if !allowed {
		return Decision{Reason: reason}, nil
	}

	if path != "" {
		ident, err := g.identity.ActiveIdentity(ctx)
		if err != nil {
			return Decision{}, err
		}
		if ident.HasWorkspace && len(ident.WorkspaceScopes) > 0 {
			ok, wsReason := pathsec.WithinScopes(path, ident.WorkspaceScopes)
			if !ok {
				if quarantineMode {
					return Decision{Allowed: true, Reason: ReasonQuarantineRequired, Quarantine: true}, nil
				}
				return Decision{Reason: fmt.Sprintf("Workspace scope denied: %s", wsReason)}, nil
			}
		}
	}
	return Decision{Allowed: true, Reason: ReasonGranted}, nil
}

// IsToolAllowedInMode checks the static per-mode allowlist.
func (g *Guard) IsToolAllowedInMode(tool, mode string) (bool, string) {
	if _, ok := modeToolAllowlist[mode][tool]; !ok {
		return false, fmt.Sprintf("Tool %s is not allowed in mode %s", tool, mode)
	}
	return true, ReasonAllowed
}

// IsToolAllowedInWorkspace checks the active workspace's explicit tool
// allowlist. No workspace, or a workspace without an allowlist, imposes
// no constraint.
func (g *Guard) IsToolAllowedInWorkspace(ctx context.Context, tool string) (bool, string, error) {
	ident, err := g.identity.ActiveIdentity(ctx)
	if err != nil {
		return false, "", err
	}
	if !ident.HasWorkspace {
		return true, "No workspace constraint", nil
	}
	if len(ident.WorkspaceTools) == 0 {
		return true, "No workspace tool allowlist", nil
	}
	for _, t := range ident.WorkspaceTools {
		if t == tool {
			return true, ReasonAllowed, nil
		}
	}
	return false, fmt.Sprintf("Tool %s not allowed by workspace", tool), nil
}

// PolicyAllowsAction evaluates the combined profile and workspace policy
// text for the action. Empty text allows; text with parse errors is
// present but unusable and denies with the first error; deny wins; no
// decision falls through to allow.
func (g *Guard) PolicyAllowsAction(ctx context.Context, action string, confirmed bool) (bool, string, error) {
	ident, err := g.identity.ActiveIdentity(ctx)
	if err != nil {
		return false, "", err
	}
	text := ident.PolicyText()
	if strings.TrimSpace(text) == "" {
		return true, ReasonNoPolicy, nil
	}
	parsed := g.policies.Parse(text)
	if len(parsed.Errors) > 0 {
		return false, fmt.Sprintf("Policy parse errors: %s", parsed.Errors[0]), nil
	}
	effect, decided := policy.EvaluateEffect(parsed.Effects, action, ident.ProfileName, ident.WorkspaceName, confirmed)
	if decided && effect == policy.EffectDeny {
		g.logger.Debug("policy denied action", "action", action, "profile", ident.ProfileName, "workspace", ident.WorkspaceName)
		return false, ReasonPolicyDenied, nil
	}
	return true, ReasonAllowed, nil
}

// PolicyLimits applies the policy's limit overrides to the base limits
// map under the current identity with confirmed=false. A policy with
// parse errors overrides nothing.
func (g *Guard) PolicyLimits(ctx context.Context, base map[string]int) (map[string]int, error) {
	ident, err := g.identity.ActiveIdentity(ctx)
	if err != nil {
		return nil, err
	}
	text := ident.PolicyText()
	if strings.TrimSpace(text) == "" {
		return base, nil
	}
	parsed := g.policies.Parse(text)
	if len(parsed.Errors) > 0 {
		return base, nil
	}
	return policy.ApplyLimitOverrides(base, parsed.Limits, ident.ProfileName, ident.WorkspaceName, false), nil
}
