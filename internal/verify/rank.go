package verify

import (
	"context"
	"fmt"

	"github.com/C4T-BuT-S4D/vouch/internal/metrics"
)

// GrantPath names how a member came to be granted the rank.
type GrantPath string

const (
	PathEmail    GrantPath = "email"
	PathApproval GrantPath = "approval"
	PathManual   GrantPath = "manual"
	PathRegrant  GrantPath = "regrant"
	PathRejoin   GrantPath = "rejoin"
)

func (p GrantPath) describe() string {
	switch p {
	case PathEmail:
		return "email verification"
	case PathApproval:
		return "administrator approval"
	case PathManual:
		return "manual verification"
	case PathRegrant:
		return "re-grant on request"
	case PathRejoin:
		return "re-grant on rejoin"
	default:
		return string(p)
	}
}

// grantRank assigns the verified rank. Unless silent, the member, the admin
// chat and the announce chat are told about it.
func (e *Engine) grantRank(ctx context.Context, r *Reply, memberID int64, name string, path GrantPath, silent bool) error {
	grantCtx, cancel := e.external(ctx)
	defer cancel()

	if err := e.granter.GrantRank(grantCtx, memberID); err != nil {
		return fmt.Errorf("granting rank: %w", err)
	}
	metrics.RankGrants.WithLabelValues(string(path)).Inc()
	r.Granted = true

	if silent {
		return nil
	}

	who := mention(name, memberID)
	switch path {
	case PathRegrant:
		r.toMember(msgWelcomeBack)
		r.toAdmins(fmt.Sprintf("%s was previously verified, and has been given the verified rank again through request.", who))
	default:
		r.toMember(msgWelcome)
		r.toAdmins(fmt.Sprintf("%s is now verified (%s).", who, path.describe()))
		r.toAnnounce(fmt.Sprintf("Welcome %s!", displayName(name, "our new member")))
	}
	return nil
}
