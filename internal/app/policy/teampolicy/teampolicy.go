// internal/app/policy/teampolicy/teampolicy.go
package teampolicy

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipChecker reports whether a user belongs to a team.
type MembershipChecker interface {
	IsMember(ctx context.Context, teamID, userID primitive.ObjectID) (bool, error)
}

// CanActForTeam reports whether the current request user may sign up or drop
// on behalf of teamID:
//   - staff (admin, instructor, TA) always can
//   - students only for teams they belong to
//
// Returns an error if the membership check fails, so callers can tell
// "not authorized" (false, nil) from "database error" (false, err).
func CanActForTeam(ctx context.Context, teams MembershipChecker, r *http.Request, teamID primitive.ObjectID) (bool, error) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false, nil
	}
	if authz.IsStaff(r) {
		return true, nil
	}
	if !authz.IsStudent(r) {
		return false, nil
	}
	return teams.IsMember(ctx, teamID, uid)
}
