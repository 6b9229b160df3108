// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/stratatopics/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles carried in the shared session.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleTA         = "ta"
	RoleStudent    = "student"
)

// StaffRoles may manage topics and act on behalf of any team.
var StaffRoles = []string{RoleAdmin, RoleInstructor, RoleTA}

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false, so ok=true always means a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session: fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	return HasRole(r, RoleAdmin)
}

// IsStaff reports whether the current user is an admin, instructor or TA.
// Staff may sign up and drop any team; students only teams they belong to.
func IsStaff(r *http.Request) bool {
	return HasAnyRole(r, StaffRoles...)
}

// IsStudent reports whether the current request's user is a student.
func IsStudent(r *http.Request) bool {
	return HasRole(r, RoleStudent)
}
