// Package rbac maps collaborator roles to the actions they may perform on a
// document. It is the single permission table consumed by every handler.
package rbac

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	// RoleAdmin is an elevated collaborator role that carries the owner's
	// action set. The owner's own entry stays untouchable regardless.
	RoleAdmin Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionComment Action = "comment"
	ActionDelete  Action = "delete"
	ActionManage  Action = "manage"
	ActionInvite  Action = "invite"
)

// Permissions returns the complete action set for a role.
func Permissions(role Role) []Action {
	switch role {
	case RoleOwner, RoleAdmin:
		return []Action{ActionRead, ActionWrite, ActionComment, ActionDelete, ActionManage, ActionInvite}
	case RoleEditor:
		return []Action{ActionRead, ActionWrite, ActionComment}
	case RoleViewer:
		return []Action{ActionRead, ActionComment}
	default:
		return nil
	}
}

// Can reports whether a role may perform an action.
func Can(role Role, action Action) bool {
	for _, allowed := range Permissions(role) {
		if allowed == action {
			return true
		}
	}
	return false
}

// Valid reports whether role is one of the known collaborator roles.
func Valid(role Role) bool {
	switch role {
	case RoleOwner, RoleEditor, RoleViewer, RoleAdmin:
		return true
	default:
		return false
	}
}
