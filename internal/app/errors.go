package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errForbidden(message string) *DomainError {
	if message == "" {
		message = "Access denied"
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func errInsufficientPermission(role, action string) *DomainError {
	return domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSION",
		fmt.Sprintf("Role %s does not permit %s", role, action), nil)
}

func errInvalidRole(role, documentType string, allowed []string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_ROLE",
		fmt.Sprintf("Role %s is not allowed for %s documents", role, documentType),
		map[string]any{"allowedRoles": allowed})
}

func errAlreadyCollaborator() *DomainError {
	return domainError(http.StatusBadRequest, "ALREADY_COLLABORATOR", "User is already a collaborator", nil)
}

func errCollaboratorLimit(documentType string, limit int) *DomainError {
	return domainError(http.StatusBadRequest, "COLLABORATOR_LIMIT_REACHED",
		fmt.Sprintf("A %s document allows at most %d collaborators", documentType, limit), nil)
}

func errCannotRemoveOwner() *DomainError {
	return domainError(http.StatusBadRequest, "CANNOT_REMOVE_OWNER", "The document owner cannot be removed", nil)
}

func errCannotChangeOwnerRole() *DomainError {
	return domainError(http.StatusBadRequest, "CANNOT_CHANGE_OWNER_ROLE", "The document owner's role cannot be changed", nil)
}

func errTokenInvalid() *DomainError {
	return domainError(http.StatusBadRequest, "TOKEN_INVALID", "Invitation token is invalid", nil)
}

func errTokenExpired() *DomainError {
	return domainError(http.StatusBadRequest, "TOKEN_EXPIRED", "Invitation token has expired", nil)
}

func errTokenMismatch() *DomainError {
	return domainError(http.StatusForbidden, "TOKEN_MISMATCH", "Invitation was issued to a different user", nil)
}

func errCollaborationExpired(documentType string) *DomainError {
	return domainError(http.StatusForbidden, "COLLABORATION_EXPIRED",
		fmt.Sprintf("Collaboration on this %s document has expired", documentType), nil)
}

func errUnknownDocumentType(documentType string) *DomainError {
	return domainError(http.StatusBadRequest, "UNKNOWN_DOCUMENT_TYPE",
		fmt.Sprintf("Unknown document type %q", documentType), nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}
