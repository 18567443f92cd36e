package app

import (
	"net/http"
	"strconv"
)

const maxUploadBytes = 20 << 20

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, documentID string, parts []string) {
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetDocument(r.Context(), session, documentID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPut:
			var body DocumentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateDocument(r.Context(), session, documentID, body)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.DeleteDocument(r.Context(), session, documentID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "upload" && r.Method == http.MethodPost {
		s.handleUpload(w, r, session, documentID)
		return
	}

	if len(parts) == 4 && parts[3] == "download" && r.Method == http.MethodGet {
		payload, err := s.service.FileDownloadURL(r.Context(), session, documentID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[3] == "versions" && r.Method == http.MethodGet {
		payload, err := s.service.ListVersions(r.Context(), session, documentID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 5 && parts[3] == "versions" && r.Method == http.MethodGet {
		version, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "version must be an integer", nil)
			return
		}
		payload, err := s.service.GetVersion(r.Context(), session, documentID, version)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[3] == "permissions" && r.Method == http.MethodGet {
		payload, err := s.service.DocumentPermissions(r.Context(), session, documentID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[3] == "discussions" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListDiscussions(r.Context(), session, documentID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPost:
			var body struct {
				Content  string  `json:"content"`
				ParentID *string `json:"parentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateDiscussion(r.Context(), session, documentID, body.Content, body.ParentID)
			respond(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) >= 4 && parts[3] == "collaboration" {
		s.handleCollaboration(w, r, session, documentID, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCollaboration(w http.ResponseWriter, r *http.Request, session Session, documentID string, parts []string) {
	if len(parts) == 4 && r.Method == http.MethodGet {
		payload, err := s.service.ListCollaboration(r.Context(), session, documentID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 5 && parts[4] == "collaborators" && r.Method == http.MethodGet {
		payload, err := s.service.ListCollaboration(r.Context(), session, documentID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 5 && r.Method == http.MethodPost {
		switch parts[4] {
		case "enable":
			payload, err := s.service.EnableCollaboration(r.Context(), session, documentID)
			respond(w, http.StatusOK, payload, err)
			return
		case "disable":
			payload, err := s.service.DisableCollaboration(r.Context(), session, documentID)
			respond(w, http.StatusOK, payload, err)
			return
		case "invite":
			var body struct {
				Email   string `json:"email"`
				Role    string `json:"role"`
				Message string `json:"message"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.Invite(r.Context(), session, documentID, body.Email, body.Role, body.Message)
			respond(w, http.StatusCreated, payload, err)
			return
		}
	}

	if len(parts) == 6 && parts[4] == "collaborators" {
		userID := parts[5]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Role string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateCollaboratorRole(r.Context(), session, documentID, userID, body.Role)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.RemoveCollaborator(r.Context(), session, documentID, userID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCollaborate(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 4 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	token := parts[3]

	switch parts[2] {
	case "accept":
		payload, err := s.service.AcceptInvitation(r.Context(), session, token)
		respond(w, http.StatusOK, payload, err)
	case "reject":
		payload, err := s.service.RejectInvitation(r.Context(), session, token)
		respond(w, http.StatusOK, payload, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not parse multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "A file field is required", nil)
		return
	}
	defer file.Close()

	payload, err := s.service.AttachFile(
		r.Context(),
		session,
		documentID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	respond(w, http.StatusCreated, payload, err)
}
