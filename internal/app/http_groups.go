package app

import "net/http"

func (s *HTTPServer) handleDiscussions(w http.ResponseWriter, r *http.Request, session Session, discussionID string, parts []string) {
	if len(parts) == 4 && parts[3] == "replies" && r.Method == http.MethodGet {
		payload, err := s.service.ListReplies(r.Context(), session, discussionID)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[3] == "reactions" && r.Method == http.MethodPost {
		var body struct {
			Emoji string `json:"emoji"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ToggleReaction(r.Context(), session, discussionID, body.Emoji)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && parts[3] == "resolve" && r.Method == http.MethodPost {
		var body struct {
			Resolved *bool `json:"resolved"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resolved := true
		if body.Resolved != nil {
			resolved = *body.Resolved
		}
		payload, err := s.service.ResolveDiscussion(r.Context(), session, discussionID, resolved)
		respond(w, http.StatusOK, payload, err)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListStudyGroups(r.Context(), session)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPost:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateStudyGroup(r.Context(), session, body.Name, body.Description)
			respond(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	groupID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetStudyGroup(r.Context(), session, groupID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPut:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateStudyGroup(r.Context(), session, groupID, body.Name, body.Description)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.DeleteStudyGroup(r.Context(), session, groupID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 {
		switch {
		case parts[3] == "join" && r.Method == http.MethodPost:
			payload, err := s.service.JoinStudyGroup(r.Context(), session, groupID)
			respond(w, http.StatusOK, payload, err)
			return
		case parts[3] == "leave" && r.Method == http.MethodPost:
			payload, err := s.service.LeaveStudyGroup(r.Context(), session, groupID)
			respond(w, http.StatusOK, payload, err)
			return
		case parts[3] == "documents" && r.Method == http.MethodGet:
			payload, err := s.service.ListGroupDocuments(r.Context(), session, groupID)
			respond(w, http.StatusOK, payload, err)
			return
		case parts[3] == "share" && r.Method == http.MethodPost:
			var body struct {
				DocumentID string `json:"documentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.ShareDocument(r.Context(), session, groupID, body.DocumentID)
			respond(w, http.StatusCreated, payload, err)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
