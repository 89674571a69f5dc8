package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"realtime_go/internal/service"
)

type groupCreateRequest struct {
	Name               string  `json:"name"`
	Description        *string `json:"description"`
	IsPrivate          bool    `json:"is_private"`
	AllowMemberInvites bool    `json:"allow_member_invites"`
	MemberIDs          []int64 `json:"member_ids"`
}

func handleCreateGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		conv, err := groupSvc.CreateGroup(r.Context(), user.ID, service.GroupCreateInput{
			Name:               req.Name,
			Description:        req.Description,
			IsPrivate:          req.IsPrivate,
			AllowMemberInvites: req.AllowMemberInvites,
			MemberIDs:          req.MemberIDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleListGroupMembers(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		groupID, err := groupIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		members, err := groupSvc.ListMembers(r.Context(), user.ID, groupID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

type memberRequest struct {
	UserID int64 `json:"user_id"`
}

func handleAddMember(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		groupID, err := groupIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if err := groupSvc.AddMember(r.Context(), user.ID, groupID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRemoveMember(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		groupID, err := groupIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		memberID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		if err := groupSvc.RemoveMember(r.Context(), user.ID, groupID, memberID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handlePromoteMember(groupSvc *service.GroupService) http.HandlerFunc {
	return handleRoleChange(groupSvc.PromoteToAdmin)
}

func handleDemoteMember(groupSvc *service.GroupService) http.HandlerFunc {
	return handleRoleChange(groupSvc.DemoteAdmin)
}

func handleRoleChange(fn func(ctx context.Context, actorID, groupID, userID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		groupID, err := groupIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		memberID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		if err := fn(r.Context(), user.ID, groupID, memberID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		groupID, err := groupIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		if err := groupSvc.DeleteGroup(r.Context(), user.ID, groupID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func groupIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
}
