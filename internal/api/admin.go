package api

import (
	"net/http"

	"github.com/google/uuid"

	"kurator/internal/models"
)

// Admin endpoints are served on a separate loopback-only listener, so
// they carry no token auth of their own.

type AddTopicRequest struct {
	Title      string `json:"title" validate:"required"`
	Permission string `json:"permission" validate:"required,lowercase,excludesall=0x20"`
}

type AddTopicResponse struct {
	models.ChatTopic
}

func (a *API) AddTopicHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeValid[AddTopicRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	topic := models.ChatTopic{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Permission: req.Permission,
	}
	if err := a.store.UpsertTopic(topic); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, AddTopicResponse{ChatTopic: topic})
}

func (a *API) AdminListTopicsHandler(w http.ResponseWriter, r *http.Request) {
	topics, err := a.store.ListTopics()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if topics == nil {
		topics = []models.ChatTopic{}
	}
	a.writeJSON(w, http.StatusOK, topics)
}
