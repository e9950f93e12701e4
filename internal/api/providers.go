package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
)

// providerCard loads a card and checks that it is of the given type.
func (s *server) providerCard(ctx context.Context, id string, kind card.Type) (card.Card, error) {
	c, err := s.store.GetCard(ctx, id)
	if err != nil {
		return card.Card{}, err
	}
	if c.CardType != kind {
		return card.Card{}, errors.Newf(errors.ErrValidation, "Card is not a %s card: %s", kind, id)
	}
	return c, nil
}

func (s *server) providerStats(w http.ResponseWriter, r *http.Request) {
	kind := card.Type(chi.URLParam(r, "kind"))
	c, err := s.providerCard(r.Context(), chi.URLParam(r, "cardId"), kind)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	snap, err := s.stats.LoadStats(r.Context(), c)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, snap)
}

func (s *server) embyTasks(w http.ResponseWriter, r *http.Request) {
	c, err := s.providerCard(r.Context(), chi.URLParam(r, "cardId"), card.TypeEmby)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	tasks, err := s.stats.EmbyTasks(r.Context(), c)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, tasks)
}

// runEmbyTask looks the task up first so unknown ids fail with 404 and the
// result carries the task name.
func (s *server) runEmbyTask(w http.ResponseWriter, r *http.Request) {
	c, err := s.providerCard(r.Context(), chi.URLParam(r, "cardId"), card.TypeEmby)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	taskID := strings.TrimSpace(chi.URLParam(r, "taskId"))
	tasks, err := s.stats.EmbyTasks(r.Context(), c)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	name, found := "", false
	for _, t := range tasks {
		if t.ID == taskID {
			name, found = t.Name, true
			break
		}
	}
	if !found {
		respondError(w, s.log, errors.Newf(errors.ErrNotFound, "Task not found: %s", taskID))
		return
	}
	res, err := s.stats.RunEmbyTask(r.Context(), c, taskID, name)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.log.Info("emby task %s (%s) triggered on %s", taskID, name, c.ID)
	respondOK(w, s.log, res)
}
