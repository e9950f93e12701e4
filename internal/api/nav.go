package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/storage"
	"github.com/nexusnav/nexusnav/internal/wire"
)

func (s *server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, groups)
}

func (s *server) createGroup(w http.ResponseWriter, r *http.Request) {
	var in card.Group
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, s.log, err)
		return
	}
	var out card.Group
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = s.store.CreateGroup(ctx, in)
		return err
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, out)
}

func (s *server) updateGroup(w http.ResponseWriter, r *http.Request) {
	var in card.Group
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, s.log, err)
		return
	}
	in.ID = chi.URLParam(r, "groupId")
	var out card.Group
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = s.store.UpdateGroup(ctx, in)
		return err
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, out)
}

func (s *server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "groupId")
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		return s.store.DeleteGroup(ctx, id)
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, nil)
}

// cardFilter reads groupId, q and enabled from the query string.
func cardFilter(r *http.Request) (storage.CardFilter, error) {
	q := r.URL.Query()
	f := storage.CardFilter{
		GroupID: strings.TrimSpace(q.Get("groupId")),
		Query:   strings.TrimSpace(q.Get("q")),
	}
	if raw := strings.TrimSpace(q.Get("enabled")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.Newf(errors.ErrValidation, "Invalid enabled value: %s", raw)
		}
		f.Enabled = &v
	}
	return f, nil
}

// resolved rewrites card urls for the caller's network mode.
func (s *server) resolved(r *http.Request, cards ...card.Card) ([]card.Card, error) {
	mode, err := s.networkMode(r)
	if err != nil {
		return nil, err
	}
	out := make([]card.Card, len(cards))
	for i, c := range cards {
		out[i] = c.WithResolvedURL(mode)
	}
	return out, nil
}

func (s *server) respondCard(w http.ResponseWriter, r *http.Request, c card.Card) {
	out, err := s.resolved(r, c)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, out[0])
}

func (s *server) listCards(w http.ResponseWriter, r *http.Request) {
	f, err := cardFilter(r)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	cards, err := s.store.ListCards(r.Context(), f)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	out, err := s.resolved(r, cards...)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, out)
}

func (s *server) getCard(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCard(r.Context(), chi.URLParam(r, "cardId"))
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.respondCard(w, r, c)
}

func (s *server) createCard(w http.ResponseWriter, r *http.Request) {
	in := card.Card{Enabled: true, HealthCheckEnabled: true}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, s.log, err)
		return
	}
	var out card.Card
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = s.store.CreateCard(ctx, in)
		return err
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.respondCard(w, r, out)
}

// updateCard replaces the card. Provider secrets left blank keep their
// stored values so clients never have to echo them back.
func (s *server) updateCard(w http.ResponseWriter, r *http.Request) {
	in := card.Card{Enabled: true, HealthCheckEnabled: true}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, s.log, err)
		return
	}
	in.ID = chi.URLParam(r, "cardId")
	var out card.Card
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		prev, err := s.store.GetCard(ctx, in.ID)
		if err != nil {
			return err
		}
		out, err = s.store.UpdateCard(ctx, keepSecrets(in, prev))
		return err
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.respondCard(w, r, out)
}

func keepSecrets(in, prev card.Card) card.Card {
	in.EmbyAPIKey = card.FirstNonBlank(in.EmbyAPIKey, prev.EmbyAPIKey)
	in.QBittorrentPassword = card.FirstNonBlank(in.QBittorrentPassword, prev.QBittorrentPassword)
	in.TransmissionPassword = card.FirstNonBlank(in.TransmissionPassword, prev.TransmissionPassword)
	return in
}

func (s *server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardId")
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		return s.store.DeleteCard(ctx, id)
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, nil)
}

func (s *server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var items []card.OrderItem
	if err := decodeJSON(r, &items); err != nil {
		respondError(w, s.log, err)
		return
	}
	err := s.nav.Mutate(r.Context(), func(ctx context.Context) error {
		return s.store.UpdateOrder(ctx, items)
	})
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, wire.OrderResult{Updated: len(items)})
}

func (s *server) reload(w http.ResponseWriter, r *http.Request) {
	prune, _ := strconv.ParseBool(r.URL.Query().Get("prune"))
	res, err := s.nav.Import(r.Context(), prune)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.log.Info("config reload: %s (prune=%t)", res.Message, prune)
	respondOK(w, s.log, wire.ReloadResult{Changed: res.Changed, Message: res.Message, Prune: prune})
}

func (s *server) importNav(w http.ResponseWriter, r *http.Request) {
	var doc navconfig.Nav
	if err := decodeJSON(r, &doc); err != nil {
		respondError(w, s.log, err)
		return
	}
	counts, err := s.nav.ImportNav(r.Context(), doc)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.log.Info("nav imported: %d groups, %d cards", counts.Groups, counts.Cards)
	respondOK(w, s.log, wire.ImportResult{Groups: counts.Groups, Cards: counts.Cards, Message: "Nav config imported"})
}

func (s *server) exportNav(w http.ResponseWriter, r *http.Request) {
	doc, err := s.nav.Document(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, doc)
}
