package navconfig

import (
	"strings"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
)

// AdminUpdate is the settings form posted to admin-config.
type AdminUpdate struct {
	NetworkModePreference  string         `json:"networkModePreference"`
	DefaultSearchEngineID  string         `json:"defaultSearchEngineId"`
	DailySentenceEnabled   *bool          `json:"dailySentenceEnabled"`
	BackgroundType         string         `json:"backgroundType"`
	BackgroundImageDataURL string         `json:"backgroundImageDataUrl"`
	SearchEngines          []SearchEngine `json:"searchEngines"`
	Security               *Security      `json:"security"`
	NewAdminPassword       string         `json:"newAdminPassword,omitempty"`
}

func badRequest(msg string) error {
	return errors.New(errors.ErrValidation, msg, "")
}

// Validate rejects a form that would leave the system unusable.
func (u AdminUpdate) Validate() error {
	if u.Security == nil {
		return badRequest("security is required")
	}
	if u.Security.SessionTimeoutMinutes <= 0 {
		return badRequest("sessionTimeoutMinutes must be greater than 0")
	}
	if len(u.SearchEngines) == 0 {
		return badRequest("searchEngines cannot be empty")
	}
	if _, err := card.ParseNetworkMode(u.NetworkModePreference); err != nil {
		return err
	}
	bg := strings.ToLower(strings.TrimSpace(u.BackgroundType))
	if bg == "" {
		return badRequest("backgroundType is required")
	}
	if bg != BackgroundGradient && bg != BackgroundImage {
		return badRequest("backgroundType must be gradient or image")
	}
	if err := ValidateBackgroundImage(u.BackgroundImageDataURL); err != nil {
		return errors.WrapWithCode(err, errors.ErrValidation, errors.Public(err), "")
	}
	found := false
	for _, e := range u.SearchEngines {
		if len(strings.TrimSpace(e.Icon)) > MaxSearchIconLength {
			return badRequest("searchEngine icon exceeds max length")
		}
		if strings.TrimSpace(e.ID) == strings.TrimSpace(u.DefaultSearchEngineID) {
			found = true
		}
	}
	if !found {
		return badRequest("defaultSearchEngineId not found in searchEngines")
	}
	return nil
}

// Apply validates u and copies it onto s, hashing a new admin password when one is given.
func (u AdminUpdate) Apply(s *System) error {
	if err := u.Validate(); err != nil {
		return err
	}
	mode, _ := card.ParseNetworkMode(u.NetworkModePreference)
	s.NetworkModePreference = mode
	s.DefaultSearchEngineID = strings.TrimSpace(u.DefaultSearchEngineID)
	s.DailySentenceEnabled = u.DailySentenceEnabled == nil || *u.DailySentenceEnabled
	s.BackgroundType = strings.ToLower(strings.TrimSpace(u.BackgroundType))
	s.BackgroundImageDataURL = strings.TrimSpace(u.BackgroundImageDataURL)

	engines := make([]SearchEngine, 0, len(u.SearchEngines))
	for _, e := range u.SearchEngines {
		tmpl := strings.TrimSpace(e.SearchURLTemplate)
		engines = append(engines, SearchEngine{
			ID:                strings.TrimSpace(e.ID),
			Name:              strings.TrimSpace(e.Name),
			SearchURLTemplate: tmpl,
			LanURL:            tmpl,
			WanURL:            tmpl,
			Icon:              strings.TrimSpace(e.Icon),
		})
	}
	s.SearchEngines = engines
	s.Security = *u.Security

	if pw := strings.TrimSpace(u.NewAdminPassword); pw != "" {
		h, err := HashPassword(pw)
		if err != nil {
			return err
		}
		s.AdminPassword = h
	}
	return nil
}

// AdminView is System without the password hash, for the settings page.
type AdminView struct {
	NetworkModePreference  card.NetworkMode `json:"networkModePreference"`
	DefaultSearchEngineID  string           `json:"defaultSearchEngineId"`
	DailySentenceEnabled   bool             `json:"dailySentenceEnabled"`
	BackgroundType         string           `json:"backgroundType"`
	BackgroundImageDataURL string           `json:"backgroundImageDataUrl,omitempty"`
	SearchEngines          []SearchEngine   `json:"searchEngines"`
	Security               Security         `json:"security"`
}

// Admin returns the settings page view of s.
func (s System) Admin() AdminView {
	engines := make([]SearchEngine, 0, len(s.SearchEngines))
	for _, e := range s.SearchEngines {
		engines = append(engines, SearchEngine{
			ID:                e.ID,
			Name:              e.Name,
			SearchURLTemplate: e.Template(card.NetworkAuto),
			Icon:              e.Icon,
		})
	}
	return AdminView{
		NetworkModePreference:  s.NetworkModePreference,
		DefaultSearchEngineID:  s.DefaultSearchEngineID,
		DailySentenceEnabled:   s.DailySentenceEnabled,
		BackgroundType:         s.BackgroundType,
		BackgroundImageDataURL: s.BackgroundImageDataURL,
		SearchEngines:          engines,
		Security:               s.Security,
	}
}

// PublicEngine is a search engine with its template resolved for one client.
type PublicEngine struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	SearchURLTemplate string `json:"searchUrlTemplate"`
	Icon              string `json:"icon,omitempty"`
}

// PublicView is what any client may read about the system settings.
type PublicView struct {
	NetworkModePreference  card.NetworkMode `json:"networkModePreference"`
	ResolvedNetworkMode    card.NetworkMode `json:"resolvedNetworkMode"`
	DefaultSearchEngineID  string           `json:"defaultSearchEngineId"`
	SearchEngines          []PublicEngine   `json:"searchEngines"`
	SecurityEnabled        bool             `json:"securityEnabled"`
	RequireAuthForConfig   bool             `json:"requireAuthForConfig"`
	DailySentenceEnabled   bool             `json:"dailySentenceEnabled"`
	BackgroundType         string           `json:"backgroundType"`
	BackgroundImageDataURL string           `json:"backgroundImageDataUrl,omitempty"`
}

// Public resolves the network mode for clientIP and returns the public view.
func (s System) Public(clientIP string) PublicView {
	mode := card.ResolveNetworkMode(s.NetworkModePreference, clientIP)
	engines := make([]PublicEngine, 0, len(s.SearchEngines))
	for _, e := range s.SearchEngines {
		engines = append(engines, PublicEngine{ID: e.ID, Name: e.Name, SearchURLTemplate: e.Template(mode), Icon: e.Icon})
	}
	return PublicView{
		NetworkModePreference:  s.NetworkModePreference,
		ResolvedNetworkMode:    mode,
		DefaultSearchEngineID:  s.DefaultSearchEngineID,
		SearchEngines:          engines,
		SecurityEnabled:        s.Security.Enabled,
		RequireAuthForConfig:   s.Security.RequireAuthForConfig,
		DailySentenceEnabled:   s.DailySentenceEnabled,
		BackgroundType:         s.BackgroundType,
		BackgroundImageDataURL: s.BackgroundImageDataURL,
	}
}
