package navconfig

import (
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
)

const (
	// MaxBackgroundImageBytes bounds the decoded background image.
	MaxBackgroundImageBytes = 512 * 1024
	// MaxSearchIconLength bounds a search engine icon string.
	MaxSearchIconLength = 2048

	// DefaultSessionTimeoutMinutes applies when the timeout is missing or not positive.
	DefaultSessionTimeoutMinutes = 480

	BackgroundGradient = "gradient"
	BackgroundImage    = "image"
)

// Nav is the nav file: groups and the cards inside them.
type Nav struct {
	Version string       `json:"version" yaml:"version"`
	Groups  []card.Group `json:"groups" yaml:"groups"`
	Cards   []card.Card  `json:"cards" yaml:"cards"`
}

// SearchEngine is one entry of the search box.
type SearchEngine struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	SearchURLTemplate string `json:"searchUrlTemplate" yaml:"searchUrlTemplate"`
	LanURL            string `json:"lanUrl,omitempty" yaml:"lanUrl,omitempty"`
	WanURL            string `json:"wanUrl,omitempty" yaml:"wanUrl,omitempty"`
	Icon              string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Template returns the search URL template for mode.
func (e SearchEngine) Template(mode card.NetworkMode) string {
	if t := strings.TrimSpace(e.SearchURLTemplate); t != "" {
		return t
	}
	switch mode {
	case card.NetworkLAN:
		return card.FirstNonBlank(e.LanURL, e.WanURL)
	case card.NetworkWAN:
		return card.FirstNonBlank(e.WanURL, e.LanURL)
	}
	return card.FirstNonBlank(e.LanURL, e.WanURL)
}

// Security controls the admin session.
type Security struct {
	Enabled               bool `json:"enabled" yaml:"enabled"`
	SessionTimeoutMinutes int  `json:"sessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
	RequireAuthForConfig  bool `json:"requireAuthForConfig" yaml:"requireAuthForConfig"`
}

// System is the system file.
type System struct {
	// AdminPassword is a bcrypt hash, never the plain password.
	AdminPassword          string           `json:"adminPassword" yaml:"adminPassword"`
	DefaultSearchEngineID  string           `json:"defaultSearchEngineId" yaml:"defaultSearchEngineId"`
	NetworkModePreference  card.NetworkMode `json:"networkModePreference" yaml:"networkModePreference"`
	SearchEngines          []SearchEngine   `json:"searchEngines" yaml:"searchEngines"`
	Security               Security         `json:"security" yaml:"security"`
	DailySentenceEnabled   bool             `json:"dailySentenceEnabled" yaml:"dailySentenceEnabled"`
	BackgroundType         string           `json:"backgroundType" yaml:"backgroundType"`
	BackgroundImageDataURL string           `json:"backgroundImageDataUrl,omitempty" yaml:"backgroundImageDataUrl,omitempty"`
}

// DefaultSystem returns the system settings used for fields a file leaves
// out. The admin password is left empty.
func DefaultSystem() System {
	return System{
		DefaultSearchEngineID: "bing",
		NetworkModePreference: card.NetworkAuto,
		SearchEngines: []SearchEngine{
			{ID: "bing", Name: "Bing", SearchURLTemplate: "https://www.bing.com/search?q={query}"},
			{ID: "google", Name: "Google", SearchURLTemplate: "https://www.google.com/search?q={query}"},
		},
		Security: Security{
			Enabled:               true,
			SessionTimeoutMinutes: DefaultSessionTimeoutMinutes,
		},
		DailySentenceEnabled: true,
		BackgroundType:       BackgroundGradient,
	}
}

// HashPassword returns the bcrypt hash stored as AdminPassword.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(plain)), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrValidation, "Cannot hash admin password", "")
	}
	return string(h), nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrConfig, format, args...)
}

// NormalizeNav trims ids, normalizes every card and fills card urls.
func NormalizeNav(n *Nav) error {
	for i := range n.Groups {
		n.Groups[i].ID = strings.TrimSpace(n.Groups[i].ID)
		n.Groups[i].Name = strings.TrimSpace(n.Groups[i].Name)
	}
	for i := range n.Cards {
		c, err := card.Normalize(n.Cards[i])
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, errors.Public(err)+" (card "+n.Cards[i].ID+")", "")
		}
		n.Cards[i] = c
	}
	return nil
}

// ValidateNav checks ids, group references and what each card type needs.
func ValidateNav(n Nav) error {
	groups := make(map[string]bool, len(n.Groups))
	for _, g := range n.Groups {
		if g.ID == "" {
			return invalid("Group id is required")
		}
		if groups[g.ID] {
			return invalid("Duplicated group id: %s", g.ID)
		}
		groups[g.ID] = true
		if g.Name == "" {
			return invalid("Group name is required")
		}
	}

	cards := make(map[string]bool, len(n.Cards))
	for _, c := range n.Cards {
		if c.ID == "" {
			return invalid("Card id is required")
		}
		if cards[c.ID] {
			return invalid("Duplicated card id: %s", c.ID)
		}
		cards[c.ID] = true
		if !groups[c.GroupID] {
			return invalid("Card group not found: %s", c.GroupID)
		}
		if c.Name == "" {
			return invalid("Card name is required")
		}
		if c.CardType != card.TypeSSH && c.URL == "" {
			return invalid("Card url is required: %s", c.ID)
		}
		if err := card.Validate(c); err != nil {
			return invalid("%s: %s", errors.Public(err), c.ID)
		}
	}
	return nil
}

// NormalizeSystem lowercases enums, fills defaults and mirrors each search
// engine template into its lan and wan urls.
func NormalizeSystem(s *System) {
	s.AdminPassword = strings.TrimSpace(s.AdminPassword)
	s.DefaultSearchEngineID = strings.TrimSpace(s.DefaultSearchEngineID)
	mode := card.NetworkMode(strings.ToLower(strings.TrimSpace(string(s.NetworkModePreference))))
	if mode == "" {
		mode = card.NetworkAuto
	}
	s.NetworkModePreference = mode

	s.BackgroundType = strings.ToLower(strings.TrimSpace(s.BackgroundType))
	if s.BackgroundType == "" {
		s.BackgroundType = BackgroundGradient
	}
	s.BackgroundImageDataURL = strings.TrimSpace(s.BackgroundImageDataURL)
	if s.Security.SessionTimeoutMinutes <= 0 {
		s.Security.SessionTimeoutMinutes = DefaultSessionTimeoutMinutes
	}
	if s.SearchEngines == nil {
		s.SearchEngines = []SearchEngine{}
	}
	for i := range s.SearchEngines {
		e := &s.SearchEngines[i]
		e.ID = strings.TrimSpace(e.ID)
		e.Name = strings.TrimSpace(e.Name)
		e.SearchURLTemplate = strings.TrimSpace(e.SearchURLTemplate)
		if e.SearchURLTemplate == "" {
			e.SearchURLTemplate = card.FirstNonBlank(e.LanURL, e.WanURL)
		}
		if e.SearchURLTemplate != "" {
			e.LanURL = e.SearchURLTemplate
			e.WanURL = e.SearchURLTemplate
		}
		e.Icon = strings.TrimSpace(e.Icon)
	}
}

// ValidateSystem checks a normalized System.
func ValidateSystem(s System) error {
	if !strings.HasPrefix(s.AdminPassword, "$2") {
		return invalid("adminPassword must be a BCrypt hash")
	}
	if _, err := bcrypt.Cost([]byte(s.AdminPassword)); err != nil {
		return invalid("adminPassword must be a valid BCrypt hash")
	}
	switch s.NetworkModePreference {
	case card.NetworkAuto, card.NetworkLAN, card.NetworkWAN:
	default:
		return invalid("Invalid networkModePreference")
	}
	if s.BackgroundType != BackgroundGradient && s.BackgroundType != BackgroundImage {
		return invalid("Invalid backgroundType")
	}
	if err := ValidateBackgroundImage(s.BackgroundImageDataURL); err != nil {
		return err
	}
	if s.Security.SessionTimeoutMinutes <= 0 {
		return invalid("sessionTimeoutMinutes must be greater than 0")
	}

	ids := make(map[string]bool, len(s.SearchEngines))
	for _, e := range s.SearchEngines {
		if e.ID == "" {
			return invalid("Search engine id is required")
		}
		if ids[e.ID] {
			return invalid("Duplicated search engine id: %s", e.ID)
		}
		ids[e.ID] = true
		if e.Name == "" {
			return invalid("Search engine name is required")
		}
		if e.SearchURLTemplate == "" {
			return invalid("Search engine template is required: %s", e.ID)
		}
		if len(e.Icon) > MaxSearchIconLength {
			return invalid("Search engine icon exceeds max length: %s", e.ID)
		}
	}
	if len(ids) > 0 && !ids[s.DefaultSearchEngineID] {
		return invalid("defaultSearchEngineId not found in searchEngines")
	}
	return nil
}

// ValidateBackgroundImage accepts an empty value or a base64 image data URL
// whose payload decodes to at most MaxBackgroundImageBytes.
func ValidateBackgroundImage(dataURL string) error {
	v := strings.TrimSpace(dataURL)
	if v == "" {
		return nil
	}
	const marker = ";base64,"
	i := strings.Index(v, marker)
	if !strings.HasPrefix(v, "data:image/") || i < 0 {
		return invalid("backgroundImageDataUrl must be data:image/*;base64")
	}
	decoded, err := base64.StdEncoding.DecodeString(v[i+len(marker):])
	if err != nil {
		return invalid("backgroundImageDataUrl is not valid base64")
	}
	if len(decoded) > MaxBackgroundImageBytes {
		return invalid("backgroundImageDataUrl exceeds 512KB")
	}
	return nil
}
