// Package card defines the Card and Group domain types shared by the server,
// the stats providers, the prober and the terminal client.
//
// Cards are read-only to every core component: the prober, the stats
// clients and the SSH relay only ever receive copies.
package card

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// Type is the kind of service a card points at.
type Type string

const (
	TypeGeneric      Type = "generic"
	TypeSSH          Type = "ssh"
	TypeEmby         Type = "emby"
	TypeQBittorrent  Type = "qbittorrent"
	TypeTransmission Type = "transmission"
)

// IsStats reports whether cards of this type open a provider stats window.
func (t Type) IsStats() bool {
	return t == TypeEmby || t == TypeQBittorrent || t == TypeTransmission
}

// OpenMode controls how a card is opened.
type OpenMode string

const (
	OpenIframe OpenMode = "iframe"
	OpenNewTab OpenMode = "newtab"
	OpenAuto   OpenMode = "auto"
)

// SSHAuthMode selects the credential an SSH card expects at connect time.
type SSHAuthMode string

const (
	AuthPassword   SSHAuthMode = "password"
	AuthPrivateKey SSHAuthMode = "privatekey"
)

// DefaultSSHPort is used when a card has no usable port.
const DefaultSSHPort = 22

// Card is a single navigable service entry.
type Card struct {
	ID                   string      `json:"id" yaml:"id"`
	GroupID              string      `json:"groupId" yaml:"groupId"`
	Name                 string      `json:"name" yaml:"name"`
	URL                  string      `json:"url" yaml:"url"`
	LanURL               string      `json:"lanUrl,omitempty" yaml:"lanUrl,omitempty"`
	WanURL               string      `json:"wanUrl,omitempty" yaml:"wanUrl,omitempty"`
	OpenMode             OpenMode    `json:"openMode" yaml:"openMode"`
	CardType             Type        `json:"cardType" yaml:"cardType"`
	SSHHost              string      `json:"sshHost,omitempty" yaml:"sshHost,omitempty"`
	SSHPort              int         `json:"sshPort,omitempty" yaml:"sshPort,omitempty"`
	SSHUsername          string      `json:"sshUsername,omitempty" yaml:"sshUsername,omitempty"`
	SSHAuthMode          SSHAuthMode `json:"sshAuthMode,omitempty" yaml:"sshAuthMode,omitempty"`
	EmbyAPIKey           string      `json:"embyApiKey,omitempty" yaml:"embyApiKey,omitempty"`
	QBittorrentUsername  string      `json:"qbittorrentUsername,omitempty" yaml:"qbittorrentUsername,omitempty"`
	QBittorrentPassword  string      `json:"qbittorrentPassword,omitempty" yaml:"qbittorrentPassword,omitempty"`
	TransmissionUsername string      `json:"transmissionUsername,omitempty" yaml:"transmissionUsername,omitempty"`
	TransmissionPassword string      `json:"transmissionPassword,omitempty" yaml:"transmissionPassword,omitempty"`
	Icon                 string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description          string      `json:"description,omitempty" yaml:"description,omitempty"`
	OrderIndex           int         `json:"orderIndex" yaml:"orderIndex"`
	Enabled              bool        `json:"enabled" yaml:"enabled"`
	HealthCheckEnabled   bool        `json:"healthCheckEnabled" yaml:"healthCheckEnabled"`
}

// Group is an ordered container of cards.
type Group struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	OrderIndex int    `json:"orderIndex" yaml:"orderIndex"`
}

// OrderItem moves a card to a new position.
type OrderItem struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"orderIndex"`
}

// BaseURL returns the first non-blank of url, lanUrl and wanUrl without a trailing slash.
func (c Card) BaseURL() string {
	return strings.TrimRight(FirstNonBlank(c.URL, c.LanURL, c.WanURL), "/")
}

// ResolveURL picks the address for a network mode.
// LAN prefers lanUrl, WAN prefers wanUrl; both fall back to url and then the other side.
func (c Card) ResolveURL(mode NetworkMode) string {
	if mode == NetworkLAN {
		return FirstNonBlank(c.LanURL, c.URL, c.WanURL)
	}
	return FirstNonBlank(c.WanURL, c.URL, c.LanURL)
}

// WithResolvedURL returns a copy whose URL is resolved for mode.
func (c Card) WithResolvedURL(mode NetworkMode) Card {
	c.URL = c.ResolveURL(mode)
	return c
}

// IsProbeTarget reports whether the card is eligible for reachability probing.
func (c Card) IsProbeTarget() bool {
	if !c.Enabled || !c.HealthCheckEnabled {
		return false
	}
	return IsHTTPURL(c.URL)
}

// Port returns the SSH port, defaulting to 22.
func (c Card) Port() int {
	return NormalizeSSHPort(c.SSHPort)
}

// IsHTTPURL reports whether raw parses as an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// FirstNonBlank returns the first value that is not empty after trimming.
func FirstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeOpenMode lowercases mode, maps new_tab to newtab and defaults to iframe.
func NormalizeOpenMode(mode string) (OpenMode, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "":
		return OpenIframe, nil
	case "new_tab", "newtab":
		return OpenNewTab, nil
	case "iframe", "auto":
		return OpenMode(m), nil
	}
	return "", errors.Newf(errors.ErrValidation, "Invalid openMode: %s", mode)
}

// NormalizeType lowercases t and defaults to generic.
func NormalizeType(t string) (Type, error) {
	v := Type(strings.ToLower(strings.TrimSpace(t)))
	switch v {
	case "":
		return TypeGeneric, nil
	case TypeGeneric, TypeSSH, TypeEmby, TypeQBittorrent, TypeTransmission:
		return v, nil
	}
	return "", errors.Newf(errors.ErrValidation, "Invalid cardType: %s", t)
}

// NormalizeSSHAuthMode defaults to password and accepts private_key as an alias.
func NormalizeSSHAuthMode(mode string) (SSHAuthMode, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "":
		return AuthPassword, nil
	case "private_key", "privatekey":
		return AuthPrivateKey, nil
	case "password":
		return AuthPassword, nil
	}
	return "", errors.Newf(errors.ErrValidation, "Invalid sshAuthMode: %s", mode)
}

// NormalizeSSHPort returns 22 for missing or out-of-range ports.
func NormalizeSSHPort(port int) int {
	if port <= 0 || port > 65535 {
		return DefaultSSHPort
	}
	return port
}

var policy = bluemonday.StrictPolicy()

// sanitizeText drops any markup but keeps plain characters such as "&" readable.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

// Normalize trims text fields, strips markup from display text and fills
// in defaults. It returns a validation error for unknown enum values.
func Normalize(c Card) (Card, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.GroupID = strings.TrimSpace(c.GroupID)
	c.Name = sanitizeText(c.Name)
	c.Description = sanitizeText(c.Description)
	c.Icon = strings.TrimSpace(c.Icon)
	c.LanURL = strings.TrimSpace(c.LanURL)
	c.WanURL = strings.TrimSpace(c.WanURL)
	c.URL = FirstNonBlank(c.URL, c.LanURL, c.WanURL)
	c.SSHHost = strings.TrimSpace(c.SSHHost)
	c.SSHUsername = strings.TrimSpace(c.SSHUsername)

	var err error
	if c.OpenMode, err = NormalizeOpenMode(string(c.OpenMode)); err != nil {
		return c, err
	}
	if c.CardType, err = NormalizeType(string(c.CardType)); err != nil {
		return c, err
	}
	if c.CardType == TypeSSH {
		if c.SSHAuthMode, err = NormalizeSSHAuthMode(string(c.SSHAuthMode)); err != nil {
			return c, err
		}
		c.SSHPort = NormalizeSSHPort(c.SSHPort)
	}
	return c, nil
}

// Validate checks that a normalized card has what its type needs.
func Validate(c Card) error {
	if c.Name == "" {
		return errors.New(errors.ErrValidation, "Card name is required", "")
	}
	if c.GroupID == "" {
		return errors.New(errors.ErrValidation, "Card groupId is required", "")
	}
	if c.CardType == TypeSSH {
		if c.SSHHost == "" {
			return errors.New(errors.ErrValidation, "SSH host is required", "")
		}
		if c.SSHUsername == "" {
			return errors.New(errors.ErrValidation, "SSH username is required", "")
		}
		return nil
	}
	if FirstNonBlank(c.URL, c.LanURL, c.WanURL) == "" {
		return errors.New(errors.ErrValidation, "Card url is required", "Set url, lanUrl or wanUrl.")
	}
	return nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and collapses everything else into single dashes.
func Slug(name string, fallback string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

// GenerateID derives a unique id from name. exists reports whether a candidate is taken.
func GenerateID(name, fallback string, exists func(string) bool) string {
	slug := Slug(name, fallback)
	candidate := slug
	for n := 2; exists != nil && exists(candidate); n++ {
		candidate = fmt.Sprintf("%s-%d", slug, n)
	}
	return candidate + "-" + uuid.NewString()[:6]
}
