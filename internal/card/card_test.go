package card

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/errors"
)

func TestIsProbeTarget(t *testing.T) {
	tests := []struct {
		name string
		card Card
		want bool
	}{
		{"enabled http", Card{Enabled: true, HealthCheckEnabled: true, URL: "http://example.test"}, true},
		{"enabled https", Card{Enabled: true, HealthCheckEnabled: true, URL: "https://nas.lan:5001/"}, true},
		{"disabled", Card{Enabled: false, HealthCheckEnabled: true, URL: "http://example.test"}, false},
		{"health check off", Card{Enabled: true, HealthCheckEnabled: false, URL: "http://example.test"}, false},
		{"ssh scheme", Card{Enabled: true, HealthCheckEnabled: true, URL: "ssh://box"}, false},
		{"relative", Card{Enabled: true, HealthCheckEnabled: true, URL: "/grafana"}, false},
		{"empty", Card{Enabled: true, HealthCheckEnabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.card.IsProbeTarget())
		})
	}
}

func TestResolveURL(t *testing.T) {
	c := Card{URL: "http://default", LanURL: "http://lan", WanURL: "https://wan"}
	assert.Equal(t, "http://lan", c.ResolveURL(NetworkLAN))
	assert.Equal(t, "https://wan", c.ResolveURL(NetworkWAN))

	onlyURL := Card{URL: "http://default"}
	assert.Equal(t, "http://default", onlyURL.ResolveURL(NetworkLAN))
	assert.Equal(t, "http://default", onlyURL.ResolveURL(NetworkWAN))

	onlyWan := Card{WanURL: "https://wan"}
	assert.Equal(t, "https://wan", onlyWan.ResolveURL(NetworkLAN))

	resolved := c.WithResolvedURL(NetworkLAN)
	assert.Equal(t, "http://lan", resolved.URL)
	assert.Equal(t, "http://default", c.URL, "original must not change")
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://qb:8080", Card{URL: "http://qb:8080/"}.BaseURL())
	assert.Equal(t, "http://lan", Card{URL: "  ", LanURL: "http://lan"}.BaseURL())
	assert.Equal(t, "", Card{}.BaseURL())
}

func TestNormalizeOpenMode(t *testing.T) {
	for in, want := range map[string]OpenMode{
		"":        OpenIframe,
		"IFRAME":  OpenIframe,
		"new_tab": OpenNewTab,
		"newtab":  OpenNewTab,
		"auto":    OpenAuto,
	} {
		got, err := NormalizeOpenMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeOpenMode("popup")
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestNormalizeSSHAuthMode(t *testing.T) {
	m, err := NormalizeSSHAuthMode("private_key")
	require.NoError(t, err)
	assert.Equal(t, AuthPrivateKey, m)

	m, err = NormalizeSSHAuthMode("")
	require.NoError(t, err)
	assert.Equal(t, AuthPassword, m)

	_, err = NormalizeSSHAuthMode("kerberos")
	assert.Error(t, err)
}

func TestNormalizeSSHPort(t *testing.T) {
	assert.Equal(t, 22, NormalizeSSHPort(0))
	assert.Equal(t, 22, NormalizeSSHPort(-1))
	assert.Equal(t, 22, NormalizeSSHPort(70000))
	assert.Equal(t, 2222, NormalizeSSHPort(2222))
}

func TestNormalize(t *testing.T) {
	c, err := Normalize(Card{
		Name:        "  <b>Movies & TV</b> ",
		Description: "<script>alert(1)</script>media",
		GroupID:     " media ",
		LanURL:      " http://emby.lan ",
		CardType:    "EMBY",
		OpenMode:    "new_tab",
	})
	require.NoError(t, err)

	assert.Equal(t, "Movies & TV", c.Name)
	assert.Equal(t, "media", c.Description)
	assert.Equal(t, "media", c.GroupID)
	assert.Equal(t, "http://emby.lan", c.URL, "url falls back to lanUrl")
	assert.Equal(t, TypeEmby, c.CardType)
	assert.Equal(t, OpenNewTab, c.OpenMode)
}

func TestNormalize_SSHDefaults(t *testing.T) {
	c, err := Normalize(Card{Name: "box", GroupID: "g", CardType: "ssh", SSHHost: "box", SSHUsername: "root"})
	require.NoError(t, err)
	assert.Equal(t, AuthPassword, c.SSHAuthMode)
	assert.Equal(t, 22, c.SSHPort)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		card    Card
		wantErr string
	}{
		{"ok generic", Card{Name: "a", GroupID: "g", CardType: TypeGeneric, URL: "http://a"}, ""},
		{"no name", Card{GroupID: "g", URL: "http://a"}, "name is required"},
		{"no group", Card{Name: "a", URL: "http://a"}, "groupId is required"},
		{"no url", Card{Name: "a", GroupID: "g", CardType: TypeGeneric}, "url is required"},
		{"ssh without host", Card{Name: "a", GroupID: "g", CardType: TypeSSH, SSHUsername: "u"}, "SSH host is required"},
		{"ssh without user", Card{Name: "a", GroupID: "g", CardType: TypeSSH, SSHHost: "h"}, "SSH username is required"},
		{"ssh needs no url", Card{Name: "a", GroupID: "g", CardType: TypeSSH, SSHHost: "h", SSHUsername: "u"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.card)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, errors.Public(err), tt.wantErr)
		})
	}
}

func TestGenerateID(t *testing.T) {
	taken := map[string]bool{"plex": true, "plex-2": true}
	id := GenerateID("Plex", "card", func(s string) bool { return taken[s] })

	assert.True(t, strings.HasPrefix(id, "plex-3-"), id)
	assert.Len(t, id, len("plex-3-")+6)

	fallback := GenerateID("!!!", "group", nil)
	assert.True(t, strings.HasPrefix(fallback, "group-"), fallback)
}

func TestTypeIsStats(t *testing.T) {
	assert.True(t, TypeEmby.IsStats())
	assert.True(t, TypeQBittorrent.IsStats())
	assert.True(t, TypeTransmission.IsStats())
	assert.False(t, TypeSSH.IsStats())
	assert.False(t, TypeGeneric.IsStats())
}
