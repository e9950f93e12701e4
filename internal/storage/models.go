package storage

import (
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
)

type groupRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	Name       string `gorm:"not null;size:128"`
	OrderIndex int    `gorm:"not null;index"`
	UpdatedAt  time.Time
}

func (groupRow) TableName() string { return "groups" }

type cardRow struct {
	ID                   string `gorm:"primaryKey;size:64"`
	GroupID              string `gorm:"column:group_id;not null;index;size:64"`
	Name                 string `gorm:"not null;size:128"`
	URL                  string `gorm:"column:url;not null;size:2048"`
	LanURL               string `gorm:"column:lan_url;size:2048"`
	WanURL               string `gorm:"column:wan_url;size:2048"`
	OpenMode             string `gorm:"column:open_mode;not null;size:32"`
	CardType             string `gorm:"column:card_type;not null;size:32"`
	SSHHost              string `gorm:"column:ssh_host;size:255"`
	SSHPort              int    `gorm:"column:ssh_port"`
	SSHUsername          string `gorm:"column:ssh_username;size:128"`
	SSHAuthMode          string `gorm:"column:ssh_auth_mode;size:32"`
	EmbyAPIKey           string `gorm:"column:emby_api_key;size:256"`
	QBittorrentUsername  string `gorm:"column:qbittorrent_username;size:128"`
	QBittorrentPassword  string `gorm:"column:qbittorrent_password;size:256"`
	TransmissionUsername string `gorm:"column:transmission_username;size:128"`
	TransmissionPassword string `gorm:"column:transmission_password;size:256"`
	Icon                 string `gorm:"size:128"`
	Description          string `gorm:"size:512"`
	OrderIndex           int    `gorm:"column:order_index;not null;index"`
	Enabled              bool   `gorm:"not null"`
	HealthCheckEnabled   bool   `gorm:"column:health_check_enabled;not null"`
	UpdatedAt            time.Time
}

func (cardRow) TableName() string { return "cards" }

type metaRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (metaRow) TableName() string { return "app_meta" }

func toGroupRow(g card.Group) groupRow {
	return groupRow{ID: g.ID, Name: g.Name, OrderIndex: g.OrderIndex}
}

func (r groupRow) group() card.Group {
	return card.Group{ID: r.ID, Name: r.Name, OrderIndex: r.OrderIndex}
}

func toCardRow(c card.Card) cardRow {
	return cardRow{
		ID:                   c.ID,
		GroupID:              c.GroupID,
		Name:                 c.Name,
		URL:                  c.URL,
		LanURL:               c.LanURL,
		WanURL:               c.WanURL,
		OpenMode:             string(c.OpenMode),
		CardType:             string(c.CardType),
		SSHHost:              c.SSHHost,
		SSHPort:              c.SSHPort,
		SSHUsername:          c.SSHUsername,
		SSHAuthMode:          string(c.SSHAuthMode),
		EmbyAPIKey:           c.EmbyAPIKey,
		QBittorrentUsername:  c.QBittorrentUsername,
		QBittorrentPassword:  c.QBittorrentPassword,
		TransmissionUsername: c.TransmissionUsername,
		TransmissionPassword: c.TransmissionPassword,
		Icon:                 c.Icon,
		Description:          c.Description,
		OrderIndex:           c.OrderIndex,
		Enabled:              c.Enabled,
		HealthCheckEnabled:   c.HealthCheckEnabled,
	}
}

func (r cardRow) card() card.Card {
	return card.Card{
		ID:                   r.ID,
		GroupID:              r.GroupID,
		Name:                 r.Name,
		URL:                  r.URL,
		LanURL:               r.LanURL,
		WanURL:               r.WanURL,
		OpenMode:             card.OpenMode(r.OpenMode),
		CardType:             card.Type(r.CardType),
		SSHHost:              r.SSHHost,
		SSHPort:              r.SSHPort,
		SSHUsername:          r.SSHUsername,
		SSHAuthMode:          card.SSHAuthMode(r.SSHAuthMode),
		EmbyAPIKey:           r.EmbyAPIKey,
		QBittorrentUsername:  r.QBittorrentUsername,
		QBittorrentPassword:  r.QBittorrentPassword,
		TransmissionUsername: r.TransmissionUsername,
		TransmissionPassword: r.TransmissionPassword,
		Icon:                 r.Icon,
		Description:          r.Description,
		OrderIndex:           r.OrderIndex,
		Enabled:              r.Enabled,
		HealthCheckEnabled:   r.HealthCheckEnabled,
	}
}
