package stats

import (
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
)

// Source records which stage produced a snapshot.
type Source string

const (
	SourceDirect Source = "direct"
	SourceProxy  Source = "proxy"
)

// Snapshot is the common shape of every provider result.
type Snapshot interface {
	Kind() card.Type
	// Stamp records the producing stage and the fetch time.
	Stamp(src Source, at time.Time)
	// Origin returns the stage recorded by Stamp.
	Origin() Source
}

// Bucket is one of the canonical torrent states.
type Bucket string

const (
	BucketDownloading Bucket = "downloading"
	BucketSeeding     Bucket = "seeding"
	BucketPaused      Bucket = "paused"
	BucketQueued      Bucket = "queued"
	BucketChecking    Bucket = "checking"
	BucketStalled     Bucket = "stalled"
	BucketError       Bucket = "error"
	BucketUnknown     Bucket = "unknown"
)

// Buckets lists every canonical bucket in display order.
var Buckets = []Bucket{
	BucketDownloading, BucketSeeding, BucketPaused, BucketQueued,
	BucketChecking, BucketStalled, BucketError, BucketUnknown,
}

// Breakdown counts torrents per canonical bucket.
type Breakdown struct {
	Downloading int `json:"downloading"`
	Seeding     int `json:"seeding"`
	Paused      int `json:"paused"`
	Queued      int `json:"queued"`
	Checking    int `json:"checking"`
	Stalled     int `json:"stalled"`
	Error       int `json:"error"`
	Unknown     int `json:"unknown"`
}

// Add increments the counter for b. Anything unrecognized lands in Unknown.
func (bd *Breakdown) Add(b Bucket) {
	switch b {
	case BucketDownloading:
		bd.Downloading++
	case BucketSeeding:
		bd.Seeding++
	case BucketPaused:
		bd.Paused++
	case BucketQueued:
		bd.Queued++
	case BucketChecking:
		bd.Checking++
	case BucketStalled:
		bd.Stalled++
	case BucketError:
		bd.Error++
	default:
		bd.Unknown++
	}
}

// Count returns the counter for b.
func (bd Breakdown) Count(b Bucket) int {
	switch b {
	case BucketDownloading:
		return bd.Downloading
	case BucketSeeding:
		return bd.Seeding
	case BucketPaused:
		return bd.Paused
	case BucketQueued:
		return bd.Queued
	case BucketChecking:
		return bd.Checking
	case BucketStalled:
		return bd.Stalled
	case BucketError:
		return bd.Error
	default:
		return bd.Unknown
	}
}

// Total is the sum of all buckets.
func (bd Breakdown) Total() int {
	n := 0
	for _, b := range Buckets {
		n += bd.Count(b)
	}
	return n
}

// Active is the number of torrents doing work: downloading, seeding, checking or queued.
func (bd Breakdown) Active() int {
	return bd.Downloading + bd.Seeding + bd.Checking + bd.Queued
}

// TorrentStats is the normalized snapshot for qBittorrent and Transmission.
type TorrentStats struct {
	Provider        card.Type `json:"-"`
	DownloadSpeed   int64     `json:"downloadSpeed"`
	UploadSpeed     int64     `json:"uploadSpeed"`
	ActiveCount     int       `json:"activeCount"`
	TotalCount      int       `json:"totalCount"`
	StatusBreakdown Breakdown `json:"statusBreakdown"`
	UpdatedAt       int64     `json:"updatedAt"`
	Source          Source    `json:"source"`
}

// Kind implements Snapshot.
func (s *TorrentStats) Kind() card.Type { return s.Provider }

// Stamp implements Snapshot.
func (s *TorrentStats) Stamp(src Source, at time.Time) {
	s.Source = src
	s.UpdatedAt = at.UnixMilli()
}

// Origin implements Snapshot.
func (s *TorrentStats) Origin() Source { return s.Source }

// MediaCount is one entry of the Emby library breakdown.
type MediaCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// EmbyStats is the normalized Emby snapshot.
type EmbyStats struct {
	MediaTotal      int64        `json:"mediaTotal"`
	MediaBreakdown  []MediaCount `json:"mediaBreakdown"`
	OnlineSessions  int          `json:"onlineSessions"`
	PlayingSessions int          `json:"playingSessions"`
	UpdatedAt       int64        `json:"updatedAt"`
	Source          Source       `json:"source"`
}

// Kind implements Snapshot.
func (s *EmbyStats) Kind() card.Type { return card.TypeEmby }

// Stamp implements Snapshot.
func (s *EmbyStats) Stamp(src Source, at time.Time) {
	s.Source = src
	s.UpdatedAt = at.UnixMilli()
}

// Origin implements Snapshot.
func (s *EmbyStats) Origin() Source { return s.Source }

// EmbyTask is one Emby scheduled task.
type EmbyTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Module      string `json:"module,omitempty"`
	State       string `json:"state"`
	IsRunning   bool   `json:"isRunning"`
	LastRunAt   string `json:"lastRunAt,omitempty"`
	LastResult  string `json:"lastResult,omitempty"`
}

// EmbyTaskRunResult acknowledges a triggered task.
type EmbyTaskRunResult struct {
	TaskID    string `json:"taskId"`
	TaskName  string `json:"taskName,omitempty"`
	Triggered bool   `json:"triggered"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
	Source    Source `json:"source"`
}
