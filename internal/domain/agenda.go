// Package domain contains the core data structures of an agenda run.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects how a query's results contribute to its bucket.
type Mode int

const (
	// ModeList appends the fetched issues to the bucket.
	ModeList Mode = iota
	// ModeCount adds the number of fetched issues to the bucket.
	ModeCount
)

func (m Mode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeCount:
		return "count"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts the configuration name of a mode. An empty name means list.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "list":
		return ModeList, nil
	case "count":
		return ModeCount, nil
	default:
		return ModeList, fmt.Errorf("unknown query mode %q", s)
	}
}

// Repository identifies a GitHub repository by owner and name.
type Repository struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Issue is a single work item as presented on an agenda.
type Issue struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	HTMLURL   string `json:"html_url"`
	RepoName  string `json:"repo_name"`
	Labels    string `json:"labels"`
	Assignees string `json:"assignees"`
	// Human readable form of UpdatedAt, e.g. "about 3 days ago".
	UpdatedAtHuman string    `json:"updated_at_hts"`
	UpdatedAt      time.Time `json:"-"`

	Narrative *string `json:"narrative,omitempty"`
	Drag      *uint8  `json:"drag,omitempty"`

	FCPDetails     *FCPDetails     `json:"fcp_details,omitempty"`
	MeetingDetails *MeetingDetails `json:"meeting_details,omitempty"`
}

// FCPDetails is passed through to templates untouched.
type FCPDetails struct {
	BotTrackingCommentHTMLURL string `json:"bot_tracking_comment_html_url"`
	BotTrackingCommentContent string `json:"bot_tracking_comment_content"`
	InitiatingCommentHTMLURL  string `json:"initiating_comment_html_url"`
	InitiatingCommentContent  string `json:"initiating_comment_content"`
}

// MeetingDetails carries the date of a design meeting proposal, if one was set.
type MeetingDetails struct {
	Date *string `json:"date,omitempty"`
}

// Meeting is a calendar event shown at the top of an agenda.
type Meeting struct {
	Summary  string    `json:"summary"`
	HTMLLink string    `json:"html_link"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Query fetches the issues of one repository.
// Implementations must be safe for concurrent use with different repositories.
type Query interface {
	Fetch(ctx context.Context, repo Repository) ([]Issue, error)
}

// ErrMeetingsNotConfigured is returned by a MeetingsProvider that has no
// source to read from.
var ErrMeetingsNotConfigured = errors.New("meetings source is not configured")

// MeetingsProvider lists meetings between start and end.
type MeetingsProvider interface {
	GetMeetings(ctx context.Context, start, end time.Time) ([]Meeting, error)
}

// NamedQuery binds a query to the bucket it feeds.
type NamedQuery struct {
	Bucket string
	Mode   Mode
	Query  Query
}

// QueryGroup crosses every repository with every query.
type QueryGroup struct {
	Repos   []Repository
	Queries []NamedQuery
}

// Report is a complete agenda definition. The name selects the template.
type Report struct {
	Name   string
	Groups []QueryGroup
}

// Bucket is the aggregated value of one named bucket.
type Bucket struct {
	Mode   Mode
	Issues []Issue
	Count  int
}

// Value returns the issue list for list buckets and the count for count buckets.
func (b *Bucket) Value() any {
	if b.Mode == ModeCount {
		return b.Count
	}
	if b.Issues == nil {
		return []Issue{}
	}
	return b.Issues
}
