package gateway

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// projectFieldValue decodes the union returned by fieldValueByName.
type projectFieldValue struct {
	Typename     string `graphql:"__typename"`
	SingleSelect struct {
		Name githubv4.String
	} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	Date struct {
		Date githubv4.String
	} `graphql:"... on ProjectV2ItemFieldDateValue"`
	Text struct {
		Text githubv4.String
	} `graphql:"... on ProjectV2ItemFieldTextValue"`
	Number struct {
		Number githubv4.Float
	} `graphql:"... on ProjectV2ItemFieldNumberValue"`
}

type projectContent struct {
	Number     int
	Title      string
	URL        string
	UpdatedAt  githubv4.DateTime
	Repository struct {
		Name string
	}
	Labels struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 30)"`
	Assignees struct {
		Nodes []struct {
			Login string
		}
	} `graphql:"assignees(first: 10)"`
}

type projectItem struct {
	Content struct {
		Typename    string         `graphql:"__typename"`
		Issue       projectContent `graphql:"... on Issue"`
		PullRequest projectContent `graphql:"... on PullRequest"`
	}
	Status    projectFieldValue `graphql:"status: fieldValueByName(name: \"Status\")"`
	Date      projectFieldValue `graphql:"date: fieldValueByName(name: \"Date\")"`
	Narrative projectFieldValue `graphql:"narrative: fieldValueByName(name: \"Narrative\")"`
	Drag      projectFieldValue `graphql:"drag: fieldValueByName(name: \"Drag\")"`
}

type projectItemsQuery struct {
	Organization struct {
		ProjectV2 struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
				Nodes []projectItem
			} `graphql:"items(first: 100, after: $cursor)"`
		} `graphql:"projectV2(number: $number)"`
	} `graphql:"organization(login: $org)"`
}

func (g *GitHubGateway) fetchProjectItems(ctx context.Context, org string, number int) ([]projectItem, error) {
	variables := map[string]interface{}{
		"org":    githubv4.String(org),
		"number": githubv4.Int(number),
		"cursor": (*githubv4.String)(nil),
	}
	var items []projectItem
	for {
		var q projectItemsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for project items: %w", err)
		}
		items = append(items, q.Organization.ProjectV2.Items.Nodes...)
		if !q.Organization.ProjectV2.Items.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.ProjectV2.Items.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of project items", zap.String("org", org), zap.Int("project", number))
	}
	return items, nil
}

// status returns the single-select Status of an item, or nil when unset.
func (it *projectItem) status() *string {
	if it.Status.Typename != "ProjectV2ItemFieldSingleSelectValue" {
		return nil
	}
	s := string(it.Status.SingleSelect.Name)
	return &s
}

func (it *projectItem) content() (projectContent, bool) {
	switch it.Content.Typename {
	case "Issue":
		return it.Content.Issue, true
	case "PullRequest":
		return it.Content.PullRequest, true
	default:
		// Draft issues have no number or URL.
		return projectContent{}, false
	}
}

func (g *GitHubGateway) projectIssue(c projectContent) domain.Issue {
	labels := make([]string, 0, len(c.Labels.Nodes))
	for _, l := range c.Labels.Nodes {
		labels = append(labels, l.Name)
	}
	assignees := make([]string, 0, len(c.Assignees.Nodes))
	for _, a := range c.Assignees.Nodes {
		assignees = append(assignees, a.Login)
	}
	return domain.Issue{
		Number:         c.Number,
		Title:          c.Title,
		HTMLURL:        c.URL,
		RepoName:       c.Repository.Name,
		Labels:         strings.Join(labels, ", "),
		Assignees:      strings.Join(assignees, ", "),
		UpdatedAt:      c.UpdatedAt.Time,
		UpdatedAtHuman: ToHuman(g.now(), c.UpdatedAt.Time),
	}
}

// ProjectBoard lists the items of an organization project whose Status
// passes the filter. The repository's owner selects the organization; its
// name is not used.
type ProjectBoard struct {
	gw            *GitHubGateway
	ProjectNumber int
	// Statuses, when non-empty, is the set of accepted statuses.
	Statuses []string
	// ExcludeStatuses are rejected even if listed in Statuses.
	ExcludeStatuses []string
	// IncludeUnset accepts items that have no status.
	IncludeUnset bool
}

// ProjectBoard returns a ProjectBoard query bound to this gateway.
func (g *GitHubGateway) ProjectBoard(number int, statuses, exclude []string, includeUnset bool) *ProjectBoard {
	return &ProjectBoard{
		gw:              g,
		ProjectNumber:   number,
		Statuses:        statuses,
		ExcludeStatuses: exclude,
		IncludeUnset:    includeUnset,
	}
}

// Accepts reports whether an item with the given status belongs on the board.
func (p *ProjectBoard) Accepts(status *string) bool {
	if status == nil {
		return p.IncludeUnset
	}
	if slices.Contains(p.ExcludeStatuses, *status) {
		return false
	}
	return len(p.Statuses) == 0 || slices.Contains(p.Statuses, *status)
}

// Fetch returns the accepted board items, with Narrative and Drag taken from
// the project fields of the same names.
func (p *ProjectBoard) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	items, err := p.gw.fetchProjectItems(ctx, repo.Owner, p.ProjectNumber)
	if err != nil {
		return nil, err
	}
	issues := []domain.Issue{}
	for i := range items {
		it := &items[i]
		c, ok := it.content()
		if !ok || !p.Accepts(it.status()) {
			continue
		}
		issue := p.gw.projectIssue(c)
		if it.Narrative.Typename == "ProjectV2ItemFieldTextValue" {
			if text := strings.TrimSpace(string(it.Narrative.Text.Text)); text != "" {
				issue.Narrative = &text
			}
		}
		if it.Drag.Typename == "ProjectV2ItemFieldNumberValue" {
			if n := float64(it.Drag.Number.Number); n >= 0 && n <= math.MaxUint8 {
				d := uint8(n)
				issue.Drag = &d
			}
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// DesignMeetingStatus is the Status column of a design meeting board.
type DesignMeetingStatus string

const (
	DesignMeetingProposed  DesignMeetingStatus = "Proposed"
	DesignMeetingScheduled DesignMeetingStatus = "Scheduled"
	DesignMeetingDone      DesignMeetingStatus = "Done"
)

// ParseDesignMeetingStatus accepts the status name in any case.
func ParseDesignMeetingStatus(s string) (DesignMeetingStatus, error) {
	for _, st := range []DesignMeetingStatus{DesignMeetingProposed, DesignMeetingScheduled, DesignMeetingDone} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown design meeting status %q", s)
}

// DesignMeetings lists the issues on a design meeting board with one status.
type DesignMeetings struct {
	gw            *GitHubGateway
	ProjectNumber int
	Status        DesignMeetingStatus
}

// DesignMeetings returns a DesignMeetings query bound to this gateway.
func (g *GitHubGateway) DesignMeetings(number int, status DesignMeetingStatus) *DesignMeetings {
	return &DesignMeetings{gw: g, ProjectNumber: number, Status: status}
}

// Fetch returns the meeting proposals, each carrying its Date field.
func (d *DesignMeetings) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	items, err := d.gw.fetchProjectItems(ctx, repo.Owner, d.ProjectNumber)
	if err != nil {
		return nil, err
	}
	issues := []domain.Issue{}
	for i := range items {
		it := &items[i]
		if it.Content.Typename != "Issue" {
			continue
		}
		status := it.status()
		if status == nil || *status != string(d.Status) {
			continue
		}
		issue := d.gw.projectIssue(it.Content.Issue)
		details := &domain.MeetingDetails{}
		if it.Date.Typename == "ProjectV2ItemFieldDateValue" {
			date := string(it.Date.Date.Date)
			details.Date = &date
		}
		issue.MeetingDetails = details
		issues = append(issues, issue)
	}
	return issues, nil
}
