// Package gateway provides the GitHub and calendar collaborators of an agenda run,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// GitHubGateway builds the queries used by agenda reports.
// All queries created from one gateway share its clients.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.Logger
	now           func() time.Time
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *zap.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// SearchQuery lists the issues and pull requests of a repository matching
// a set of search filters and labels.
type SearchQuery struct {
	gw *GitHubGateway
	// Filters are raw search qualifiers such as "state:open" or "no:assignee".
	Filters       []string
	IncludeLabels []string
	ExcludeLabels []string
}

// Search returns a SearchQuery bound to this gateway.
func (g *GitHubGateway) Search(filters, include, exclude []string) *SearchQuery {
	return &SearchQuery{gw: g, Filters: filters, IncludeLabels: include, ExcludeLabels: exclude}
}

// SearchString renders the search expression for one repository.
func (q *SearchQuery) SearchString(repo domain.Repository) string {
	parts := []string{"repo:" + repo.FullName()}
	for _, f := range q.Filters {
		key, value, ok := strings.Cut(f, ":")
		if !ok {
			parts = append(parts, f)
			continue
		}
		switch {
		case key == "state" && value == "all":
			// The search API returns every state when none is given.
			continue
		case key == "is" && value == "pull-request":
			value = "pr"
		}
		parts = append(parts, key+":"+value)
	}
	for _, l := range q.IncludeLabels {
		parts = append(parts, "label:"+quoteLabel(l))
	}
	for _, l := range q.ExcludeLabels {
		parts = append(parts, "-label:"+quoteLabel(l))
	}
	return strings.Join(parts, " ")
}

func quoteLabel(l string) string {
	if strings.ContainsAny(l, " \t") {
		return `"` + l + `"`
	}
	return l
}

// Fetch runs the search against the REST API, following every page.
func (q *SearchQuery) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	g := q.gw
	query := q.SearchString(repo)
	g.logger.Debug("searching issues", zap.String("query", query))

	opts := &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	issues := []domain.Issue{}
	for {
		result, resp, err := g.restClient.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search issues with REST API: %w", err)
		}
		for _, issue := range result.Issues {
			issues = append(issues, g.decorate(repo, issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of issues", zap.String("query", query), zap.Int("page", opts.Page))
	}
	return issues, nil
}

func (g *GitHubGateway) decorate(repo domain.Repository, issue *github.Issue) domain.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	updated := issue.GetUpdatedAt().Time
	return domain.Issue{
		Number:         issue.GetNumber(),
		Title:          issue.GetTitle(),
		HTMLURL:        issue.GetHTMLURL(),
		RepoName:       repo.Name,
		Labels:         strings.Join(labels, ", "),
		Assignees:      strings.Join(assignees, ", "),
		UpdatedAt:      updated,
		UpdatedAtHuman: ToHuman(g.now(), updated),
	}
}

// ToHuman renders the age of t relative to now the way agendas show it.
func ToHuman(now, t time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	if days > 60 {
		return fmt.Sprintf("%d months ago", days/30)
	}
	return fmt.Sprintf("about %d days ago", days)
}
