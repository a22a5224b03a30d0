package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

const (
	waitingOnReviewLabel = "S-waiting-on-review"
	unreviewedPRLimit    = 50
)

// waitingPRsQuery fetches open PRs waiting on review together with their latest review.
type waitingPRsQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Number    int
				Title     string
				URL       string
				CreatedAt githubv4.DateTime
				UpdatedAt githubv4.DateTime
				Labels    struct {
					Nodes []struct {
						Name string
					}
				} `graphql:"labels(first: 30)"`
				Assignees struct {
					Nodes []struct {
						Login string
					}
				} `graphql:"assignees(first: 10)"`
				Reviews struct {
					Nodes []struct {
						SubmittedAt githubv4.DateTime
					}
				} `graphql:"reviews(last: 1, states: [COMMENTED, APPROVED, CHANGES_REQUESTED])"`
			}
		} `graphql:"pullRequests(first: 100, after: $cursor, states: OPEN, labels: $labels)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// LeastRecentlyReviewed lists the open pull requests waiting on review whose
// last review is the oldest. PRs that were never reviewed count from creation.
type LeastRecentlyReviewed struct {
	gw    *GitHubGateway
	Limit int
}

// LeastRecentlyReviewed returns a LeastRecentlyReviewed query bound to this gateway.
func (g *GitHubGateway) LeastRecentlyReviewed() *LeastRecentlyReviewed {
	return &LeastRecentlyReviewed{gw: g, Limit: unreviewedPRLimit}
}

func (q *LeastRecentlyReviewed) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	g := q.gw
	variables := map[string]interface{}{
		"owner":  githubv4.String(repo.Owner),
		"name":   githubv4.String(repo.Name),
		"labels": []githubv4.String{waitingOnReviewLabel},
		"cursor": (*githubv4.String)(nil),
	}

	type candidate struct {
		issue      domain.Issue
		lastReview time.Time
	}
	var candidates []candidate
	for {
		var pq waitingPRsQuery
		if err := g.graphqlClient.Query(ctx, &pq, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for pull request reviews: %w", err)
		}
		for _, pr := range pq.Repository.PullRequests.Nodes {
			lastReview := pr.CreatedAt.Time
			if len(pr.Reviews.Nodes) > 0 {
				lastReview = pr.Reviews.Nodes[0].SubmittedAt.Time
			}
			labels := make([]string, 0, len(pr.Labels.Nodes))
			for _, l := range pr.Labels.Nodes {
				labels = append(labels, l.Name)
			}
			assignees := make([]string, 0, len(pr.Assignees.Nodes))
			for _, a := range pr.Assignees.Nodes {
				assignees = append(assignees, a.Login)
			}
			candidates = append(candidates, candidate{
				issue: domain.Issue{
					Number:         pr.Number,
					Title:          pr.Title,
					HTMLURL:        pr.URL,
					RepoName:       repo.Name,
					Labels:         strings.Join(labels, ", "),
					Assignees:      strings.Join(assignees, ", "),
					UpdatedAt:      pr.UpdatedAt.Time,
					UpdatedAtHuman: ToHuman(g.now(), lastReview),
				},
				lastReview: lastReview,
			})
		}
		if !pq.Repository.PullRequests.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(pq.Repository.PullRequests.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of pull requests waiting on review", zap.String("repo", repo.FullName()))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].lastReview.Before(candidates[j].lastReview)
	})
	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	issues := make([]domain.Issue, 0, len(candidates))
	for _, c := range candidates {
		issues = append(issues, c.issue)
	}
	return issues, nil
}
