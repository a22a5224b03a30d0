package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pullRequestNode(number int, createdAt, reviewedAt string) string {
	reviews := "[]"
	if reviewedAt != "" {
		reviews = fmt.Sprintf(`[{"submittedAt": %q}]`, reviewedAt)
	}
	return fmt.Sprintf(`{
		"number": %d,
		"title": "pr %d",
		"url": "https://github.com/rust-lang/rust/pull/%d",
		"createdAt": %q,
		"updatedAt": "2026-10-17T12:00:00Z",
		"labels": {"nodes": [{"name": "S-waiting-on-review"}]},
		"assignees": {"nodes": [{"login": "reviewer"}]},
		"reviews": {"nodes": %s}
	}`, number, number, number, createdAt, reviews)
}

func pullRequestsResponse(nodes ...string) string {
	return fmt.Sprintf(`{"data":{"repository":{"pullRequests":{
		"pageInfo": {"hasNextPage": false, "endCursor": ""},
		"nodes": [%s]
	}}}}`, strings.Join(nodes, ","))
}

func TestLeastRecentlyReviewed_Fetch(t *testing.T) {
	body := pullRequestsResponse(
		pullRequestNode(1, "2026-01-01T00:00:00Z", "2026-10-08T12:00:00Z"),
		pullRequestNode(2, "2026-06-01T00:00:00Z", ""),
		pullRequestNode(3, "2026-01-01T00:00:00Z", "2026-08-01T12:00:00Z"),
	)

	testCases := []struct {
		name     string
		limit    int
		expected []int
	}{
		{name: "oldest review first", limit: 50, expected: []int{2, 3, 1}},
		{name: "truncated to the limit", limit: 2, expected: []int{2, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, graphqlHandler(t, body,
				"repository(owner: $owner, name: $name)",
				`"labels":["S-waiting-on-review"]`,
				`"owner":"rust-lang"`,
			))
			defer server.Close()

			q := gateway.LeastRecentlyReviewed()
			assert.Equal(t, 50, q.Limit)
			q.Limit = tc.limit
			issues, err := q.Fetch(context.Background(), rustRepo)

			require.NoError(t, err)
			numbers := make([]int, 0, len(issues))
			for _, i := range issues {
				numbers = append(numbers, i.Number)
			}
			assert.Equal(t, tc.expected, numbers)

			last := issues[len(issues)-1]
			assert.Equal(t, "rust", last.RepoName)
			assert.Equal(t, "S-waiting-on-review", last.Labels)
			assert.Equal(t, "reviewer", last.Assignees)
		})
	}
}

func TestLeastRecentlyReviewed_HumanAgeUsesLastReview(t *testing.T) {
	body := pullRequestsResponse(pullRequestNode(7, "2026-01-01T00:00:00Z", "2026-10-08T12:00:00Z"))
	gateway, server := setupTestGateway(t, graphqlHandler(t, body))
	defer server.Close()

	issues, err := gateway.LeastRecentlyReviewed().Fetch(context.Background(), rustRepo)

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "about 10 days ago", issues[0].UpdatedAtHuman)
}
