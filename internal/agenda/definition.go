// Package agenda loads report definitions from YAML and turns them into
// domain reports bound to real queries.
package agenda

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/triage-agenda/internal/domain"
	"github.com/naka-gawa/triage-agenda/internal/gateway"
)

// Definition is the YAML form of a report.
type Definition struct {
	// Team and Kind address the report, e.g. "lang" and "triage".
	Team  string `yaml:"team"`
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Title string `yaml:"title"`

	Groups []GroupDefinition `yaml:"groups"`
}

// GroupDefinition crosses repositories with queries.
type GroupDefinition struct {
	Repos   []string          `yaml:"repos"`
	Queries []QueryDefinition `yaml:"queries"`
}

// QueryDefinition names a bucket and exactly one query kind feeding it.
type QueryDefinition struct {
	Bucket string `yaml:"bucket"`
	Mode   string `yaml:"mode"`

	Search                *SearchDefinition        `yaml:"search"`
	ProjectBoard          *ProjectBoardDefinition  `yaml:"project_board"`
	DesignMeetings        *DesignMeetingDefinition `yaml:"design_meetings"`
	LeastRecentlyReviewed bool                     `yaml:"least_recently_reviewed"`
}

type SearchDefinition struct {
	Filters       []string `yaml:"filters"`
	IncludeLabels []string `yaml:"include_labels"`
	ExcludeLabels []string `yaml:"exclude_labels"`
}

type ProjectBoardDefinition struct {
	Project         int      `yaml:"project"`
	Statuses        []string `yaml:"statuses"`
	ExcludeStatuses []string `yaml:"exclude_statuses"`
	IncludeUnset    bool     `yaml:"include_unset"`
}

type DesignMeetingDefinition struct {
	Project int    `yaml:"project"`
	Status  string `yaml:"status"`
}

// QueryFactory creates the queries a definition refers to.
type QueryFactory interface {
	Search(filters, include, exclude []string) domain.Query
	ProjectBoard(project int, statuses, exclude []string, includeUnset bool) domain.Query
	DesignMeetings(project int, status string) (domain.Query, error)
	LeastRecentlyReviewed() domain.Query
}

// ParseDefinition decodes and validates one YAML report definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse report definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Key returns "team/kind".
func (d *Definition) Key() string {
	return d.Team + "/" + d.Kind
}

// Validate checks the definition is well formed. A bucket name used with two
// different modes is rejected here, since aggregation assumes one mode per bucket.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("report definition has no name")
	}
	if d.Team == "" || d.Kind == "" {
		return fmt.Errorf("report %s: team and kind are required", d.Name)
	}
	modes := make(map[string]domain.Mode)
	for gi, g := range d.Groups {
		for _, r := range g.Repos {
			if _, err := ParseRepository(r); err != nil {
				return fmt.Errorf("report %s group %d: %w", d.Name, gi, err)
			}
		}
		for _, q := range g.Queries {
			if q.Bucket == "" {
				return fmt.Errorf("report %s group %d: query without bucket", d.Name, gi)
			}
			mode, err := domain.ParseMode(q.Mode)
			if err != nil {
				return fmt.Errorf("report %s bucket %s: %w", d.Name, q.Bucket, err)
			}
			if prev, ok := modes[q.Bucket]; ok && prev != mode {
				return fmt.Errorf("report %s bucket %s: used as both %s and %s", d.Name, q.Bucket, prev, mode)
			}
			modes[q.Bucket] = mode
			if n := q.kinds(); n != 1 {
				return fmt.Errorf("report %s bucket %s: expected exactly one query kind, got %d", d.Name, q.Bucket, n)
			}
			if dm := q.DesignMeetings; dm != nil {
				if _, err := gateway.ParseDesignMeetingStatus(dm.Status); err != nil {
					return fmt.Errorf("report %s bucket %s: %w", d.Name, q.Bucket, err)
				}
			}
		}
	}
	return nil
}

func (q *QueryDefinition) kinds() int {
	n := 0
	if q.Search != nil {
		n++
	}
	if q.ProjectBoard != nil {
		n++
	}
	if q.DesignMeetings != nil {
		n++
	}
	if q.LeastRecentlyReviewed {
		n++
	}
	return n
}

// ParseRepository parses "owner/name".
func ParseRepository(s string) (domain.Repository, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return domain.Repository{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return domain.Repository{Owner: owner, Name: name}, nil
}

// Report binds the definition to queries from the factory. Each query is
// created once and shared by every repository of its group.
func (d *Definition) Report(f QueryFactory) (*domain.Report, error) {
	report := &domain.Report{Name: d.Name, Groups: make([]domain.QueryGroup, 0, len(d.Groups))}
	for _, g := range d.Groups {
		group := domain.QueryGroup{}
		for _, r := range g.Repos {
			repo, err := ParseRepository(r)
			if err != nil {
				return nil, err
			}
			group.Repos = append(group.Repos, repo)
		}
		for _, qd := range g.Queries {
			mode, err := domain.ParseMode(qd.Mode)
			if err != nil {
				return nil, err
			}
			query, err := qd.query(f)
			if err != nil {
				return nil, fmt.Errorf("report %s bucket %s: %w", d.Name, qd.Bucket, err)
			}
			group.Queries = append(group.Queries, domain.NamedQuery{Bucket: qd.Bucket, Mode: mode, Query: query})
		}
		report.Groups = append(report.Groups, group)
	}
	return report, nil
}

func (q *QueryDefinition) query(f QueryFactory) (domain.Query, error) {
	switch {
	case q.Search != nil:
		return f.Search(q.Search.Filters, q.Search.IncludeLabels, q.Search.ExcludeLabels), nil
	case q.ProjectBoard != nil:
		p := q.ProjectBoard
		return f.ProjectBoard(p.Project, p.Statuses, p.ExcludeStatuses, p.IncludeUnset), nil
	case q.DesignMeetings != nil:
		return f.DesignMeetings(q.DesignMeetings.Project, q.DesignMeetings.Status)
	case q.LeastRecentlyReviewed:
		return f.LeastRecentlyReviewed(), nil
	default:
		return nil, errors.New("no query kind")
	}
}
