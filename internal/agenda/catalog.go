package agenda

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/naka-gawa/triage-agenda/internal/domain"
	"github.com/naka-gawa/triage-agenda/internal/gateway"
)

//go:embed reports/*.yaml
var builtinReports embed.FS

// Catalog holds report definitions addressed by "team/kind".
type Catalog struct {
	defs map[string]*Definition
}

// Builtin returns the catalog of reports shipped with the binary.
func Builtin() (*Catalog, error) {
	sub, err := fs.Sub(builtinReports, "reports")
	if err != nil {
		return nil, err
	}
	return LoadCatalog(sub)
}

// LoadCatalog reads every *.yaml file at the root of fsys.
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list report definitions: %w", err)
	}
	c := &Catalog{defs: make(map[string]*Definition, len(files))}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		def, err := ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(file), err)
		}
		if prev, ok := c.defs[def.Key()]; ok {
			return nil, fmt.Errorf("%s: report %s already defined by %s", path.Base(file), def.Key(), prev.Name)
		}
		c.defs[def.Key()] = def
	}
	return c, nil
}

// Lookup returns the definition for team and kind.
func (c *Catalog) Lookup(team, kind string) (*Definition, error) {
	def, ok := c.defs[team+"/"+kind]
	if !ok {
		return nil, fmt.Errorf("unknown report %s/%s", team, kind)
	}
	return def, nil
}

// Definitions returns every definition sorted by key.
func (c *Catalog) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(c.defs))
	for _, d := range c.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Key() < defs[j].Key()
	})
	return defs
}

// GatewayFactory creates queries backed by a GitHub gateway.
type GatewayFactory struct {
	GW *gateway.GitHubGateway
}

func (f GatewayFactory) Search(filters, include, exclude []string) domain.Query {
	return f.GW.Search(filters, include, exclude)
}

func (f GatewayFactory) ProjectBoard(project int, statuses, exclude []string, includeUnset bool) domain.Query {
	return f.GW.ProjectBoard(project, statuses, exclude, includeUnset)
}

func (f GatewayFactory) DesignMeetings(project int, status string) (domain.Query, error) {
	st, err := gateway.ParseDesignMeetingStatus(status)
	if err != nil {
		return nil, err
	}
	return f.GW.DesignMeetings(project, st), nil
}

func (f GatewayFactory) LeastRecentlyReviewed() domain.Query {
	return f.GW.LeastRecentlyReviewed()
}
