// Package tools implements the built-in student-assistant tools and registers them on a registry.
package tools

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/wiki"
)

// WikiSearcher is the part of the wiki client used by search_wiki.
type WikiSearcher interface {
	Search(ctx context.Context, p wiki.SearchParams) ([]wiki.Result, error)
	PageURL(query string) string
}

// Deps are the collaborators of the built-in tools.
type Deps struct {
	Wiki WikiSearcher
	// Rand drives joke and quote selection. A time-seeded source is used when nil.
	Rand *rand.Rand
}

// Register adds every built-in tool to reg in their advertised order.
func Register(reg *registry.Registry, deps Deps) error {
	if deps.Wiki == nil {
		return errors.New("search_wiki requires a wiki client")
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	picker := &picker{r: deps.Rand}

	builtins := []registry.Entry{
		searchWikiTool(deps.Wiki),
		explainConceptTool(),
		analyzeCodeTool(),
		debugHelperTool(),
		jokeTool(picker),
		quoteTool(picker),
	}

	var result *multierror.Error
	for _, b := range builtins {
		if err := reg.Register(b.Descriptor, b.Tool); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// picker serializes access to a rand.Rand, which is not safe for concurrent use.
type picker struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (p *picker) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Intn(n)
}

// decodeArgs copies validated arguments into a typed struct tagged with json names.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return errors.Wrap(err, "building argument decoder")
	}
	if err := dec.Decode(args); err != nil {
		return errors.Wrap(err, "decoding arguments")
	}
	return nil
}
