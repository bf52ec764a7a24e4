// Package catalog declares the portal entities served through the gateway:
// their identifier arguments, the fields accepted by create and update, the
// read-only attributes the domain layer adds, and the references that
// resolve through the entity loaders.
package catalog

import (
	"sort"
	"strings"

	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/entity"
)

// Reference is an entity-valued field resolved from an id (or id list)
// attribute of the same entity.
type Reference struct {
	// Field is the name of the reference field, e.g. "vocabulary".
	Field string
	// Target is the referenced entity name.
	Target string
	// Key is the attribute holding the referenced id(s).
	Key  string
	Many bool
}

// Entity is one portal entity type.
type Entity struct {
	entity.Definition
	// Single names the lookup field, e.g. "tag". It defaults to the entity
	// name with a lower-case first letter.
	Single string
	// Plural names the list field, e.g. "tags".
	Plural      string
	Description string
	// ReadOnly attributes are returned by the domain layer but never
	// accepted as input.
	ReadOnly   []args.Spec
	References []Reference
}

// SingleName returns the name of the lookup field.
func (e Entity) SingleName() string {
	if e.Single != "" {
		return e.Single
	}
	return strings.ToLower(e.Name[:1]) + e.Name[1:]
}

// Attributes returns every attribute of the entity record: the identifier,
// the input fields, then the read-only ones.
func (e Entity) Attributes() []args.Spec {
	out := make([]args.Spec, 0, 1+len(e.Fields)+len(e.ReadOnly))
	out = append(out, args.NewSpec(e.IDArg, args.Int64))
	out = append(out, e.Fields...)
	out = append(out, e.ReadOnly...)
	return out
}

// Attribute returns the attribute called name.
func (e Entity) Attribute(name string) (args.Spec, bool) {
	for _, s := range e.Attributes() {
		if s.Name == name {
			return s, true
		}
	}
	return args.Spec{}, false
}

// Reference returns the reference field called name.
func (e Entity) Reference(name string) (Reference, bool) {
	for _, r := range e.References {
		if r.Field == name {
			return r, true
		}
	}
	return Reference{}, false
}

// Catalog is an ordered set of entities.
type Catalog struct {
	entities []Entity
	byName   map[string]int
}

// New builds a catalog; entities keep the given order.
func New(entities ...Entity) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(entities))}
	for _, e := range entities {
		if e.ActorArg == "" {
			if _, ok := findSpec(e.Fields, entity.DefaultActorArg); ok {
				e.ActorArg = entity.DefaultActorArg
			}
		}
		c.byName[e.Name] = len(c.entities)
		c.entities = append(c.entities, e)
	}
	return c
}

// Entities returns the entities in declaration order.
func (c *Catalog) Entities() []Entity { return c.entities }

// Lookup returns the entity called name.
func (c *Catalog) Lookup(name string) (Entity, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Entity{}, false
	}
	return c.entities[i], true
}

// Names returns the entity names sorted alphabetically.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

func findSpec(specs []args.Spec, name string) (args.Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return args.Spec{}, false
}
