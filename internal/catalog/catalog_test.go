package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/portalgraph/internal/args"
)

func TestPortal_ReferencesPointAtDeclaredAttributes(t *testing.T) {
	c := Portal()
	for _, e := range c.Entities() {
		for _, ref := range e.References {
			target, ok := c.Lookup(ref.Target)
			require.True(t, ok, "%s.%s targets unknown entity %s", e.Name, ref.Field, ref.Target)
			assert.NotEmpty(t, target.IDArg)

			key, ok := e.Attribute(ref.Key)
			require.True(t, ok, "%s.%s keyed by unknown attribute %s", e.Name, ref.Field, ref.Key)
			if ref.Many {
				assert.Equal(t, args.Int64Array, key.Kind)
			} else {
				assert.Equal(t, args.Int64, key.Kind)
			}
		}
	}
}

func TestPortal_ActorDefaultsToUserID(t *testing.T) {
	c := Portal()
	tag, ok := c.Lookup("Tag")
	require.True(t, ok)
	assert.Equal(t, "userId", tag.ActorArg)
	assert.Equal(t, "tagId", tag.IDArg)
}

func TestEntity_AttributesStartWithID(t *testing.T) {
	c := Portal()
	for _, e := range c.Entities() {
		attrs := e.Attributes()
		require.NotEmpty(t, attrs)
		assert.Equal(t, e.IDArg, attrs[0].Name)
		seen := map[string]bool{}
		for _, a := range attrs {
			assert.False(t, seen[a.Name], "%s declares %s twice", e.Name, a.Name)
			seen[a.Name] = true
		}
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := New(Entity{Definition: def("Widget", "widgetId"), Plural: "widgets"})
	_, ok := c.Lookup("Gadget")
	assert.False(t, ok)
	w, ok := c.Lookup("Widget")
	require.True(t, ok)
	assert.Empty(t, w.ActorArg, "no userId field, no actor default")
	assert.Equal(t, []string{"Widget"}, c.Names())
}

func TestEntity_SingleName(t *testing.T) {
	c := Portal()
	for name, want := range map[string]string{"Tag": "tag", "FileEntry": "fileEntry", "OAuthGrant": "oauthGrant"} {
		e, ok := c.Lookup(name)
		require.True(t, ok)
		assert.Equal(t, want, e.SingleName())
	}
}
