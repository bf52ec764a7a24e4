package args

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestBag_AbsentYieldsZeroValues(t *testing.T) {
	var b Bag

	assert.Equal(t, int64(0), b.Int64("groupId"))
	assert.Equal(t, "", b.String("name"))
	assert.False(t, b.Bool("primary"))
	assert.Equal(t, float64(0), b.Float64("latitude"))
	assert.True(t, b.Date("displayDate").IsZero())
	assert.Nil(t, b.Int64s("tagIds"))
	assert.Nil(t, b.Object("message"))

	m := b.LocaleMap("titleMap")
	require.NotNil(t, m)
	assert.Empty(t, m)
}

func TestBag_AbsentYieldsDefault(t *testing.T) {
	b := Bag{"other": 1}
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(42), b.Int64("userId", 42))
	assert.Equal(t, "n/a", b.String("name", "n/a"))
	assert.True(t, b.Bool("primary", true))
	assert.Equal(t, 1.5, b.Float64("latitude", 1.5))
	assert.Equal(t, when, b.Date("displayDate", when))
	assert.Equal(t, []int64{7}, b.Int64s("tagIds", []int64{7}))
	assert.Equal(t, map[string]string{"en_US": "x"}, b.LocaleMap("titleMap", map[string]string{"en_US": "x"}))
}

func TestBag_NullCountsAsAbsent(t *testing.T) {
	b := Bag{"userId": nil, "tagIds": nil}
	assert.Equal(t, int64(9), b.Int64("userId", 9))
	assert.Nil(t, b.Int64s("tagIds"))
	assert.False(t, b.Has("userId"))
}

func TestBag_Int64Coercion(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want int64
	}{
		{"int", 12, 12},
		{"int64", int64(1) << 40, 1 << 40},
		{"integral float", float64(30), 30},
		{"json number", json.Number("77"), 77},
		{"numeric string", " 5 ", 5},
		{"fractional float is rejected", 1.25, 0},
		{"non numeric string is rejected", "abc", 0},
		{"bool is rejected", true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Bag{"id": tc.raw}.Int64("id"))
		})
	}
}

func TestBag_Int64RejectsOutOfRangeFloats(t *testing.T) {
	for _, raw := range []any{1e300, -1e300, float64(math.MaxInt64), float32(1e19), math.Inf(1), math.NaN()} {
		assert.Equal(t, int64(-1), Bag{"id": raw}.Int64("id", -1), "%v", raw)
	}
	assert.Equal(t, int64(math.MinInt64), Bag{"id": float64(math.MinInt64)}.Int64("id"))
	assert.Equal(t, int64(1)<<62, Bag{"id": float64(1 << 62)}.Int64("id"))
}

func TestBag_RejectedValueFallsBackToDefault(t *testing.T) {
	b := Bag{"userId": "not-a-number"}
	assert.Equal(t, int64(3), b.Int64("userId", 3))
}

func TestBag_ScalarCoercion(t *testing.T) {
	b := Bag{
		"name":     42,
		"primary":  "true",
		"latitude": json.Number("52.5"),
		"size":     "12.25",
	}
	assert.Equal(t, "42", b.String("name"))
	assert.True(t, b.Bool("primary"))
	assert.Equal(t, 52.5, b.Float64("latitude"))
	assert.Equal(t, 12.25, b.Float64("size"))
}

func TestBag_Date(t *testing.T) {
	want := time.Date(2023, 11, 5, 10, 30, 0, 0, time.UTC)
	cases := map[string]any{
		"rfc3339":      "2023-11-05T10:30:00Z",
		"time":         want,
		"timestamp":    timestamppb.New(want),
		"epoch millis": want.UnixMilli(),
		"millis text":  "1699180200000",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Bag{"displayDate": raw}.Date("displayDate")
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	day := Bag{"displayDate": "2023-11-05"}.Date("displayDate")
	assert.Equal(t, time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC), day)
	assert.True(t, Bag{"displayDate": "yesterday"}.Date("displayDate").IsZero())
}

func TestBag_Int64s(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, Bag{"ids": []any{1, "2", float64(3)}}.Int64s("ids"))
	assert.Equal(t, []int64{4}, Bag{"ids": 4}.Int64s("ids"))
	assert.Equal(t, []int64{1}, Bag{"ids": []any{1, "x", 1.5}}.Int64s("ids"))

	empty := Bag{"ids": []any{}}.Int64s("ids")
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	src := []int64{9, 8}
	got := Bag{"ids": src}.Int64s("ids")
	got[0] = 0
	assert.Equal(t, int64(9), src[0], "result must not alias the bag")
}

func TestBag_LocaleMap(t *testing.T) {
	titles := NewSpec("titleMap", LocaleMap).WithLocales("en_US", "de_DE")

	t.Run("flat keys of configured locales", func(t *testing.T) {
		b := Bag{"title_en_US": "Hello", "title_de_DE": "Hallo", "title_fr_FR": "Bonjour", "title": "plain"}
		want := map[string]string{"en_US": "Hello", "de_DE": "Hallo"}
		if diff := cmp.Diff(want, b.Value(titles)); diff != "" {
			t.Fatalf("locale map mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit map with flat override", func(t *testing.T) {
		b := Bag{
			"titleMap":    map[string]any{"en_US": "Hello", "fr_FR": "Bonjour", "??": "drop"},
			"title_en_US": "Hi",
		}
		want := map[string]string{"en_US": "Hi", "fr_FR": "Bonjour"}
		if diff := cmp.Diff(want, b.Value(titles)); diff != "" {
			t.Fatalf("locale map mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("bcp47 identifiers", func(t *testing.T) {
		b := Bag{"descriptionMap": map[string]string{"pt-BR": "Olá"}}
		assert.Equal(t, map[string]string{"pt-BR": "Olá"}, b.LocaleMap("descriptionMap"))
	})

	t.Run("flat keys need declared locales", func(t *testing.T) {
		b := Bag{"title_en_US": "Hello"}
		assert.Empty(t, b.LocaleMap("titleMap"))
		assert.False(t, b.Present(NewSpec("titleMap", LocaleMap)))
	})
}

func TestBag_LocaleMapIgnoresLookalikeKeys(t *testing.T) {
	// "id" parses as a language tag (Indonesian) but is not a configured locale.
	b := Bag{"title_id": int64(4), "title_en_US": "Hello"}
	got := b.Value(NewSpec("titleMap", LocaleMap).WithLocales("en_US"))
	assert.Equal(t, map[string]string{"en_US": "Hello"}, got)

	assert.False(t, Bag{"title_id": "x"}.Present(NewSpec("titleMap", LocaleMap).WithLocales("en_US")))
}

func TestLocalize(t *testing.T) {
	specs := []Spec{NewSpec("name", String), NewSpec("titleMap", LocaleMap)}
	got := Localize(specs, []string{"en_US"})

	assert.Nil(t, got[0].Locales)
	assert.Equal(t, []string{"en_US"}, got[1].Locales)
	assert.Nil(t, specs[1].Locales, "input specs are not modified")
}

func TestBag_Object(t *testing.T) {
	nested := map[string]any{"subject": "Hi", "meta": map[string]any{"n": json.Number("3")}}
	b := Bag{"message": nested}

	got := b.Object("message")
	want := map[string]any{"subject": "Hi", "meta": map[string]any{"n": int64(3)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("object mismatch (-want +got):\n%s", diff)
	}

	got["subject"] = "changed"
	assert.Equal(t, "Hi", nested["subject"], "result must not alias the bag")
	assert.Nil(t, Bag{"message": "text"}.Object("message"))
}

func TestBag_Message(t *testing.T) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    stringPtr("msg.proto"),
		Package: stringPtr("test"),
		Syntax:  stringPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: stringPtr("CommentMessage"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: stringPtr("subject"), JsonName: stringPtr("subject"), Number: int32Ptr(1), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()},
				{Name: stringPtr("body"), JsonName: stringPtr("body"), Number: int32Ptr(2), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()},
			},
		}},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)
	desc := fd.Messages().ByName("CommentMessage")

	b := Bag{"message": map[string]any{"subject": "Hi", "body": "there", "ignored": true}}
	msg := b.Message("message", desc)
	require.NotNil(t, msg)
	assert.Equal(t, "Hi", msg.Get(desc.Fields().ByName("subject")).String())
	assert.Equal(t, "there", msg.Get(desc.Fields().ByName("body")).String())

	assert.Nil(t, Bag{}.Message("message", desc))
}

func TestBag_ResolveAndChanged(t *testing.T) {
	specs := []Spec{
		NewSpec("groupId", Int64),
		NewSpec("name", String),
		NewSpec("userId", Int64).WithDefault(int64(20)),
		NewSpec("tagIds", Int64Array),
		NewSpec("titleMap", LocaleMap).WithLocales("en_US"),
	}
	b := Bag{"name": "docs", "title_en_US": "Docs"}

	resolved := b.Resolve(specs)
	assert.Equal(t, int64(0), resolved["groupId"])
	assert.Equal(t, "docs", resolved["name"])
	assert.Equal(t, int64(20), resolved["userId"])
	assert.Nil(t, resolved["tagIds"])
	assert.Equal(t, map[string]string{"en_US": "Docs"}, resolved["titleMap"])

	changed := b.Changed(specs)
	want := map[string]any{"name": "docs", "titleMap": map[string]string{"en_US": "Docs"}}
	if diff := cmp.Diff(want, changed); diff != "" {
		t.Fatalf("changed mismatch (-want +got):\n%s", diff)
	}
}

func TestSpec_DefaultIsCoerced(t *testing.T) {
	s := NewSpec("count", Int64).WithDefault(10)
	assert.Equal(t, int64(10), Bag{}.Value(s))
	assert.True(t, Bag{"count": 3}.Present(s))
	assert.False(t, Bag{}.Present(s))
}

func stringPtr(s string) *string { return &s }
func int32Ptr(n int32) *int32    { return &n }

func TestBag_ObjectMemberDefaults(t *testing.T) {
	spec := NewSpec("message", Object).WithFields(
		NewSpec("subject", String),
		NewSpec("format", String).WithDefault("html"),
	)

	got := Bag{"message": map[string]any{"subject": "Hi"}}.Value(spec)
	assert.Equal(t, map[string]any{"subject": "Hi", "format": "html"}, got)

	got = Bag{"message": map[string]any{"format": "text"}}.Changed([]Spec{spec})["message"]
	assert.Equal(t, map[string]any{"format": "text"}, got)

	assert.Nil(t, Bag{}.Value(spec))
}
