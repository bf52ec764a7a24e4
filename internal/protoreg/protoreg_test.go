package protoreg_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/entity"
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"github.com/hanpama/portalgraph/internal/protoreg"
)

func buildRegistry(t *testing.T) *protoreg.Registry {
	t.Helper()
	reg, err := protoreg.Build(catalog.Portal())
	require.NoError(t, err)
	return reg
}

func TestBuild_OneFilePerEntity(t *testing.T) {
	reg := buildRegistry(t)
	files := reg.GetAllServiceFiles()
	assert.Len(t, files, len(catalog.Portal().Entities()))
	for _, fd := range files {
		assert.Equal(t, protoreflect.FullName(protoreg.PackageName), fd.Package())
		assert.Equal(t, 1, fd.Services().Len())
	}
}

func TestBuild_MethodDescriptors(t *testing.T) {
	reg := buildRegistry(t)
	tests := []struct {
		op       grpcrt.Operation
		method   protoreflect.FullName
		input    protoreflect.Name
		output   protoreflect.Name
		inFields []protoreflect.Name
	}{
		{grpcrt.OpBatchGet, "portal.v1.TagService.BatchGetTags", "BatchGetTagsRequest", "BatchGetTagsResponse", []protoreflect.Name{"ids"}},
		{grpcrt.OpList, "portal.v1.TagService.ListTags", "ListTagsRequest", "ListTagsResponse", []protoreflect.Name{"start", "end"}},
		{grpcrt.OpCreate, "portal.v1.TagService.CreateTag", "CreateTagRequest", "Tag", []protoreflect.Name{"entity"}},
		{grpcrt.OpUpdate, "portal.v1.TagService.UpdateTag", "UpdateTagRequest", "Tag", []protoreflect.Name{"entity", "update_mask"}},
		{grpcrt.OpDelete, "portal.v1.TagService.DeleteTag", "DeleteTagRequest", "Tag", []protoreflect.Name{"id"}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			md := reg.GetMethodDescriptor("Tag", tt.op)
			require.NotNil(t, md)
			assert.Equal(t, tt.method, md.FullName())
			assert.Equal(t, tt.input, md.Input().Name())
			assert.Equal(t, tt.output, md.Output().Name())
			for _, name := range tt.inFields {
				assert.NotNil(t, md.Input().Fields().ByName(name), name)
			}
		})
	}
	assert.Nil(t, reg.GetMethodDescriptor("Spaceship", grpcrt.OpList))
}

func TestBuild_AttributeKinds(t *testing.T) {
	reg := buildRegistry(t)

	fe := reg.GetEntityDescriptor("FileEntry")
	require.NotNil(t, fe)
	tagIDs := fe.Fields().ByJSONName("tagIds")
	require.NotNil(t, tagIDs)
	assert.True(t, tagIDs.IsList())
	assert.Equal(t, protoreflect.Int64Kind, tagIDs.Kind())
	display := fe.Fields().ByJSONName("displayDate")
	require.NotNil(t, display)
	assert.Equal(t, protoreflect.FullName("google.protobuf.Timestamp"), display.Message().FullName())

	vocab := reg.GetEntityDescriptor("Vocabulary")
	title := vocab.Fields().ByJSONName("titleMap")
	require.NotNil(t, title)
	assert.True(t, title.IsMap())
	assert.Equal(t, protoreflect.Name("title_map"), title.Name())

	comment := reg.GetEntityDescriptor("Comment")
	msg := comment.Fields().ByJSONName("message")
	require.NotNil(t, msg)
	assert.Equal(t, protoreflect.Name("CommentMessage"), msg.Message().Name())
	assert.NotNil(t, msg.Message().Fields().ByJSONName("subject"))
}

func TestBuild_FieldNumbersAreStable(t *testing.T) {
	small := catalog.New(catalog.Entity{
		Definition: entity.Definition{Name: "Tag", IDArg: "tagId", Fields: []args.Spec{
			args.NewSpec("name", args.String),
		}},
		Plural: "tags",
	})
	grown := catalog.New(catalog.Entity{
		Definition: entity.Definition{Name: "Tag", IDArg: "tagId", Fields: []args.Spec{
			args.NewSpec("groupId", args.Int64),
			args.NewSpec("name", args.String),
		}},
		Plural: "tags",
	})
	a, err := protoreg.Build(small)
	require.NoError(t, err)
	b, err := protoreg.Build(grown)
	require.NoError(t, err)

	for _, name := range []string{"tagId", "name"} {
		na := a.GetEntityDescriptor("Tag").Fields().ByJSONName(name).Number()
		nb := b.GetEntityDescriptor("Tag").Fields().ByJSONName(name).Number()
		assert.Equal(t, na, nb, name)
	}
}

func TestRender(t *testing.T) {
	reg := buildRegistry(t)
	dir := t.TempDir()
	require.NoError(t, protoreg.Render(reg, dir))

	raw, err := os.ReadFile(filepath.Join(dir, "portal", "v1", "file_entry.proto"))
	require.NoError(t, err)
	src := string(raw)
	assert.Contains(t, src, "service FileEntryService")
	assert.Contains(t, src, "rpc BatchGetFileEntries")
	assert.Contains(t, src, "google/protobuf/timestamp.proto")

	var buf bytes.Buffer
	require.NoError(t, protoreg.RenderTo(reg, &buf))
	assert.Contains(t, buf.String(), "// portal/v1/tag.proto")
	assert.Contains(t, buf.String(), "map<string, string> title_map")
}
