package grpcrt_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"github.com/hanpama/portalgraph/internal/protoreg"
)

func buildRegistry(t *testing.T) *protoreg.Registry {
	t.Helper()
	reg, err := protoreg.Build(catalog.Portal())
	require.NoError(t, err)
	return reg
}

func newRecord(t *testing.T, reg grpcrt.Registry, entity string, fields map[string]any) protoreflect.Message {
	t.Helper()
	desc := reg.GetEntityDescriptor(entity)
	require.NotNil(t, desc)
	msg := dynamicpb.NewMessage(desc)
	for k, v := range fields {
		fd := desc.Fields().ByJSONName(k)
		require.NotNil(t, fd, k)
		switch vv := v.(type) {
		case int64:
			msg.Set(fd, protoreflect.ValueOfInt64(vv))
		case string:
			msg.Set(fd, protoreflect.ValueOfString(vv))
		}
	}
	return msg
}

func requestField(t *testing.T, req proto.Message, name string) protoreflect.Value {
	t.Helper()
	m := req.ProtoReflect()
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	require.NotNil(t, fd, name)
	return m.Get(fd)
}

func TestClient_ServiceRejectsUnknownEntity(t *testing.T) {
	c := grpcrt.NewClient(buildRegistry(t), grpcrt.NewMockTransport(nil))
	_, err := c.Service("Spaceship", "spaceshipId")
	assert.Error(t, err)
	_, err = c.Service("Tag", "nope")
	assert.Error(t, err)
}

func TestEntityService_FetchMany(t *testing.T) {
	reg := buildRegistry(t)
	transport := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		resp := dynamicpb.NewMessage(md.Output())
		m := resp.Mutable(md.Output().Fields().ByName("entities")).Map()
		ids := req.Get(md.Input().Fields().ByName("ids")).List()
		for i := 0; i < ids.Len(); i++ {
			id := ids.Get(i).Int()
			if id == 404 {
				continue
			}
			rec := newRecord(t, reg, "Tag", map[string]any{"tagId": id, "name": "t"})
			m.Set(protoreflect.ValueOfInt64(id).MapKey(), protoreflect.ValueOfMessage(rec))
		}
		return resp, nil
	})
	svc, err := grpcrt.NewClient(reg, transport).Service("Tag", "tagId")
	require.NoError(t, err)

	got, err := svc.FetchMany(context.Background(), []int64{1, 404, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), grpcrt.Int64Value(got[1], "tagId"))
	assert.Equal(t, int64(2), grpcrt.Int64Value(got[2], "tagId"))
	_, ok := got[404]
	assert.False(t, ok)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/portal.v1.TagService/BatchGetTags", calls[0].FullMethod)
}

func TestEntityService_FindRangeForwardsWindow(t *testing.T) {
	reg := buildRegistry(t)
	transport := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, _ protoreflect.Message) (protoreflect.Message, error) {
		return dynamicpb.NewMessage(md.Output()), nil
	})
	svc, err := grpcrt.NewClient(reg, transport).Service("Tag", "tagId")
	require.NoError(t, err)

	got, err := svc.FindRange(context.Background(), 3, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	req := transport.Calls()[0].Request
	assert.Equal(t, int64(3), requestField(t, req, "start").Int())
	assert.Equal(t, int64(3), requestField(t, req, "end").Int())
}

func TestEntityService_CreateMapsArgumentValues(t *testing.T) {
	reg := buildRegistry(t)
	var sent protoreflect.Message
	transport := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		sent = req.Get(md.Input().Fields().ByName("entity")).Message()
		return sent, nil
	})
	svc, err := grpcrt.NewClient(reg, transport).Service("FileEntry", "fileEntryId")
	require.NoError(t, err)

	display := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	_, err = svc.Create(context.Background(), map[string]any{
		"groupId":     int64(10),
		"userId":      int64(20),
		"title":       "report.pdf",
		"displayDate": display,
		"tagIds":      []int64{1, 2},
		"categoryIds": []int64(nil),
		"size":        int64(2048),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), grpcrt.Int64Value(sent, "userId"))
	assert.Equal(t, []int64{1, 2}, grpcrt.Int64sValue(sent, "tagIds"))
	assert.Empty(t, grpcrt.Int64sValue(sent, "categoryIds"))
	v, ok := grpcrt.FieldValue(sent, "displayDate")
	require.True(t, ok)
	assert.True(t, display.Equal(v.(time.Time)))
	title, _ := grpcrt.FieldValue(sent, "title")
	assert.Equal(t, "report.pdf", title)
}

func TestEntityService_CreateLocaleMapsAndObjects(t *testing.T) {
	reg := buildRegistry(t)
	var sent protoreflect.Message
	transport := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		sent = req.Get(md.Input().Fields().ByName("entity")).Message()
		return sent, nil
	})
	client := grpcrt.NewClient(reg, transport)

	vocab, err := client.Service("Vocabulary", "vocabularyId")
	require.NoError(t, err)
	_, err = vocab.Create(context.Background(), map[string]any{
		"titleMap":       map[string]string{"en_US": "Topics", "de_DE": "Themen"},
		"descriptionMap": map[string]string{},
	})
	require.NoError(t, err)
	titles, ok := grpcrt.FieldValue(sent, "titleMap")
	require.True(t, ok)
	if diff := cmp.Diff(map[string]string{"en_US": "Topics", "de_DE": "Themen"}, titles); diff != "" {
		t.Fatalf("titleMap mismatch (-want +got):\n%s", diff)
	}

	comments, err := client.Service("Comment", "commentId")
	require.NoError(t, err)
	_, err = comments.Create(context.Background(), map[string]any{
		"message": map[string]any{"subject": "Hi", "body": "there"},
	})
	require.NoError(t, err)
	msg, ok := grpcrt.FieldValue(sent, "message")
	require.True(t, ok)
	subject, _ := grpcrt.FieldValue(msg.(protoreflect.Message), "subject")
	assert.Equal(t, "Hi", subject)

	_, err = comments.Create(context.Background(), map[string]any{"message": map[string]any(nil)})
	require.NoError(t, err)
	_, ok = grpcrt.FieldValue(sent, "message")
	assert.False(t, ok, "nil object must leave the field unset")
}

func TestEntityService_UpdateSendsMask(t *testing.T) {
	reg := buildRegistry(t)
	transport := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		return req.Get(md.Input().Fields().ByName("entity")).Message(), nil
	})
	svc, err := grpcrt.NewClient(reg, transport).Service("Category", "categoryId")
	require.NoError(t, err)

	got, err := svc.Update(context.Background(), 7, map[string]any{
		"vocabularyId": int64(3),
		"titleMap":     map[string]string{"en_US": "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), grpcrt.Int64Value(got, "categoryId"))

	mask := requestField(t, transport.Calls()[0].Request, "update_mask").Message()
	paths := mask.Get(mask.Descriptor().Fields().ByName("paths")).List()
	var gotPaths []string
	for i := 0; i < paths.Len(); i++ {
		gotPaths = append(gotPaths, paths.Get(i).String())
	}
	assert.Equal(t, []string{"title_map", "vocabulary_id"}, gotPaths)
}

func TestEntityService_ErrorsPassThrough(t *testing.T) {
	reg := buildRegistry(t)
	notFound := status.Error(codes.NotFound, "No AssetTag exists with the primary key 404")
	transport := grpcrt.NewMockTransport(func(protoreflect.MethodDescriptor, protoreflect.Message) (protoreflect.Message, error) {
		return nil, notFound
	})
	svc, err := grpcrt.NewClient(reg, transport).Service("Tag", "tagId")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 404, nil)
	assert.Same(t, notFound, err)
	_, err = svc.Delete(context.Background(), 0)
	assert.Same(t, notFound, err)
	_, err = svc.FetchMany(context.Background(), []int64{1})
	assert.Same(t, notFound, err)

	req := transport.Calls()[1].Request
	assert.Equal(t, int64(0), requestField(t, req, "id").Int())
}
