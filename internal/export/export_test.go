package export

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func sampleConversation(t *testing.T) (model.Conversation, []model.Message) {
	t.Helper()
	c := model.Conversation{Platform: model.PlatformClaude, OriginalID: "abc", Title: "Hello", CreatedAt: 1, UpdatedAt: 2}
	c.NewConversationID()
	msgs := []model.Message{
		{ID: "m2", ConversationID: c.ID, Role: model.RoleAssistant, Content: "hi there", CreatedAt: 2},
		{ID: "m1", ConversationID: c.ID, Role: model.RoleUser, Content: "hello", CreatedAt: 1},
	}
	return c, msgs
}

func TestExportProducesManifestAndConversationFiles(t *testing.T) {
	c, msgs := sampleConversation(t)
	codec := New(func() int64 { return 12345 })

	data, manifest, err := codec.Export([]model.Conversation{c}, map[string][]model.Message{c.ID: msgs}, "all")
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.Stats.Conversations)
	assert.Equal(t, 2, manifest.Stats.Messages)
	assert.Equal(t, int64(12345), manifest.ExportedAt)
	assert.Positive(t, manifest.Stats.SizeBytes)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["manifest.json"])
	assert.True(t, names["conversations/"+c.ID+".json"])
}

func TestExportMarkdownOrdersMessagesByCreatedAt(t *testing.T) {
	c, msgs := sampleConversation(t)
	codec := New(func() int64 { return 1 })

	data, _, err := codec.ExportMarkdown([]model.Conversation{c}, map[string][]model.Message{c.ID: msgs})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var body string
	for _, f := range zr.File {
		if f.Name == "conversations/"+c.ID+".md" {
			rc, err := f.Open()
			require.NoError(t, err)
			buf := new(bytes.Buffer)
			_, err = buf.ReadFrom(rc)
			require.NoError(t, err)
			rc.Close()
			body = buf.String()
		}
	}
	require.NotEmpty(t, body)
	assert.Less(t, strings.Index(body, "hello"), strings.Index(body, "hi there"))
	assert.Contains(t, body, "## You")
	assert.Contains(t, body, "## Assistant")
}

func TestValidateAcceptsVersionOneArchive(t *testing.T) {
	c, msgs := sampleConversation(t)
	codec := New(func() int64 { return 1 })
	data, _, err := codec.Export([]model.Conversation{c}, map[string][]model.Message{c.ID: msgs}, "all")
	require.NoError(t, err)

	report, err := codec.Validate(data)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Manifest.Version)
	assert.Empty(t, report.Warnings)
}

func TestValidateRejectsMissingManifest(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())

	codec := New(func() int64 { return 1 })
	_, err := codec.Validate(buf.Bytes())
	require.Error(t, err)
	kind, ok := model.AsKind(err)
	require.True(t, ok)
	assert.Equal(t, model.KindValidation, kind)
}

func TestReadConversationsRoundTrip(t *testing.T) {
	c, msgs := sampleConversation(t)
	codec := New(func() int64 { return 1 })
	data, _, err := codec.Export([]model.Conversation{c}, map[string][]model.Message{c.ID: msgs}, "claude")
	require.NoError(t, err)

	convs, msgsByConv, err := ReadConversations(data)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, c.ID, convs[0].ID)
	assert.Len(t, msgsByConv[c.ID], 2)
}

func TestFilenameFormatsScopeAndTimestamp(t *testing.T) {
	name := Filename("claude", mustParseTime(t, "2024-01-02T03:04:05Z"))
	assert.Equal(t, "chat-central-export-claude-20240102-030405.zip", name)
}
