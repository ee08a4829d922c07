package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
)

type fakeTranscriber struct {
	got pipeline.FileRequest
	err error
}

func (f *fakeTranscriber) TranscribeFile(_ context.Context, req pipeline.FileRequest) (*pipeline.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{SessionID: "s1", Text: "hello from " + req.Path}, nil
}

type fakeHistory struct {
	items []history.Item
}

func (f *fakeHistory) List() ([]history.Item, error) { return f.items, nil }

func (f *fakeHistory) Read(id string) (history.Item, error) {
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return history.Item{}, fmt.Errorf("read %s: %w", id, history.ErrNotFound)
}

type fakeModels struct{}

func (fakeModels) Status(name string) models.Status {
	return models.Status{Name: name, Exists: name == "base.en", Path: "/models/ggml-" + name + ".bin"}
}

type fakeJournal struct{ runs []db.Run }

func (f *fakeJournal) RecentRuns(_ context.Context, limit int) ([]db.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func newTestServer(tr *fakeTranscriber) *Server {
	h := &fakeHistory{items: []history.Item{
		{ID: "2025-01-02_03-04-05", Text: "newest", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: "2025-01-01_03-04-05", Text: "older", Timestamp: time.Date(2025, 1, 1, 3, 4, 5, 0, time.UTC)},
	}}
	return New(tr, h, fakeModels{},
		WithDefaults(Defaults{Model: "large-v3-turbo", Language: "auto"}),
		WithJournal(&fakeJournal{runs: []db.Run{
			{SessionID: "s1", Mode: db.ModeLive, State: "completed", TextLength: 5, AudioDuration: 2 * time.Second},
			{SessionID: "s2", Mode: db.ModeFile, State: "failed", Error: "conversion failed"},
		}}),
	)
}

func TestTranscribeFileAppliesDefaults(t *testing.T) {
	tr := &fakeTranscriber{}
	s := newTestServer(tr)

	res, err := s.transcribeFile(context.Background(), call(map[string]any{
		"path":       "/tmp/talk.mp3",
		"timestamps": true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "hello from /tmp/talk.mp3", text(t, res))

	assert.Equal(t, "/tmp/talk.mp3", tr.got.Path)
	assert.Equal(t, "large-v3-turbo", tr.got.Model)
	assert.Equal(t, "auto", tr.got.Language)
	assert.True(t, tr.got.Timestamps)
}

func TestTranscribeFileRequiresPath(t *testing.T) {
	s := newTestServer(&fakeTranscriber{})

	res, err := s.transcribeFile(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTranscribeFileReportsPipelineError(t *testing.T) {
	s := newTestServer(&fakeTranscriber{err: pipeline.ErrArtifactMissing})

	res, err := s.transcribeFile(context.Background(), call(map[string]any{"path": "/missing.wav"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), pipeline.ErrArtifactMissing.Error())
}

func TestListHistoryLimit(t *testing.T) {
	s := newTestServer(&fakeTranscriber{})

	res, err := s.listHistory(context.Background(), call(map[string]any{"limit": float64(1)}))
	require.NoError(t, err)

	var items []history.Item
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "newest", items[0].Text)
}

func TestGetTranscript(t *testing.T) {
	s := newTestServer(&fakeTranscriber{})

	res, err := s.getTranscript(context.Background(), call(map[string]any{"id": "2025-01-01_03-04-05"}))
	require.NoError(t, err)
	assert.Equal(t, "older", text(t, res))

	res, err = s.getTranscript(context.Background(), call(map[string]any{"id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "nope")
}

func TestModelStatus(t *testing.T) {
	s := newTestServer(&fakeTranscriber{})

	res, err := s.modelStatus(context.Background(), call(map[string]any{"model": "base.en"}))
	require.NoError(t, err)

	var st models.Status
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &st))
	assert.True(t, st.Exists)
	assert.Equal(t, "base.en", st.Name)

	res, err = s.modelStatus(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &st))
	assert.Equal(t, "large-v3-turbo", st.Name)
	assert.False(t, st.Exists)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(&fakeTranscriber{})

	res, err := s.listRuns(context.Background(), call(map[string]any{}))
	require.NoError(t, err)

	var runs []runView
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &runs))
	require.Len(t, runs, 2)
	assert.EqualValues(t, 2000, runs[0].AudioDurationMs)
	assert.Equal(t, "conversion failed", runs[1].Error)
}

func TestTranscribeFileWrapsUnknownError(t *testing.T) {
	s := newTestServer(&fakeTranscriber{err: errors.New("boom")})

	res, err := s.transcribeFile(context.Background(), call(map[string]any{"path": "/a.wav"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
