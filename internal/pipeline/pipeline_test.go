package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdigest/chatdigest/internal/pipeline"
	"github.com/chatdigest/chatdigest/internal/store"
)

// fakeStore returns a canned window and records prune calls.
type fakeStore struct {
	window   []store.Message
	fetchErr error

	pruned     bool
	prunedA    string
	prunedB    string
	prunedFrom int64
	prunedTo   int64
	pruneErr   error
}

func (f *fakeStore) Append(ctx context.Context, content, author, senderID, recipientID string) error {
	return nil
}

func (f *fakeStore) Conversation(ctx context.Context, a, b string) ([]store.Message, error) {
	return f.window, f.fetchErr
}

func (f *fakeStore) Prune(ctx context.Context, a, b string, from, to int64) error {
	f.pruned = true
	f.prunedA, f.prunedB = a, b
	f.prunedFrom, f.prunedTo = from, to
	return f.pruneErr
}

func (f *fakeStore) Close() error { return nil }

type fakeSummarizer struct {
	summary string
	err     error
	called  bool
	got     []store.Message
}

func (f *fakeSummarizer) Summarize(ctx context.Context, messages []store.Message) (string, error) {
	f.called = true
	f.got = messages
	return f.summary, f.err
}

type fakeSender struct {
	err    error
	called bool
	to     string
	body   string
}

func (f *fakeSender) Send(ctx context.Context, to, body string) error {
	f.called = true
	f.to = to
	f.body = body
	return f.err
}

func window() []store.Message {
	return []store.Message{
		{Content: "un", Author: "Alice", SenderID: "a", RecipientID: "b", Timestamp: 100},
		{Content: "deux", Author: "Bob", SenderID: "b", RecipientID: "a", Timestamp: 200},
		{Content: "trois", Author: "Alice", SenderID: "a", RecipientID: "b", Timestamp: 300},
	}
}

func TestRun_EmptyWindow(t *testing.T) {
	st := &fakeStore{}
	sum := &fakeSummarizer{}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	err := p.Run(context.Background(), "a", "b", false)

	require.ErrorIs(t, err, pipeline.ErrEmptyWindow)
	assert.False(t, sum.called, "summarizer must not run on an empty window")
	assert.False(t, snd.called, "nothing must be delivered for an empty window")
	assert.False(t, st.pruned)
}

func TestRun_DeliversToTriggerIssuer(t *testing.T) {
	st := &fakeStore{window: window()}
	sum := &fakeSummarizer{summary: "le résumé"}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	require.NoError(t, p.Run(context.Background(), "a", "b", false))

	// Trigger came from the counterparty: the summary goes back to them.
	assert.Equal(t, "a", snd.to)
	require.Len(t, sum.got, 3)

	assert.True(t, strings.HasPrefix(snd.body, pipeline.SummaryHeader))
	assert.Contains(t, snd.body, "*Nombre de messages*: 3")
	assert.Contains(t, snd.body, "\n\nle résumé\n")
}

func TestRun_DeliversToCounterpartyWhenFromSelf(t *testing.T) {
	st := &fakeStore{window: window()}
	sum := &fakeSummarizer{summary: "le résumé"}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	require.NoError(t, p.Run(context.Background(), "a", "b", true))

	// Operator triggered from their own account: target the other side.
	assert.Equal(t, "b", snd.to)
}

func TestRun_PrunesExactWindowBounds(t *testing.T) {
	st := &fakeStore{window: window()}
	sum := &fakeSummarizer{summary: "le résumé"}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	require.NoError(t, p.Run(context.Background(), "a", "b", false))

	require.True(t, st.pruned)
	assert.Equal(t, "a", st.prunedA)
	assert.Equal(t, "b", st.prunedB)
	assert.Equal(t, int64(100), st.prunedFrom)
	assert.Equal(t, int64(300), st.prunedTo)
}

func TestRun_HeaderUsesConfiguredLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	ts := time.Date(2025, 7, 1, 12, 0, 0, 0, paris).UnixMilli()
	st := &fakeStore{window: []store.Message{
		{Content: "seul", Author: "A", SenderID: "a", RecipientID: "b", Timestamp: ts},
	}}
	sum := &fakeSummarizer{summary: "s"}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, paris)

	require.NoError(t, p.Run(context.Background(), "a", "b", false))
	assert.Contains(t, snd.body, "*De*: 01/07/2025 12:00:00")
	assert.Contains(t, snd.body, "*À*: 01/07/2025 12:00:00")
}

func TestRun_SummarizerFailureAbortsBeforeDelivery(t *testing.T) {
	st := &fakeStore{window: window()}
	sum := &fakeSummarizer{err: errors.New("backend down")}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	err := p.Run(context.Background(), "a", "b", false)

	require.Error(t, err)
	assert.False(t, snd.called)
	assert.False(t, st.pruned)
}

func TestRun_DeliveryFailureKeepsWindow(t *testing.T) {
	st := &fakeStore{window: window()}
	sum := &fakeSummarizer{summary: "le résumé"}
	snd := &fakeSender{err: errors.New("gateway unreachable")}
	p := pipeline.New(st, sum, snd, time.UTC)

	err := p.Run(context.Background(), "a", "b", false)

	require.Error(t, err)
	assert.False(t, st.pruned, "an undelivered window must stay buffered")
}

func TestRun_PruneFailureIsReportedAfterDelivery(t *testing.T) {
	st := &fakeStore{window: window(), pruneErr: errors.New("connection refused")}
	sum := &fakeSummarizer{summary: "le résumé"}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	err := p.Run(context.Background(), "a", "b", false)

	require.Error(t, err)
	assert.True(t, snd.called, "delivery already happened before the prune failed")
}

func TestRun_StoreFetchFailure(t *testing.T) {
	st := &fakeStore{fetchErr: errors.New("connection refused")}
	sum := &fakeSummarizer{}
	snd := &fakeSender{}
	p := pipeline.New(st, sum, snd, time.UTC)

	err := p.Run(context.Background(), "a", "b", false)

	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrEmptyWindow)
	assert.False(t, sum.called)
}
