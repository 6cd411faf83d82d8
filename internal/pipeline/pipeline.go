// Package pipeline orchestrates one summarization run: fetch the
// conversation window, summarize it, deliver the summary and prune the
// summarized range from storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatdigest/chatdigest/internal/store"
)

// SummaryHeader opens every delivered summary. Ingestion also uses it to
// recognize our own summaries echoing back through the webhook.
const SummaryHeader = "*_Résumé des messages de WhatsApp_*"

const timeLayout = "02/01/2006 15:04:05"

// ErrEmptyWindow reports a trigger with nothing buffered to summarize.
// It is a handled condition, not a fault.
var ErrEmptyWindow = errors.New("pipeline: no messages to summarize")

// Summarizer produces a summary of an ordered conversation window.
type Summarizer interface {
	Summarize(ctx context.Context, messages []store.Message) (string, error)
}

// Sender delivers a text payload to a chat endpoint.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Pipeline wires the store, the summarizer and the delivery client.
// Within one run the steps are strictly sequential: fetch, summarize,
// deliver, prune. Concurrent runs for the same pair are not serialized;
// a rare double summary is cheaper than a lock around the store.
type Pipeline struct {
	store      store.Store
	summarizer Summarizer
	sender     Sender
	location   *time.Location
}

// New creates a Pipeline. A nil location defaults to UTC.
func New(st store.Store, sum Summarizer, snd Sender, loc *time.Location) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{store: st, summarizer: sum, sender: snd, location: loc}
}

// Run summarizes the conversation window of the pair and delivers the
// result to the side that did not issue the trigger: the trigger arrived
// from senderID toward recipientID, so the summary goes back to senderID
// unless the trigger came from the operator's own account (fromMe), in
// which case it goes to recipientID.
//
// The summarized range is pruned only after a successful delivery; on
// any failure the window stays buffered for the next summary.
func (p *Pipeline) Run(ctx context.Context, senderID, recipientID string, fromMe bool) error {
	window, err := p.store.Conversation(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("pipeline: fetch window: %w", err)
	}
	if len(window) == 0 {
		return ErrEmptyWindow
	}

	first := window[0].Timestamp
	last := window[len(window)-1].Timestamp

	summary, err := p.summarizer.Summarize(ctx, window)
	if err != nil {
		return fmt.Errorf("pipeline: summarize window: %w", err)
	}

	payload := fmt.Sprintf("%s\n*De*: %s\n*À*: %s\n*Nombre de messages*: %d\n\n%s\n",
		SummaryHeader,
		time.UnixMilli(first).In(p.location).Format(timeLayout),
		time.UnixMilli(last).In(p.location).Format(timeLayout),
		len(window),
		summary,
	)

	target := senderID
	if fromMe {
		target = recipientID
	}

	if err := p.sender.Send(ctx, target, payload); err != nil {
		return fmt.Errorf("pipeline: deliver summary: %w", err)
	}

	if err := p.store.Prune(ctx, senderID, recipientID, first, last); err != nil {
		// Delivery already happened; the window will simply be part of
		// the next summary as well.
		return fmt.Errorf("pipeline: prune window: %w", err)
	}

	log.Info().
		Str("target", target).
		Int("messages", len(window)).
		Int64("from", first).
		Int64("to", last).
		Msg("conversation summarized")
	return nil
}
