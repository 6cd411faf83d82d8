// Package webhook receives inbound events from the messaging gateway,
// classifies them and routes them to the store or the pipeline.
package webhook

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/chatdigest/chatdigest/internal/pipeline"
	"github.com/chatdigest/chatdigest/internal/store"
)

// TriggerSentinel is the exact message body that starts a summarization
// run instead of being stored.
const TriggerSentinel = "{{# summarize #}}"

// newsletterSuffix marks broadcast-channel senders whose messages are
// never part of a conversation.
const newsletterSuffix = "@newsletter"

// maxBodySize caps an inbound webhook payload (1MB).
const maxBodySize = 1 << 20

// Disposition is the classification of one inbound event.
type Disposition int

const (
	// DispositionTrigger starts the summarization pipeline.
	DispositionTrigger Disposition = iota
	// DispositionIgnorable is dropped without action: our own summary
	// echoing back, or a broadcast-channel message.
	DispositionIgnorable
	// DispositionOrdinary is stored verbatim.
	DispositionOrdinary
)

// Classify maps a message body to exactly one disposition. Checks run
// in order: trigger, then ignorable, then ordinary. The sentinel wins
// even if it shared a prefix with the summary header.
func Classify(body, broadcastFrom string) Disposition {
	if body == TriggerSentinel {
		return DispositionTrigger
	}
	if strings.HasPrefix(body, pipeline.SummaryHeader) || strings.HasSuffix(broadcastFrom, newsletterSuffix) {
		return DispositionIgnorable
	}
	return DispositionOrdinary
}

// Runner starts one summarization run for a conversation pair.
type Runner interface {
	Run(ctx context.Context, senderID, recipientID string, fromMe bool) error
}

// Handler ingests gateway webhook events. Whatever happens internally,
// the response is an empty 200: the gateway has no use for failure
// detail and would retry destructively on anything else.
type Handler struct {
	store  store.Store
	runner Runner
}

// NewHandler creates the ingestion handler.
func NewHandler(st store.Store, runner Runner) *Handler {
	return &Handler{store: st, runner: runner}
}

// ServeHTTP processes one inbound event and acknowledges it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.process(r)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return // malformed payload, silently ignored
	}
	text := data.Get("body").String()
	senderID := data.Get("from").String()
	recipientID := data.Get("to").String()
	if senderID == "" || recipientID == "" {
		return
	}

	ctx := r.Context()
	switch Classify(text, gjson.GetBytes(body, "from").String()) {
	case DispositionTrigger:
		err := h.runner.Run(ctx, senderID, recipientID, data.Get("fromMe").Bool())
		switch {
		case errors.Is(err, pipeline.ErrEmptyWindow):
			log.Info().Str("sender", senderID).Msg("summary requested with no buffered messages")
		case err != nil:
			log.Error().Err(err).Str("sender", senderID).Msg("summarization run failed")
		}
	case DispositionIgnorable:
		// No action, no error.
	case DispositionOrdinary:
		author := data.Get("pushname").String()
		if err := h.store.Append(ctx, text, author, senderID, recipientID); err != nil {
			log.Error().Err(err).Str("sender", senderID).Msg("message could not be stored")
		}
	}
}
