// Package summarizer renders a conversation window into a transcript and
// asks Gemini for a natural-language summary of it.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/chatdigest/chatdigest/internal/markup"
	"github.com/chatdigest/chatdigest/internal/store"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash-lite"

	// DefaultTimeout bounds a single summarization call.
	DefaultTimeout = 60 * time.Second

	timeLayout = "02/01/2006 15:04:05"

	// systemInstruction fixes the output language and describes the
	// transcript format the model will receive.
	systemInstruction = `Tous les messages proviennent d'une discussion WhatsApp. Fais un résumé clair et concis en langue française. Voici le format des messages:
Numéro: {numéro_whatsapp_de_l'expéditeur}
Nom: {nom_whatsapp_de_l'expéditeur}
Date et Heure: {date_et_heure_du_message}
Contenu: {message_whatsapp_envoyé_par_l'expéditeur}
----------`
)

// Config configures the Gemini-backed summarizer.
type Config struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	Location *time.Location // timezone for transcript timestamps

	// BaseURL overrides the Gemini API endpoint (useful for testing).
	BaseURL string
}

// Summarizer is a stateless adapter around the Gemini generateContent API.
// Sampling is pinned to its most deterministic values so the same window
// summarizes the same way.
type Summarizer struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	location *time.Location
	encoder  *tiktoken.Tiktoken // nil when the encoding is unavailable
}

// New creates a Summarizer and its underlying Gemini client.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("summarizer: api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("summarizer: create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	// Token counts are an estimate only; fall back to bytes/4 when the
	// encoding files cannot be loaded (e.g. offline).
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("tiktoken encoding unavailable, using byte estimate")
		encoder = nil
	}

	return &Summarizer{
		client:   client,
		model:    model,
		timeout:  timeout,
		location: loc,
		encoder:  encoder,
	}, nil
}

// Summarize renders the window into a transcript, sends it to Gemini and
// returns the summary converted to WhatsApp markup. A model response with
// no text yields an empty string, not an error.
func (s *Summarizer) Summarize(ctx context.Context, messages []store.Message) (string, error) {
	transcript := Transcript(messages, s.location)

	log.Debug().
		Str("model", s.model).
		Int("messages", len(messages)).
		Int("transcript_tokens", s.estimateTokens(transcript)).
		Msg("calling summarization backend")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(transcript), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		TopK:              genai.Ptr[float32](0),
		TopP:              genai.Ptr[float32](0),
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		log.Warn().Str("model", s.model).Msg("summarization backend returned no text")
		return "", nil
	}
	return markup.ToWhatsApp(text), nil
}

// Transcript renders messages into the four-field block format announced
// in the system instruction, in window order.
func Transcript(messages []store.Message, loc *time.Location) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString("\n\nNuméro: ")
		b.WriteString(m.SenderID)
		b.WriteString("\nNom: ")
		b.WriteString(m.Author)
		b.WriteString("\nDate et Heure: ")
		b.WriteString(time.UnixMilli(m.Timestamp).In(loc).Format(timeLayout))
		b.WriteString("\nContenu: ")
		b.WriteString(m.Content)
		b.WriteString("\n----------")
	}
	return b.String()
}

func (s *Summarizer) estimateTokens(text string) int {
	if s.encoder == nil {
		return len(text) / 4
	}
	return len(s.encoder.Encode(text, nil, nil))
}
