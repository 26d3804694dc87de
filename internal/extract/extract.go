// Package extract screens candidate papers for experimental functional data
// and pulls per-experiment records out of paper text using a Generative AI
// backend. Raw model output crosses into typed ExperimentRecords only through
// ParseExperiments.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// ErrMalformedResponse reports a model reply that is not the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed AI response")

// DefaultMaxTextChars is the paper-text budget included in an extraction prompt.
const DefaultMaxTextChars = 25000

const defaultMaxRetries = 3

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Screener decides whether a paper reports experimental functional data on a variant.
type Screener struct {
	Backend    AIBackend
	MaxRetries int
}

// NewScreener returns a Screener over backend using cfg's retry budget.
func NewScreener(backend AIBackend, cfg types.AIConfig) *Screener {
	return &Screener{Backend: backend, MaxRetries: cfg.MaxRetries}
}

type screeningReply struct {
	IsFunctional  *bool  `json:"is_functional"`
	Justification string `json:"justification"`
}

// Screen asks the backend about one paper. A reply without a boolean
// is_functional yields ErrMalformedResponse.
func (s *Screener) Screen(ctx context.Context, paper types.CandidatePaper, variantLabel string) (types.ScreeningDecision, error) {
	prompt, err := renderPrompt(screeningPromptTmpl, screeningPromptData{
		Variant:  variantLabel,
		PMID:     paper.PMID,
		Title:    paper.Title,
		Abstract: paper.Abstract,
	})
	if err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := callWithRetry(ctx, s.Backend, prompt, s.MaxRetries)
	if err != nil {
		return types.ScreeningDecision{}, err
	}

	var reply screeningReply
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &reply); err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if reply.IsFunctional == nil {
		return types.ScreeningDecision{}, fmt.Errorf("%w: missing is_functional", ErrMalformedResponse)
	}

	return types.ScreeningDecision{
		IsFunctional:  *reply.IsFunctional,
		Justification: strings.TrimSpace(reply.Justification),
	}, nil
}

// Extractor pulls raw experiment objects out of a paper's text.
type Extractor struct {
	Backend      AIBackend
	MaxRetries   int
	MaxTextChars int
}

// NewExtractor returns an Extractor over backend. maxTextChars <= 0 uses
// DefaultMaxTextChars.
func NewExtractor(backend AIBackend, cfg types.AIConfig, maxTextChars int) *Extractor {
	return &Extractor{Backend: backend, MaxRetries: cfg.MaxRetries, MaxTextChars: maxTextChars}
}

// Extract returns the experiments array of the model reply. Non-object
// elements are dropped; a missing array means no experiments.
func (e *Extractor) Extract(ctx context.Context, paperText string, paper types.FunctionalPaper, variantLabel string) ([]map[string]any, error) {
	limit := e.MaxTextChars
	if limit <= 0 {
		limit = DefaultMaxTextChars
	}

	prompt, err := renderPrompt(extractionPromptTmpl, extractionPromptData{
		Variant: variantLabel,
		PMID:    paper.PMID,
		Title:   paper.Title,
		Text:    truncateRunes(paperText, limit),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := callWithRetry(ctx, e.Backend, prompt, e.MaxRetries)
	if err != nil {
		return nil, err
	}

	var reply map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	list, ok := reply["experiments"]
	if !ok || list == nil {
		return nil, nil
	}
	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: experiments is %T, not a list", ErrMalformedResponse, list)
	}

	var out []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// experimentFields are the text fields copied verbatim from a raw experiment.
var experimentFields = []string{
	"assay_type", "system", "readout", "magnitude_stats",
	"controls_validity", "authors_conclusion",
}

// ParseExperiments converts raw experiment objects for one paper into typed
// records. Missing or non-string fields become "". Unrecognized effect
// directions and evaluations become ambiguous.
func ParseExperiments(pmid string, raw []map[string]any) []types.ExperimentRecord {
	records := make([]types.ExperimentRecord, 0, len(raw))
	for _, obj := range raw {
		text := make(map[string]string, len(experimentFields))
		for _, k := range experimentFields {
			text[k] = stringField(obj, k)
		}

		direction := types.EffectDirection(stringField(obj, "effect_direction"))
		if !direction.Valid() {
			direction = types.EffectAmbiguous
		}
		eval := types.Evaluation(stringField(obj, "evaluation"))
		if !eval.Valid() {
			eval = types.EvalAmbiguous
		}

		records = append(records, types.ExperimentRecord{
			PMID:              pmid,
			AssayType:         text["assay_type"],
			System:            text["system"],
			Readout:           text["readout"],
			EffectDirection:   direction,
			MagnitudeStats:    text["magnitude_stats"],
			ControlsValidity:  text["controls_validity"],
			AuthorsConclusion: text["authors_conclusion"],
			Evaluation:        eval,
		})
	}
	return records
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// callWithRetry calls the AI backend with exponential backoff. An APIError
// that is not Temporary is returned at once.
func callWithRetry(ctx context.Context, backend AIBackend, prompt string, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a bare-word language tag such as "json".
	if tag := leadingWord(s); tag != "" {
		if rest := s[len(tag):]; rest == "" || strings.ContainsAny(rest[:1], " \t\r\n{[") {
			s = rest
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// leadingWord returns the ASCII letters and digits at the start of s.
func leadingWord(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return s[:i]
		}
	}
	return s
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
