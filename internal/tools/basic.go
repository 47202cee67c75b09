// ABOUTME: Basic pack: echo, add_numbers, now, word_count.
// ABOUTME: Small non-filesystem tools; each validates its own arguments.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crucible-tools/crucible/internal/content"
)

// BasicPack creates the basic tools: echo, add_numbers, now, word_count.
func BasicPack(logger *slog.Logger) []*Tool {
	if logger == nil {
		logger = slog.Default()
	}
	b := &basicHandlers{logger: logger}
	return []*Tool{
		{
			Definition: Definition{
				Name:         "echo",
				Description:  "Echo back the provided text.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
			},
			Handler: b.Echo,
		},
		{
			Definition: Definition{
				Name:         "add_numbers",
				Description:  "Return the sum of a list of numbers.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"numbers":{"type":"array","items":{"type":"number"},"minItems":1}},"required":["numbers"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"sum":{"type":"number"}},"required":["sum"]}`),
			},
			Handler: b.AddNumbers,
		},
		{
			Definition: Definition{
				Name:         "now",
				Description:  "Return the current datetime in ISO 8601. Optionally pass a timezone like 'UTC' or 'Asia/Kolkata'.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string"}}}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"iso":{"type":"string"}},"required":["iso"]}`),
			},
			Handler: b.Now,
		},
		{
			Definition: Definition{
				Name:         "word_count",
				Description:  "Count words and characters in the given text.",
				InputSchema:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"words":{"type":"integer"},"characters":{"type":"integer"}},"required":["words","characters"]}`),
			},
			Handler: b.WordCount,
		},
	}
}

type basicHandlers struct {
	logger *slog.Logger

	// nowFunc is swapped in tests
	nowFunc func() time.Time
}

func (b *basicHandlers) currentTime() time.Time {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return time.Now()
}

type echoInput struct {
	Text string `json:"text"`
}

func (b *basicHandlers) Echo(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in echoInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	jp, err := content.JSONPart(map[string]string{"text": in.Text})
	if err != nil {
		return nil, err
	}
	return content.NewResult(content.TextPart(in.Text), jp), nil
}

type addNumbersInput struct {
	Numbers []json.Number `json:"numbers"`
}

func (b *basicHandlers) AddNumbers(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in addNumbersInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: numbers must be a non-empty array of numbers", ErrInvalidInput)
	}
	if len(in.Numbers) == 0 {
		return nil, fmt.Errorf("%w: numbers must be a non-empty array", ErrInvalidInput)
	}

	var sum float64
	for _, n := range in.Numbers {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: numbers must contain only numeric values", ErrInvalidInput)
		}
		sum += f
	}

	jp, err := content.JSONPart(map[string]float64{"sum": sum})
	if err != nil {
		return nil, err
	}
	text := "sum = " + strconv.FormatFloat(sum, 'g', -1, 64)
	return content.NewResult(content.TextPart(text), jp), nil
}

type nowInput struct {
	Timezone string `json:"timezone"`
}

func (b *basicHandlers) Now(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in nowInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	loc := time.Local
	if in.Timezone != "" {
		l, err := time.LoadLocation(in.Timezone)
		if err != nil {
			// Bad zone names degrade to local time rather than failing the call.
			b.logger.Warn("invalid timezone, falling back to local", "timezone", in.Timezone, "error", err)
		} else {
			loc = l
		}
	}

	iso := b.currentTime().In(loc).Format(time.RFC3339)
	jp, err := content.JSONPart(map[string]string{"iso": iso})
	if err != nil {
		return nil, err
	}
	return content.NewResult(content.TextPart(iso), jp), nil
}

type wordCountInput struct {
	Text string `json:"text"`
}

func (b *basicHandlers) WordCount(ctx context.Context, input json.RawMessage) (*content.Result, error) {
	var in wordCountInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	words := len(strings.Fields(in.Text))
	chars := utf8.RuneCountInString(in.Text)

	jp, err := content.JSONPart(map[string]int{"words": words, "characters": chars})
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("words=%d chars=%d", words, chars)
	return content.NewResult(content.TextPart(text), jp), nil
}
