package processing

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/teilomillet/koreksi/errors"
)

// ErrMalformedModelResponse is returned when the model reply does not hold
// exactly one parseable JSON object.
var ErrMalformedModelResponse = errors.New("malformed model response")

// Extract pulls the JSON object out of a raw model reply and reshapes it.
// The span runs from the first '{' to the last '}', so prose around the
// object is ignored, but the span itself must hold exactly one object.
// Missing or mistyped fields are defaulted rather than rejected.
func Extract(raw, input string, fallback Language) (*CheckResponse, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedModelResponse)
	}

	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelResponse, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing content after JSON object", ErrMalformedModelResponse)
	}

	resp := &CheckResponse{
		Suggestions:      reshapeSuggestions(parsed["suggestions"]),
		DetectedLanguage: fallback,
		ProcessedText:    input,
	}
	if s, ok := parsed["detectedLanguage"].(string); ok && s != "" {
		resp.DetectedLanguage = Language(s)
	}
	if s, ok := parsed["processedText"].(string); ok && s != "" {
		resp.ProcessedText = s
	}
	return resp, nil
}

func reshapeSuggestions(v any) []Suggestion {
	items, _ := v.([]any)
	if len(items) > MaxSuggestions {
		items = items[:MaxSuggestions]
	}

	out := make([]Suggestion, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		s := Suggestion{
			Original:    stringField(obj, "original"),
			Suggestion:  stringField(obj, "suggestion"),
			Explanation: stringField(obj, "explanation"),
			StartIndex:  intField(obj, "startIndex"),
			EndIndex:    intField(obj, "endIndex"),
		}
		if s.EndIndex < s.StartIndex {
			s.EndIndex = s.StartIndex
		}
		out = append(out, s)
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// intField coerces numbers and numeric strings, truncating fractions and
// clamping to [0, MaxInt]. Anything else is 0.
func intField(obj map[string]any, key string) int {
	var f float64
	switch v := obj[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			f = float64(n)
		} else if n, err := v.Float64(); err == nil {
			f = n
		}
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) {
			return 0
		}
		f = n
	default:
		return 0
	}

	switch {
	case f <= 0:
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	default:
		return int(f)
	}
}
