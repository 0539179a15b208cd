// Package processing implements the grammar check pipeline: language
// detection, prompt construction, model invocation and reshaping of the
// model's JSON reply into a CheckResponse.
package processing

// Style is a writing tone preset that biases the correction prompt.
type Style string

const (
	StyleFormal   Style = "formal"
	StyleCasual   Style = "casual"
	StyleInformal Style = "informal"
	StyleGenZ     Style = "gen-z"
	StyleAcademic Style = "academic"
)

// Styles lists the recognized presets in display order.
var Styles = []Style{StyleFormal, StyleCasual, StyleInformal, StyleGenZ, StyleAcademic}

// Language is the heuristic classification of the input text.
// Model replies may carry other values; they are passed through untouched.
type Language string

const (
	English    Language = "English"
	Indonesian Language = "Indonesian"
)

const (
	// MaxTextLength is the input limit in characters.
	MaxTextLength = 5000

	// MaxSuggestions caps the suggestions returned per check.
	MaxSuggestions = 5
)

// CheckRequest is one grammar check call. Language is an optional hint;
// it is validated but detection always runs on the text.
type CheckRequest struct {
	Text     string `json:"text" validate:"required,max=5000"`
	Style    Style  `json:"style" validate:"required,oneof=formal casual informal gen-z academic"`
	Language string `json:"language,omitempty" validate:"omitempty,oneof=en id"`
}

// Suggestion is one proposed correction.
type Suggestion struct {
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
}

// CheckResponse is the shaped result of a pipeline run.
// Suggestions is never nil and holds at most MaxSuggestions entries.
type CheckResponse struct {
	Suggestions      []Suggestion `json:"suggestions"`
	DetectedLanguage Language     `json:"detectedLanguage"`
	ProcessedText    string       `json:"processedText"`
}
