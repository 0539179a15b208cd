package processing

import (
	"bytes"
	"text/template"
)

var styleGuides = map[Style]string{
	StyleFormal:   "Use professional language, avoid contractions, maintain objectivity",
	StyleCasual:   "Use conversational tone, contractions are acceptable, friendly approach",
	StyleInformal: "Relaxed language, colloquialisms allowed, personal tone",
	StyleGenZ:     "Modern slang acceptable, internet culture references, trendy expressions",
	StyleAcademic: "Scholarly tone, precise terminology, citation-ready format, passive voice acceptable",
}

// StyleGuide returns the guide phrase for style, falling back to the formal
// guide for unrecognized values.
func StyleGuide(style Style) string {
	if g, ok := styleGuides[style]; ok {
		return g
	}
	return styleGuides[StyleFormal]
}

// Explanations are requested in Indonesian; every other field stays English.
const systemTemplate = `Anda adalah pemeriksa tata bahasa ahli untuk bahasa Inggris.
Pengguna menginginkan teks mereka mengikuti gaya penulisan {{.Style}}: {{.Guide}}.
Bahasa teks yang terdeteksi: {{.Language}}.
Berikan saran perbaikan dengan penjelasan dalam bahasa Indonesia untuk field "explanation".
Field lain seperti "original", "suggestion", dan "processedText" harus dalam bahasa Inggris.

Fokus pada:
1. Kebenaran tata bahasa
2. Akurasi ejaan
3. Tanda baca
4. Konsistensi gaya
5. Kejelasan dan keterbacaan

Berikan saran konstruktif yang mempertahankan makna asli sambil meningkatkan kualitas teks.
`

const userTemplate = `Periksa teks berikut untuk masalah tata bahasa, ejaan, dan gaya penulisan dalam bahasa Inggris.
Berikan hingga {{.Max}} saran perbaikan paling penting.
Pastikan field "explanation" dalam respons berisi penjelasan dalam bahasa Indonesia.
Field "original", "suggestion", dan "processedText" harus tetap dalam bahasa Inggris.

Teks yang diperiksa:
"{{.Text}}"

Kembalikan respons dalam format JSON berikut:
{
  "suggestions": [
    {
      "original": "segmen teks asli dalam bahasa Inggris",
      "suggestion": "teks yang diperbaiki dalam bahasa Inggris",
      "explanation": "penjelasan singkat tentang perbaikan dalam bahasa Indonesia",
      "startIndex": 0,
      "endIndex": 10
    }
  ],
  "detectedLanguage": "{{.Language}}",
  "processedText": "versi teks yang telah diperbaiki sepenuhnya dalam bahasa Inggris"
}
`

// Parsed once; a broken template is a programming error.
var (
	systemPrompt = template.Must(template.New("system").Parse(systemTemplate))
	userPrompt   = template.Must(template.New("user").Parse(userTemplate))
)

// BuildSystemPrompt renders the instruction block for style and lang.
func BuildSystemPrompt(style Style, lang Language) string {
	return render(systemPrompt, struct {
		Style    Style
		Guide    string
		Language Language
	}{style, StyleGuide(style), lang})
}

// BuildUserPrompt embeds the literal input and the expected JSON schema.
func BuildUserPrompt(text string, lang Language) string {
	return render(userPrompt, struct {
		Text     string
		Language Language
		Max      int
	}{text, lang, MaxSuggestions})
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	// Execution only fails on writer errors, which bytes.Buffer never returns.
	_ = t.Execute(&buf, data)
	return buf.String()
}
