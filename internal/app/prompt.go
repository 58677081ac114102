package app

import (
	"fmt"
	"strings"

	"ragdesk/internal/vectorstore"
)

const (
	DefaultLength    = "medium"
	DefaultTone      = "professional"
	DefaultFormality = "neutral"
)

// StyleOptions shape the wording of an answer. Empty fields take defaults.
type StyleOptions struct {
	Length    string `json:"length" form:"length"`
	Tone      string `json:"tone" form:"tone"`
	Formality string `json:"formality" form:"formality"`
}

func (o StyleOptions) withDefaults() StyleOptions {
	if strings.TrimSpace(o.Length) == "" {
		o.Length = DefaultLength
	}
	if strings.TrimSpace(o.Tone) == "" {
		o.Tone = DefaultTone
	}
	if strings.TrimSpace(o.Formality) == "" {
		o.Formality = DefaultFormality
	}
	return o
}

// Citation points at the source file and estimated page of a retrieved chunk.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

func (c Citation) String() string {
	return fmt.Sprintf("%s - p. %d", c.Source, c.Page)
}

// Retrieval is the context assembled for one question.
type Retrieval struct {
	Matches   []vectorstore.Match
	Context   string
	Citations []Citation
}

func newRetrieval(matches []vectorstore.Match) *Retrieval {
	docs := make([]string, 0, len(matches))
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, m.Document)
		citations = append(citations, Citation{Source: m.Metadata.Source, Page: m.Metadata.PageNumber})
	}
	return &Retrieval{
		Matches:   matches,
		Context:   strings.Join(docs, "\n"),
		Citations: citations,
	}
}

func citationStrings(citations []Citation) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		out = append(out, c.String())
	}
	return out
}

func buildUserMessage(context, prompt, language string, style StyleOptions) string {
	style = style.withDefaults()
	return fmt.Sprintf(
		"Use this context if it's helpful: %s\n\nNow, respond in %s to the following prompt: %s\n"+
			"Keep the text %s, use a %s register and stick to this tone of voice for the text: %s.",
		context, language, prompt, style.Length, style.Formality, style.Tone,
	)
}
