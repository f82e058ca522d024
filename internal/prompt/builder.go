// Package prompt assembles the text sent to a provider: the persona preamble,
// the remembered user context, the user's message, and the search and
// attachment blocks.
package prompt

import (
	"fmt"
	"strings"

	"github.com/edgard/murailochat/internal/search"
)

// DefaultAssistantName is used when no name is configured.
const DefaultAssistantName = "Murai"

// Block headers, in the order they appear in the prompt.
const (
	WebHeader         = "Web search results:"
	YouTubeHeader     = "YouTube videos:"
	ImageHeader       = "Image results:"
	AttachmentsHeader = "Archivos adjuntos:"
)

// maxSearchLines bounds each search block. Attachment blocks are unbounded.
const maxSearchLines = 3

const personaTemplate = "Eres %s, un asistente conversacional cercano, claro y con buen humor. " +
	"Responde en el idioma del usuario, con precisión y sin inventar datos. " +
	"Puedes ayudar con tecnología, ciencia, cocina, viajes, historia, cultura y cualquier tema general; " +
	"si el mensaje incluye resultados de búsqueda o archivos adjuntos, úsalos como contexto y cita los enlaces relevantes."

const memoryTemplate = " Información que recuerdas sobre este usuario: %s"

type options struct {
	name   string
	memory string
	search search.Results
	files  []string
}

// Option adds optional context to Build.
type Option func(*options)

// WithAssistantName sets the name the persona introduces itself with.
func WithAssistantName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMemory embeds remembered user context in the preamble.
func WithMemory(memory string) Option {
	return func(o *options) { o.memory = memory }
}

// WithSearchResults appends the web, video and image blocks.
func WithSearchResults(results search.Results) Option {
	return func(o *options) { o.search = results }
}

// WithFileSummaries appends the attachment block, one line per summary.
func WithFileSummaries(summaries []string) Option {
	return func(o *options) { o.files = summaries }
}

// Preamble returns the persona text for name, with memory embedded when set.
func Preamble(name, memory string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAssistantName
	}
	p := fmt.Sprintf(personaTemplate, name)
	if memory = strings.TrimSpace(memory); memory != "" {
		p += fmt.Sprintf(memoryTemplate, memory)
	}
	return p
}

// Build returns the enriched prompt for rawPrompt. Blocks always follow the
// order web, YouTube, images, attachments; a source without entries adds
// nothing. Build does not sanitize.
func Build(rawPrompt string, opts ...Option) string {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var b strings.Builder
	b.WriteString(Preamble(o.name, o.memory))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(rawPrompt))

	writeBlock(&b, WebHeader, limit(o.search.Web, maxSearchLines), func(r search.WebResult) string {
		return fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.Link)
	})
	writeBlock(&b, YouTubeHeader, limit(o.search.YouTube, maxSearchLines), func(r search.VideoResult) string {
		return fmt.Sprintf("%s: %s (%s)", r.Title, r.Description, r.URL)
	})
	writeBlock(&b, ImageHeader, limit(o.search.Images, maxSearchLines), func(r search.ImageResult) string {
		return fmt.Sprintf("%s (%s, %s)", r.Title, r.Link, r.DisplayLink)
	})
	writeBlock(&b, AttachmentsHeader, o.files, func(s string) string { return s })

	return b.String()
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func writeBlock[T any](b *strings.Builder, header string, items []T, line func(T) string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(header)
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(line(item))
	}
}
