package prayer

import (
	"github.com/Semior001/intercede/app/news"
	"github.com/samber/lo"
)

// Field names of a Record.
const (
	FieldTitle      = "title"
	FieldLink       = "link"
	FieldSource     = "source"
	FieldPublished  = "published"
	FieldHeadline   = "headline"
	FieldESVVerse   = "esv_verse"
	FieldReflection = "reflection"
	FieldPrayer     = "prayer"
)

// Record is a headline merged with the fields generated for it.
// Any field the model returns is kept as is.
type Record map[string]any

// Title returns the headline title.
func (r Record) Title() string { return r.str(FieldTitle) }

// Link returns the headline link.
func (r Record) Link() string { return r.str(FieldLink) }

// Source returns the headline source.
func (r Record) Source() string { return r.str(FieldSource) }

// Published returns the headline publication time, as it was in the feed.
func (r Record) Published() string { return r.str(FieldPublished) }

// Headline returns the headline as echoed by the model.
func (r Record) Headline() string { return r.str(FieldHeadline) }

// ESVVerse returns the scripture reference.
func (r Record) ESVVerse() string { return r.str(FieldESVVerse) }

// Reflection returns the reflection.
func (r Record) Reflection() string { return r.str(FieldReflection) }

// Prayer returns the prayer.
func (r Record) Prayer() string { return r.str(FieldPrayer) }

// missing lists the generated fields that are absent or empty.
func (r Record) missing() []string {
	generated := map[string]string{
		FieldHeadline:   r.Headline(),
		FieldESVVerse:   r.ESVVerse(),
		FieldReflection: r.Reflection(),
		FieldPrayer:     r.Prayer(),
	}

	return lo.Filter([]string{FieldHeadline, FieldESVVerse, FieldReflection, FieldPrayer}, func(k string, _ int) bool {
		return generated[k] == ""
	})
}

func (r Record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func headlineFields(h news.Headline) map[string]any {
	return map[string]any{
		FieldTitle:     h.Title,
		FieldLink:      h.Link,
		FieldSource:    h.Source,
		FieldPublished: h.Published,
	}
}
