// Package texts is the localized text table: a pure mapping from
// (language, key) to template string, with {name} placeholder
// rendering and per-language city presets. Content lives in embedded
// YAML files, one per language.
package texts

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed ru.yaml uz.yaml
var files embed.FS

// DefaultLang backs fallback lookups for missing keys and languages.
const DefaultLang = "ru"

type langTable struct {
	Texts     map[string]string `yaml:"texts"`
	Cities    []string          `yaml:"cities"`
	Interests []string          `yaml:"interests"`
}

// Table holds every loaded language.
type Table struct {
	langs map[string]langTable
}

// Load parses the embedded language files.
func Load() (*Table, error) {
	t := &Table{langs: make(map[string]langTable)}
	for _, lang := range []string{"ru", "uz"} {
		data, err := files.ReadFile(lang + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("texts: read %s: %w", lang, err)
		}
		var lt langTable
		if err := yaml.Unmarshal(data, &lt); err != nil {
			return nil, fmt.Errorf("texts: parse %s: %w", lang, err)
		}
		t.langs[lang] = lt
	}
	return t, nil
}

// Languages lists the loaded language codes.
func (t *Table) Languages() []string {
	return []string{"ru", "uz"}
}

// Get returns the template for (lang, key), falling back to the
// default language and finally to the key itself.
func (t *Table) Get(lang, key string) string {
	if lt, ok := t.langs[lang]; ok {
		if s, ok := lt.Texts[key]; ok {
			return s
		}
	}
	if lang != DefaultLang {
		if s, ok := t.langs[DefaultLang].Texts[key]; ok {
			return s
		}
	}
	return key
}

// Render resolves the template and substitutes {name} placeholders.
func (t *Table) Render(lang, key string, args map[string]string) string {
	s := t.Get(lang, key)
	for name, value := range args {
		s = strings.ReplaceAll(s, "{"+name+"}", value)
	}
	return s
}

// Cities returns the preset city list for a language.
func (t *Table) Cities(lang string) []string {
	if lt, ok := t.langs[lang]; ok && len(lt.Cities) > 0 {
		return lt.Cities
	}
	return t.langs[DefaultLang].Cities
}

// Interests returns the interest tag keys in display order.
func (t *Table) Interests() []string {
	return t.langs[DefaultLang].Interests
}

// InterestLabel renders the display label of an interest tag.
func (t *Table) InterestLabel(lang, tag string) string {
	return t.Get(lang, "button-"+tag)
}
