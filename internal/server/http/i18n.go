package httpserver

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/and161185/noteskeeper/internal/model"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator resolves UI labels for one language.
type Translator map[string]string

// Get returns the label for key, or key itself when missing.
func (t Translator) Get(key string) string {
	if v, ok := t[key]; ok {
		return v
	}
	return key
}

// catalog holds translators by language code.
type catalog map[string]Translator

func loadCatalog() (catalog, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	c := make(catalog, len(entries))
	for _, e := range entries {
		raw, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}
		var t Translator
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("locale %s: %w", e.Name(), err)
		}
		c[strings.TrimSuffix(e.Name(), ".yaml")] = t
	}
	for _, lang := range []string{model.LangRU, model.LangEN} {
		if _, ok := c[lang]; !ok {
			return nil, fmt.Errorf("locale %s missing", lang)
		}
	}
	return c, nil
}

func (c catalog) For(lang string) Translator {
	if t, ok := c[lang]; ok {
		return t
	}
	return c[model.LangRU]
}
