package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tipjar-backend/internal/common/logger"
)

//go:embed lang/*.json
var catalogFS embed.FS

var tokenPattern = regexp.MustCompile(`{{(.*?)}}`)

// requiredKeys are the entries every deployment needs to be able to answer
// with; the default catalog is checked for them at load time.
var requiredKeys = []string{
	"welcome",
	"balance.text",
	"deposit.text",
	"help.title",
	"disclaimer.text",
	"withdrawal.amount",
	"withdrawal.destination",
	"withdrawal.confirm",
	"tip.confirm",
	"errors.wallet_missing",
	"buttons.menu.balance",
	"buttons.menu.deposit",
	"buttons.menu.withdraw",
	"buttons.menu.help",
}

// Catalog resolves (language, dotted key, tokens) to localized text.
// Resolution is two-tier: the requested language first, then the configured
// default. Missing or unparsable catalogs fail at construction time, not at
// lookup time.
type Catalog struct {
	defaultLang string
	languages   map[string]map[string]interface{}
}

func Load(defaultLang string) (*Catalog, error) {
	entries, err := catalogFS.ReadDir("lang")
	if err != nil {
		return nil, fmt.Errorf("read language catalogs: %w", err)
	}

	languages := make(map[string]map[string]interface{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		lang := strings.TrimSuffix(name, ".json")

		raw, err := catalogFS.ReadFile("lang/" + name)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		languages[lang] = parsed
	}

	c := &Catalog{defaultLang: defaultLang, languages: languages}

	if _, ok := languages[defaultLang]; !ok {
		return nil, fmt.Errorf("default language catalog %q is missing", defaultLang)
	}
	for _, key := range requiredKeys {
		if _, ok := lookup(languages[defaultLang], key); !ok {
			return nil, fmt.Errorf("default catalog %q is missing required key %q", defaultLang, key)
		}
	}

	return c, nil
}

// DefaultLanguage returns the configured fallback language.
func (c *Catalog) DefaultLanguage() string {
	return c.defaultLang
}

// Has reports whether a catalog for the given language is loaded.
func (c *Catalog) Has(lang string) bool {
	_, ok := c.languages[lang]
	return ok
}

// Languages lists the loaded catalog languages, sorted.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.languages))
	for lang := range c.languages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// String resolves a dotted key for the given language, substituting
// {{token}} placeholders. An unknown key falls back to the default language;
// if that also misses, the key itself is returned so Telegram never receives
// empty text.
func (c *Catalog) String(lang, key string, tokens map[string]string) string {
	text, ok := lookup(c.languages[lang], key)
	if !ok {
		text, ok = lookup(c.languages[c.defaultLang], key)
	}
	if !ok {
		logger.Warn().Str("language", lang).Str("key", key).Msg("Missing translation")
		return key
	}

	if len(tokens) == 0 {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		if value, ok := tokens[name]; ok {
			return value
		}
		return match
	})
}

func lookup(catalog map[string]interface{}, key string) (string, bool) {
	if catalog == nil {
		return "", false
	}

	current := catalog
	parts := strings.Split(key, ".")
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			text, ok := value.(string)
			return text, ok
		}
		current, ok = value.(map[string]interface{})
		if !ok {
			return "", false
		}
	}
	return "", false
}
