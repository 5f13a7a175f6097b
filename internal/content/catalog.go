package content

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the baseline every locale falls back to.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

type bundle struct {
	catalog   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	keys      map[string]map[string]struct{}
}

func loadBundle(locales fs.FS) (*bundle, error) {
	paths, err := fs.Glob(locales, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	sort.Strings(paths)

	b := &bundle{
		catalog: catalog.NewBuilder(catalog.Fallback(language.English)),
		keys:    map[string]map[string]struct{}{},
	}
	// English first so the matcher defaults to it.
	b.supported = append(b.supported, language.English)

	for _, p := range paths {
		raw, err := fs.ReadFile(locales, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if locale != strings.TrimSuffix(path.Base(p), path.Ext(p)) {
			return nil, fmt.Errorf("locale %q does not match file %s", locale, p)
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}

		keys := make(map[string]struct{}, len(file.Messages))
		for key, value := range file.Messages {
			if err := b.catalog.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
			keys[key] = struct{}{}
		}
		b.keys[locale] = keys
		if locale != DefaultLanguage {
			b.supported = append(b.supported, tag)
		}
	}

	if _, ok := b.keys[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("base locale %s missing", DefaultLanguage)
	}
	b.matcher = language.NewMatcher(b.supported)
	return b, nil
}

func mustLoadBundle() *bundle {
	b, err := loadBundle(embeddedLocales)
	if err != nil {
		panic(err)
	}
	return b
}

var defaultBundle = mustLoadBundle()

func (b *bundle) resolve(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return language.English
	}
	_, index, confidence := b.matcher.Match(language.Make(lang))
	if confidence == language.No {
		return language.English
	}
	return b.supported[index]
}

func (b *bundle) printer(lang string) *message.Printer {
	return message.NewPrinter(b.resolve(lang), message.Catalog(b.catalog))
}

// NormalizeLanguage maps a requested language onto a supported one.
func NormalizeLanguage(lang string) string {
	base, _ := defaultBundle.resolve(lang).Base()
	return base.String()
}

// Localize formats a catalog message in lang.
func Localize(lang, key string, args ...any) string {
	return defaultBundle.printer(lang).Sprintf(key, args...)
}
