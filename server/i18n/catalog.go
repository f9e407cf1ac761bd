// Package i18n keeps the translation catalogs of the console and negotiates
// the language of a user.
package i18n

import (
	"crudconsole/logger"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

type Catalog struct {
	mutex           sync.RWMutex
	defaultLanguage string
	messages        map[string]map[string]string
	languages       []string
	matcher         language.Matcher
}

func NewCatalog(defaultLanguage string) *Catalog {
	c := &Catalog{defaultLanguage: defaultLanguage, messages: make(map[string]map[string]string)}
	c.messages[defaultLanguage] = make(map[string]string)
	c.rebuild()
	return c
}

// LoadDir reads every "<lang>.json" file of dir.
func LoadDir(dir string, defaultLanguage string) (*Catalog, error) {
	c := NewCatalog(defaultLanguage)
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	for _, file := range files {
		data, err := ioutil.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", file)
		}
		var messages map[string]interface{}
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, errors.Wrapf(err, "decode %s", file)
		}
		lang := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		c.Add(lang, messages)
		logger.Debug("Loaded %d translations for '%s'", len(c.messages[lang]), lang)
	}
	return c, nil
}

// Add merges nested messages into the catalog of lang, keys are flattened to "a.b.c".
func (c *Catalog) Add(lang string, messages map[string]interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	target, ok := c.messages[lang]
	if !ok {
		target = make(map[string]string)
		c.messages[lang] = target
	}
	flatten("", messages, target)
	c.rebuild()
}

func flatten(prefix string, messages map[string]interface{}, target map[string]string) {
	for key, value := range messages {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flatten(key, v, target)
		case string:
			target[key] = v
		default:
			target[key] = fmt.Sprint(v)
		}
	}
}

// rebuild must run under the write lock.
func (c *Catalog) rebuild() {
	c.languages = make([]string, 0, len(c.messages))
	for lang := range c.messages {
		if lang != c.defaultLanguage {
			c.languages = append(c.languages, lang)
		}
	}
	sort.Strings(c.languages)
	c.languages = append([]string{c.defaultLanguage}, c.languages...)

	tags := make([]language.Tag, 0, len(c.languages))
	for _, lang := range c.languages {
		tags = append(tags, language.Make(lang))
	}
	c.matcher = language.NewMatcher(tags)
}

func (c *Catalog) Languages() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]string(nil), c.languages...)
}

// Match picks the best supported language for the preferences, each of them
// being a language tag or an Accept-Language header value.
func (c *Catalog) Match(preferences ...string) string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var desired []language.Tag
	for _, preference := range preferences {
		if preference == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(preference)
		if err != nil {
			continue
		}
		desired = append(desired, tags...)
	}
	if len(desired) == 0 {
		return c.defaultLanguage
	}
	_, index, confidence := c.matcher.Match(desired...)
	if confidence == language.No {
		return c.defaultLanguage
	}
	return c.languages[index]
}

// Translate falls back to the default language and then to the key itself.
func (c *Catalog) Translate(lang string, key string) string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if message, ok := c.messages[lang][key]; ok {
		return message
	}
	if message, ok := c.messages[c.defaultLanguage][key]; ok {
		return message
	}
	return key
}

func (c *Catalog) Messages(lang string) (map[string]string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	messages, ok := c.messages[lang]
	if !ok {
		return nil, false
	}
	result := make(map[string]string, len(messages))
	for k, v := range messages {
		result[k] = v
	}
	return result, true
}
