package grid

import (
	"context"
	"crudconsole/logger"
	"crudconsole/server/orient"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Presence decides whether a bound filter value takes part in the filter.
type Presence int

const (
	// PresentValues keeps every value that is set, non nil and not an empty
	// string; 0 and false are kept.
	PresentValues Presence = iota
	// TruthyValues keeps truthy values only and drops 0, false and "".
	TruthyValues
)

func ParsePresence(name string) Presence {
	if strings.EqualFold(name, "truthy") {
		return TruthyValues
	}
	return PresentValues
}

func (p Presence) String() string {
	if p == TruthyValues {
		return "truthy"
	}
	return "present"
}

func (p Presence) includes(data map[string]interface{}, key string) bool {
	value, ok := data[key]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString && s == "" {
		return false
	}
	if p == PresentValues {
		return true
	}
	if !truthy(value) {
		logger.Warn("Filter value of '%s' is falsy (%v), its clause is dropped", key, value)
		return false
	}
	return true
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case uint:
		return v != 0
	case uint64:
		return v != 0
	case uint32:
		return v != 0
	}
	return true
}

const BindingParameterClass = "MetaDataPropertyBindingParameter"

type bindingParameter struct {
	FromProperty string
	ToProperty   string
	Operator     string
}

func bindingFromRecord(record orient.Record) bindingParameter {
	text := func(name string) string {
		if v, ok := record[name].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	return bindingParameter{FromProperty: text("fromProperty"), ToProperty: text("toProperty"), Operator: text("operator")}
}

type FilterBuilder struct {
	client         orient.Client
	presence       Presence
	maxConcurrency int
}

func NewFilterBuilder(client orient.Client, presence Presence, maxConcurrency int) *FilterBuilder {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &FilterBuilder{client: client, presence: presence, maxConcurrency: maxConcurrency}
}

// Build ORs one "fromProperty.toProperty OPERATOR value" clause per bound
// parameter of the level. Parameters are visited in key order; a missing
// binding record skips its parameter. A nil level has no filter.
func (fb *FilterBuilder) Build(ctx context.Context, level *CrudLevel) (*Expression, error) {
	if level == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(level.LinksetProperty.BindingProperties))
	for key := range level.LinksetProperty.BindingProperties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bindings := make([]*bindingParameter, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fb.maxConcurrency)
	for i, key := range keys {
		i, rid := i, level.LinksetProperty.BindingProperties[key]
		g.Go(func() error {
			record, err := fb.client.Load(gctx, rid)
			if err != nil {
				if orient.IsNotFound(err) {
					logger.Warn("Binding parameter %s not found, skipping", rid)
					return nil
				}
				return errors.Wrapf(err, "binding parameter %s", rid)
			}
			binding := bindingFromRecord(record)
			bindings[i] = &binding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	expression := NewExpression()
	for _, binding := range bindings {
		if binding == nil || binding.FromProperty == "" || binding.ToProperty == "" || binding.Operator == "" {
			continue
		}
		if !fb.presence.includes(level.LinksetProperty.Data, binding.ToProperty) {
			continue
		}
		value := level.LinksetProperty.Data[binding.ToProperty]
		expression.Or(fmt.Sprintf("%s.%s %s %s", binding.FromProperty, binding.ToProperty, binding.Operator, orient.Literal(value)))
	}
	return expression, nil
}
