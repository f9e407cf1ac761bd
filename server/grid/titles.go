package grid

import (
	"context"
	"crudconsole/server/orient"
	"fmt"

	"github.com/pkg/errors"
)

const ClassMetaDataClass = "CrudClassMetaData"

type TitleLookup struct {
	client orient.Client
}

func NewTitleLookup(client orient.Client) *TitleLookup {
	return &TitleLookup{client: client}
}

// TitleColumnFor returns the title column configured for the class, ok is
// false when the class has no metadata record. Nothing is cached.
func (t *TitleLookup) TitleColumnFor(ctx context.Context, className string) (string, bool, error) {
	query := orient.Select().From(ClassMetaDataClass).Where("class = ?", className).String()
	records, err := t.client.Query(ctx, query, 1)
	if err != nil {
		return "", false, errors.Wrapf(err, "title column of %s", className)
	}
	if len(records) == 0 {
		return "", false, nil
	}

	switch column := records[0]["titleColumns"].(type) {
	case nil:
		return "", false, nil
	case string:
		return column, column != "", nil
	case []interface{}:
		if len(column) == 0 {
			return "", false, nil
		}
		return fmt.Sprint(column[0]), true, nil
	default:
		return fmt.Sprint(column), true, nil
	}
}
