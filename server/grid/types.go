package grid

import (
	"context"
	"crudconsole/server/orient"
	"encoding/json"
	"sort"
	"strconv"
)

type ColumnType string

const (
	ColumnLink    ColumnType = "LINK"
	ColumnLinkset ColumnType = "LINKSET"
)

func (t ColumnType) IsLink() bool {
	return t == ColumnLink || t == ColumnLinkset
}

// ColumnDefinition describes one grid column, LinkedClass is set for LINK
// and LINKSET columns only.
type ColumnDefinition struct {
	Property    string     `json:"property"`
	Type        ColumnType `json:"type"`
	LinkedClass string     `json:"linkedClass,omitempty"`
	Mandatory   bool       `json:"mandatory"`
	ReadOnly    bool       `json:"readOnly"`
}

// ColumnsFromClass lists the columns of a class in property name order.
func ColumnsFromClass(info *orient.ClassInfo) []ColumnDefinition {
	columns := make([]ColumnDefinition, 0, len(info.Properties))
	for _, property := range info.Properties {
		columns = append(columns, ColumnDefinition{
			Property:    property.Name,
			Type:        ColumnType(property.Type),
			LinkedClass: property.LinkedClass,
			Mandatory:   property.Mandatory,
			ReadOnly:    property.ReadOnly,
		})
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Property < columns[j].Property })
	return columns
}

type Row map[string]interface{}

// LinkView is the display form of a LINK or LINKSET cell. Raw and Display
// are parallel; Titled[k] is false when Display[k] fell back to Raw[k].
type LinkView struct {
	Type    ColumnType   `json:"type"`
	Raw     []orient.RID `json:"raw"`
	Display []string     `json:"display"`
	Titled  []bool       `json:"-"`
}

// Legacy renders the shape the console front-end binds to: LINKSET cells
// become {"0": title, "_0": rid, ..., "type": "LINKSET"}, titled LINK cells
// become {"0": title, "rid": rid, "type": "LINK"} and untitled LINK cells
// keep the bare identifier.
func (lv LinkView) Legacy() interface{} {
	switch lv.Type {
	case ColumnLink:
		if len(lv.Raw) == 0 {
			return nil
		}
		if len(lv.Titled) > 0 && !lv.Titled[0] {
			return lv.Raw[0].String()
		}
		return map[string]interface{}{
			"0":    lv.Display[0],
			"rid":  lv.Raw[0].String(),
			"type": string(ColumnLink),
		}
	default:
		legacy := make(map[string]interface{}, 2*len(lv.Raw)+1)
		for k := range lv.Raw {
			index := strconv.Itoa(k)
			legacy[index] = lv.Display[k]
			legacy["_"+index] = lv.Raw[k].String()
		}
		legacy["type"] = string(lv.Type)
		return legacy
	}
}

// ViewRow is a resolved grid row. Values is a copy of the source row, the
// link cells of it are described by Links.
type ViewRow struct {
	Values Row                 `json:"values"`
	Links  map[string]LinkView `json:"links"`
}

// Legacy merges the link views back into the row values.
func (vr ViewRow) Legacy() Row {
	row := make(Row, len(vr.Values))
	for k, v := range vr.Values {
		row[k] = v
	}
	for property, view := range vr.Links {
		row[property] = view.Legacy()
	}
	return row
}

type LinksetProperty struct {
	BindingProperties map[string]orient.RID `json:"bindingProperties"`
	Data              map[string]interface{} `json:"data"`
}

// UnmarshalJSON also accepts "bingingProperties", the key stored by
// older console builds.
func (lp *LinksetProperty) UnmarshalJSON(b []byte) error {
	var raw struct {
		BindingProperties map[string]orient.RID `json:"bindingProperties"`
		BingingProperties map[string]orient.RID `json:"bingingProperties"`
		Data              map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	lp.BindingProperties = raw.BindingProperties
	if lp.BindingProperties == nil {
		lp.BindingProperties = raw.BingingProperties
	}
	lp.Data = raw.Data
	return nil
}

// CrudLevel is one drill-down step of the console navigation.
type CrudLevel struct {
	ClassName       string          `json:"className"`
	LinksetProperty LinksetProperty `json:"linksetProperty"`
}

// Notifier receives user facing toasts.
type Notifier interface {
	CreateNotification(ctx context.Context, kind string, titleKey string, messageKey string)
}

type nopNotifier struct{}

func (nopNotifier) CreateNotification(ctx context.Context, kind string, titleKey string, messageKey string) {
}
