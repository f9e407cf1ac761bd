package grid

import (
	"context"
	"crudconsole/logger"
	"crudconsole/server/noti"
	"crudconsole/server/orient"
	"crudconsole/utils"
	"fmt"
	"sync"

	"github.com/getlantern/deepcopy"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize      = 50
	DefaultMaxConcurrency = 8

	NotificationTitleError   = "ERROR"
	NotificationDataNotFound = "orientdb.dataNotFound"
)

type Options struct {
	BatchSize      int
	MaxConcurrency int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	return o
}

// Resolver turns LINK and LINKSET identifiers of grid rows into titles.
type Resolver struct {
	client        orient.Client
	titles        *TitleLookup
	notifications Notifier
	options       Options
}

func NewResolver(client orient.Client, notifications Notifier, options Options) *Resolver {
	if notifications == nil {
		notifications = nopNotifier{}
	}
	return &Resolver{
		client:        client,
		titles:        NewTitleLookup(client),
		notifications: notifications,
		options:       options.withDefaults(),
	}
}

type linkCell struct {
	row    int
	column ColumnDefinition
	rids   []orient.RID
}

// resolution holds what one Resolve call fetched. Title columns are looked
// up once per class and call.
type resolution struct {
	mutex   sync.Mutex
	titles  map[string]string
	records map[orient.RID]orient.Record
}

func (r *resolution) setTitle(className string, column string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.titles[className] = column
}

func (r *resolution) addRecords(records []orient.Record) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, record := range records {
		if rid := record.RID(); rid != "" {
			r.records[rid] = record
		}
	}
}

// Resolve returns one ViewRow per row. Non link values are copied unchanged,
// rows are never modified. Any failed or missing lookup fails the whole call
// after a single error notification.
func (r *Resolver) Resolve(ctx context.Context, columns []ColumnDefinition, rows []Row) ([]ViewRow, error) {
	cells, byClass, err := r.collect(columns, rows)
	if err != nil {
		r.notifyNotFound(ctx)
		return nil, err
	}

	result := &resolution{titles: map[string]string{}, records: map[orient.RID]orient.Record{}}
	if len(cells) > 0 {
		if err := r.fetch(ctx, byClass, result); err != nil {
			r.notifyNotFound(ctx)
			return nil, err
		}
		for className, rids := range byClass {
			for _, rid := range rids {
				if _, ok := result.records[orient.RID(rid)]; !ok {
					r.notifyNotFound(ctx)
					return nil, orient.NewOrientError(orient.ErrOrientNotFound, "Record %s of class '%s' not found", rid, className)
				}
			}
		}
	}

	views := make([]ViewRow, len(rows))
	for i, row := range rows {
		values := Row{}
		if row != nil {
			if err := deepcopy.Copy(&values, row); err != nil {
				return nil, errors.Wrap(err, "copying grid row")
			}
		}
		views[i] = ViewRow{Values: values, Links: map[string]LinkView{}}
	}
	for _, cell := range cells {
		views[cell.row].Links[cell.column.Property] = result.view(cell)
	}
	return views, nil
}

func (r *Resolver) collect(columns []ColumnDefinition, rows []Row) ([]linkCell, map[string][]string, error) {
	cells := make([]linkCell, 0)
	byClass := map[string][]string{}
	for _, column := range columns {
		if !column.Type.IsLink() {
			continue
		}
		for i, row := range rows {
			value, ok := row[column.Property]
			if !ok || value == nil {
				continue
			}
			rids, err := orient.ParseRIDs(value)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "column %s of row %d", column.Property, i)
			}
			if len(rids) == 0 {
				continue
			}
			if column.Type == ColumnLink && len(rids) > 1 {
				rids = rids[:1]
			}
			cells = append(cells, linkCell{row: i, column: column, rids: rids})
			byClass[column.LinkedClass] = append(byClass[column.LinkedClass], orient.RIDStrings(rids)...)
		}
	}
	for className := range byClass {
		byClass[className] = utils.Unique(byClass[className])
	}
	return cells, byClass, nil
}

// fetch loads every linked record with one query per class and chunk.
func (r *Resolver) fetch(ctx context.Context, byClass map[string][]string, result *resolution) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.MaxConcurrency)

	for className, rids := range byClass {
		className := className
		if className != "" {
			g.Go(func() error {
				column, ok, err := r.titles.TitleColumnFor(gctx, className)
				if err != nil {
					return err
				}
				if ok {
					result.setTitle(className, column)
				}
				return nil
			})
		}

		for _, chunk := range utils.Chunks(rids, r.options.BatchSize) {
			chunk := chunk
			g.Go(func() error {
				batch := make([]orient.RID, len(chunk))
				for i := range chunk {
					batch[i] = orient.RID(chunk[i])
				}
				query := orient.Select().FromRIDs(batch).String()
				records, err := r.client.Query(gctx, query, len(batch))
				if err != nil {
					return errors.Wrapf(err, "loading %d records of class '%s'", len(batch), className)
				}
				result.addRecords(records)
				return nil
			})
		}
	}
	return g.Wait()
}

func (r *resolution) view(cell linkCell) LinkView {
	view := LinkView{
		Type:    cell.column.Type,
		Raw:     cell.rids,
		Display: make([]string, len(cell.rids)),
		Titled:  make([]bool, len(cell.rids)),
	}
	column, hasTitle := r.titles[cell.column.LinkedClass]
	for k, rid := range cell.rids {
		view.Display[k] = rid.String()
		if !hasTitle {
			continue
		}
		if title, ok := r.records[rid][column]; ok && title != nil {
			view.Display[k] = fmt.Sprint(title)
			view.Titled[k] = true
		}
	}
	return view
}

func (r *Resolver) notifyNotFound(ctx context.Context) {
	logger.WithPrefix("grid").Debugf("Link resolution failed, notifying")
	r.notifications.CreateNotification(ctx, noti.KindError, NotificationTitleError, NotificationDataNotFound)
}
