package crud

import (
	"context"
	"crudconsole/logger"
	"crudconsole/server/errors"
	"crudconsole/server/grid"
	"crudconsole/server/noti"
	"crudconsole/server/orient"
	"crudconsole/server/rql"
	"fmt"
	"strings"

	pkgErrors "github.com/pkg/errors"
)

const (
	TitleError   = "ERROR"
	TitleSuccess = "SUCCESS"

	MessageRequestFailed = "orientdb.requestFailed"
	MessageSuccessCreate = "orientdb.successCreate"
	MessageSuccessUpdate = "orientdb.successUpdate"
	MessageSuccessDelete = "orientdb.successDelete"
	MessageLinkFailed    = "orientdb.linkFailed"

	ErrClassRequired = "class_required"
	ErrRecordClass   = "record_class_mismatch"
	ErrEmptyRecord   = "empty_record"
)

type Notifier interface {
	grid.Notifier
	NotifyError(ctx context.Context, err error, titleKey string, messageKey string)
}

type Config struct {
	Grid     grid.Options
	Presence grid.Presence
}

// Service runs console operations against the database.
type Service struct {
	client        orient.Client
	notifications Notifier
	resolver      *grid.Resolver
	filters       *grid.FilterBuilder
	linker        *grid.Linker
}

func NewService(client orient.Client, notifications Notifier, linker *grid.Linker, config Config) *Service {
	return &Service{
		client:        client,
		notifications: notifications,
		resolver:      grid.NewResolver(client, notifications, config.Grid),
		filters:       grid.NewFilterBuilder(client, config.Presence, config.Grid.MaxConcurrency),
		linker:        linker,
	}
}

// Page is one resolved grid page.
type Page struct {
	ClassName string                  `json:"className"`
	Columns   []grid.ColumnDefinition `json:"columns"`
	Rows      []grid.ViewRow          `json:"rows"`
	Total     int                     `json:"total"`
}

func (s *Service) requestFailed(ctx context.Context, err error) error {
	s.notifications.NotifyError(ctx, err, TitleError, MessageRequestFailed)
	return err
}

func (s *Service) classInfo(ctx context.Context, className string) (*orient.ClassInfo, error) {
	if className == "" {
		return nil, errors.NewValidationError(ErrClassRequired, "Class name is required", nil)
	}
	info, err := s.client.GetInfoClass(ctx, className)
	if err != nil {
		return nil, s.requestFailed(ctx, err)
	}
	return info, nil
}

func (s *Service) Columns(ctx context.Context, className string) ([]grid.ColumnDefinition, error) {
	info, err := s.classInfo(ctx, className)
	if err != nil {
		return nil, err
	}
	return grid.ColumnsFromClass(info), nil
}

// Size is the number of records of the class.
func (s *Service) Size(ctx context.Context, className string) (int, error) {
	info, err := s.classInfo(ctx, className)
	if err != nil {
		return 0, err
	}
	return info.Records, nil
}

// Grid lists the records of the context class filtered by the current
// level and the RQL query, with link cells resolved.
func (s *Service) Grid(ctx context.Context, crudCtx Context, rqlQuery string) (*Page, error) {
	info, err := s.classInfo(ctx, crudCtx.ClassName())
	if err != nil {
		return nil, err
	}

	query, err := rql.NewTranslator(info.Properties).Translate(rqlQuery)
	if err != nil {
		return nil, err
	}

	filter, err := s.filters.Build(ctx, crudCtx.Current())
	if err != nil {
		return nil, s.requestFailed(ctx, err)
	}

	selectQuery := orient.Select().From(crudCtx.ClassName())
	if !filter.Empty() {
		selectQuery.Where(filter.String())
	}
	query.Apply(selectQuery)
	logger.Debug("Grid query for %s: %s", crudCtx.ClassName(), selectQuery.String())

	records, err := s.client.Query(ctx, selectQuery.String(), query.Limit)
	if err != nil {
		return nil, s.requestFailed(ctx, err)
	}

	columns := grid.ColumnsFromClass(info)
	rows := make([]grid.Row, len(records))
	for i := range records {
		rows[i] = grid.Row(records[i])
	}
	views, err := s.resolver.Resolve(ctx, columns, rows)
	if err != nil {
		return nil, err
	}
	return &Page{ClassName: crudCtx.ClassName(), Columns: columns, Rows: views, Total: info.Records}, nil
}

func (s *Service) checkClass(record orient.Record, className string) error {
	if className != "" && record.Class() != "" && record.Class() != className {
		return errors.NewNotFoundError(ErrRecordClass, fmt.Sprintf("Record %s is not of class '%s'", record.RID(), className), nil)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, className string, rid orient.RID) (orient.Record, error) {
	record, err := s.client.Load(ctx, rid)
	if err != nil {
		if !orient.IsNotFound(err) {
			s.requestFailed(ctx, err)
		}
		return nil, err
	}
	if err := s.checkClass(record, className); err != nil {
		return nil, err
	}
	return record, nil
}

// Create stores a record of the context class. When owner is set, every
// record referenced by the links properties gets owner pointed back at the
// new record.
func (s *Service) Create(ctx context.Context, crudCtx Context, record grid.Row, owner string, links []string) (orient.Record, error) {
	if crudCtx.ClassName() == "" {
		return nil, errors.NewValidationError(ErrClassRequired, "Class name is required", nil)
	}
	if len(record) == 0 {
		return nil, errors.NewValidationError(ErrEmptyRecord, "Record has no properties", nil)
	}

	result, err := s.client.Batch(ctx, []orient.Operation{orient.NewCreate(crudCtx.ClassName(), orient.Record(record))})
	if err != nil {
		return nil, s.requestFailed(ctx, err)
	}
	if result == nil || len(result.Result) == 0 {
		return nil, s.requestFailed(ctx, orient.NewOrientError(orient.ErrOrientResponse, "Batch returned no created record"))
	}
	created := result.Result[0]

	if owner != "" && len(links) > 0 {
		if _, err := s.linker.LinkBack(ctx, grid.Row(created), owner, links); err != nil {
			s.notifications.NotifyError(ctx, err, TitleError, MessageLinkFailed)
			return created, pkgErrors.Wrapf(err, "linking %s back", created.RID())
		}
	}

	s.notifications.CreateNotification(ctx, noti.KindSuccess, TitleSuccess, MessageSuccessCreate)
	return created, nil
}

// Update merges patch into the stored record. Record attributes ("@rid",
// "@class", ...) of the patch are ignored except "@version".
func (s *Service) Update(ctx context.Context, className string, rid orient.RID, patch grid.Row) (orient.Record, error) {
	record, err := s.Get(ctx, className, rid)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if strings.HasPrefix(k, "@") && k != "@version" {
			continue
		}
		record[k] = v
	}

	result, err := s.client.Batch(ctx, []orient.Operation{orient.NewUpdate(record)})
	if err != nil {
		return nil, s.requestFailed(ctx, err)
	}
	s.notifications.CreateNotification(ctx, noti.KindSuccess, TitleSuccess, MessageSuccessUpdate)
	if result != nil && len(result.Result) > 0 {
		return result.Result[0], nil
	}
	return record, nil
}

// Delete removes the records in one transactional batch.
func (s *Service) Delete(ctx context.Context, className string, rids []orient.RID) error {
	if len(rids) == 0 {
		return errors.NewValidationError(errors.ErrWrongArguments, "No records to delete", nil)
	}
	operations := make([]orient.Operation, 0, len(rids))
	for _, rid := range rids {
		if !rid.Valid() {
			return errors.NewValidationError(errors.ErrWrongArguments, fmt.Sprintf("Value '%s' is not a record identifier", rid), nil)
		}
		operations = append(operations, orient.NewDelete(rid))
	}
	if _, err := s.client.Batch(ctx, operations); err != nil {
		return s.requestFailed(ctx, err)
	}
	s.notifications.CreateNotification(ctx, noti.KindSuccess, TitleSuccess, MessageSuccessDelete)
	return nil
}
