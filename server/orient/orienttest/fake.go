// Package orienttest provides an in-memory orient.Client for tests.
package orienttest

import (
	"context"
	"crudconsole/server/orient"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	titleQuery = regexp.MustCompile(`^SELECT FROM CrudClassMetaData WHERE class = '(.*)'`)
	ridList    = regexp.MustCompile(`^SELECT FROM \[(.*)\]`)
	classQuery = regexp.MustCompile(`^SELECT (?:count\(\*\) AS count )?FROM ([A-Za-z0-9_]+)`)
)

// Client serves records and class metadata from memory and records every
// call it gets.
type Client struct {
	mutex sync.Mutex

	Records map[orient.RID]orient.Record
	Titles  map[string]string
	Classes map[string]*orient.ClassInfo

	Queries []string
	Loads   []orient.RID
	Batches [][]orient.Operation

	FailQuery error
	FailLoad  map[orient.RID]error
	FailBatch map[orient.RID]error

	// Latency holds every Load and Query for that long unless the context
	// is done first.
	Latency time.Duration

	flight   sync.Mutex
	inFlight int
	peak     int

	cluster  int
	position int
}

func NewClient() *Client {
	return &Client{
		Records:   map[orient.RID]orient.Record{},
		Titles:    map[string]string{},
		Classes:   map[string]*orient.ClassInfo{},
		FailLoad:  map[orient.RID]error{},
		FailBatch: map[orient.RID]error{},
		cluster:   30,
	}
}

// Add stores the record under rid, "@class" is set when className is given.
func (c *Client) Add(rid string, className string, record orient.Record) orient.Record {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	record["@rid"] = rid
	if className != "" {
		record["@class"] = className
	}
	c.Records[orient.RID(rid)] = record
	return record
}

func (c *Client) Record(rid string) orient.Record {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return copyRecord(c.Records[orient.RID(rid)])
}

func (c *Client) QueryCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.Queries)
}

func (c *Client) BatchCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.Batches)
}

// AllBatches returns a snapshot of the submitted batches.
func (c *Client) AllBatches() [][]orient.Operation {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([][]orient.Operation{}, c.Batches...)
}

// Peak is the largest number of Load and Query calls seen in flight at once.
func (c *Client) Peak() int {
	c.flight.Lock()
	defer c.flight.Unlock()
	return c.peak
}

func (c *Client) wait(ctx context.Context) error {
	c.flight.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.flight.Unlock()
	defer func() {
		c.flight.Lock()
		c.inFlight--
		c.flight.Unlock()
	}()

	if c.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func copyRecord(record orient.Record) orient.Record {
	if record == nil {
		return nil
	}
	copied := make(orient.Record, len(record))
	for k, v := range record {
		copied[k] = v
	}
	return copied
}

func (c *Client) Load(ctx context.Context, rid orient.RID) (orient.Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Loads = append(c.Loads, rid)
	if err := c.FailLoad[rid]; err != nil {
		return nil, err
	}
	record, ok := c.Records[rid]
	if !ok {
		return nil, orient.NewOrientError(orient.ErrOrientNotFound, "Record %s not found", rid)
	}
	return copyRecord(record), nil
}

func (c *Client) Query(ctx context.Context, sql string, limit int) ([]orient.Record, error) {
	waitErr := c.wait(ctx)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Queries = append(c.Queries, sql)
	if c.FailQuery != nil {
		return nil, c.FailQuery
	}
	if waitErr != nil {
		return nil, waitErr
	}

	result := make([]orient.Record, 0)
	if match := titleQuery.FindStringSubmatch(sql); match != nil {
		if column, ok := c.Titles[match[1]]; ok {
			result = append(result, orient.Record{"class": match[1], "titleColumns": column})
		}
		return result, nil
	}

	if match := ridList.FindStringSubmatch(sql); match != nil {
		for _, rid := range strings.Split(match[1], ", ") {
			if record, ok := c.Records[orient.RID(rid)]; ok {
				result = append(result, copyRecord(record))
			}
		}
		return result, nil
	}

	if match := classQuery.FindStringSubmatch(sql); match != nil {
		for _, record := range c.Records {
			if record.Class() == match[1] {
				result = append(result, copyRecord(record))
			}
		}
		if strings.HasPrefix(sql, "SELECT count(*)") {
			return []orient.Record{{"count": float64(len(result))}}, nil
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (c *Client) Batch(ctx context.Context, operations []orient.Operation) (*orient.BatchResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Batches = append(c.Batches, operations)
	result := &orient.BatchResult{Result: []orient.Record{}}
	for _, operation := range operations {
		rid := operation.Record.RID()
		if err := c.FailBatch[rid]; err != nil {
			return nil, err
		}
		switch operation.Type {
		case orient.BatchCreate:
			created := copyRecord(operation.Record)
			created["@rid"] = "#" + strconv.Itoa(c.cluster) + ":" + strconv.Itoa(c.position)
			c.position++
			c.Records[created.RID()] = created
			result.Result = append(result.Result, copyRecord(created))
		case orient.BatchUpdate:
			if _, ok := c.Records[rid]; !ok {
				return nil, orient.NewOrientError(orient.ErrOrientNotFound, "Record %s not found", rid)
			}
			c.Records[rid] = copyRecord(operation.Record)
			result.Result = append(result.Result, copyRecord(operation.Record))
		case orient.BatchDelete:
			if _, ok := c.Records[rid]; !ok {
				return nil, orient.NewOrientError(orient.ErrOrientNotFound, "Record %s not found", rid)
			}
			delete(c.Records, rid)
		}
	}
	return result, nil
}

func (c *Client) GetInfoClass(ctx context.Context, className string) (*orient.ClassInfo, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	info, ok := c.Classes[className]
	if !ok {
		return nil, orient.NewOrientError(orient.ErrOrientNotFound, "Class %s not found", className)
	}
	records := 0
	for _, record := range c.Records {
		if record.Class() == className {
			records++
		}
	}
	copied := *info
	copied.Records = records
	return &copied, nil
}

// Notifier records toasts.
type Notifier struct {
	mutex         sync.Mutex
	Notifications []Notification
}

type Notification struct {
	Kind       string
	TitleKey   string
	MessageKey string
}

func (n *Notifier) CreateNotification(ctx context.Context, kind string, titleKey string, messageKey string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.Notifications = append(n.Notifications, Notification{kind, titleKey, messageKey})
}

func (n *Notifier) All() []Notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]Notification{}, n.Notifications...)
}

func (n *Notifier) NotifyError(ctx context.Context, err error, titleKey string, messageKey string) {
	n.CreateNotification(ctx, "error", titleKey, messageKey)
}
