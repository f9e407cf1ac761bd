package grid

import (
	"context"
	"crudconsole/logger"
	"crudconsole/server/journal"
	"crudconsole/server/orient"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const journalTimeout = 5 * time.Second

// Linker writes the back-reference of a created record onto the records it
// links to.
type Linker struct {
	client         orient.Client
	journal        journal.Journal
	maxConcurrency int
}

func NewLinker(client orient.Client, linkJournal journal.Journal, maxConcurrency int) *Linker {
	if linkJournal == nil {
		linkJournal = journal.NoopJournal{}
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Linker{client: client, journal: linkJournal, maxConcurrency: maxConcurrency}
}

// LinkBack sets ownerProperty to the created record's identifier on every
// record referenced by linkProperties, one UPDATE batch per record. The
// first failure is returned; updates already applied stay applied and every
// attempt is journaled.
func (l *Linker) LinkBack(ctx context.Context, created Row, ownerProperty string, linkProperties []string) ([]*orient.BatchResult, error) {
	createdRid, err := orient.ParseRID(created["@rid"])
	if err != nil {
		return nil, errors.Wrap(err, "created record")
	}
	if ownerProperty == "" {
		return nil, orient.NewOrientError(orient.ErrOrientWrongArgs, "Owner property is empty")
	}

	targets := make([]orient.RID, 0)
	for _, property := range linkProperties {
		rids, err := orient.ParseRIDs(created[property])
		if err != nil {
			return nil, errors.Wrapf(err, "link property %s", property)
		}
		targets = append(targets, rids...)
	}

	results := make([]*orient.BatchResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			result, err := l.link(gctx, target, ownerProperty, createdRid)
			l.record(createdRid, ownerProperty, target, err)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Linker) link(ctx context.Context, target orient.RID, ownerProperty string, owner orient.RID) (*orient.BatchResult, error) {
	record, err := l.client.Load(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "loading linked record %s", target)
	}
	record[ownerProperty] = owner.String()
	result, err := l.client.Batch(ctx, []orient.Operation{orient.NewUpdate(record)})
	if err != nil {
		return nil, errors.Wrapf(err, "linking %s to %s", target, owner)
	}
	return result, nil
}

// record journals an attempt even after the request has gone away.
func (l *Linker) record(created orient.RID, ownerProperty string, target orient.RID, linkErr error) {
	entry := journal.Entry{
		CreatedRid:    created.String(),
		OwnerProperty: ownerProperty,
		TargetRid:     target.String(),
		Status:        journal.StatusApplied,
	}
	if linkErr != nil {
		entry.Status = journal.StatusFailed
		entry.Error = linkErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := l.journal.Record(ctx, entry); err != nil {
		logger.WithPrefix("journal").Warnf("Can't journal link of %s to %s: %s", target, created, err.Error())
	}
}
