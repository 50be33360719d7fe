// Package archive uploads periodic ticket exports of every organization to object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/export"
	"github.com/jordanlanch/assetdesk/pkg/logger"
)

// Prefix is the key prefix of every archived export
const Prefix = "tickets/"

// Exporter renders an organization's tickets
type Exporter interface {
	Tickets(ctx context.Context, orgID int, format export.Format, w io.Writer) error
}

// OrganizationLister lists the organizations to archive
type OrganizationLister interface {
	IDs(ctx context.Context) ([]int, error)
}

// Result summarizes one archive run
type Result struct {
	Organizations int
	Uploaded      int
	Bytes         int64
	Deleted       int
	Duration      time.Duration
}

// Service archives ticket exports
type Service struct {
	store         ObjectStore
	exporter      Exporter
	orgs          OrganizationLister
	retentionDays int
	log           logger.Logger
	now           func() time.Time
}

// NewService creates a new archive service. retentionDays <= 0 keeps every file.
func NewService(store ObjectStore, exporter Exporter, orgs OrganizationLister, retentionDays int, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:         store,
		exporter:      exporter,
		orgs:          orgs,
		retentionDays: retentionDays,
		log:           log,
		now:           time.Now,
	}
}

// Key returns the object key of an organization's export taken at t
func Key(orgID int, t time.Time) string {
	return fmt.Sprintf("%s%d/%s.%s", Prefix, orgID, t.UTC().Format("20060102-150405"), export.FormatXLSX)
}

// Run uploads one XLSX export per organization and then drops expired files.
// A failing organization does not stop the others; their errors are joined.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	start := s.now()
	res := &Result{}

	ids, err := s.orgs.IDs(ctx)
	if err != nil {
		return res, err
	}
	res.Organizations = len(ids)

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var buf bytes.Buffer
		if err := s.exporter.Tickets(ctx, id, export.FormatXLSX, &buf); err != nil {
			errs = append(errs, fmt.Errorf("organization %d: %w", id, err))
			continue
		}

		size := int64(buf.Len())
		key := Key(id, start)
		if err := s.store.Put(ctx, key, export.FormatXLSX.ContentType(), &buf); err != nil {
			errs = append(errs, fmt.Errorf("organization %d: %w", id, err))
			continue
		}
		res.Uploaded++
		res.Bytes += size
		s.log.Debug("ticket export archived", "organization_id", id, "key", key, "bytes", size)
	}

	deleted, err := s.Cleanup(ctx)
	if err != nil {
		s.log.Warn("failed to clean up old archives", "error", err)
	}
	res.Deleted = deleted
	res.Duration = s.now().Sub(start)

	s.log.Info("ticket archive completed",
		"organizations", res.Organizations,
		"uploaded", res.Uploaded,
		"bytes", res.Bytes,
		"deleted", res.Deleted)

	return res, errors.Join(errs...)
}

// Cleanup deletes archived files older than the retention period
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	objects, err := s.store.List(ctx, Prefix)
	if err != nil {
		return 0, err
	}

	var deleted int
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, Prefix) || !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.log.Warn("failed to delete old archive", "key", obj.Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ArchiveTickets runs the archive and reports how many exports were uploaded
func (s *Service) ArchiveTickets(ctx context.Context) (int, error) {
	res, err := s.Run(ctx)
	return res.Uploaded, err
}
