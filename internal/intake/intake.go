// Package intake creates reports in two phases: the base record first, then
// the photos. A photo failure never loses the record; it stays pending and
// Reconcile retries it from the local spool.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/sarmiento-reclamos/reclamos/internal/cache"
	"github.com/sarmiento-reclamos/reclamos/internal/collab"
	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/objstore"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// DefaultMaxAttempts is how many attach attempts a report gets before its
// photos are abandoned.
const DefaultMaxAttempts = 5

// PendingWarning is shown when a report was saved without its photos.
const PendingWarning = "El reclamo se guardó, pero las fotos no se pudieron subir. Se reintentará automáticamente."

// Photo is one image attached to a submission.
type Photo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Result describes a stored submission. When PhotosPending is set the record
// exists but its photos are not attached yet.
type Result struct {
	ID             string       `json:"id"`
	Report         model.Report `json:"report"`
	PhotosAttached int          `json:"photos_attached"`
	PhotosPending  bool         `json:"photos_pending"`
	Warning        string       `json:"warning,omitempty"`
}

// spoolEntry is the staged photo payload of one pending report.
type spoolEntry struct {
	ReportID string    `json:"report_id"`
	StagedAt time.Time `json:"staged_at"`
	Photos   []Photo   `json:"photos"`
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	Geocoder    collab.ReverseGeocoder
	Log         log.Interface
}

// Service runs submissions and photo reconciliation.
type Service struct {
	store       store.Store
	uploader    objstore.Uploader
	spool       *cache.FileCache
	geocoder    collab.ReverseGeocoder
	maxAttempts int
	now         func() time.Time
	log         log.Interface
}

// NewService wires a Service. A nil uploader disables photo storage; photos
// then stay pending until one is configured.
func NewService(s store.Store, u objstore.Uploader, spool *cache.FileCache, opts Options) *Service {
	if u == nil {
		u = objstore.Disabled{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Log == nil {
		opts.Log = log.Log
	}
	return &Service{
		store:       s,
		uploader:    u,
		spool:       spool,
		geocoder:    opts.Geocoder,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
		log:         opts.Log,
	}
}

// Submit validates d and photos, stores the base record and tries to attach
// the photos. Only validation and base-record failures are returned as
// errors; a photo failure yields a pending Result and a nil error.
func (s *Service) Submit(ctx context.Context, d model.Draft, photos []Photo) (Result, error) {
	d = d.Normalize()
	if d.Address == "" && s.geocoder != nil && d.Position.Validate() == nil {
		d.Address = collab.BestEffortAddress(ctx, s.geocoder, d.Position, s.log)
	}
	if err := d.Validate(len(photos)); err != nil {
		return Result{}, err
	}
	for i, p := range photos {
		if len(p.Data) == 0 {
			return Result{}, &model.ValidationError{Field: "photos", Reason: fmt.Sprintf("photo %d is empty", i+1)}
		}
	}

	created, err := s.store.Create(ctx, d.Report(len(photos) > 0))
	if err != nil {
		return Result{}, fmt.Errorf("saving report: %w", err)
	}
	res := Result{ID: created.ID, Report: created}
	if len(photos) == 0 {
		return res, nil
	}

	logger := s.log.WithField("id", created.ID)
	entry := spoolEntry{ReportID: created.ID, StagedAt: s.now(), Photos: photos}
	if err := s.spool.Set(created.ID, entry); err != nil {
		logger.WithError(err).Error("staging photos failed")
		res.Report = s.recordFailure(ctx, created, logger)
		return pending(res), nil
	}

	attached, err := s.attach(ctx, created, entry)
	if err != nil {
		logger.WithError(err).Warn("photos pending")
		res.Report = s.recordFailure(ctx, created, logger)
		return pending(res), nil
	}
	res.Report = attached
	res.PhotosAttached = len(attached.Photos)
	return res, nil
}

func pending(res Result) Result {
	res.PhotosPending = true
	res.Warning = PendingWarning
	return res
}

// attach uploads every staged photo, then records the URIs on the report
// and drops the spool entry.
func (s *Service) attach(ctx context.Context, r model.Report, entry spoolEntry) (model.Report, error) {
	uris := make([]string, 0, len(entry.Photos))
	for i, p := range entry.Photos {
		key := objstore.ObjectKey(r.ID, entry.StagedAt, i, p.Name)
		uri, err := s.uploader.Upload(ctx, key, p.ContentType, p.Data)
		if err != nil {
			return r, fmt.Errorf("uploading photo %d: %w", i+1, err)
		}
		uris = append(uris, uri)
	}

	state := model.PhotoAttached
	attempts := r.PhotoAttempts + 1
	patch := model.Patch{Photos: uris, PhotoState: &state, PhotoAttempts: &attempts}
	if err := s.store.Update(ctx, r.ID, patch); err != nil {
		return r, fmt.Errorf("recording photos: %w", err)
	}
	if err := s.spool.Delete(r.ID); err != nil {
		s.log.WithError(err).WithField("id", r.ID).Warn("removing spool entry")
	}
	return patch.Apply(r), nil
}

// recordFailure bumps the attempt counter. The report stays pending.
func (s *Service) recordFailure(ctx context.Context, r model.Report, logger log.Interface) model.Report {
	attempts := r.PhotoAttempts + 1
	patch := model.Patch{PhotoAttempts: &attempts}
	if err := s.store.Update(ctx, r.ID, patch); err != nil {
		logger.WithError(err).Error("recording attach attempt")
		return r
	}
	return patch.Apply(r)
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int      `json:"checked"`
	Attached  int      `json:"attached"`
	Retried   int      `json:"retried"`
	Abandoned int      `json:"abandoned"`
	Failed    []string `json:"failed,omitempty"`
}

// Reconcile retries every pending report. A report is abandoned once it
// used up its attempts or its staged photos are gone. Running it again
// after everything attached does nothing.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	reports, err := s.store.List(ctx, model.Filter{PhotoState: model.PhotoPending})
	if err != nil {
		return rep, fmt.Errorf("listing pending reports: %w", err)
	}

	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Checked++
		logger := s.log.WithField("id", r.ID).WithField("attempts", r.PhotoAttempts)

		var entry spoolEntry
		err := s.spool.Load(r.ID, &entry)
		switch {
		case errors.Is(err, cache.ErrMiss):
			s.abandon(ctx, r, "staged photos missing", &rep, logger)
		case err != nil:
			logger.WithError(err).Warn("unreadable spool entry")
			s.abandon(ctx, r, "staged photos unreadable", &rep, logger)
		case r.PhotoAttempts >= s.maxAttempts:
			s.abandon(ctx, r, "attempts exhausted", &rep, logger)
		default:
			if _, err := s.attach(ctx, r, entry); err != nil {
				logger.WithError(err).Warn("retry failed")
				s.recordFailure(ctx, r, logger)
				metrics.ReconcileTotal.WithLabelValues(metrics.ResultRetry).Inc()
				rep.Retried++
				continue
			}
			logger.Info("photos attached")
			metrics.ReconcileTotal.WithLabelValues(metrics.ResultAttached).Inc()
			rep.Attached++
		}
	}
	return rep, nil
}

func (s *Service) abandon(ctx context.Context, r model.Report, reason string, rep *ReconcileReport, logger log.Interface) {
	state := model.PhotoAbandoned
	if err := s.store.Update(ctx, r.ID, model.Patch{PhotoState: &state}); err != nil {
		logger.WithError(err).Error("abandoning photos")
		metrics.ReconcileTotal.WithLabelValues(metrics.ResultError).Inc()
		rep.Failed = append(rep.Failed, r.ID)
		return
	}
	if err := s.spool.Delete(r.ID); err != nil {
		logger.WithError(err).Warn("removing spool entry")
	}
	logger.WithField("reason", reason).Warn("photos abandoned")
	metrics.ReconcileTotal.WithLabelValues(metrics.ResultAbandoned).Inc()
	rep.Abandoned++
}
