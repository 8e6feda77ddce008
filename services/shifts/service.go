package shifts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"
	"github.com/Andriy31193/smastund-scrapper/lib/shiftstore"
	"github.com/Andriy31193/smastund-scrapper/lib/telemetry"
	"github.com/Andriy31193/smastund-scrapper/lib/timezone"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("services/shifts")

// Service is the single entry point the API layer calls into. It owns
// the retry-once-on-expiry contract; everything cookie-shaped lives in
// the session client.
type Service struct {
	client *vinnustund.Client
	// store is optional; when present every successful retrieval is
	// recorded as a snapshot
	store *shiftstore.Store
}

func NewService(client *vinnustund.Client, store *shiftstore.Store) Service {
	return Service{client: client, store: store}
}

// RetrieveShifts returns the shift records between two dd.MM.yyyy
// dates. On an expiry signal it triggers exactly one relogin-and-retry
// cycle; a second expiry is terminal. An empty result is success, not
// an error.
func (s Service) RetrieveShifts(ctx context.Context, dateFrom, dateTo string) ([]vinnustund.ShiftRecord, error) {
	ctx, span := tracer.Start(ctx, "RetrieveShifts")
	defer span.End()

	// validation never touches the network
	if err := vinnustund.ValidateDate(dateFrom); err != nil {
		return nil, err
	}
	if err := vinnustund.ValidateDate(dateTo); err != nil {
		return nil, err
	}

	if err := s.client.EnsureValid(ctx); err != nil {
		span.SetStatus(codes.Error, "could not establish a session")
		return nil, err
	}

	page, err := s.client.FetchShiftPage(ctx, dateFrom, dateTo)
	if errors.Is(err, vinnustund.ErrSessionExpired) {
		slog.WarnContext(ctx, "session expired mid-fetch, relogging in once", "err", err)

		if _, lerr := s.client.Login(ctx); lerr != nil {
			span.SetStatus(codes.Error, "relogin failed")
			return nil, fmt.Errorf("%w: relogin failed: %v", vinnustund.ErrSessionExpired, lerr)
		}
		page, err = s.client.FetchShiftPage(ctx, dateFrom, dateTo)
		if errors.Is(err, vinnustund.ErrSessionExpired) {
			// never a third attempt: the site is down or rejecting us,
			// looping would just hammer it
			span.SetStatus(codes.Error, "expired again after relogin")
			return nil, fmt.Errorf("%w: expired again after relogin", vinnustund.ErrSessionExpired)
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records, err := vinnustund.ParseShiftTable(page)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse shift table")
		return nil, err
	}

	if s.store != nil {
		serr := s.store.Push(ctx, shiftstore.Snapshot{
			TakenAt:  timezone.Now(),
			DateFrom: dateFrom,
			DateTo:   dateTo,
			Records:  records,
		})
		if serr != nil {
			slog.WarnContext(ctx, "failed to record shift snapshot", "err", serr)
		}
	}

	slog.InfoContext(
		ctx, "retrieved shifts",
		"date_from", dateFrom,
		"date_to", dateTo,
		"count", len(records),
	)
	return records, nil
}

// IsAuthenticated reports whether the current session passes the
// remote's own logged-in probe.
func (s Service) IsAuthenticated(ctx context.Context) bool {
	return s.client.IsAuthenticated(ctx)
}
