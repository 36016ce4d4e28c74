package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

const (
	valvesEndpoint    = "/valves"
	schedulerEndpoint = "/scheduler/"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 4096
)

// ErrorInterceptor observes REST failures, e.g. to publish a notification.
type ErrorInterceptor interface {
	Wrap(err error) error
}

// StateFetcher implements ports.StateFetcher against the device REST API.
type StateFetcher struct {
	baseURL string
	client  ports.HTTPClient
	errs    ErrorInterceptor
	logger  ports.Logger
}

// NewStateFetcher creates a fetcher for the device at baseURL
// (http://host[:port]). errs may be nil.
func NewStateFetcher(baseURL string, client ports.HTTPClient, errs ErrorInterceptor, logger ports.Logger) *StateFetcher {
	return &StateFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		errs:    errs,
		logger:  logger,
	}
}

// FetchValves loads every valve, ordered by identifier.
func (f *StateFetcher) FetchValves(ctx context.Context) ([]domain.Valve, error) {
	var list domain.ValveList
	if err := f.get(ctx, valvesEndpoint, &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []domain.Valve{}
	}
	domain.SortValves(list.Items)
	return list.Items, nil
}

// FetchDay loads the schedule of one weekday.
func (f *StateFetcher) FetchDay(ctx context.Context, day domain.Weekday) (domain.Day, error) {
	var d domain.Day
	if err := f.get(ctx, schedulerEndpoint+string(day), &d); err != nil {
		return domain.Day{}, err
	}
	if d.Intervals == nil {
		d.Intervals = []domain.Interval{}
	}
	return d, nil
}

func (f *StateFetcher) get(ctx context.Context, path string, out any) error {
	err := f.do(ctx, path, out)
	if err != nil && f.errs != nil {
		err = f.errs.Wrap(err)
	}
	return err
}

func (f *StateFetcher) do(ctx context.Context, path string, out any) error {
	url := f.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &domain.APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		f.logger.Debug("device rejected request",
			ports.String("path", path),
			ports.Int("status", resp.StatusCode),
			ports.String("code", apiErr.Code),
		)
		return fmt.Errorf("get %s: %w", path, apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("get %s: %w: %v", path, domain.ErrMalformedPayload, err)
	}
	return nil
}
