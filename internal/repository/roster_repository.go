package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

const maxRosterBytes = 64 << 20

// RosterRepository reads the enrollee feed from its static HTTP endpoint.
type RosterRepository struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewRosterRepository constructs the repository. A nil client gets one with
// the given timeout.
func NewRosterRepository(url string, client *http.Client, timeout time.Duration, logger *zap.Logger) *RosterRepository {
	if client == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterRepository{url: url, client: client, logger: logger}
}

// Fetch issues a single GET and returns the normalized roster. Every failure
// is reported as ErrFetchFailure.
func (r *RosterRepository) Fetch(ctx context.Context) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fetchFailure(err, "build roster request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fetchFailure(err, "request roster feed")
	}
	defer resp.Body.Close() //nolint:errcheck

	r.logger.Debug("roster feed response", zap.String("url", r.url), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fetchFailure(fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)), "roster feed returned an error status")
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxRosterBytes))
	decoder.UseNumber()

	var raws []map[string]interface{}
	if err := decoder.Decode(&raws); err != nil {
		return nil, fetchFailure(err, "decode roster feed")
	}

	return NormalizeRecords(raws), nil
}

func fetchFailure(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrFetchFailure.Code, appErrors.ErrFetchFailure.Status, message)
}
