package registrar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

// Client issues signed GET queries against the registrar roster service.
// Every request carries a sign parameter computed over the ordered query
// string, bracketed by the shared secret pair. The signature algorithm is
// fixed by the upstream protocol.
type Client struct {
	httpClient *http.Client
	cfg        config.RegistrarConfig
	logger     *zap.Logger
}

// NewClient constructs a Client. The HTTP timeout is mandatory; a zero
// config value falls back to 30s so an unreachable registrar can never
// stall a sync pass indefinitely.
func NewClient(cfg config.RegistrarConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// param preserves query ordering; the signature is order-sensitive.
type param struct {
	key   string
	value string
}

// Sections returns all sections taught under a registrar course number.
// An empty semester means the registrar's current semester.
func (c *Client) Sections(ctx context.Context, courseNumber, semester string) ([]models.Section, error) {
	body, err := c.fetch(ctx, c.cfg.CourseEndpoint, []param{
		{key: "xq", value: semester},
		{key: "id", value: courseNumber},
	})
	if err != nil {
		return nil, err
	}
	return parseSections(body)
}

// Roster returns the students enrolled in one section.
func (c *Client) Roster(ctx context.Context, sectionID string) ([]models.StudentRecord, error) {
	body, err := c.fetch(ctx, c.cfg.RosterEndpoint, []param{
		{key: "id", value: sectionID},
	})
	if err != nil {
		return nil, err
	}
	return parseStudents(body)
}

func (c *Client) fetch(ctx context.Context, endpoint string, params []param) ([]byte, error) {
	if len(params) == 0 {
		return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, "registrar query requires parameters")
	}

	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	query := sb.String()
	query += "&sign=" + Sign(c.cfg.SignPrefix, query, c.cfg.SignSuffix)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRegistrarUnavailable.Code, appErrors.ErrRegistrarUnavailable.Status, "build registrar request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRegistrarUnavailable.Code, appErrors.ErrRegistrarUnavailable.Status, "registrar service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, appErrors.Clone(appErrors.ErrRegistrarUnavailable, fmt.Sprintf("registrar responded with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRegistrarUnavailable.Code, appErrors.ErrRegistrarUnavailable.Status, "read registrar response")
	}

	c.logger.Debug("registrar_fetch",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	return body, nil
}

// Sign computes the request signature over an already-encoded query string.
func Sign(prefix, query, suffix string) string {
	sum := md5.Sum([]byte(prefix + query + suffix))
	return hex.EncodeToString(sum[:])
}
