package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
	"github.com/user/adarchive-ingest/pkg/metrics"
)

const (
	adsArchivePath = "/ads_archive"
	usageHeader    = "x-business-use-case-usage"

	// Field sets requested from the archive. Discovery only needs enough
	// to identify pages; enrichment wants the full ad record.
	discoveryFields  = "id,page_id,page_name"
	enrichmentFields = "id,page_id,page_name,ad_creation_time,ad_delivery_start_time," +
		"ad_delivery_stop_time,ad_snapshot_url,eu_total_reach,beneficiary_payers"

	defaultPageLimit = 100

	defaultCooldown    = 15 * time.Minute
	floorCooldown      = 60 * time.Minute
	longPause          = 60 * time.Second
	transientPause     = 10 * time.Second
	politenessDelay    = 500 * time.Millisecond
	defaultHTTPTimeout = 30 * time.Second
)

// Client calls the paginated transparency-archive API. It leases tokens from
// the pool, classifies every failure and rotates, cools down or shrinks its
// page size accordingly. A call only fails for good once no token is
// leasable or the context is cancelled.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     repository.TokenRepository
	limiter    *rate.Limiter
	log        *zap.Logger

	// Pauses are fields so tests can shrink them.
	longPause      time.Duration
	transientPause time.Duration
}

// NewClient creates an archive API client backed by the given token pool.
func NewClient(baseURL string, tokens repository.TokenRepository, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		tokens:         tokens,
		limiter:        rate.NewLimiter(rate.Every(politenessDelay), 1),
		log:            log,
		longPause:      longPause,
		transientPause: transientPause,
	}
}

// SearchAds fetches a single discovery page of ads matching term in country.
func (c *Client) SearchAds(ctx context.Context, term, country string) ([]entity.ArchiveAd, error) {
	params := url.Values{}
	params.Set("search_terms", term)
	params.Set("ad_reached_countries", country)
	params.Set("ad_active_status", "ALL")
	params.Set("ad_type", "ALL")
	params.Set("fields", discoveryFields)
	return c.Fetch(ctx, params, defaultPageLimit, 1)
}

// AdsByPage fetches every ad of one page, following pagination to the end.
func (c *Client) AdsByPage(ctx context.Context, pageID, country string) ([]entity.ArchiveAd, error) {
	params := url.Values{}
	params.Set("search_page_ids", pageID)
	params.Set("ad_reached_countries", country)
	params.Set("ad_active_status", "ALL")
	params.Set("ad_type", "ALL")
	params.Set("fields", enrichmentFields)
	return c.Fetch(ctx, params, defaultPageLimit, 0)
}

type pageBody struct {
	Data   []entity.ArchiveAd `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch runs the paginated fetch loop. maxPages 0 means follow pagination
// until the server stops; on failure the same logical page is retried after
// the classified action has been applied.
func (c *Client) Fetch(ctx context.Context, params url.Values, limit, maxPages int) ([]entity.ArchiveAd, error) {
	tok, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out     []entity.ArchiveAd
		pageURL string // continuation URL; empty means build from params
		pages   int
	)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		reqURL := pageURL
		if reqURL == "" {
			q := cloneValues(params)
			q.Set("access_token", tok.Secret)
			q.Set("limit", strconv.Itoa(limit))
			reqURL = c.baseURL + adsArchivePath + "?" + q.Encode()
		}

		start := time.Now()
		status, body, usage, reqErr := c.do(ctx, reqURL)
		metrics.ArchiveCallDuration.Observe(time.Since(start).Seconds())

		if reqErr == nil && status == http.StatusOK {
			var page pageBody
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, fmt.Errorf("decode archive page: %w", err)
			}
			metrics.ArchiveCallsTotal.WithLabelValues("success").Inc()
			out = append(out, page.Data...)
			pages++

			if page.Paging.Next == "" || (maxPages > 0 && pages >= maxPages) {
				return out, nil
			}
			pageURL = page.Paging.Next
			continue
		}

		var code, subcode int
		if reqErr == nil {
			var eb errorBody
			if err := json.Unmarshal(body, &eb); err == nil {
				code, subcode = eb.Error.Code, eb.Error.Subcode
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		d := Classify(status, code, subcode, usage)
		metrics.ArchiveCallsTotal.WithLabelValues(actionLabel(d.Action)).Inc()
		c.log.Warn("archive call failed",
			zap.Int("status", status),
			zap.Int("code", code),
			zap.Int("subcode", subcode),
			zap.String("action", actionLabel(d.Action)),
			zap.Error(reqErr))

		switch d.Action {
		case ActionInvalidCredential:
			if err := c.tokens.Invalidate(ctx, tok.ID); err != nil {
				c.log.Error("failed to invalidate token", zap.Int64("token_id", tok.ID), zap.Error(err))
			}
			if tok, err = c.rotate(ctx, &pageURL); err != nil {
				return nil, err
			}

		case ActionCooldownLong:
			if err := sleepCtx(ctx, c.longPause); err != nil {
				return nil, err
			}

		case ActionReduceLimit:
			next, ok := NextPageLimit(limit)
			if !ok {
				// Already at the floor: escalate to a long cooldown
				// and rotate instead of shrinking further.
				if err := c.tokens.Cooldown(ctx, tok.ID, floorCooldown); err != nil {
					c.log.Error("failed to cool down token", zap.Int64("token_id", tok.ID), zap.Error(err))
				}
				metrics.TokenCooldowns.Inc()
				if tok, err = c.rotate(ctx, &pageURL); err != nil {
					return nil, err
				}
				break
			}
			limit = next
			pageURL = rewriteQueryParam(pageURL, "limit", strconv.Itoa(limit))

		case ActionTransient:
			if err := sleepCtx(ctx, c.transientPause); err != nil {
				return nil, err
			}

		case ActionRateLimited, ActionUnknown:
			cd := d.Cooldown
			if cd <= 0 {
				cd = defaultCooldown
			}
			if err := c.tokens.Cooldown(ctx, tok.ID, cd); err != nil {
				c.log.Error("failed to cool down token", zap.Int64("token_id", tok.ID), zap.Error(err))
			}
			metrics.TokenCooldowns.Inc()
			if tok, err = c.rotate(ctx, &pageURL); err != nil {
				return nil, err
			}
		}
	}
}

// do performs one HTTP call and returns the status, body and quota header.
func (c *Client) do(ctx context.Context, reqURL string) (int, []byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get(usageHeader), nil
}

// lease wraps the pool lease, translating exhaustion into the fatal error.
func (c *Client) lease(ctx context.Context) (*entity.Token, error) {
	tok, err := c.tokens.Lease(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrNoLeasableToken) {
			return nil, repository.ErrTokensExhausted
		}
		return nil, fmt.Errorf("lease token: %w", err)
	}
	return tok, nil
}

// rotate leases a fresh token and rewrites any pending continuation URL so
// it no longer embeds the old token's secret.
func (c *Client) rotate(ctx context.Context, pageURL *string) (*entity.Token, error) {
	tok, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	metrics.TokenRotations.Inc()
	*pageURL = rewriteQueryParam(*pageURL, "access_token", tok.Secret)
	return tok, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// rewriteQueryParam replaces one query parameter of rawURL, leaving an empty
// or unparseable URL untouched.
func rewriteQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func actionLabel(a Action) string {
	switch a {
	case ActionInvalidCredential:
		return "invalid_credential"
	case ActionCooldownLong:
		return "cooldown_long"
	case ActionReduceLimit:
		return "reduce_limit"
	case ActionTransient:
		return "transient"
	case ActionRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}
