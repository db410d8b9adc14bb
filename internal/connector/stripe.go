package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const stripeName = "stripe"

// DefaultStripeEntities are synced when the caller names none.
var DefaultStripeEntities = []string{"charges", "customers", "invoices", "refunds"}

// ErrNoAPIKey indicates a sync was attempted without credentials.
var ErrNoAPIKey = errors.New("connector: stripe api key not configured")

// StripeOptions parameterise the Stripe connector for one tenant.
type StripeOptions struct {
	TenantID       string
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	PageLimit      int
	StateRoot      string
	RawRoot        string
	NormalizedRoot string
}

// Stripe syncs Stripe entities incrementally with a per-tenant cursor.
type Stripe struct {
	opts    StripeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewStripe constructs a Stripe connector. A missing API key is allowed;
// Sync refuses to run without one but status inspection still works.
func NewStripe(opts StripeOptions, logger zerolog.Logger) *Stripe {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}

	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.StateRoot == "" {
		opts.StateRoot = "runtime/connectors"
	}
	if opts.RawRoot == "" {
		opts.RawRoot = "data/raw"
	}
	if opts.NormalizedRoot == "" {
		opts.NormalizedRoot = "data/normalized"
	}

	return &Stripe{
		opts:    opts,
		logger:  logger.With().Str("component", "stripe_connector").Str("tenant_id", opts.TenantID).Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Configured reports whether an API key is present.
func (s *Stripe) Configured() bool {
	return s.opts.APIKey != ""
}

// CursorPath is the tenant's incremental sync cursor file.
func (s *Stripe) CursorPath() string {
	return filepath.Join(s.opts.StateRoot, s.opts.TenantID, "stripe_cursor.json")
}

func (s *Stripe) healthPath() string {
	return filepath.Join(s.opts.StateRoot, s.opts.TenantID, "stripe_health.json")
}

func (s *Stripe) rawDir() string {
	return filepath.Join(s.opts.RawRoot, s.opts.TenantID, stripeName)
}

func (s *Stripe) normalizedDir() string {
	return filepath.Join(s.opts.NormalizedRoot, s.opts.TenantID, stripeName)
}

// SyncOptions select what one sync run covers. A nil SinceEpoch resumes
// from the stored per-entity cursor.
type SyncOptions struct {
	Entities   []string
	SinceEpoch *int64
	PageLimit  int
}

// Sync pulls every requested entity since its cursor, writes raw and
// normalized artifacts, advances the cursor, and records health. A failed
// entity aborts the run and marks the connector degraded.
func (s *Stripe) Sync(ctx context.Context, opts SyncOptions) (Result, error) {
	if !s.Configured() {
		return Result{}, ErrNoAPIKey
	}

	started := time.Now().UTC()
	entities := opts.Entities
	if len(entities) == 0 {
		entities = DefaultStripeEntities
	}
	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = s.opts.PageLimit
	}

	cursor := s.LoadCursor()

	total := 0
	perEntity := make(map[string]EntityDetail, len(entities))
	for _, entity := range entities {
		start := cursor[entity]
		if opts.SinceEpoch != nil {
			start = *opts.SinceEpoch
		}

		records, maxCreated, err := s.fetchEntity(ctx, entity, start, pageLimit)
		if err != nil {
			s.writeHealth("degraded", time.Now().UTC(), err.Error())
			return Result{}, fmt.Errorf("sync %s: %w", entity, err)
		}
		if err := s.writeOutputs(entity, records); err != nil {
			s.writeHealth("degraded", time.Now().UTC(), err.Error())
			return Result{}, fmt.Errorf("sync %s: %w", entity, err)
		}

		total += len(records)
		perEntity[entity] = EntityDetail{
			Records:   len(records),
			FromEpoch: start,
			ToEpoch:   maxCreated,
		}
		if maxCreated > cursor[entity] {
			cursor[entity] = maxCreated
		}
	}

	if err := s.saveCursor(cursor); err != nil {
		s.writeHealth("degraded", time.Now().UTC(), err.Error())
		return Result{}, err
	}

	finished := time.Now().UTC()
	s.writeHealth("healthy", finished, "")

	s.logger.Info().
		Int("records", total).
		Int("entities", len(entities)).
		Dur("elapsed", finished.Sub(started)).
		Msg("stripe sync complete")

	return Result{
		Connector:     stripeName,
		Status:        "success",
		RecordsSynced: total,
		StartedAt:     started,
		FinishedAt:    finished,
		TenantID:      s.opts.TenantID,
		CursorPath:    s.CursorPath(),
		Entities:      perEntity,
	}, nil
}

type stripeRecord struct {
	id       string
	created  int64
	livemode bool
	payload  json.RawMessage
}

type stripePage struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

func (s *Stripe) fetchEntity(ctx context.Context, entity string, startEpoch int64, pageLimit int) ([]stripeRecord, int64, error) {
	if pageLimit < 1 {
		pageLimit = 1
	} else if pageLimit > 100 {
		pageLimit = 100
	}
	if startEpoch < 0 {
		startEpoch = 0
	}

	var records []stripeRecord
	maxCreated := startEpoch
	startingAfter := ""

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("created[gte]", strconv.FormatInt(startEpoch, 10))
		if startingAfter != "" {
			params.Set("starting_after", startingAfter)
		}

		page, err := s.get(ctx, "/"+entity, params)
		if err != nil {
			return nil, 0, err
		}

		for _, raw := range page.Data {
			var probe struct {
				ID       string `json:"id"`
				Created  int64  `json:"created"`
				Livemode bool   `json:"livemode"`
			}
			if err := json.Unmarshal(raw, &probe); err != nil {
				return nil, 0, fmt.Errorf("decode %s record: %w", entity, err)
			}
			records = append(records, stripeRecord{
				id:       probe.ID,
				created:  probe.Created,
				livemode: probe.Livemode,
				payload:  raw,
			})
			if probe.Created > maxCreated {
				maxCreated = probe.Created
			}
		}

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = records[len(records)-1].id
		if startingAfter == "" {
			break
		}
	}

	return records, maxCreated, nil
}

func (s *Stripe) get(ctx context.Context, path string, params url.Values) (stripePage, error) {
	endpoint := s.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return stripePage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return stripePage{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return stripePage{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return stripePage{}, parseStripeError(resp.StatusCode, payload)
	}

	var page stripePage
	if err := json.Unmarshal(payload, &page); err != nil {
		return stripePage{}, err
	}
	return page, nil
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseStripeError(status int, payload []byte) error {
	var apiErr stripeErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error.Message != "" {
			return fmt.Errorf("stripe api error (%d): %s", status, apiErr.Error.Message)
		}
		if apiErr.Error.Type != "" {
			return fmt.Errorf("stripe api error (%d): %s", status, apiErr.Error.Type)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("stripe api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("stripe api error (%d)", status)
}

type normalizedRecord struct {
	TenantID  string          `json:"tenant_id"`
	Connector string          `json:"connector"`
	Entity    string          `json:"entity"`
	ID        string          `json:"id"`
	Created   int64           `json:"created"`
	Livemode  bool            `json:"livemode"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Stripe) writeOutputs(entity string, records []stripeRecord) error {
	if err := os.MkdirAll(s.rawDir(), 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	if err := os.MkdirAll(s.normalizedDir(), 0o755); err != nil {
		return fmt.Errorf("create normalized dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	rawPath := filepath.Join(s.rawDir(), fmt.Sprintf("%s_%s.json", entity, stamp))
	normalizedPath := filepath.Join(s.normalizedDir(), fmt.Sprintf("%s_%s.jsonl", entity, stamp))

	payloads := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		payloads = append(payloads, rec.payload)
	}
	rawBody, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(rawPath, rawBody, 0o644); err != nil {
		return fmt.Errorf("write raw artifact: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		line := normalizedRecord{
			TenantID:  s.opts.TenantID,
			Connector: stripeName,
			Entity:    entity,
			ID:        rec.id,
			Created:   rec.created,
			Livemode:  rec.livemode,
			Payload:   rec.payload,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	if err := os.WriteFile(normalizedPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write normalized artifact: %w", err)
	}

	s.logger.Debug().
		Str("entity", entity).
		Int("records", len(records)).
		Str("raw", rawPath).
		Str("normalized", normalizedPath).
		Msg("wrote sync artifacts")
	return nil
}

// LoadCursor reads the per-entity cursor map. A missing or corrupt cursor
// file resets to an empty cursor.
func (s *Stripe) LoadCursor() map[string]int64 {
	cursor := make(map[string]int64)
	body, err := os.ReadFile(s.CursorPath())
	if err != nil {
		return cursor
	}
	if err := json.Unmarshal(body, &cursor); err != nil {
		return make(map[string]int64)
	}
	return cursor
}

func (s *Stripe) saveCursor(cursor map[string]int64) error {
	if err := os.MkdirAll(filepath.Dir(s.CursorPath()), 0o755); err != nil {
		return fmt.Errorf("create cursor dir: %w", err)
	}
	body, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.CursorPath(), body, 0o644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

func (s *Stripe) writeHealth(status string, ts time.Time, errMsg string) {
	h := Health{
		Name:       stripeName,
		TenantID:   s.opts.TenantID,
		Status:     status,
		Configured: s.Configured(),
		LastRunTS:  ts.Format(time.RFC3339),
	}
	if errMsg != "" {
		h.LastError = &errMsg
	}

	if err := os.MkdirAll(filepath.Dir(s.healthPath()), 0o755); err != nil {
		s.logger.Warn().Err(err).Msg("create health dir failed")
		return
	}
	body, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode health failed")
		return
	}
	if err := os.WriteFile(s.healthPath(), body, 0o644); err != nil {
		s.logger.Warn().Err(err).Msg("write health failed")
	}
}

// ReadHealth returns the last persisted health snapshot, if any.
func (s *Stripe) ReadHealth() (Health, bool) {
	body, err := os.ReadFile(s.healthPath())
	if err != nil {
		return Health{}, false
	}
	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return Health{}, false
	}
	return h, true
}

// StripeStatus describes the connector's on-disk state for one tenant.
type StripeStatus struct {
	TenantID               string
	Configured             bool
	ConnectorStatus        string
	CursorPath             string
	Cursor                 map[string]int64
	LastRawArtifact        *string
	LastNormalizedArtifact *string
}

// Status inspects cursor and artifact state without touching the API.
func (s *Stripe) Status() StripeStatus {
	cursor := s.LoadCursor()
	lastRaw := latestFile(s.rawDir())
	lastNorm := latestFile(s.normalizedDir())

	status := "configured"
	switch {
	case !s.Configured():
		status = "not_configured"
	case len(cursor) == 0 && lastRaw == nil && lastNorm == nil:
		status = "configured_never_synced"
	}

	return StripeStatus{
		TenantID:               s.opts.TenantID,
		Configured:             s.Configured(),
		ConnectorStatus:        status,
		CursorPath:             s.CursorPath(),
		Cursor:                 cursor,
		LastRawArtifact:        lastRaw,
		LastNormalizedArtifact: lastNorm,
	}
}

func latestFile(dir string) *string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil
	}
	return &latest
}
