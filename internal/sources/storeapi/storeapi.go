// Package storeapi implements the store-API connector for suppliers that
// publish their catalog behind a Shopware-style Store API: log in once
// for a context token, then page through the product listing.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kweber84/erpimport/internal/sources"
)

type Config struct {
	BaseURL        string `json:"base_url"` // https://shop.example.com
	AccessKey      string `json:"access_key"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	PageSize       int    `json:"page_size"`   // default 100
	ThrottleMs     int    `json:"throttle_ms"` // pause between pages, default 250
	ReferenceField string `json:"reference_field"`
}

type API struct {
	log  zerolog.Logger
	cfg  Config
	http *http.Client

	contextToken string
}

func (a *API) Name() string { return "api" }

func (a *API) Describe(opts sources.FetchOptions) string {
	return "api: " + a.cfg.BaseURL + "/store-api/product"
}

func (a *API) pageSize() int {
	if a.cfg.PageSize <= 0 {
		return 100
	}
	return a.cfg.PageSize
}

func (a *API) throttle() time.Duration {
	ms := a.cfg.ThrottleMs
	if ms <= 0 {
		ms = 250
	}
	return time.Duration(ms) * time.Millisecond
}

// login obtains the context token carried by all further requests.
func (a *API) login(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{
		"username": a.cfg.Username,
		"password": a.cfg.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/store-api/account/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sw-access-key", a.cfg.AccessKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: unexpected status %s", resp.Status)
	}
	token := resp.Header.Get("sw-context-token")
	if token == "" {
		return fmt.Errorf("login: no sw-context-token in response")
	}
	a.contextToken = token
	return nil
}

func (a *API) fetchPage(ctx context.Context, page int) ([]map[string]any, error) {
	body, _ := json.Marshal(map[string]int{
		"page":  page,
		"limit": a.pageSize(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/store-api/product", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sw-access-key", a.cfg.AccessKey)
	req.Header.Set("sw-context-token", a.contextToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("page %d: unexpected status %s", page, resp.Status)
	}

	var out struct {
		Elements []map[string]any `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("page %d: decode: %w", page, err)
	}
	return out.Elements, nil
}

func (a *API) Fetch(ctx context.Context, opts sources.FetchOptions, emit func(sources.RawItem) error) error {
	if err := a.login(ctx); err != nil {
		return err
	}
	a.log.Info().Str("source", a.Name()).Str("base_url", a.cfg.BaseURL).Msg("logged in to store API")

	line := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		elements, err := a.fetchPage(ctx, page)
		if err != nil {
			return err
		}
		if len(elements) == 0 {
			break
		}

		for _, el := range elements {
			line++
			item := sources.RawItem{LineNumber: line, Payload: el}
			if a.cfg.ReferenceField != "" {
				if v, ok := el[a.cfg.ReferenceField].(string); ok {
					item.Reference = v
				}
			}
			if err := emit(item); err != nil {
				return err
			}
			if opts.Limit > 0 && line >= opts.Limit {
				return nil
			}
		}
		a.log.Debug().Int("page", page).Int("count", len(elements)).Msg("page fetched")

		if len(elements) < a.pageSize() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.throttle()):
		}
	}
	return nil
}

func factory(log zerolog.Logger, raw json.RawMessage) (sources.Source, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" || cfg.AccessKey == "" {
		return nil, fmt.Errorf("api source: base_url and access_key are required")
	}
	return &API{
		log:  log,
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func init() {
	sources.Register("api", factory)
}
