// Package identity wraps the external user-identity API behind a small
// bridge: phone lookup with a found/not-found/error trichotomy and a
// profile upsert. Failures here never abort a registration flow.
package identity

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/domain"
	"github.com/stemly/regbot/internal/validate"
	"log/slog"
)

// User is the account part of an identity record.
type User struct {
	ID    string `json:"id"`
	Phone string `json:"phone,omitempty"`
}

// Profile is the optional display part of an identity record.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Record is the API response body for lookups and upserts.
type Record struct {
	User    User     `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}

// FullName renders the display name of the record, empty when the
// profile carries no first name.
func (r *Record) FullName() string {
	if r == nil || r.Profile == nil || r.Profile.FirstName == "" {
		return ""
	}
	return strings.TrimSpace(r.Profile.FirstName + " " + r.Profile.LastName)
}

// Outcome tags a lookup result.
type Outcome int

const (
	NotFound Outcome = iota
	Found
	Failed
)

// LookupResult is the trichotomy returned by FindByPhone. Record is
// non-nil only for Found; Err is non-nil only for Failed.
type LookupResult struct {
	Outcome Outcome
	Record  *Record
	Err     error
}

// Payload is the upsert request body.
type Payload struct {
	TgID    int64          `json:"tgId,omitempty"`
	Phone   string         `json:"phone,omitempty"`
	Email   string         `json:"email,omitempty"`
	Profile PayloadProfile `json:"profile"`
}

// PayloadProfile is the profile sub-object of an upsert payload.
type PayloadProfile struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      domain.Role `json:"role"`
	BDate     string      `json:"bdate,omitempty"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// PlaceholderDomain backs synthetic child emails, default school.local.
	PlaceholderDomain string
}

// Client talks to the identity API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a Client; a nil httpClient gets a default with the
// configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PlaceholderDomain == "" {
		cfg.PlaceholderDomain = "school.local"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// PlaceholderDomain exposes the configured synthetic email domain.
func (c *Client) PlaceholderDomain() string { return c.cfg.PlaceholderDomain }

// FindByPhone looks up a user by phone. A miss is a normal branch, not
// an error.
func (c *Client) FindByPhone(ctx context.Context, phone string) LookupResult {
	endpoint := fmt.Sprintf("%s/users/find?phone=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.QueryEscape(validate.NormalizePhone(phone)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return LookupResult{Outcome: Failed, Err: err}
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Ident.Warn("lookup failed",
			slog.String("event", "find_by_phone"),
			slog.String("err", err.Error()),
		)
		return LookupResult{Outcome: Failed, Err: err}
	}
	defer closeBody(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return LookupResult{Outcome: NotFound}
	case resp.StatusCode != http.StatusOK:
		err := fmt.Errorf("identity: find status %s", resp.Status)
		logger.Ident.Warn("lookup failed",
			slog.String("event", "find_by_phone"),
			slog.String("err", err.Error()),
		)
		return LookupResult{Outcome: Failed, Err: err}
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return LookupResult{Outcome: Failed, Err: fmt.Errorf("identity: decode find response: %w", err)}
	}
	if rec.User.ID == "" {
		return LookupResult{Outcome: NotFound}
	}
	return LookupResult{Outcome: Found, Record: &rec}
}

// Upsert creates or updates a user. The caller treats a nil record as a
// degraded success and continues the flow.
func (c *Client) Upsert(ctx context.Context, p Payload) (*Record, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal payload: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/users/upsert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Ident.Warn("upsert failed",
			slog.String("event", "upsert"),
			slog.String("role", string(p.Profile.Role)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("identity: upsert status %s", resp.Status)
		logger.Ident.Warn("upsert failed",
			slog.String("event", "upsert"),
			slog.String("role", string(p.Profile.Role)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("identity: decode upsert response: %w", err)
	}
	if rec.User.ID == "" {
		return nil, fmt.Errorf("identity: upsert response carries no user")
	}
	logger.Ident.Info("upsert ok",
		slog.String("event", "upsert"),
		slog.String("role", string(p.Profile.Role)),
	)
	return &rec, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// ParentPayload shapes an upsert payload for a confirmed parent.
// Phone gets the leading +; the skip sentinel never reaches the API.
func ParentPayload(p domain.ParentProfile) Payload {
	out := Payload{
		TgID: p.TelegramID,
		Profile: PayloadProfile{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Role:      domain.RoleParent,
		},
	}
	if p.Phone != "" {
		out.Phone = validate.NormalizePhone(p.Phone)
	}
	if p.HasEmail() {
		out.Email = p.Email
	}
	return out
}

// ChildPayload shapes an upsert payload for a new child account. The
// contact channel falls back from the parent's phone to the parent's
// email to a synthetic placeholder address, because the API requires
// at least one of them.
func ChildPayload(c domain.ChildProfile, parent domain.ParentProfile, placeholderDomain string) Payload {
	out := Payload{
		Profile: PayloadProfile{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Role:      domain.RoleStudent,
		},
	}
	if dob, err := validate.ParseDOB(c.DOB); err == nil {
		out.Profile.BDate = dob.Format("2006-01-02")
	}

	switch {
	case parent.Phone != "":
		out.Phone = validate.NormalizePhone(parent.Phone)
	case parent.HasEmail():
		out.Email = parent.Email
	default:
		out.Email = syntheticEmail(placeholderDomain)
	}
	return out
}

func syntheticEmail(domainName string) string {
	if domainName == "" {
		domainName = "school.local"
	}
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("child_%s@%s", hex.EncodeToString(buf), domainName)
}
