// Package client is the HTTP implementation of the workflow's
// collaborator interfaces. Every call carries the session bearer token;
// a 401 from any endpoint maps to workflow.ErrSessionExpired.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"

	"templegames/internal/dto"
	"templegames/internal/workflow"
)

// APIError is a non-2xx service response.
type APIError struct {
	Status int
	Code   string
	Desc   string
}

func (e *APIError) Error() string {
	if e.Desc != "" {
		return e.Desc
	}
	return fmt.Sprintf("service returned status %d", e.Status)
}

// ServiceMessage exposes the service-provided description for
// operator-facing error surfaces.
func (e *APIError) ServiceMessage() string {
	return e.Desc
}

type Client struct {
	base     string
	http     *http.Client
	log      *zerolog.Logger
	strategy retry.Strategy
}

func New(baseURL string, log *zerolog.Logger) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
		strategy: retry.Strategy{
			Attempts: 3,
			Delay:    200 * time.Millisecond,
			Backoff:  2,
		},
	}
}

var _ workflow.Profiles = (*Client)(nil)
var _ workflow.Catalog = (*Client)(nil)
var _ workflow.Directory = (*Client)(nil)
var _ workflow.Registrar = (*Client)(nil)

func (c *Client) Profile(ctx context.Context, s workflow.Session) (*workflow.Profile, error) {
	var out dto.ProfileResponse
	if err := c.get(ctx, s, "/v1/profile", nil, &out); err != nil {
		return nil, err
	}
	return &workflow.Profile{
		ID:        out.ID,
		TempleID:  out.TempleID,
		FirstName: out.FirstName,
		LastName:  out.LastName,
		Role:      out.Role,
	}, nil
}

func (c *Client) TeamEvents(ctx context.Context, s workflow.Session) ([]workflow.TeamEvent, error) {
	var out []dto.TeamEventResponse
	if err := c.get(ctx, s, "/v1/team-events", nil, &out); err != nil {
		return nil, err
	}
	events := make([]workflow.TeamEvent, 0, len(out))
	for _, e := range out {
		events = append(events, workflow.TeamEvent{
			ID:       e.ID,
			Name:     e.EventType.Name,
			Gender:   e.Gender,
			TeamSize: e.TeamSize,
		})
	}
	return events, nil
}

func (c *Client) TempleUsers(ctx context.Context, s workflow.Session) ([]workflow.Member, error) {
	var out []dto.TeamMemberResponse
	if err := c.get(ctx, s, "/v1/templeusers", nil, &out); err != nil {
		return nil, err
	}
	members := make([]workflow.Member, 0, len(out))
	for _, m := range out {
		members = append(members, memberOf(m))
	}
	return members, nil
}

func (c *Client) SearchByAadhar(ctx context.Context, s workflow.Session, aadhar string) (*workflow.Member, error) {
	query := url.Values{"aadharNumber": {aadhar}}
	var out dto.TeamMemberResponse
	if err := c.get(ctx, s, "/v1/search-by-aadhar", query, &out); err != nil {
		return nil, err
	}
	m := memberOf(out)
	return &m, nil
}

func (c *Client) TempleTeams(ctx context.Context, s workflow.Session) ([]workflow.Registration, error) {
	var out []dto.TeamResponse
	if err := c.get(ctx, s, "/v1/temple-teams", nil, &out); err != nil {
		return nil, err
	}
	regs := make([]workflow.Registration, 0, len(out))
	for _, t := range out {
		regs = append(regs, registrationOf(t))
	}
	return regs, nil
}

func (c *Client) RegisterTeam(ctx context.Context, s workflow.Session, templeID, eventID int64, memberIDs []int64) (*workflow.Registration, error) {
	req := dto.RegisterTeamRequest{
		TempleID:      templeID,
		EventID:       eventID,
		MemberUserIDs: memberIDs,
	}
	var out dto.TeamResponse
	if err := c.send(ctx, s, http.MethodPost, "/v1/register-team", req, &out); err != nil {
		return nil, err
	}
	reg := registrationOf(out)
	return &reg, nil
}

func (c *Client) UpdateTeam(ctx context.Context, s workflow.Session, teamID int64, memberIDs []int64) (*workflow.Registration, error) {
	req := dto.UpdateTeamRequest{MemberUserIDs: memberIDs}
	var out dto.TeamResponse
	path := "/v1/update-team/" + strconv.FormatInt(teamID, 10)
	if err := c.send(ctx, s, http.MethodPut, path, req, &out); err != nil {
		return nil, err
	}
	reg := registrationOf(out)
	return &reg, nil
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// get wraps idempotent reads in the retry strategy; client errors are
// not retried.
func (c *Client) get(ctx context.Context, s workflow.Session, path string, query url.Values, out any) error {
	var result error
	err := retry.Do(func() error {
		result = c.do(ctx, s, http.MethodGet, path, query, nil, out)
		if result == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(result, &apiErr) && apiErr.Status < 500 {
			return nil
		}
		if errors.Is(result, workflow.ErrSessionExpired) {
			return nil
		}
		return result
	}, c.strategy)
	if err != nil {
		return err
	}
	return result
}

func (c *Client) send(ctx context.Context, s workflow.Session, method, path string, body, out any) error {
	return c.do(ctx, s, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, s workflow.Session, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return workflow.ErrSessionExpired
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || env.Status == "error" {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Desc = env.Error.Desc
		}
		c.log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Msg("service rejected request")
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func memberOf(m dto.TeamMemberResponse) workflow.Member {
	return workflow.Member{
		ID:           m.ID,
		TempleID:     m.TempleID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		AadharNumber: m.AadharNumber,
	}
}

func registrationOf(t dto.TeamResponse) workflow.Registration {
	members := make([]workflow.Member, 0, len(t.Members))
	for _, m := range t.Members {
		members = append(members, memberOf(m))
	}
	return workflow.Registration{
		ID:      t.ID,
		EventID: t.EventID,
		Members: members,
	}
}
