package api

import (
	"arena-bot/internal/config"
	"arena-bot/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// RoleClient notifies the platform-side role collaborator that a participant moved
// between rank tiers. An empty webhook URL turns every call into a logged no-op.
type RoleClient struct {
	url         string
	token       string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
	logger      zerolog.Logger
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

type TierAssignment struct {
	ParticipantID string      `json:"participant_id"`
	Before        domain.Tier `json:"before"`
	After         domain.Tier `json:"after"`
	Rating        int         `json:"rating"`
}

type assignmentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewRoleClient(cfg *config.Config, logger zerolog.Logger) *RoleClient {
	return &RoleClient{
		url:   cfg.RoleWebhookURL,
		token: cfg.RoleWebhookToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{UpdatedAt: time.Now()},
		logger:    logger.With().Str("component", "role_client").Logger(),
	}
}

func (c *RoleClient) Enabled() bool {
	return c.url != ""
}

func (c *RoleClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RoleClient) AssignTier(ctx context.Context, assignment TierAssignment) error {
	if !c.Enabled() {
		c.logger.Debug().
			Str("participant_id", assignment.ParticipantID).
			Str("before", assignment.Before.String()).
			Str("after", assignment.After.String()).
			Msg("role webhook disabled, skipping tier assignment")
		return nil
	}

	resp, err := doRequest[assignmentResponse](ctx, c, assignment)
	if err != nil {
		c.logger.Error().Err(err).Str("participant_id", assignment.ParticipantID).Msg("tier assignment failed")
		return fmt.Errorf("failed to assign tier: %w", err)
	}

	c.logger.Info().
		Str("participant_id", assignment.ParticipantID).
		Str("after", assignment.After.String()).
		Str("status", resp.Status).
		Msg("tier assignment delivered")
	return nil
}

func (c *RoleClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func doRequest[T any](ctx context.Context, client *RoleClient, payload any) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(client.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	client.updateRateLimit(resp)

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, fmt.Errorf("role webhook error: %d", code)
	}

	var result T
	if len(resp.Body()) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
