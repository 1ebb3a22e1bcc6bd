package crewinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crewmon/internal/progress"
)

// DefaultTimeout bounds one crew service request.
const DefaultTimeout = 10 * time.Second

// Client talks to the crew configuration service.
type Client struct {
	BaseURL string
	client  *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type wireAgent struct {
	Role      string   `json:"role"`
	Goal      string   `json:"goal"`
	Backstory string   `json:"backstory"`
	LLM       string   `json:"llm"`
	Model     string   `json:"model"`
	Tools     []string `json:"tools"`
	Enabled   *bool    `json:"enabled"`
}

type wireTask struct {
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
	AgentRole      string `json:"agent_role"`
	Enabled        *bool  `json:"enabled"`
}

type crewInfoResponse struct {
	Agents    []wireAgent       `json:"agents"`
	Tasks     []wireTask        `json:"tasks"`
	LLMModels map[string]string `json:"llm_models"`
}

// FetchCrewInfo loads the agent/task configuration for crewType. Agents and
// tasks without an "enabled" field are enabled.
func (c *Client) FetchCrewInfo(ctx context.Context, crewType string) (*progress.CrewConfig, error) {
	var resp crewInfoResponse
	if err := c.getJSON(ctx, "/api/crew-info/"+url.PathEscape(crewType), &resp); err != nil {
		return nil, fmt.Errorf("crew info %q: %w", crewType, err)
	}

	cfg := &progress.CrewConfig{LLMModels: resp.LLMModels}
	for _, a := range resp.Agents {
		llm := a.LLM
		if llm == "" {
			llm = a.Model
		}
		cfg.Agents = append(cfg.Agents, progress.Agent{
			Role:      a.Role,
			Goal:      a.Goal,
			Backstory: a.Backstory,
			LLM:       llm,
			Tools:     a.Tools,
			Enabled:   enabledOr(a.Enabled),
		})
	}
	for _, t := range resp.Tasks {
		cfg.Tasks = append(cfg.Tasks, progress.TaskTemplate{
			Description:    t.Description,
			ExpectedOutput: t.ExpectedOutput,
			AgentRole:      t.AgentRole,
			Enabled:        enabledOr(t.Enabled),
		})
	}
	return cfg, nil
}

// ListCrewTypes returns the crew types the service offers. The service
// answers either with a bare array or with {"crew_types": [...]}.
func (c *Client) ListCrewTypes(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/crew-types", &raw); err != nil {
		return nil, fmt.Errorf("crew types: %w", err)
	}

	var types []string
	if err := json.Unmarshal(raw, &types); err == nil {
		return types, nil
	}
	var wrapped struct {
		CrewTypes []string `json:"crew_types"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("crew types: unexpected response: %w", err)
	}
	return wrapped.CrewTypes, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func enabledOr(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}
