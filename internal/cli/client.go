package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RepoURL   string `json:"repo_url"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// ConfigRevisionResponse — ревизия конфигурации pipeline из API.
type ConfigRevisionResponse struct {
	PipelineID string         `json:"pipeline_id"`
	Revision   int            `json:"revision"`
	Spec       map[string]any `json:"spec"`
	CreatedAt  string         `json:"created_at"`
}

// ValidateConfigResponse — результат проверки конфигурации.
type ValidateConfigResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Jobs  int    `json:"jobs,omitempty"`
}

// BuildResponse — build из API.
type BuildResponse struct {
	ID             string            `json:"id"`
	PipelineID     string            `json:"pipeline_id"`
	Revision       int               `json:"revision"`
	Number         int               `json:"number"`
	Status         string            `json:"status"`
	Branch         string            `json:"branch"`
	Commit         string            `json:"commit,omitempty"`
	Trigger        string            `json:"trigger"`
	Env            map[string]string `json:"env,omitempty"`
	StartedAt      string            `json:"started_at,omitempty"`
	FinishedAt     string            `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// StepResult — результат выполнения одного шага job.
type StepResult struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	OutputTail string `json:"output_tail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TestSummary — сводка по тестам job.
type TestSummary struct {
	Total    int `json:"total"`
	Failures int `json:"failures"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID         string       `json:"id"`
	BuildID    string       `json:"build_id"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	Steps      []StepResult `json:"steps,omitempty"`
	Tests      *TestSummary `json:"tests,omitempty"`
	LogRef     string       `json:"log_ref,omitempty"`
	StartedAt  string       `json:"started_at,omitempty"`
	FinishedAt string       `json:"finished_at,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  string       `json:"created_at"`
}

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	ID        string `json:"id"`
	BuildID   string `json:"build_id"`
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string            `json:"id"`
	PipelineID  string            `json:"pipeline_id"`
	Name        string            `json:"name"`
	Branch      string            `json:"branch"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone"`
	Enabled     bool              `json:"enabled"`
	NextDueAt   string            `json:"next_due_at,omitempty"`
	LastBuildAt string            `json:"last_build_at,omitempty"`
	LastBuildID string            `json:"last_build_id,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// --- Request types ---

// CreatePipelineRequest — создание pipeline.
type CreatePipelineRequest struct {
	Name    string `json:"name"`
	RepoURL string `json:"repo_url"`
}

// UpdatePipelineRequest — обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	RepoURL  *string `json:"repo_url,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// TriggerBuildRequest — запуск build.
type TriggerBuildRequest struct {
	Branch         string            `json:"branch"`
	Commit         string            `json:"commit,omitempty"`
	Revision       *int              `json:"revision,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string            `json:"name"`
	Branch      string            `json:"branch"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Env         map[string]string `json:"env,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string            `json:"name,omitempty"`
	Branch      *string            `json:"branch,omitempty"`
	CronExpr    *string            `json:"cron_expr,omitempty"`
	IntervalSec *int               `json:"interval_sec,omitempty"`
	Timezone    *string            `json:"timezone,omitempty"`
	Env         *map[string]string `json:"env,omitempty"`
}

// ListBuildsOpts — параметры фильтрации builds.
type ListBuildsOpts struct {
	PipelineID string
	Status     string
	Branch     string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает все pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline создаёт новый pipeline.
func (c *Client) CreatePipeline(name, repoURL string) (*PipelineResponse, error) {
	body := CreatePipelineRequest{Name: name, RepoURL: repoURL}
	var pipeline PipelineResponse
	err := c.post("/api/v1/pipelines", body, &pipeline)
	return &pipeline, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &pipeline)
	return &pipeline, err
}

// UpdatePipeline обновляет pipeline.
func (c *Client) UpdatePipeline(id string, req UpdatePipelineRequest) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.put("/api/v1/pipelines/"+id, req, &pipeline)
	return &pipeline, err
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(id string) error {
	return c.delete("/api/v1/pipelines/" + id)
}

// ListConfigRevisions возвращает ревизии конфигурации pipeline.
func (c *Client) ListConfigRevisions(pipelineID string) ([]ConfigRevisionResponse, error) {
	var revisions []ConfigRevisionResponse
	err := c.list("/api/v1/pipelines/"+pipelineID+"/config", nil, &revisions)
	return revisions, err
}

// UploadConfig загружает YAML конфигурацию как новую ревизию.
func (c *Client) UploadConfig(pipelineID string, config []byte) (*ConfigRevisionResponse, error) {
	var revision ConfigRevisionResponse
	err := c.postRaw("/api/v1/pipelines/"+pipelineID+"/config", config, &revision)
	return &revision, err
}

// GetConfigRevision возвращает конкретную ревизию конфигурации.
func (c *Client) GetConfigRevision(pipelineID string, revision int) (*ConfigRevisionResponse, error) {
	var rev ConfigRevisionResponse
	err := c.get(fmt.Sprintf("/api/v1/pipelines/%s/config/%d", pipelineID, revision), &rev)
	return &rev, err
}

// ValidateConfig проверяет YAML конфигурацию без сохранения.
func (c *Client) ValidateConfig(config []byte) (*ValidateConfigResponse, error) {
	var result ValidateConfigResponse
	err := c.postRaw("/api/v1/pipelines/validate", config, &result)
	return &result, err
}

// --- Builds ---

// ListBuilds возвращает список builds с фильтрацией.
func (c *Client) ListBuilds(opts ListBuildsOpts) ([]BuildResponse, error) {
	params := url.Values{}
	if opts.PipelineID != "" {
		params.Set("pipeline_id", opts.PipelineID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var builds []BuildResponse
	err := c.list("/api/v1/builds", params, &builds)
	return builds, err
}

// TriggerBuild запускает build для pipeline.
func (c *Client) TriggerBuild(pipelineID string, req TriggerBuildRequest) (*BuildResponse, error) {
	var build BuildResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/builds", req, &build)
	return &build, err
}

// GetBuild возвращает build по ID.
func (c *Client) GetBuild(id string) (*BuildResponse, error) {
	var build BuildResponse
	err := c.get("/api/v1/builds/"+id, &build)
	return &build, err
}

// CancelBuild отменяет build.
func (c *Client) CancelBuild(id string) (*BuildResponse, error) {
	var build BuildResponse
	err := c.post("/api/v1/builds/"+id+"/cancel", nil, &build)
	return &build, err
}

// ListBuildJobs возвращает jobs build.
func (c *Client) ListBuildJobs(buildID string) ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/builds/"+buildID+"/jobs", nil, &jobs)
	return jobs, err
}

// ListBuildArtifacts возвращает артефакты build.
func (c *Client) ListBuildArtifacts(buildID string) ([]ArtifactResponse, error) {
	var artifacts []ArtifactResponse
	err := c.list("/api/v1/builds/"+buildID+"/artifacts", nil, &artifacts)
	return artifacts, err
}

// --- Jobs ---

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// GetJobLog возвращает полный лог job как текст.
func (c *Client) GetJobLog(id string) ([]byte, error) {
	return c.getRaw("/api/v1/jobs/" + id + "/log")
}

// DownloadArtifact возвращает содержимое артефакта.
func (c *Client) DownloadArtifact(id string) ([]byte, error) {
	return c.getRaw("/api/v1/artifacts/" + id + "/download")
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если pipelineID не пустой — фильтрует.
func (c *Client) ListSchedules(pipelineID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if pipelineID != "" {
		params.Set("pipeline_id", pipelineID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для pipeline.
func (c *Client) CreateSchedule(pipelineID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// postRaw отправляет тело как есть (YAML конфигурация) и разбирает data-ответ.
func (c *Client) postRaw(path string, body []byte, result any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/yaml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

// getRaw возвращает тело ответа без обёртки data (логи, артефакты).
func (c *Client) getRaw(path string) ([]byte, error) {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
