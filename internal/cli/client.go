package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API (без задач).
type FlowResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	DepositID string         `json:"deposit_id"`
	UserID    string         `json:"user_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// FlowViewResponse — сериализованный flow с задачами и статусом.
type FlowViewResponse struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Payload map[string]any     `json:"payload,omitempty"`
	Tasks   []TaskViewResponse `json:"tasks"`
	Status  string             `json:"status"`
}

// TaskViewResponse — задача внутри FlowViewResponse.
type TaskViewResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Previous []string `json:"previous"`
}

// TaskStatusResponse — статус отдельной задачи.
type TaskStatusResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DepositStatusResponse — агрегированные статусы задач депозита.
type DepositStatusResponse struct {
	DepositID string            `json:"deposit_id"`
	Tasks     map[string]string `json:"tasks"`
}

// --- Request types ---

// CreateFlowRequest — создание flow.
type CreateFlowRequest struct {
	Name      string         `json:"name"`
	DepositID string         `json:"deposit_id"`
	UserID    string         `json:"user_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для CDS flows API.
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

// --- Flows ---

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(req CreateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.post("/api/v1/flows", req, &flow)
	return &flow, err
}

// GetFlow возвращает сериализованный flow по ID.
func (c *Client) GetFlow(id string) (*FlowViewResponse, error) {
	var view FlowViewResponse
	err := c.get("/api/v1/flows/"+id, &view)
	return &view, err
}

// RunFlow запускает выполнение flow.
func (c *Client) RunFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.post("/api/v1/flows/"+id+"/run", nil, &flow)
	return &flow, err
}

// StopFlow отменяет ещё не начатые задачи flow.
func (c *Client) StopFlow(id string) error {
	return c.post("/api/v1/flows/"+id+"/stop", nil, nil)
}

// DeleteFlow чистит результаты и помечает flow удалённым.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// --- Tasks ---

// GetTaskStatus возвращает статус задачи flow.
func (c *Client) GetTaskStatus(flowID, taskID string) (*TaskStatusResponse, error) {
	var status TaskStatusResponse
	err := c.get("/api/v1/flows/"+flowID+"/tasks/"+taskID, &status)
	return &status, err
}

// RestartTask переотправляет терминальную задачу.
func (c *Client) RestartTask(flowID, taskID string) error {
	return c.post("/api/v1/flows/"+flowID+"/tasks/"+taskID+"/restart", nil, nil)
}

// --- Deposits ---

// GetDepositFlow возвращает последний не удалённый flow депозита.
func (c *Client) GetDepositFlow(depositID string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/deposits/"+depositID+"/flow", &flow)
	return &flow, err
}

// GetDepositStatus возвращает статусы задач flows депозита.
func (c *Client) GetDepositStatus(depositID string) (*DepositStatusResponse, error) {
	var status DepositStatusResponse
	err := c.get("/api/v1/deposits/"+depositID+"/status", &status)
	return &status, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
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
