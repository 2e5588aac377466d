package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/customHttpClient"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

// ErrStatementFailed covers SQL statements the warehouse rejected or
// cancelled; ErrPollTimeout means the statement never reached a terminal
// state within the poll budget.
var (
	ErrStatementFailed = errors.New("databricks statement failed")
	ErrPollTimeout     = errors.New("databricks statement polling timed out")
)

// BatchRecord is one source row rendered as ingestable text.
type BatchRecord struct {
	RowIndex int
	Text     string
}

type Client struct {
	host        string
	token       string
	warehouseID string
	http        *http.Client
	logger      *logger_i.Logger
}

// NewClient returns nil when the workspace credentials are not configured;
// the Databricks ingest endpoint then reports the feature as unavailable.
func NewClient() *Client {
	host := strings.TrimSuffix(config.DatabricksHost(), "/")
	token := config.DatabricksToken()
	warehouse := config.WarehouseID()
	if host == "" || token == "" || warehouse == "" {
		return nil
	}
	return &Client{
		host:        host,
		token:       token,
		warehouseID: warehouse,
		http:        customHttpClient.GetPooledClient(),
		logger:      logger_i.NewLogger("databricks"),
	}
}

// NewTestClient wires an injected host and transport, for httptest-backed
// tests.
func NewTestClient(host, token, warehouseID string, httpClient *http.Client) *Client {
	return &Client{
		host:        host,
		token:       token,
		warehouseID: warehouseID,
		http:        httpClient,
		logger:      logger_i.NewLogger("test databricks"),
	}
}

type statementRequest struct {
	Statement   string `json:"statement"`
	WarehouseID string `json:"warehouse_id"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"status"`
	Manifest struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result struct {
		DataArray [][]string `json:"data_array"`
	} `json:"result"`
}

// FetchTableSample executes a bounded SELECT against the warehouse and
// renders each row as one text record, submit-then-poll.
func (c *Client) FetchTableSample(ctx context.Context, table string, limit int) ([]BatchRecord, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("databricks_statement", time.Since(start)) }()

	if limit <= 0 {
		limit = 50
	}
	statement := fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit)

	resp, err := c.submit(ctx, statement)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(config.DatabricksPollBudget)
	for isPendingState(resp.Status.State) {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: statement %s", ErrPollTimeout, resp.StatementID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.DatabricksPollInterval):
		}
		resp, err = c.poll(ctx, resp.StatementID)
		if err != nil {
			return nil, err
		}
	}

	if resp.Status.State != "SUCCEEDED" {
		return nil, fmt.Errorf("%w: state %s: %s", ErrStatementFailed, resp.Status.State, resp.Status.Error.Message)
	}

	records := renderRecords(resp)
	c.logger.Info("Statement succeeded", "table", table, "rows", len(records))
	return records, nil
}

func isPendingState(state string) bool {
	return state == "PENDING" || state == "RUNNING"
}

func (c *Client) submit(ctx context.Context, statement string) (*statementResponse, error) {
	body, err := json.Marshal(statementRequest{
		Statement:   statement,
		WarehouseID: c.warehouseID,
		WaitTimeout: "10s",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+config.DatabricksStatementPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) poll(ctx context.Context, statementID string) (*statementResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+config.DatabricksStatementPath+"/"+statementID, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*statementResponse, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: http %d", ErrStatementFailed, httpResp.StatusCode)
	}

	var resp statementResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding statement response: %w", err)
	}
	return &resp, nil
}

// renderRecords flattens each row into "column: value" lines so downstream
// chunking sees plain text.
func renderRecords(resp *statementResponse) []BatchRecord {
	columns := resp.Manifest.Schema.Columns

	records := make([]BatchRecord, 0, len(resp.Result.DataArray))
	for i, row := range resp.Result.DataArray {
		var b strings.Builder
		for idx, col := range columns {
			if idx >= len(row) {
				break
			}
			b.WriteString(col.Name)
			b.WriteString(": ")
			b.WriteString(row[idx])
			b.WriteString("\n")
		}
		records = append(records, BatchRecord{RowIndex: i, Text: strings.TrimSpace(b.String())})
	}
	return records
}
