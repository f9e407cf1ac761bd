package orient

import (
	"bytes"
	"context"
	"crudconsole/logger"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client is the subset of the OrientDB REST api the console works with.
type Client interface {
	Load(ctx context.Context, rid RID) (Record, error)
	Query(ctx context.Context, sql string, limit int) ([]Record, error)
	Batch(ctx context.Context, operations []Operation) (*BatchResult, error)
	GetInfoClass(ctx context.Context, className string) (*ClassInfo, error)
}

type HTTPClient struct {
	baseUrl  string
	database string
	user     string
	password string
	http     *http.Client
}

func NewHTTPClient(baseUrl, database, user, password string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseUrl:  strings.TrimRight(baseUrl, "/"),
		database: database,
		user:     user,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

type resultEnvelope struct {
	Result []Record `json:"result"`
}

type errorEnvelope struct {
	Errors []struct {
		Code    int    `json:"code"`
		Reason  int    `json:"reason"`
		Content string `json:"content"`
	} `json:"errors"`
}

func (c *HTTPClient) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i := range parts {
		escaped[i] = url.PathEscape(parts[i])
	}
	return c.baseUrl + "/" + strings.Join(escaped, "/")
}

func (c *HTTPClient) Load(ctx context.Context, rid RID) (Record, error) {
	if !rid.Valid() {
		return nil, NewOrientError(ErrOrientWrongRID, "Value '%s' is not a record identifier", rid)
	}
	var record Record
	if err := c.do(ctx, http.MethodGet, c.endpoint("document", c.database, rid.Path()), nil, &record); err != nil {
		return nil, errors.Wrapf(err, "load %s", rid)
	}
	return record, nil
}

// Query runs an idempotent SELECT. A non positive limit means no limit.
func (c *HTTPClient) Query(ctx context.Context, sql string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	var envelope resultEnvelope
	target := c.endpoint("query", c.database, "sql", sql, strconv.Itoa(limit))
	if err := c.do(ctx, http.MethodGet, target, nil, &envelope); err != nil {
		return nil, errors.Wrap(err, "query")
	}
	logger.Debug("Query '%s' returned %d records", sql, len(envelope.Result))
	return envelope.Result, nil
}

func (c *HTTPClient) Batch(ctx context.Context, operations []Operation) (*BatchResult, error) {
	if len(operations) == 0 {
		return nil, NewOrientError(ErrOrientWrongArgs, "Batch without operations")
	}
	for i := range operations {
		if !operations[i].Type.Valid() {
			return nil, NewOrientError(ErrOrientWrongArgs, "Operation %d has unknown type '%s'", i, operations[i].Type)
		}
	}
	var result BatchResult
	request := &batchRequest{Transaction: true, Operations: operations}
	if err := c.do(ctx, http.MethodPost, c.endpoint("batch", c.database), request, &result); err != nil {
		return nil, errors.Wrap(err, "batch")
	}
	return &result, nil
}

func (c *HTTPClient) GetInfoClass(ctx context.Context, className string) (*ClassInfo, error) {
	var info ClassInfo
	if err := c.do(ctx, http.MethodGet, c.endpoint("class", c.database, className), nil, &info); err != nil {
		return nil, errors.Wrapf(err, "class %s", className)
	}
	return &info, nil
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return NewOrientError(ErrOrientWrongArgs, "Can't encode request: %s", err.Error())
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return NewOrientError(ErrOrientRequest, "Can't build request: %s", err.Error())
	}
	request.SetBasicAuth(c.user, c.password)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		logger.Error("OrientDB request %s %s failed: %s", method, target, err.Error())
		return &OrientError{Code: ErrOrientRequest, Msg: err.Error()}
	}
	defer response.Body.Close()

	data, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return &OrientError{Code: ErrOrientResponse, Msg: err.Error(), Status: response.StatusCode}
	}

	if response.StatusCode >= http.StatusMultipleChoices {
		return responseError(response.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &OrientError{Code: ErrOrientResponse, Msg: "bad JSON: " + err.Error(), Status: response.StatusCode}
		}
	}
	return nil
}

func responseError(status int, data []byte) *OrientError {
	msg := strings.TrimSpace(string(data))
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Errors) > 0 {
		msg = envelope.Errors[0].Content
	}
	code := ErrOrientRejected
	if status == http.StatusNotFound {
		code = ErrOrientNotFound
	}
	return &OrientError{Code: code, Msg: msg, Status: status}
}
