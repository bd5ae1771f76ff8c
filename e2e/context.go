package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries per-scenario HTTP state against a running server.
type TestContext struct {
	BaseURL      string
	HTTPClient   *http.Client
	AdminToken   string
	LastResponse *http.Response
	LastBody     []byte
	token        string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		AdminToken: adminToken,
	}
}

// Reset clears state between scenarios.
func (tc *TestContext) Reset() {
	tc.LastResponse = nil
	tc.LastBody = nil
	tc.token = ""
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.LastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastResponse = resp
	return nil
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, nil)
}

// PUTAsCollaborator calls a collaborator endpoint with the admin token.
func (tc *TestContext) PUTAsCollaborator(path string) error {
	headers := map[string]string{}
	if tc.AdminToken != "" {
		headers["Authorization"] = "Bearer " + tc.AdminToken
	}
	return tc.do(http.MethodPut, path, nil, headers)
}

func (tc *TestContext) StatusCode() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastBody, &data); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.LastBody)
	}
	return v, nil
}

func (tc *TestContext) DecodeResponse(v interface{}) error {
	return json.Unmarshal(tc.LastBody, v)
}

func (tc *TestContext) GetToken() string {
	return tc.token
}

func (tc *TestContext) SetToken(token string) {
	tc.token = token
}
