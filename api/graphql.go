package api

import (
	"encoding/json"
	"fmt"
)

// GraphQLRequest builds and sends one GraphQL query or mutation. Obtain one
// via Client.GraphQL; the zero value is not usable.
type GraphQLRequest struct {
	client    *Client
	query     string
	variables interface{}
	dataField string
}

// GraphQL starts a request for the given query document.
func (c *Client) GraphQL(query string) *GraphQLRequest {
	return &GraphQLRequest{client: c, query: query}
}

// Variables attaches the variables payload.
func (g *GraphQLRequest) Variables(v interface{}) *GraphQLRequest {
	g.variables = v
	return g
}

// DataField selects a single key of the response's data object to decode
// into the caller's output. Without it the whole data object is decoded.
func (g *GraphQLRequest) DataField(field string) *GraphQLRequest {
	g.dataField = field
	return g
}

// Send executes the request and decodes the selected response payload into
// out. GraphQL-level errors are returned as a single wrapped error.
func (g *GraphQLRequest) Send(out interface{}) error {
	body := map[string]interface{}{
		"query": g.query,
	}
	if g.variables != nil {
		body["variables"] = g.variables
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	respBody, err := g.client.Post(g.client.GraphQLEndpoint, "application/json", payload)
	if err != nil {
		return err
	}

	var resp struct {
		Data   map[string]json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(resp.Errors) > 0 {
		return fmt.Errorf("server returned error: %s", resp.Errors[0].Message)
	}
	if resp.Data == nil {
		return fmt.Errorf("no data field in response")
	}

	if out == nil {
		return nil
	}

	if g.dataField != "" {
		raw, ok := resp.Data[g.dataField]
		if !ok {
			return fmt.Errorf("missing %q field in response data", g.dataField)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode %q: %w", g.dataField, err)
		}
		return nil
	}

	full, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode data: %w", err)
	}
	if err := json.Unmarshal(full, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
