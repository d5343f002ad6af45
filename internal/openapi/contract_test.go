package openapi

import (
	"testing"
)

func loadContract(t *testing.T) *Contract {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func TestLoad(t *testing.T) {
	c := loadContract(t)
	if got := len(c.Operations()); got != 13 {
		t.Fatalf("Operations() = %d, want 13", got)
	}
	if c.Title() != "Signoff approval API" {
		t.Errorf("Title() = %q", c.Title())
	}
	if len(c.Raw()) == 0 {
		t.Error("Raw() should return the embedded document")
	}
}

func TestOperation(t *testing.T) {
	c := loadContract(t)

	tests := []struct {
		id, method, path string
		hasBody          bool
	}{
		{"createWorkflow", "POST", "/v1/workflows", true},
		{"listWorkflows", "GET", "/v1/workflows", false},
		{"submitDecision", "POST", "/v1/workflows/{workflowId}/decisions", true},
		{"exportReport", "GET", "/v1/workflows/{workflowId}/report", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			op, ok := c.Operation(tt.id)
			if !ok {
				t.Fatalf("Operation(%s) not found", tt.id)
			}
			if op.Method != tt.method {
				t.Errorf("Method = %q, want %q", op.Method, tt.method)
			}
			if op.PathTemplate != tt.path {
				t.Errorf("PathTemplate = %q, want %q", op.PathTemplate, tt.path)
			}
			if (op.RequestSchema != nil) != tt.hasBody {
				t.Errorf("RequestSchema present = %v, want %v", op.RequestSchema != nil, tt.hasBody)
			}
		})
	}

	if _, ok := c.Operation("deleteWorkflow"); ok {
		t.Error("deleteWorkflow should not exist")
	}
}

func TestOperations_sorted(t *testing.T) {
	ops := loadContract(t).Operations()
	for i := 1; i < len(ops); i++ {
		prev, cur := ops[i-1], ops[i]
		if prev.PathTemplate > cur.PathTemplate ||
			(prev.PathTemplate == cur.PathTemplate && prev.Method > cur.Method) {
			t.Errorf("operations out of order at %d: %s %s before %s %s",
				i, prev.Method, prev.PathTemplate, cur.Method, cur.PathTemplate)
		}
	}
}

func TestValidateBody(t *testing.T) {
	c := loadContract(t)

	tests := []struct {
		name      string
		operation string
		body      map[string]any
		fields    []string
	}{
		{
			name:      "valid decision",
			operation: "submitDecision",
			body: map[string]any{
				"stakeholder_id": "stk-ciso",
				"approval_type":  "security_review",
				"status":         "approved",
				"conditions":     []any{"quarterly review"},
			},
		},
		{
			name:      "missing required",
			operation: "submitDecision",
			body:      map[string]any{"stakeholder_id": "stk-ciso"},
			fields:    []string{"approval_type", "status"},
		},
		{
			name:      "status outside enum",
			operation: "submitDecision",
			body: map[string]any{
				"stakeholder_id": "stk-ciso",
				"approval_type":  "security_review",
				"status":         "pending",
			},
			fields: []string{"status"},
		},
		{
			name:      "wrong type",
			operation: "escalateRequirement",
			body:      map[string]any{"requirement_id": 42.0},
			fields:    []string{"requirement_id"},
		},
		{
			name:      "no request body",
			operation: "listWorkflows",
			body:      map[string]any{"anything": true},
		},
		{
			name:      "unknown operation",
			operation: "nope",
			body:      map[string]any{},
			fields:    []string{""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := c.ValidateBody(tt.operation, tt.body)
			if len(errs) != len(tt.fields) {
				t.Fatalf("errors = %+v, want fields %v", errs, tt.fields)
			}
			for i, field := range tt.fields {
				if errs[i].Field != field {
					t.Errorf("errors[%d].Field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}

func TestParse_invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "::::"},
		{"missing operationId", `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /x:
    get:
      responses:
        "200": {description: ok}
`},
		{"duplicate operationId", `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /x:
    get:
      operationId: same
      responses:
        "200": {description: ok}
  /y:
    get:
      operationId: same
      responses:
        "200": {description: ok}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
