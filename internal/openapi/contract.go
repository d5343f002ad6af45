// Package openapi loads the embedded API contract and validates request
// bodies against its schemas.
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/pitabwire/signoff/model"
)

//go:embed signoff.yaml
var embedded []byte

// Operation is one indexed operation of the contract.
type Operation struct {
	OperationID  string
	Method       string
	PathTemplate string
	// RequestSchema is the application/json body schema, or nil.
	RequestSchema *openapi3.Schema
}

// Contract is a parsed and validated OpenAPI document indexed by operationId.
type Contract struct {
	raw        []byte
	doc        *openapi3.T
	operations map[string]Operation
}

// Load parses the embedded contract.
func Load() (*Contract, error) {
	return Parse(embedded)
}

// Parse loads, validates and indexes an OpenAPI document.
func Parse(data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: loading contract: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: validating contract: %w", err)
	}

	c := &Contract{
		raw:        data,
		doc:        doc,
		operations: make(map[string]Operation),
	}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				return nil, fmt.Errorf("openapi: %s %s has no operationId", method, path)
			}
			if _, dup := c.operations[op.OperationID]; dup {
				return nil, fmt.Errorf("openapi: duplicate operationId %q", op.OperationID)
			}

			indexed := Operation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
			}
			if op.RequestBody != nil && op.RequestBody.Value != nil {
				if mt := op.RequestBody.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil {
					indexed.RequestSchema = mt.Schema.Value
				}
			}
			c.operations[op.OperationID] = indexed
		}
	}
	return c, nil
}

// Raw returns the contract source as served to clients.
func (c *Contract) Raw() []byte { return c.raw }

// Title returns the document title.
func (c *Contract) Title() string {
	if c.doc.Info == nil {
		return ""
	}
	return c.doc.Info.Title
}

// Operation returns the operation with the given id.
func (c *Contract) Operation(operationID string) (Operation, bool) {
	op, ok := c.operations[operationID]
	return op, ok
}

// Operations returns every operation sorted by path, then method.
func (c *Contract) Operations() []Operation {
	ops := make([]Operation, 0, len(c.operations))
	for _, op := range c.operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].PathTemplate == ops[j].PathTemplate {
			return ops[i].Method < ops[j].Method
		}
		return ops[i].PathTemplate < ops[j].PathTemplate
	})
	return ops
}

// ValidateBody checks a decoded JSON body against the operation's request
// schema. Missing required fields are reported first; when none are missing
// the full schema is applied. An empty result means the body is valid.
func (c *Contract) ValidateBody(operationID string, body map[string]any) []model.FieldError {
	op, ok := c.operations[operationID]
	if !ok {
		return []model.FieldError{{
			Code:    "UNKNOWN_OPERATION",
			Message: fmt.Sprintf("operation %q is not part of the contract", operationID),
		}}
	}
	schema := op.RequestSchema
	if schema == nil {
		return nil
	}

	var errs []model.FieldError
	for _, name := range schema.Required {
		if _, exists := body[name]; !exists {
			errs = append(errs, model.FieldError{
				Field:   name,
				Code:    "REQUIRED",
				Message: fmt.Sprintf("%s is required", name),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	err := schema.VisitJSON(body, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi {
			errs = append(errs, fieldError(e))
		}
		return errs
	}
	return []model.FieldError{fieldError(err)}
}

func fieldError(err error) model.FieldError {
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return model.FieldError{
			Field:   strings.Join(se.JSONPointer(), "."),
			Code:    "INVALID",
			Message: se.Reason,
		}
	}
	return model.FieldError{Code: "INVALID", Message: err.Error()}
}
