// Copyright 2025 Matt Barlow
//
// Helper functions for tool handlers

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mbarlow/macbridge/internal/gateway"
	"github.com/mbarlow/macbridge/internal/transport"
)

// Error code strings carried in failure records.
const (
	ErrCodeInvalidArgs      = "INVALID_ARGS"
	ErrCodeMissingParam     = "MISSING_PARAM"
	ErrCodeInvalidVolume    = "INVALID_VOLUME"
	ErrCodeInvalidRate      = "INVALID_RATE"
	ErrCodeInvalidRecipient = "INVALID_RECIPIENT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeExecTimeout      = "EXEC_TIMEOUT"
	ErrCodeExecFailed       = "EXEC_FAILED"
	ErrCodeScriptError      = "SCRIPT_ERROR"
	ErrCodeShellDisabled    = "SHELL_DISABLED"
	ErrCodeMonitorDisabled  = "MONITOR_DISABLED"
	ErrCodeNoSamples        = "NO_SAMPLES"
	ErrCodeInvalidThreshold = "INVALID_THRESHOLD"
)

// maxStderrExcerpt bounds the stderr text included in failure records.
const maxStderrExcerpt = 200

// record is the structured per-call result payload. Every tool returns
// one of these, JSON-encoded, as its text content.
type record struct {
	Success    bool           `json:"success"`
	Operation  string         `json:"operation"`
	DurationMS int64          `json:"duration_ms"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func (r record) toolResult(isError bool) *ToolResult {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"success":false,"operation":%q,"error_code":"INTERNAL"}`, r.Operation))
	}
	return &ToolResult{
		IsError: isError,
		Content: []Content{{Type: "text", Text: string(data)}},
	}
}

// successResult builds a success record for op with optional payload data.
func successResult(op string, elapsed time.Duration, message string, data map[string]any) *ToolResult {
	return record{
		Success:    true,
		Operation:  op,
		DurationMS: elapsed.Milliseconds(),
		Message:    message,
		Data:       data,
	}.toolResult(false)
}

// failureResult builds a failure record with an error code string.
func failureResult(op, code, message string) *ToolResult {
	return record{
		Success:   false,
		Operation: op,
		ErrorCode: code,
		Message:   message,
	}.toolResult(true)
}

// failureResultf is the sprintf version of failureResult.
func failureResultf(op, code, format string, args ...any) *ToolResult {
	return failureResult(op, code, fmt.Sprintf(format, args...))
}

// invalidArgs builds the failure record for unparseable arguments.
func invalidArgs(op string, err error) *ToolResult {
	return failureResultf(op, ErrCodeInvalidArgs, "invalid parameters: %v", err)
}

// missingParam builds the failure record for a missing required parameter.
func missingParam(op, param string) *ToolResult {
	return failureResultf(op, ErrCodeMissingParam, "%s parameter is required", param)
}

// gatewayFailure maps a gateway error to a failure record.
func gatewayFailure(op string, err error) *ToolResult {
	if errors.Is(err, gateway.ErrTimeout) {
		return failureResultf(op, ErrCodeExecTimeout, "%v", err)
	}
	return failureResultf(op, ErrCodeExecFailed, "%v", err)
}

// scriptFailure maps a nonzero script exit to a failure record with a
// bounded stderr excerpt.
func scriptFailure(op string, res *gateway.Result) *ToolResult {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	if len(detail) > maxStderrExcerpt {
		detail = detail[:maxStderrExcerpt] + "..."
	}
	return failureResultf(op, ErrCodeScriptError, "script exited with code %d: %s", res.ExitCode, detail)
}

// validateToolInput validates JSON arguments against a tool's InputSchema.
// It checks:
//   - All required fields are present
//   - Field types match the schema (string, number, boolean, integer, array, object)
//   - Enum values are in the allowed set (if enum is specified)
//
// Returns a JSON-RPC error response with ErrCodeInvalidParams (-32602)
// if validation fails, nil if validation passes.
//
// Extra properties not defined in the schema are allowed.
func validateToolInput(tool *Tool, args map[string]any) *transport.Message {
	schema := tool.InputSchema
	if schema == nil {
		return nil
	}

	for _, field := range getRequiredFields(schema) {
		if _, exists := args[field]; !exists {
			return invalidParamsError(fmt.Sprintf("missing required field: %s", field))
		}
	}

	properties := getSchemaProperties(schema)
	if properties == nil {
		return nil
	}

	for fieldName, value := range args {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue
		}
		if err := validateFieldValue(fieldName, value, propSchema); err != nil {
			return invalidParamsError(err.Error())
		}
	}

	return nil
}

// invalidParamsError creates a JSON-RPC error response with ErrCodeInvalidParams.
func invalidParamsError(message string) *transport.Message {
	return &transport.Message{
		JSONRPC: "2.0",
		Error: &transport.ErrorObj{
			Code:    transport.ErrCodeInvalidParams,
			Message: message,
		},
	}
}

// getRequiredFields extracts the "required" array from a JSON schema.
func getRequiredFields(schema map[string]any) []string {
	required, ok := schema["required"]
	if !ok {
		return nil
	}

	if requiredArr, ok := required.([]string); ok {
		return requiredArr
	}

	// Handle []interface{} from JSON unmarshaling
	requiredIface, ok := required.([]any)
	if !ok {
		return nil
	}

	result := make([]string, 0, len(requiredIface))
	for _, v := range requiredIface {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// getSchemaProperties extracts the "properties" map from a JSON schema.
func getSchemaProperties(schema map[string]any) map[string]map[string]any {
	props, ok := schema["properties"]
	if !ok {
		return nil
	}

	propsMap, ok := props.(map[string]any)
	if !ok {
		return nil
	}

	result := make(map[string]map[string]any, len(propsMap))
	for k, v := range propsMap {
		if propSchema, ok := v.(map[string]any); ok {
			result[k] = propSchema
		}
	}
	return result
}

// validateFieldValue validates a single field value against its property schema.
func validateFieldValue(fieldName string, value any, propSchema map[string]any) error {
	if value == nil {
		return nil
	}

	schemaType, hasType := propSchema["type"].(string)
	if !hasType {
		return validateEnumValue(fieldName, value, propSchema)
	}

	if err := validateType(fieldName, value, schemaType); err != nil {
		return err
	}

	return validateEnumValue(fieldName, value, propSchema)
}

// validateType validates that a value matches the expected JSON Schema type.
func validateType(fieldName string, value any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field %q must be a string, got %T", fieldName, value)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("field %q must be a number, got %T", fieldName, value)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Errorf("field %q must be an integer, got %T", fieldName, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean, got %T", fieldName, value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("field %q must be an array, got %T", fieldName, value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object, got %T", fieldName, value)
		}
	default:
		// Unknown type - skip validation
	}
	return nil
}

// isNumber returns true if the value is a valid JSON number.
func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// isInteger returns true if the value is an integer (whole number).
// JSON unmarshaling to interface{} produces float64 for all numbers,
// so whole float64 values count.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int32(v))
	default:
		return false
	}
}

// validateEnumValue validates that a value is in the allowed enum set.
func validateEnumValue(fieldName string, value any, propSchema map[string]any) error {
	enumValues, ok := propSchema["enum"]
	if !ok {
		return nil
	}

	// Enum as []string (defined in registerTools)
	if enumStrings, ok := enumValues.([]string); ok {
		valueStr, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string for enum validation, got %T", fieldName, value)
		}
		if slices.Contains(enumStrings, valueStr) {
			return nil
		}
		return fmt.Errorf("field %q must be one of [%s], got %q", fieldName, strings.Join(enumStrings, ", "), valueStr)
	}

	// Enum as []interface{} (from JSON unmarshaling)
	if enumIface, ok := enumValues.([]any); ok {
		for _, allowed := range enumIface {
			if value == allowed {
				return nil
			}
		}
		allowedStrs := make([]string, 0, len(enumIface))
		for _, v := range enumIface {
			allowedStrs = append(allowedStrs, fmt.Sprintf("%v", v))
		}
		return fmt.Errorf("field %q must be one of [%s], got %v", fieldName, strings.Join(allowedStrs, ", "), value)
	}

	return nil
}
