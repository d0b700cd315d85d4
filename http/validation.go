package http

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// webhookEventSchema is the inbound confirmation event contract.
// Everything else in the body is ignored.
const webhookEventSchema = `{
  "type": "object",
  "required": ["eventId", "transactionId", "status", "signature"],
  "properties": {
    "eventId":       {"type": "string", "minLength": 1},
    "transactionId": {"type": "string", "minLength": 1},
    "status":        {"type": "string", "enum": ["confirmed", "failed"]},
    "signature":     {"type": "string", "minLength": 1}
  }
}`

var webhookSchemaLoader = gojsonschema.NewStringLoader(webhookEventSchema)

// ValidateWebhookBody checks the raw request body against the webhook
// event schema and returns a descriptive error when it does not conform.
func ValidateWebhookBody(body []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(webhookSchemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("webhook body is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fmt.Errorf("webhook body failed validation: %v", errs)
}
