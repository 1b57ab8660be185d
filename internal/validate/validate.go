// Package validate checks client write payloads before anything is stored.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/user/casewatch/internal/types"
)

const writeSchemaURL = "casewatch://write.json"

// writeSchema describes the shape a write must have. It only pins down
// the fields the server reads; everything else is left open.
const writeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "cases": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "status": {"type": ["string", "null"]},
          "history": {
            "type": ["array", "null"],
            "items": {"type": "object"}
          },
          "itinerary": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "properties": {
                "time": {"type": ["string", "null"]},
                "notified": {"type": ["array", "null"], "items": {"type": "string"}}
              }
            }
          },
          "attachments": {
            "type": ["array", "null"],
            "items": {"type": "object"}
          }
        }
      }
    },
    "reminders": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "time": {"type": ["string", "null"]},
          "notified": {"type": ["boolean", "null"]}
        }
      }
    },
    "settings": {
      "type": ["object", "null"],
      "properties": {
        "users": {
          "type": ["array", "null"],
          "items": {"type": "object"}
        },
        "notifications": {
          "type": ["array", "null"],
          "items": {"type": "object"}
        }
      }
    },
    "uploads": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["base64"],
        "properties": {
          "id": {"type": "string"},
          "tempId": {"type": "string"},
          "fileName": {"type": "string"},
          "base64": {"type": "string"}
        }
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(writeSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse write schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(writeSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add write schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(writeSchemaURL)
	})
	return compiled, compileErr
}

// WritePayload validates a raw write body. Failures wrap
// types.ErrInvalidPayload.
func WritePayload(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty body", types.ErrInvalidPayload)
	}
	sch, err := schema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidPayload, err)
	}
	if err := sch.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", types.ErrInvalidPayload, firstLine(verr.Error()))
		}
		return fmt.Errorf("%w: %v", types.ErrInvalidPayload, err)
	}
	return nil
}

// Login checks that both credentials are present.
func Login(user, pass string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("%w: missing username", types.ErrInvalidPayload)
	}
	if pass == "" {
		return fmt.Errorf("%w: missing password", types.ErrInvalidPayload)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
