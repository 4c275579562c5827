package gateway

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBase = "https://callcenter.schemas.local/"

// Response shapes accepted from the server. Anything else is a schema error.
var schemaSources = map[string]string{
	"user.json": `{
		"type": "object",
		"required": ["id", "username", "full_name", "role", "status"],
		"properties": {
			"id": {"type": "integer"},
			"username": {"type": "string"},
			"full_name": {"type": "string"},
			"role": {"enum": ["operator", "super_admin"]},
			"status": {"enum": ["online", "offline", "busy", "break"]},
			"phone_extension": {"type": ["string", "null"]},
			"created_at": {"type": ["string", "null"], "$ref": "timestamp.json"}
		}
	}`,
	"users.json": `{
		"type": "array",
		"items": {"$ref": "user.json"}
	}`,
	"call.json": `{
		"type": "object",
		"required": ["id", "caller_number", "status", "duration", "started_at"],
		"properties": {
			"id": {"type": "integer"},
			"caller_number": {"type": "string"},
			"operator_name": {"type": ["string", "null"]},
			"status": {"enum": ["active", "completed", "queued"]},
			"duration": {"type": "integer", "minimum": 0},
			"started_at": {"type": ["string", "null"], "$ref": "timestamp.json"},
			"ended_at": {"type": ["string", "null"], "$ref": "timestamp.json"},
			"notes": {"type": ["string", "null"]}
		}
	}`,
	"calls.json": `{
		"type": "array",
		"items": {"$ref": "call.json"}
	}`,
	"timestamp.json": `{
		"pattern": "^\\d{4}-\\d{2}-\\d{2}[T ]\\d{2}:\\d{2}:\\d{2}(\\.\\d+)?(Z|[+-]\\d{2}:?\\d{2})?$"
	}`,
	"created.json": `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "integer"},
			"message": {"type": "string"}
		}
	}`,
	"message.json": `{
		"type": "object",
		"required": ["message"],
		"properties": {"message": {"type": "string"}}
	}`,
	"updated.json": `{
		"anyOf": [{"$ref": "message.json"}, {"$ref": "user.json"}]
	}`,
	"initiated.json": `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"call_id": {"type": "integer"},
			"operator_id": {"type": ["integer", "null"]},
			"message": {"type": "string"}
		}
	}`,
}

type schemaSet struct {
	user, users, calls, created, message, updated, initiated *jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for name, src := range schemaSources {
		if err := c.AddResource(schemaBase+name, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
	}

	var set schemaSet
	for name, dst := range map[string]**jsonschema.Schema{
		"user.json":      &set.user,
		"users.json":     &set.users,
		"calls.json":     &set.calls,
		"created.json":   &set.created,
		"message.json":   &set.message,
		"updated.json":   &set.updated,
		"initiated.json": &set.initiated,
	} {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		*dst = s
	}
	return &set, nil
}

// schemas is compiled once; the sources are constants, so failure is a bug.
var schemas = func() *schemaSet {
	s, err := compileSchemas()
	if err != nil {
		panic(err)
	}
	return s
}()
