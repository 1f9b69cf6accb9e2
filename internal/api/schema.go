package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var responseSchemaFiles = map[RequestType]string{
	TypeText:         "text_response.schema.json",
	TypeGetUploadURL: "upload_url_response.schema.json",
	TypeDocument:     "document_response.schema.json",
	TypeCheckStatus:  "status_response.schema.json",
}

var (
	compileOnce     sync.Once
	compiledSchemas map[RequestType]*jsonschema.Schema
	compileErr      error
)

func loadSchemas() (map[RequestType]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		for _, name := range responseSchemaFiles {
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
		}

		schemas := make(map[RequestType]*jsonschema.Schema, len(responseSchemaFiles))
		for typ, name := range responseSchemaFiles {
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			schemas[typ] = schema
		}
		compiledSchemas = schemas
	})

	return compiledSchemas, compileErr
}

// validateResponse checks raw against the response schema registered for typ.
func validateResponse(typ RequestType, raw []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[typ]
	if !ok {
		return fmt.Errorf("no response schema for %q", typ)
	}

	value, err := decodeJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func decodeJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("response body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("response contains trailing content")
	}
	return value, nil
}
