package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Roster Sync",
        "description": "Course enrolment reconciliation against the university registrar",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Instances", "description": "Sync instance management"},
        {"name": "Sync", "description": "Reconciliation triggers"},
        {"name": "Registrar", "description": "Registrar passthrough queries"},
        {"name": "Reports", "description": "Status report export"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/api/v1/instances": {
            "get": {
                "tags": ["Instances"],
                "summary": "List sync instances",
                "parameters": [
                    {"name": "course_id", "in": "query", "type": "string", "description": "Filter by local course ID"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Instances"],
                "summary": "Bind a course to a registrar course number",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateInstanceInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/v1/instances/{id}": {
            "get": {
                "tags": ["Instances"],
                "summary": "Get one sync instance",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Instances"],
                "summary": "Delete a sync instance and revoke everything it granted",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/instances/{id}/status": {
            "put": {
                "tags": ["Instances"],
                "summary": "Enable or disable a sync instance",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/v1/instances/{id}/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run a sync pass for one instance now",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Sync result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run a sync pass over every enabled instance",
                "parameters": [
                    {"name": "course_id", "in": "query", "type": "string", "description": "Limit the pass to one local course"}
                ],
                "responses": {
                    "200": {"description": "Batch result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/purge": {
            "post": {
                "tags": ["Sync"],
                "summary": "Remove every engine-owned enrolment and role assignment",
                "responses": {
                    "200": {"description": "Batch result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/instances/report": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export the sync status report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "description": "Report format, defaults to csv"},
                    {"name": "course_id", "in": "query", "type": "string", "description": "Filter by local course ID"}
                ],
                "responses": {
                    "200": {"description": "Rendered report"},
                    "400": {"description": "Unsupported format"}
                }
            }
        },
        "/api/v1/registrar/sections": {
            "get": {
                "tags": ["Registrar"],
                "summary": "Query registrar sections for a course number",
                "parameters": [
                    {"name": "course_number", "in": "query", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Registrar unreachable or rejected the query"}
                }
            }
        },
        "/api/v1/registrar/sections/{id}/roster": {
            "get": {
                "tags": ["Registrar"],
                "summary": "Query the registrar roster of one section",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Registrar unreachable or rejected the query"}
                }
            }
        }
    },
    "definitions": {
        "CreateInstanceInput": {
            "type": "object",
            "required": ["course_id", "course_number"],
            "properties": {
                "course_id": {"type": "string"},
                "course_number": {"type": "string"},
                "role_id": {"type": "string"},
                "semester": {"type": "string"}
            }
        },
        "SetStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["ENABLED", "DISABLED"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
