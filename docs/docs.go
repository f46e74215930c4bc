// Package docs registers the OpenAPI document served by the Swagger UI.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/polls": {
            "post": {
                "description": "Creates a poll with 2 to 10 options. Blank options are dropped after the count check.\nSupports idempotency via the Idempotency-Key header (same key → same poll).\nReusing a key with a different body is rejected with 409.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Polls"],
                "summary": "Create a poll",
                "operationId": "createPoll",
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Poll payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreatePollRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/handlers.CreatePollResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreatePollResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Idempotency key conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/polls/user": {
            "get": {
                "description": "Returns the polls tagged with the given creator e-mail, newest first, with vote totals and status.",
                "produces": ["application/json"],
                "tags": ["Polls"],
                "summary": "List a creator's polls",
                "operationId": "listUserPolls",
                "parameters": [
                    {"type": "string", "description": "Creator e-mail", "name": "email", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.PollSummary"}}},
                    "400": {"description": "Email is required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/polls/{id}": {
            "get": {
                "description": "Returns the poll and the current vote count of every option. Supports weak ETag via If-None-Match.",
                "produces": ["application/json"],
                "tags": ["Polls"],
                "summary": "Get a poll with its tally",
                "operationId": "getPoll",
                "parameters": [
                    {"type": "string", "description": "Poll ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.PollView"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for the current tally"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "404": {"description": "Poll not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Hard-deletes the poll together with its options and votes.",
                "produces": ["application/json"],
                "tags": ["Polls"],
                "summary": "Delete a poll",
                "operationId": "deletePoll",
                "parameters": [
                    {"type": "string", "description": "Poll ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "404": {"description": "Poll not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/polls/{id}/vote": {
            "post": {
                "description": "Records one vote per voter token and poll, then broadcasts the new tally to realtime subscribers.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Polls"],
                "summary": "Vote on a poll",
                "operationId": "votePoll",
                "parameters": [
                    {"type": "string", "description": "Poll ID", "name": "id", "in": "path", "required": true},
                    {"description": "Vote payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.VoteResponse"}},
                    "400": {"description": "Invalid option or voter token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Expired or already voted", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Poll not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too many vote attempts", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.OptionTally": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "text": {"type": "string"},
                "votes": {"type": "integer"}
            }
        },
        "domain.PollSummary": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "question": {"type": "string"},
                "status": {"type": "string"},
                "votes": {"type": "integer"}
            }
        },
        "handlers.CreatePollRequest": {
            "type": "object",
            "properties": {
                "creatorEmail": {"type": "string", "example": "host@example.com"},
                "expiresAt": {"type": "string", "example": "2030-01-01T00:00:00Z"},
                "options": {"type": "array", "items": {"type": "string"}, "example": ["Pizza", "Sushi"]},
                "question": {"type": "string", "example": "Where should we eat?"}
            }
        },
        "handlers.CreatePollResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "2b1f4c9e-7d3a-4f0e-9a51-0c1d2e3f4a5b"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "Poll not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true}
            }
        },
        "handlers.VoteRequest": {
            "type": "object",
            "properties": {
                "optionId": {"type": "integer", "example": 1},
                "voterHash": {"type": "string", "example": "fp-3f9a1c"}
            }
        },
        "handlers.VoteResponse": {
            "type": "object",
            "properties": {
                "options": {"type": "array", "items": {"$ref": "#/definitions/domain.OptionTally"}},
                "success": {"type": "boolean", "example": true}
            }
        },
        "services.PollView": {
            "type": "object",
            "properties": {
                "expiresAt": {"type": "string"},
                "id": {"type": "string"},
                "options": {"type": "array", "items": {"$ref": "#/definitions/domain.OptionTally"}},
                "question": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Live Polls API",
	Description:      "Create polls, vote once per voter token, and follow live tallies over WebSocket (/ws).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
