package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CROU Housing API",
        "description": "Multi-tenant student housing: eligibility scoring and batch room assignment",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and session management"},
        {"name": "Batches", "description": "Assignment batch lifecycle and processing"},
        {"name": "Requests", "description": "Housing request intake, review and cancellation"},
        {"name": "Rooms", "description": "Room inventory"},
        {"name": "Students", "description": "Student registry"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {"200": {"description": "Token pair"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {"200": {"description": "New token pair"}, "401": {"description": "Invalid refresh token"}}
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "User claims"}}
            }
        },
        "/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List assignment batches",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Batch page"}}
            },
            "post": {
                "tags": ["Batches"],
                "summary": "Create an assignment batch",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created batch"}}
            }
        },
        "/batches/{id}": {
            "get": {
                "tags": ["Batches"],
                "summary": "Get batch detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Batch"}, "404": {"description": "Not found"}}
            }
        },
        "/batches/{id}/close": {
            "post": {
                "tags": ["Batches"],
                "summary": "Close an open batch and snapshot its counters",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Closed batch"}, "409": {"description": "Batch not open"}}
            }
        },
        "/batches/{id}/process": {
            "post": {
                "tags": ["Batches"],
                "summary": "Run the assignment engine synchronously",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Assignment report"}, "409": {"description": "Batch not closed"}}
            }
        },
        "/batches/{id}/process-async": {
            "post": {
                "tags": ["Batches"],
                "summary": "Enqueue a background assignment run",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"202": {"description": "Job accepted"}, "409": {"description": "Batch not closed"}}
            }
        },
        "/batches/{id}/statistics": {
            "get": {
                "tags": ["Batches"],
                "summary": "Batch assignment statistics",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Statistics"}}
            }
        },
        "/batches/{id}/eligibility-stats": {
            "get": {
                "tags": ["Batches"],
                "summary": "Aggregate eligibility outcomes across a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Eligibility statistics"}}
            }
        },
        "/batches/{id}/results/export": {
            "get": {
                "tags": ["Batches"],
                "summary": "Export assignment results as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File download"}}
            }
        },
        "/batches/{id}/requests": {
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a housing request into a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created request"}, "409": {"description": "Duplicate or batch closed"}}
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List housing requests",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Request page"}}
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get housing request detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Request"}, "404": {"description": "Not found"}}
            }
        },
        "/requests/{id}/review": {
            "post": {
                "tags": ["Requests"],
                "summary": "Review a pending request (runs eligibility validation)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Reviewed request with eligibility"}, "409": {"description": "Already reviewed"}}
            }
        },
        "/requests/{id}/eligibility": {
            "get": {
                "tags": ["Requests"],
                "summary": "Preview eligibility without mutating the request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Eligibility result"}}
            }
        },
        "/requests/{id}/cancel-assignment": {
            "post": {
                "tags": ["Requests"],
                "summary": "Cancel an active room assignment and free the bed",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Cancelled"}, "409": {"description": "No room assigned"}}
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Rooms"],
                "summary": "List rooms",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Room page"}}
            },
            "post": {
                "tags": ["Rooms"],
                "summary": "Register a room",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created room"}}
            }
        },
        "/rooms/{id}": {
            "get": {
                "tags": ["Rooms"],
                "summary": "Get room detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Room"}}
            },
            "put": {
                "tags": ["Rooms"],
                "summary": "Update room attributes",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Updated room"}}
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Student page"}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register a student",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created student"}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Student"}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Updated student"}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deactivated"}}
            }
        },
        "/students/{id}/housing-history": {
            "get": {
                "tags": ["Students"],
                "summary": "Housing history of a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Occupancy periods"}}
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
