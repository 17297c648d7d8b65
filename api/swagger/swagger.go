package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lesson Match API",
        "description": "Time-window slot matching and scheduling proposals for course lessons",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Windows", "description": "Recurring availability windows and concrete slots"},
        {"name": "Applications", "description": "Course applications and time selections"},
        {"name": "Proposals", "description": "Demand-driven scheduling proposals"},
        {"name": "Matches", "description": "Confirmed matches and rosters"}
    ],
    "paths": {
        "/courses/{id}/windows": {
            "get": {
                "tags": ["Windows"],
                "summary": "List a course's availability windows",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Windows"],
                "summary": "Create availability windows for a course",
                "description": "The submitted range is split into lesson-sized windows; the response lists every created row.",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateWindowRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/slots": {
            "get": {
                "tags": ["Windows"],
                "summary": "List upcoming concrete slots for a course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/windows/{id}": {
            "delete": {
                "tags": ["Windows"],
                "summary": "Delete an availability window",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{id}/applications": {
            "post": {
                "tags": ["Applications"],
                "summary": "Apply to a course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}": {
            "delete": {
                "tags": ["Applications"],
                "summary": "Cancel an application",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{id}/proposals": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Generate scheduling proposals for a course",
                "description": "Proposals are computed from current pending demand and are not persisted.",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/matches": {
            "get": {
                "tags": ["Matches"],
                "summary": "List a course's matches with rosters",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Matches"],
                "summary": "Confirm a proposal as a match",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfirmMatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}": {
            "delete": {
                "tags": ["Matches"],
                "summary": "Delete a match and release its students",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/matches/{id}/students": {
            "post": {
                "tags": ["Matches"],
                "summary": "Add a student to a match",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddMatchStudentRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/matches/{id}/students/{studentId}": {
            "delete": {
                "tags": ["Matches"],
                "summary": "Remove a student from a match",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "studentId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/matches/{id}/time": {
            "patch": {
                "tags": ["Matches"],
                "summary": "Move a proposed match to a new slot",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateMatchTimeRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{id}/auto-match": {
            "post": {
                "tags": ["Matches"],
                "summary": "Run the auto-matching batch for a course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AutoMatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateWindowRequest": {
            "type": "object",
            "properties": {
                "dayOfWeek": {"type": "integer", "minimum": 0, "maximum": 6},
                "startTime": {"type": "string", "example": "10:00"},
                "endTime": {"type": "string", "example": "12:00"},
                "instructorId": {"type": "string"},
                "instructorName": {"type": "string"},
                "capacity": {"type": "integer"}
            },
            "required": ["dayOfWeek", "startTime", "endTime"]
        },
        "ApplyRequest": {
            "type": "object",
            "properties": {
                "windowIds": {"type": "array", "items": {"type": "string"}},
                "timeRequests": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TimeRequest"}
                }
            }
        },
        "TimeRequest": {
            "type": "object",
            "properties": {
                "dayOfWeek": {"type": "integer", "minimum": 0, "maximum": 6},
                "startTime": {"type": "string", "example": "18:00"},
                "endTime": {"type": "string", "example": "19:00"}
            },
            "required": ["startTime", "endTime"]
        },
        "ConfirmMatchRequest": {
            "type": "object",
            "properties": {
                "slotStartAt": {"type": "string", "format": "date-time"},
                "slotEndAt": {"type": "string", "format": "date-time"},
                "instructorId": {"type": "string"},
                "instructorName": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["slotStartAt", "slotEndAt", "studentIds"]
        },
        "AddMatchStudentRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"}
            },
            "required": ["studentId"]
        },
        "UpdateMatchTimeRequest": {
            "type": "object",
            "properties": {
                "slotStartAt": {"type": "string", "format": "date-time"},
                "slotEndAt": {"type": "string", "format": "date-time"}
            },
            "required": ["slotStartAt", "slotEndAt"]
        },
        "AutoMatchRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "format": "date-time"},
                "to": {"type": "string", "format": "date-time"}
            },
            "required": ["from", "to"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
