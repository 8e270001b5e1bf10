package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Referral API",
        "description": "Referral and escalation workflow engine for school administration",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Referrals", "description": "Referral lifecycle and workflow log"},
        {"name": "Absences", "description": "Absence cases and the escalation ladder"},
        {"name": "Procedures", "description": "Disciplinary procedure catalog"},
        {"name": "Documents", "description": "Signed document downloads"}
    ],
    "paths": {
        "/referrals": {
            "get": {
                "tags": ["Referrals"],
                "summary": "List referrals",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "target_role", "in": "query", "type": "string"},
                    {"name": "assigned_to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Referrals"],
                "summary": "Submit a new referral",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReferralRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/referrals/{id}": {
            "get": {
                "tags": ["Referrals"],
                "summary": "Get referral detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Referrals"],
                "summary": "Delete referral and its workflow log",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/referrals/{id}/log": {
            "get": {
                "tags": ["Referrals"],
                "summary": "Get the referral workflow log",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referrals/{id}/log/export": {
            "get": {
                "tags": ["Referrals"],
                "summary": "Export the workflow log as CSV",
                "produces": ["text/csv"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "CSV payload"}
                }
            }
        },
        "/referrals/{id}/receive": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Acknowledge a pending referral",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/assign": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Assign a referral to an actor",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignReferralRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/transfer": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Transfer a referral to another role",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransferReferralRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Notes missing"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/complete": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Complete a referral",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/NotesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/close": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Close a referral without completion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/NotesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/cancel": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Cancel a referral",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/NotesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid state"}
                }
            }
        },
        "/referrals/{id}/notes": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Append a note to the workflow log",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NotesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/referrals/{id}/violation": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Record a behavioural violation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordViolationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Violation already linked"}
                }
            }
        },
        "/referrals/{id}/notify": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Send a guardian notification",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NotifyParentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK, side_effect_error set when dispatch failed"}
                }
            }
        },
        "/referrals/{id}/document": {
            "post": {
                "tags": ["Referrals"],
                "summary": "Generate a printable referral document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "502": {"description": "Renderer or storage failure"}
                }
            }
        },
        "/documents/{token}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a generated document by signed token",
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF payload"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/absences": {
            "get": {
                "tags": ["Absences"],
                "summary": "List absence cases",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Absences"],
                "summary": "Open an absence case",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OpenAbsenceCaseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Student already has an open case"}
                }
            }
        },
        "/absences/{id}": {
            "get": {
                "tags": ["Absences"],
                "summary": "Get absence case detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/absences/{id}/actions/{key}/done": {
            "post": {
                "tags": ["Absences"],
                "summary": "Mark a required action complete",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "key", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Already done or concurrent update"}
                }
            }
        },
        "/absences/{id}/reevaluate": {
            "post": {
                "tags": ["Absences"],
                "summary": "Feed fresh attendance totals into a case",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReevaluateAbsenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Concurrent update"}
                }
            }
        },
        "/students/{id}/violations": {
            "get": {
                "tags": ["Referrals"],
                "summary": "List a student's recorded violations",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/procedures/{degree}": {
            "get": {
                "tags": ["Procedures"],
                "summary": "Get the procedure ladder for a degree",
                "parameters": [{"name": "degree", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/procedures": {
            "put": {
                "tags": ["Procedures"],
                "summary": "Create or replace a procedure definition",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertProcedureRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Admin only"}
                }
            }
        }
    },
    "definitions": {
        "CreateReferralRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "type": {"type": "string", "enum": ["academic_weakness", "behavioral_violation"]},
                "target_role": {"type": "string", "enum": ["counselor", "vice_principal", "committee"]},
                "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
                "reason": {"type": "string"}
            },
            "required": ["student_id", "type", "target_role", "reason"]
        },
        "AssignReferralRequest": {
            "type": "object",
            "properties": {
                "assignee_id": {"type": "string"}
            },
            "required": ["assignee_id"]
        },
        "TransferReferralRequest": {
            "type": "object",
            "properties": {
                "target_role": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["target_role", "notes"]
        },
        "NotesRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "RecordViolationRequest": {
            "type": "object",
            "properties": {
                "degree": {"type": "integer", "minimum": 1, "maximum": 4},
                "violation_type": {"type": "string"},
                "occurred_at": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "description": {"type": "string"},
                "notify_parent": {"type": "boolean"},
                "recipient": {"type": "string"}
            },
            "required": ["degree", "violation_type", "occurred_at", "description"]
        },
        "NotifyParentRequest": {
            "type": "object",
            "properties": {
                "recipient": {"type": "string"},
                "message": {"type": "string"}
            },
            "required": ["recipient", "message"]
        },
        "GenerateDocumentRequest": {
            "type": "object",
            "properties": {
                "document_type": {"type": "string"}
            },
            "required": ["document_type"]
        },
        "OpenAbsenceCaseRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "absence_type": {"type": "string", "enum": ["consecutive", "repeated"]},
                "total_absence_days": {"type": "integer"},
                "consecutive_days": {"type": "integer"}
            },
            "required": ["student_id", "absence_type"]
        },
        "ReevaluateAbsenceRequest": {
            "type": "object",
            "properties": {
                "total_absence_days": {"type": "integer"},
                "consecutive_days": {"type": "integer"}
            },
            "required": ["total_absence_days"]
        },
        "UpsertProcedureRequest": {
            "type": "object",
            "properties": {
                "degree": {"type": "integer", "minimum": 1, "maximum": 4},
                "repetition": {"type": "integer", "minimum": 1},
                "title": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["degree", "repetition", "title"]
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
