package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Rewards API",
        "description": "Task, approval and reward redemption portal for students, faculty and admins.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Tasks", "description": "Faculty task catalog"},
        {"name": "Assignments", "description": "Student accept and proof submission"},
        {"name": "Approvals", "description": "Faculty review and payout"},
        {"name": "Completed", "description": "Archive of approved work"},
        {"name": "Rewards", "description": "Reward catalog and redemption"},
        {"name": "Policy", "description": "Reward base multiplier"}
    ],
    "paths": {
        "/tasks": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Create a task (faculty)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tasks/eligible": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks open to the calling student with their computed reward",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Reward policy unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tasks/mine": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks created by the calling faculty member",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List the student's working assignments",
                "parameters": [
                    {"name": "state", "in": "query", "type": "string", "enum": ["ACCEPTED", "SUBMITTED", "REJECTED"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Accept a task",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcceptTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already accepted, completed or no slots", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{taskId}/proof": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Submit proof for an accepted task",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "taskId", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Assignments"],
                "summary": "Replace the proof of a rejected task",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "taskId", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Resubmitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List submissions awaiting review",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/rejected": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List rejected assignments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/approve": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve a submission and pay the reward",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Payment failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Payment outcome unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/reject": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Reject a submission",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/proof-url": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Issue a signed download link for a submitted proof",
                "parameters": [
                    {"name": "student_id", "in": "query", "required": true, "type": "string"},
                    {"name": "task_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/proofs/download": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Download a proof via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Proof file"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/completed": {
            "get": {
                "tags": ["Completed"],
                "summary": "List completed assignments for the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/completed/export": {
            "get": {
                "tags": ["Completed"],
                "summary": "Export completed assignments",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Export file"}
                }
            }
        },
        "/rewards": {
            "get": {
                "tags": ["Rewards"],
                "summary": "List rewards",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rewards"],
                "summary": "Create a reward (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRewardRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rewards/claims": {
            "get": {
                "tags": ["Rewards"],
                "summary": "List the student's reward claims",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rewards/{id}/claim": {
            "post": {
                "tags": ["Rewards"],
                "summary": "Claim a reward",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClaimRewardRequest"}}
                ],
                "responses": {
                    "201": {"description": "Claimed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already claimed or sold out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Payment failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Payment outcome unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policy": {
            "get": {
                "tags": ["Policy"],
                "summary": "Read the reward base multiplier",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Policy not initialized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Policy"],
                "summary": "Update the reward base multiplier (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePolicyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateTaskRequest": {
            "type": "object",
            "required": ["name", "description", "branches", "hours", "category", "slot"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "branches": {"type": "array", "items": {"type": "string"}},
                "hours": {"type": "number"},
                "category": {"type": "string"},
                "difficulty": {"type": "number"},
                "slot": {"type": "integer"}
            }
        },
        "AcceptTaskRequest": {
            "type": "object",
            "required": ["task_id"],
            "properties": {
                "task_id": {"type": "string"}
            }
        },
        "ReviewRequest": {
            "type": "object",
            "required": ["student_id", "task_id", "reason"],
            "properties": {
                "student_id": {"type": "string"},
                "task_id": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "CreateRewardRequest": {
            "type": "object",
            "required": ["name", "description", "cost", "slot"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "cost": {"type": "number"},
                "slot": {"type": "integer"}
            }
        },
        "ClaimRewardRequest": {
            "type": "object",
            "required": ["authorization"],
            "properties": {
                "authorization": {"type": "string"}
            }
        },
        "UpdatePolicyRequest": {
            "type": "object",
            "required": ["base_multiplier"],
            "properties": {
                "base_multiplier": {"type": "number"}
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
