// Package swagger registers the OpenAPI document served under /docs.
// Regenerate from the handler annotations with:
//
//	swag init -g cmd/api/main.go -o gen/docs/swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/healthz": {"get": {"tags": ["Health"], "summary": "Service health check", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}}}},
        "/readyz": {"get": {"tags": ["Health"], "summary": "Service readiness check", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReadinessResponse"}}, "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ReadinessResponse"}}}}},
        "/.well-known/jwks.json": {"get": {"tags": ["Public"], "summary": "Retrieve JSON Web Key Set", "responses": {"200": {"description": "OK", "schema": {"type": "object"}}, "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/api/v1/auth/challenge": {"post": {"tags": ["Authentication"], "summary": "Request a sign-in challenge", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.ChallengeRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChallengeResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}, "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/middleware.ProblemDetails"}}}}},
        "/api/v1/auth/verify": {"post": {"tags": ["Authentication"], "summary": "Complete a wallet sign-in", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.VerifyRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.VerifyResponse"}}, "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.VerifyResponse"}}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/api/v1/auth/session": {"get": {"security": [{"BearerAuth": []}], "tags": ["Authentication"], "summary": "Current session", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SessionResponse"}}}}},
        "/api/v1/auth/logout": {"post": {"security": [{"BearerAuth": []}], "tags": ["Authentication"], "summary": "Sign out", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}}}},
        "/api/v1/ledger/balance": {"get": {"security": [{"BearerAuth": []}], "tags": ["Ledger"], "summary": "Ledger balance", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.BalanceResponse"}}}}},
        "/api/v1/ledger/entries": {"get": {"security": [{"BearerAuth": []}], "tags": ["Ledger"], "summary": "Ledger entries, newest first", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.LedgerEntryResponse"}}}}}},
        "/api/v1/ledger/spend": {"post": {"security": [{"BearerAuth": []}], "tags": ["Ledger"], "summary": "Spend available points", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.SpendRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LedgerEntryResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/api/v1/referrals/stats": {"get": {"security": [{"BearerAuth": []}], "tags": ["Referrals"], "summary": "Referral downline counts", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReferralStatsResponse"}}}}},
        "/api/v1/rewards/{action}/claim": {"post": {"security": [{"BearerAuth": []}], "tags": ["Rewards"], "summary": "Claim a periodic reward", "parameters": [{"in": "path", "name": "action", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RewardClaimResponse"}}, "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/api/v1/social/verify": {"post": {"security": [{"BearerAuth": []}], "tags": ["Social"], "summary": "Verify a social account", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.SocialVerifyRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.VerificationResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/api/v1/social/links": {"get": {"security": [{"BearerAuth": []}], "tags": ["Social"], "summary": "Linked social accounts", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.SocialLinkResponse"}}}}}},
        "/api/v1/admin/reserve": {"get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Reserve report", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReserveReportResponse"}}}}},
        "/api/v1/admin/payouts": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List payouts", "parameters": [{"in": "query", "name": "status", "type": "string"}, {"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.PayoutResponse"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Authorize a payout", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.PayoutRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.PayoutResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/api/v1/admin/transactions": {"post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Track a submitted transaction", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.RecordTransactionRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.TransactionResponse"}}}}},
        "/api/v1/admin/transactions/{hash}/confirm": {"post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Confirm a pending transaction", "parameters": [{"in": "path", "name": "hash", "required": true, "type": "string"}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.ConfirmTransactionRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransactionResponse"}}}}},
        "/api/v1/admin/transactions/{hash}/fail": {"post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Fail a pending transaction", "parameters": [{"in": "path", "name": "hash", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransactionResponse"}}}}},
        "/api/v1/admin/identities/{id}/transactions": {"get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List an identity's transactions", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.TransactionResponse"}}}}}},
        "/api/v1/admin/identities/{id}/reconciliation": {"get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Reconcile an identity", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReconciliationResponse"}}}}},
        "/api/v1/admin/identities/{id}/ledger-audit": {"get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Audit an identity's ledger", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LedgerAuditResponse"}}}}}
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "string"}, "trace_id": {"type": "string"}}},
        "middleware.ProblemDetails": {"type": "object", "properties": {"type": {"type": "string"}, "title": {"type": "string"}, "status": {"type": "integer"}, "detail": {"type": "string"}, "instance": {"type": "string"}, "retry_after": {"type": "integer"}, "trace_id": {"type": "string"}}},
        "handlers.MessageResponse": {"type": "object", "properties": {"message": {"type": "string"}}},
        "handlers.HealthResponse": {"type": "object", "properties": {"status": {"type": "string"}, "started_at": {"type": "string"}}},
        "handlers.ReadinessResponse": {"type": "object", "properties": {"status": {"type": "string"}, "checks": {"type": "object", "additionalProperties": {"type": "string"}}}},
        "handlers.ChallengeRequest": {"type": "object", "required": ["wallet_address"], "properties": {"wallet_address": {"type": "string"}}},
        "handlers.ChallengeResponse": {"type": "object", "properties": {"nonce": {"type": "string"}, "message": {"type": "string"}, "expires_at": {"type": "string"}}},
        "handlers.VerifyRequest": {"type": "object", "required": ["wallet_address", "signature", "message"], "properties": {"wallet_address": {"type": "string"}, "signature": {"type": "string"}, "message": {"type": "string"}, "referral_code": {"type": "string"}, "email": {"type": "string"}, "device": {"type": "object"}}},
        "handlers.VerifyResponse": {"type": "object", "properties": {"access_token": {"type": "string"}, "token_type": {"type": "string"}, "expires_at": {"type": "string"}, "created": {"type": "boolean"}, "identity": {"type": "object"}, "risk": {"type": "object"}}},
        "handlers.SessionResponse": {"type": "object", "properties": {"identity_id": {"type": "string"}, "wallet_address": {"type": "string"}, "issued_at": {"type": "string"}, "expires_at": {"type": "string"}}},
        "handlers.BalanceResponse": {"type": "object", "properties": {"total": {"type": "integer"}, "available": {"type": "integer"}}},
        "handlers.SpendRequest": {"type": "object", "required": ["amount", "reference"], "properties": {"amount": {"type": "integer"}, "reference": {"type": "string"}}},
        "handlers.LedgerEntryResponse": {"type": "object", "properties": {"id": {"type": "string"}, "amount": {"type": "integer"}, "kind": {"type": "string"}, "reference": {"type": "string"}, "source_id": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.ReferralStatsResponse": {"type": "object", "properties": {"level1_count": {"type": "integer"}, "level2_count": {"type": "integer"}, "level3_count": {"type": "integer"}, "total_earned": {"type": "integer"}}},
        "handlers.RewardClaimResponse": {"type": "object", "properties": {"action": {"type": "string"}, "amount": {"type": "integer"}, "claimed_at": {"type": "string"}, "next_at": {"type": "string"}}},
        "handlers.SocialVerifyRequest": {"type": "object", "required": ["platform", "username", "proof_token"], "properties": {"platform": {"type": "string"}, "username": {"type": "string"}, "proof_token": {"type": "string"}, "email": {"type": "string"}, "device": {"type": "object"}}},
        "handlers.VerificationResponse": {"type": "object", "properties": {"platform": {"type": "string"}, "username": {"type": "string"}, "verified": {"type": "boolean"}, "accepted": {"type": "boolean"}, "trust_score": {"type": "integer"}, "reason": {"type": "string"}}},
        "handlers.SocialLinkResponse": {"type": "object", "properties": {"platform": {"type": "string"}, "username": {"type": "string"}, "linked_at": {"type": "string"}}},
        "handlers.ReserveReportResponse": {"type": "object", "properties": {"observed_on_chain_balance": {"type": "string"}, "committed_off_chain_liability": {"type": "string"}, "headroom": {"type": "string"}, "timestamp": {"type": "string"}}},
        "handlers.PayoutRequest": {"type": "object", "required": ["identity_id", "amount"], "properties": {"identity_id": {"type": "string"}, "amount": {"type": "string"}}},
        "handlers.PayoutResponse": {"type": "object", "properties": {"id": {"type": "string"}, "identity_id": {"type": "string"}, "amount": {"type": "string"}, "status": {"type": "string"}, "authorized_at": {"type": "string"}}},
        "handlers.RecordTransactionRequest": {"type": "object", "required": ["hash", "identity_id", "kind", "amount"], "properties": {"hash": {"type": "string"}, "identity_id": {"type": "string"}, "kind": {"type": "string"}, "amount": {"type": "string"}, "payout_id": {"type": "string"}}},
        "handlers.ConfirmTransactionRequest": {"type": "object", "required": ["block_number"], "properties": {"block_number": {"type": "integer"}}},
        "handlers.TransactionResponse": {"type": "object", "properties": {"hash": {"type": "string"}, "identity_id": {"type": "string"}, "kind": {"type": "string"}, "amount": {"type": "string"}, "payout_id": {"type": "string"}, "status": {"type": "string"}, "block_number": {"type": "integer"}, "fail_reason": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "handlers.ReconciliationResponse": {"type": "object", "properties": {"identity_id": {"type": "string"}, "ledger_minted": {"type": "string"}, "on_chain_minted": {"type": "string"}, "pending_count": {"type": "integer"}, "consistent": {"type": "boolean"}, "checked_at": {"type": "string"}}},
        "handlers.LedgerAuditResponse": {"type": "object", "properties": {"folded_total": {"type": "integer"}, "folded_available": {"type": "integer"}, "stored_total": {"type": "integer"}, "stored_available": {"type": "integer"}, "consistent": {"type": "boolean"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Kether Core API",
	Description:      "Wallet sign-in, points ledger, rewards and reserve-backed payouts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
