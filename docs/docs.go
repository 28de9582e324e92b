// Package docs holds the OpenAPI description served by the Swagger UI.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "API Support", "email": "support@example.com"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/health/ready": {
            "get": {"tags": ["health"], "summary": "Readiness check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/auth/register": {
            "post": {"tags": ["auth"], "summary": "Register a new account", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "429": {"description": "Too Many Requests"}}}
        },
        "/auth/verify-email/{token}": {
            "get": {"tags": ["auth"], "summary": "Activate an account", "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "token", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/auth/resend-verification": {
            "post": {"tags": ["auth"], "summary": "Resend the verification email", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.EmailRequest"}}],
                "responses": {"200": {"description": "OK"}, "429": {"description": "Too Many Requests"}}}
        },
        "/auth/password-reset/request": {
            "post": {"tags": ["auth"], "summary": "Request a password reset code", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.EmailRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.PasswordResetRequestResponse"}}, "429": {"description": "Too Many Requests"}}}
        },
        "/auth/password-reset/verify": {
            "post": {"tags": ["auth"], "summary": "Set a new password with the emailed code", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.PasswordResetVerifyRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/auth/login": {
            "post": {"tags": ["auth"], "summary": "Log in", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "403": {"description": "Forbidden"}}}
        },
        "/auth/refresh": {
            "post": {"tags": ["auth"], "summary": "Rotate the refresh token", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Revoke the refresh token", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Current profile", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.UserResponse"}}, "401": {"description": "Unauthorized"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Update profile fields", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.UpdateProfileRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.UserResponse"}}, "400": {"description": "Bad Request"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Deactivate the account", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/profiles": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["profiles"], "summary": "List active profiles", "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "limit", "type": "integer", "description": "Page size (default 20, max 100)"},
                    {"in": "query", "name": "offset", "type": "integer", "description": "Number of profiles to skip"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.ProfileListResponse"}}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}}
        }
    },
    "definitions": {
        "auth.RegisterRequest": {"type": "object", "properties": {
            "username": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"},
            "first_name": {"type": "string"}, "last_name": {"type": "string"}}},
        "auth.LoginRequest": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "auth.EmailRequest": {"type": "object", "properties": {"email": {"type": "string"}}},
        "auth.PasswordResetRequestResponse": {"type": "object", "properties": {"message": {"type": "string"}, "token": {"type": "string"}}},
        "auth.PasswordResetVerifyRequest": {"type": "object", "properties": {
            "token": {"type": "string"}, "otp": {"type": "string"}, "new_password": {"type": "string"}}},
        "auth.UpdateProfileRequest": {"type": "object", "properties": {
            "first_name": {"type": "string"}, "last_name": {"type": "string"}, "phone_no": {"type": "string"},
            "bio": {"type": "string"}, "profile_pic": {"type": "string"}}},
        "auth.UserResponse": {"type": "object", "properties": {
            "id": {"type": "string"}, "username": {"type": "string"}, "email": {"type": "string"},
            "first_name": {"type": "string"}, "last_name": {"type": "string"}, "full_name": {"type": "string"},
            "phone_no": {"type": "string"}, "bio": {"type": "string"}, "profile_pic": {"type": "string"},
            "is_active": {"type": "boolean"}, "created_at": {"type": "string"}}},
        "auth.ProfileSummary": {"type": "object", "properties": {
            "id": {"type": "string"}, "username": {"type": "string"}, "full_name": {"type": "string"},
            "bio": {"type": "string"}, "profile_pic": {"type": "string"}, "created_at": {"type": "string"}}},
        "auth.ProfileListResponse": {"type": "object", "properties": {
            "profiles": {"type": "array", "items": {"$ref": "#/definitions/auth.ProfileSummary"}},
            "total": {"type": "integer"}, "limit": {"type": "integer"}, "offset": {"type": "integer"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"description": "Type \"Bearer\" followed by a space and the access token.", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TaskHub API",
	Description:      "Account API with email verification, password reset and session tokens.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
