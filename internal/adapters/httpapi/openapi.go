package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/httpjson"
)

// handleOpenAPI renvoie une spec OpenAPI minimale pour cadrer l'API.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	jsonOK := func(schemaRef string) map[string]any {
		return map[string]any{
			"description": "OK",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": schemaRef},
				},
			},
		}
	}

	jsonErr := map[string]any{
		"description": "Error",
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Error"},
			},
		},
	}

	spec := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "SPE API",
			"version": "v1",
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"OpenAPIDocument": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
				"JobType": map[string]any{
					"type":        "string",
					"description": "Type de job (extensible).",
					"enum":        []any{"noop", "export"},
				},
				"ContentKind": map[string]any{
					"type": "string",
					"enum": []any{"channels", "movies", "series"},
				},
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error": map[string]any{"type": "string"},
					},
					"required": []any{"error"},
				},
				"Settings": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"destination":           map[string]any{"type": "string"},
						"maxWorkers":            map[string]any{"type": "integer", "minimum": 1},
						"maxConcurrentRequests": map[string]any{"type": "integer", "minimum": 1},
						"requestTimeoutSeconds": map[string]any{"type": "integer", "minimum": 1},
						"proxyHostMarker":       map[string]any{"type": "string"},
						"proxyPathPattern":      map[string]any{"type": "string"},
					},
					"additionalProperties": false,
				},
				"Job": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":        map[string]any{"type": "string"},
						"type":      map[string]any{"$ref": "#/components/schemas/JobType"},
						"state":     map[string]any{"type": "string", "enum": []any{"queued", "running", "writing", "completed", "failed", "canceled"}},
						"progress":  map[string]any{"type": "number", "format": "double"},
						"createdAt": map[string]any{"type": "string", "format": "date-time"},
						"updatedAt": map[string]any{"type": "string", "format": "date-time"},
						"params": map[string]any{
							"type":                 "object",
							"description":          "Paramètres du job (dépend du type).",
							"additionalProperties": true,
						},
						"result": map[string]any{
							"type":                 "object",
							"description":          "Résultat du job (si applicable).",
							"additionalProperties": true,
						},
						"errorCode": map[string]any{"type": "string"},
						"error":     map[string]any{"type": "string"},
					},
					"required":             []any{"id", "type", "state", "progress", "createdAt", "updatedAt"},
					"additionalProperties": false,
				},
				"JobList": map[string]any{
					"type":  "array",
					"items": map[string]any{"$ref": "#/components/schemas/Job"},
				},
				"CreateJobRequest": map[string]any{
					"oneOf": []any{
						map[string]any{"$ref": "#/components/schemas/CreateNoopJobRequest"},
						map[string]any{"$ref": "#/components/schemas/CreateExportJobRequest"},
					},
					"description": "Requête de création d'un job. Les params dépendent du type.",
				},
				"CreateNoopJobRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"type": "string", "enum": []any{"noop"}},
						"params": map[string]any{
							"type":                 "object",
							"additionalProperties": true,
							"example":              map[string]any{},
						},
					},
					"required":             []any{"type"},
					"additionalProperties": false,
				},
				"CreateExportJobRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"type": "string", "enum": []any{"export"}},
						"params": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"portalUrl":  map[string]any{"type": "string", "description": "URL du portail", "example": "http://portal.example.com:8080"},
								"mac":        map[string]any{"type": "string", "description": "Adresse MAC du boîtier", "example": "00:1A:79:12:34:56"},
								"kind":       map[string]any{"$ref": "#/components/schemas/ContentKind"},
								"scheduleId": map[string]any{"type": "string", "description": "Schedule d'origine (optionnel)"},
							},
							"required":             []any{"portalUrl", "mac", "kind"},
							"additionalProperties": false,
						},
					},
					"required":             []any{"type", "params"},
					"additionalProperties": false,
				},
				"Schedule": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":             map[string]any{"type": "string"},
						"portalUrl":      map[string]any{"type": "string"},
						"mac":            map[string]any{"type": "string"},
						"kind":           map[string]any{"$ref": "#/components/schemas/ContentKind"},
						"label":          map[string]any{"type": "string"},
						"intervalHours":  map[string]any{"type": "integer", "minimum": 1},
						"nextRunAt":      map[string]any{"type": "string", "format": "date-time"},
						"lastRunAt":      map[string]any{"type": "string", "format": "date-time"},
						"lastFile":       map[string]any{"type": "string"},
						"lastEntryCount": map[string]any{"type": "integer"},
						"createdAt":      map[string]any{"type": "string", "format": "date-time"},
						"updatedAt":      map[string]any{"type": "string", "format": "date-time"},
					},
					"additionalProperties": false,
				},
				"ScheduleList": map[string]any{
					"type":  "array",
					"items": map[string]any{"$ref": "#/components/schemas/Schedule"},
				},
			},
		},
		"paths": map[string]any{
			"/api/v1/health": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/version": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/openapi.json": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": jsonOK("#/components/schemas/OpenAPIDocument")}},
			},
			"/api/v1/events": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "SSE"}}},
			},
			"/api/v1/jobs": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/JobList"),
						"500": jsonErr,
					},
				},
				"post": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/CreateJobRequest"},
							},
						},
					},
					"responses": map[string]any{
						"201": jsonOK("#/components/schemas/Job"),
						"400": jsonErr,
						"500": jsonErr,
					},
				},
			},
			"/api/v1/jobs/{id}": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Job"),
						"404": jsonErr,
						"500": jsonErr,
					},
				},
			},
			"/api/v1/jobs/{id}/cancel": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Job"),
						"404": jsonErr,
						"500": jsonErr,
					},
				},
			},
			"/api/v1/schedules": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/ScheduleList"),
						"500": jsonErr,
					},
				},
				"post": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/Schedule"},
							},
						},
					},
					"responses": map[string]any{
						"201": jsonOK("#/components/schemas/Schedule"),
						"400": jsonErr,
						"409": jsonErr,
					},
				},
			},
			"/api/v1/schedules/{id}": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Schedule"),
						"404": jsonErr,
					},
				},
				"put": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Schedule"),
						"404": jsonErr,
					},
				},
				"delete": map[string]any{
					"responses": map[string]any{
						"204": map[string]any{"description": "No Content"},
						"404": jsonErr,
					},
				},
			},
			"/api/v1/schedules/{id}/run": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Schedule"),
						"404": jsonErr,
					},
				},
			},
			"/api/v1/settings": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Settings"),
						"500": jsonErr,
					},
				},
				"put": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/Settings"},
							},
						},
					},
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Settings"),
						"400": jsonErr,
						"500": jsonErr,
					},
				},
			},
		},
	}

	httpjson.Write(w, http.StatusOK, spec)
}
