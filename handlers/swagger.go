package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>datalake-api Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "datalake-api", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "paths": {
    "/auth/register": {
      "post": {
        "summary": "Create an account and return an access token",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["username","password"],"properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "access_token, token_type" }, "400": { "description": "username taken or invalid body" } }
      }
    },
    "/auth/token": {
      "post": {
        "summary": "OAuth2 password login",
        "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "access_token, token_type" }, "400": { "description": "incorrect username or password" } }
      }
    },
    "/upload/": {
      "post": {
        "summary": "Ingest a csv, xls or xlsx instrument file",
        "security": [{"bearer": []}],
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}}}}},
        "responses": {
          "200": { "description": "filename, message, total_registers" },
          "400": { "description": "unsupported format, decode error or missing columns" },
          "401": { "description": "not authenticated" },
          "409": { "description": "file already uploaded" },
          "500": { "description": "unexpected parse or store error" }
        }
      }
    },
    "/upload/history/": {
      "get": {
        "summary": "Paginated upload history",
        "security": [{"bearer": []}],
        "parameters": [
          {"name":"filename","in":"query","schema":{"type":"string"}},
          {"name":"date","in":"query","schema":{"type":"string","format":"date"}},
          {"name":"page","in":"query","schema":{"type":"integer","minimum":1,"default":1}},
          {"name":"limit","in":"query","schema":{"type":"integer","minimum":1,"maximum":100,"default":10}}
        ],
        "responses": { "200": { "description": "list of uploads" }, "400": { "description": "invalid date" }, "401": { "description": "not authenticated" }, "404": { "description": "no uploads found" } }
      }
    },
    "/upload/search/": {
      "get": {
        "summary": "Search stored instrument rows",
        "security": [{"bearer": []}],
        "parameters": [
          {"name":"TckrSymb","in":"query","schema":{"type":"string"}},
          {"name":"RptDt","in":"query","schema":{"type":"string","pattern":"^\\d{4}-\\d{2}-\\d{2}"}},
          {"name":"skip","in":"query","schema":{"type":"integer","minimum":0,"default":0}},
          {"name":"limit","in":"query","schema":{"type":"integer","minimum":1,"maximum":100,"default":10}}
        ],
        "responses": { "200": { "description": "results or no-results message" }, "400": { "description": "invalid date pattern" }, "401": { "description": "not authenticated" } }
      }
    },
    "/health": { "get": { "summary": "Liveness", "responses": { "200": { "description": "ok" } } } },
    "/ready": { "get": { "summary": "Readiness (store ping)", "responses": { "200": { "description": "ready" }, "503": { "description": "store unreachable" } } } }
  }
}`
