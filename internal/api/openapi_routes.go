package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerOpenAPIRoutes 提供 /openapi 与 /docs/ui
func (r *Router) registerOpenAPIRoutes() {
	r.engine.GET("/openapi", r.serveOpenAPI)
	r.engine.GET("/openapi.yaml", r.serveOpenAPI)
	r.engine.GET("/docs/ui", serveSwaggerUI)
}

func (r *Router) serveOpenAPI(c *gin.Context) {
	c.Header("Content-Type", "application/yaml; charset=utf-8")
	c.File(r.openAPIPath)
}

func serveSwaggerUI(c *gin.Context) {
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Tap Game API - Swagger UI</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/openapi', dom_id: '#swagger-ui', docExpansion: 'list' });
    </script>
  </body>
</html>`
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
