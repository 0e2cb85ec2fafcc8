package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for a service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> OpenAPI JSON generated from the engine's routes
func RegisterSwagger(r *gin.Engine, title string) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, strings.Replace(swaggerHTML, "{{title}}", title, 1))
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, openAPIDoc(title, r.Routes()))
	})
}

func openAPIDoc(title string, routes gin.RoutesInfo) gin.H {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	paths := gin.H{}
	for _, rt := range routes {
		if strings.HasPrefix(rt.Path, "/swagger") || strings.HasPrefix(rt.Path, "/internal") {
			continue
		}
		p := openAPIPath(rt.Path)
		ops, ok := paths[p].(gin.H)
		if !ok {
			ops = gin.H{}
			paths[p] = ops
		}
		ops[strings.ToLower(rt.Method)] = gin.H{
			"responses": gin.H{"200": gin.H{"description": "success"}},
		}
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": title, "version": "v1"},
		"paths":   paths,
	}
}

// openAPIPath turns gin's /posts/:postID into /posts/{postID}.
func openAPIPath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			parts[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>{{title}} - Swagger</title>
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
