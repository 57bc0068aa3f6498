package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ministry-learning-api/internal/service"
)

const unmatchedRoute = "unmatched"

// routeAreas maps the trailing static segment of a route template to its area.
var routeAreas = map[string]string{
	"enrollments":      "enrollment",
	"export":           "enrollment",
	"status":           "enrollment",
	"recalculate":      "progress",
	"progress":         "progress",
	"completion":       "progress",
	"views":            "progress",
	"quiz-submissions": "quiz",
	"certificate":      "certificate",
	"certificates":     "certificate",
	"revoke":           "certificate",
	"reissue":          "certificate",
	"verify":           "certificate",
	"download":         "certificate",
	"activity":         "activity",
	"stats":            "activity",
	"summary":          "ops",
	"metrics":          "ops",
	"health":           "ops",
	"ready":            "ops",
	"docs":             "ops",
}

// Metrics records request latency and counts labelled by route template and area.
// Requests that matched no route share the "unmatched" label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, routeArea(route), c.Writer.Status(), time.Since(start))
	}
}

func routeArea(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			continue
		}
		if area, ok := routeAreas[seg]; ok {
			return area
		}
	}
	return "other"
}
