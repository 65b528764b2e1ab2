// Package httpapi is the optional read-only inspection surface described
// in SPEC_FULL.md §4.K. It is wired by cmd/taskcore alongside the manager,
// never imported by internal/manager or internal/scheduler themselves —
// the core has no network surface, matching spec.md §1's Non-goals.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jobs/taskcore/internal/manager"
	"github.com/jobs/taskcore/internal/task"
)

// NewRouter returns a gin.Engine exposing read-only views over m's query
// methods, the same shape as the teacher's internal/api server but
// trimmed to GET-only endpoints since the core owns all writes.
func NewRouter(m *manager.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/tasks/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		t, err := m.GetTask(id)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, t)
	})

	r.GET("/tasks", func(c *gin.Context) {
		if name := c.Query("name"); name != "" {
			tasks, err := m.GetTasksByName(name)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, tasks)
			return
		}
		if status := c.Query("status"); status != "" {
			tasks, err := m.GetTasksByStatus(task.Status(status))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, tasks)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "name or status query parameter required"})
	})

	return r
}
