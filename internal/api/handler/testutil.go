package handler

import (
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reviewpilot/reviewpilot/internal/engine"
	llmmock "github.com/reviewpilot/reviewpilot/internal/llm/mock"
	platformmock "github.com/reviewpilot/reviewpilot/internal/platform/mock"
	"github.com/reviewpilot/reviewpilot/internal/store"
)

// newTestEngine builds an engine on a temporary database with mock
// platform and model clients. The engine is never started; handlers
// only exercise its enqueue and query paths.
func newTestEngine(t *testing.T) (*engine.Engine, store.Store, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, cleanup := store.SetupTestDB(t)
	e := engine.New(s, platformmock.New(), llmmock.New("{}"), nil, engine.Config{
		Scheduler: engine.DefaultSchedulerConfig(),
	})
	return e, s, cleanup
}
