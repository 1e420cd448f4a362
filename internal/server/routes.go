package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bodhi-ml/bodhi/internal/auth"
)

func registerRoutes(engine *gin.Engine, deps Deps) {
	engine.GET("/health", handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chain := deps.AuthChain
	if chain == nil {
		chain = func(c *gin.Context) { c.Next() }
	}
	engine.Use(chain)

	v1 := engine.Group("/v1")
	{
		v1.GET("/models", auth.RequireTier(auth.TierUser), handleListModels(deps))
		v1.POST("/chat/completions", auth.RequireTier(auth.TierUser), handleChatCompletions(deps))
	}

	api := engine.Group("/api")
	{
		api.GET("/tags", auth.RequireTier(auth.TierUser), handleOllamaTags(deps))
		api.POST("/show", auth.RequireTier(auth.TierUser), handleOllamaShow(deps))
		api.POST("/chat", auth.RequireTier(auth.TierUser), handleOllamaChat(deps))
	}

	app := engine.Group("/app")
	{
		app.GET("/login", handleLogin(deps))
		app.GET("/login/callback", handleLoginCallback(deps))
	}

	bodhi := engine.Group("/bodhi/v1")
	{
		bodhi.POST("/logout", auth.RequireTier(auth.TierSessionOnly), handleLogout(deps))
		bodhi.GET("/user", auth.RequireTier(auth.TierUser), handleCurrentUser(deps))

		bodhi.GET("/models", auth.RequireTier(auth.TierUser), handleListAliases(deps))
		bodhi.POST("/models", auth.RequireTier(auth.TierPowerUser), handleCreateAlias(deps))
		bodhi.DELETE("/models/:id", auth.RequireTier(auth.TierPowerUser), handleDeleteAlias(deps))

		bodhi.GET("/modelfiles", auth.RequireTier(auth.TierUser), handleListLocalModels(deps))
		bodhi.POST("/modelfiles/pull", auth.RequireTier(auth.TierUser), handlePullModel(deps))
		bodhi.GET("/modelfiles/pull/:id", auth.RequireTier(auth.TierUser), handlePullStatus(deps))
		bodhi.GET("/modelfiles/pull/:id/ws", handlePullProgressWS(deps))

		bodhi.GET("/tokens", auth.RequireTier(auth.TierSessionOnly), handleListTokens(deps))
		bodhi.POST("/tokens", auth.RequireTier(auth.TierSessionOnly), handleCreateToken(deps))
		bodhi.PUT("/tokens/:id", auth.RequireTier(auth.TierSessionOnly), handleUpdateTokenStatus(deps))

		bodhi.GET("/settings", auth.RequireTier(auth.TierAdmin), handleListSettings(deps))
		bodhi.PUT("/settings/:key", auth.RequireTier(auth.TierAdmin), handleSetSetting(deps))
		bodhi.DELETE("/settings/:key", auth.RequireTier(auth.TierAdmin), handleDeleteSetting(deps))

		bodhi.GET("/mcps", auth.RequireTier(auth.TierPowerUser), handleListMCPServers(deps))
		bodhi.POST("/mcps", auth.RequireTier(auth.TierManager), handleCreateMCPServer(deps))
		bodhi.DELETE("/mcps/:id", auth.RequireTier(auth.TierManager), handleDeleteMCPServer(deps))

		bodhi.GET("/toolsets", auth.RequireTier(auth.TierUser), handleListToolsets(deps))
		bodhi.PUT("/toolsets/:type", auth.RequireTier(auth.TierUser), handleUpsertToolset(deps))
		bodhi.GET("/toolset_types", auth.RequireTier(auth.TierUser), handleListToolsetTypes(deps))
		bodhi.POST("/toolsets/execute", auth.RequireTier(auth.TierUser), handleExecuteToolset(deps))
		bodhi.POST("/mcps/instances/:id/execute", auth.RequireTier(auth.TierUser), handleExecuteMCPTool(deps))

		bodhi.GET("/access-requests", auth.RequireTier(auth.TierManager), handleListAccessRequests(deps))
		bodhi.PUT("/access-requests/:id", auth.RequireTier(auth.TierManager), handleResolveAccessRequest(deps))

		bodhiApps := bodhi.Group("/apps")
		{
			bodhiApps.GET("", auth.RequireTier(auth.TierAdmin), handleListApps(deps))
			bodhiApps.POST("/:id/access-requests", auth.RequireTier(auth.TierUser), handleRequestAppAccess(deps))
		}
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
