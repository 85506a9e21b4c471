package router

import (
	"github.com/labstack/echo/v4"

	"github.com/trieu/leo-activation/internal/rest"
)

func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler) {
	reco := api.Group("/recommendation")

	reco.GET("/interested/:subject_id", handler.GetInterested)
	reco.GET("/affinity/:profile_id", handler.GetProfileAffinities)
	reco.GET("/hot", handler.GetHotAffinities)
	reco.GET("/next-best-action/:profile_id", handler.GetNextBestAction)
	reco.GET("/next-likely-action/:profile_id", handler.GetNextLikelyAction)

	reco.POST("/batch", handler.RunBatch)
	reco.POST("/gc", handler.RunGC)
}

func SetEventRoutes(api *echo.Group, handler *rest.EventHandler) {
	events := api.Group("/events")
	events.POST("", handler.TrackEvent)
}
