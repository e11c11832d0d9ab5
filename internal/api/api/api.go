package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"templegames/cmd/middleware"
	"templegames/internal/auth"
	"templegames/internal/service"
)

type Routers struct {
	Service   service.Service
	JWTSecret string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")

	apiGroup.POST("/auth/signup", r.Service.Signup)
	apiGroup.POST("/auth/login", r.Service.Login)

	authed := apiGroup.Group("", auth.Middleware(r.JWTSecret))

	authed.GET("/profile", r.Service.Profile)
	authed.GET("/team-events", r.Service.TeamEvents)
	authed.GET("/temple-teams", r.Service.TempleTeams)
	authed.GET("/templeusers", r.Service.TempleUsers)
	authed.GET("/search-by-aadhar", r.Service.SearchByAadhar)
	authed.GET("/leaderboard", r.Service.Leaderboard)

	admin := authed.Group("", auth.RequireTempleAdmin())
	admin.POST("/register-team", r.Service.RegisterTeam)
	admin.PUT("/update-team/:id", r.Service.UpdateTeam)

	return app
}
