// Package http wires the gin router: the websocket endpoint and the REST
// history endpoint clients use to page through messages on reconnect.
package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkeye/Chatter/internal/adapters/signal"
	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/config"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func requestToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return rest
	}
	return ""
}

// AuthRequired verifies the JWT and binds the user id to the request context.
func AuthRequired(orch *app.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": domain.ErrTokenMissing.Error()})
			return
		}
		userID, err := orch.Auth.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": domain.ErrInvalidToken.Error()})
			return
		}
		c.Set("userId", string(userID))
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctl := signal.NewController(orch, cfg)

	api := r.Group("/api")

	api.GET("/ws/chat", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	api.GET("/rooms/:id/messages", AuthRequired(orch), func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("id"))
		userID := domain.UserID(c.GetString("userId"))

		member, err := orch.Membership.IsMember(c.Request.Context(), roomID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"message": domain.ErrNotRoomMember.Error()})
			return
		}

		limit, _ := strconv.Atoi(c.Query("limit"))
		messages, next, err := orch.Store.History(c.Request.Context(), roomID, limit, c.Query("cursor"))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", string(roomID)).Msg("history read")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages, "nextCursor": next})
	})

	return r
}
