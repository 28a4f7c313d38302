package app

import (
	"forumsync/internal/config"
	"forumsync/internal/model"
	"forumsync/internal/service"
	"forumsync/internal/util"
	"forumsync/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Services are the backend rules the handlers call into.
type Services struct {
	Comments  service.CommentService
	Reactions service.ReactionService
	Reports   service.ReportService
}

// NewRouter builds the gin engine serving the comment, reaction and report API,
// the comment event feed and the operational endpoints.
func NewRouter(cfg *config.Config, svc Services, wsHub *websocket.Hub, log logrus.FieldLogger) *gin.Engine {
	// Set Gin mode
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(metricsMiddleware())

	// CORS middleware
	r.Use(corsMiddleware(cfg.ClientURL))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		log.Infof("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Cloudinary hosts comment images when configured
	var images ImageUploader
	if cfg.CloudinaryEnabled() {
		cloudinaryClient, err := util.NewCloudinaryClient(cfg)
		if err != nil {
			log.Warnf("Failed to initialize Cloudinary: %v. Images are stored in %s.", err, cfg.UploadDir)
		} else {
			images = cloudinaryClient
			log.Info("Cloudinary initialized successfully")
		}
	}

	commentHandler := NewCommentHandler(svc.Comments, images, cfg.UploadDir, log)
	reactionHandler := NewReactionHandler(svc.Reactions, log)
	reportHandler := NewReportHandler(svc.Reports, log)

	api := r.Group("/api")
	{
		// Comment routes
		comments := api.Group("/comments")
		{
			comments.GET("/post/:postId", commentHandler.GetCommentsByPost)
			comments.GET("/:id/replies", commentHandler.GetReplies)
			comments.POST("", commentHandler.CreateComment)
			comments.PUT("/:id", commentHandler.UpdateComment)
			comments.DELETE("/:id", commentHandler.DeleteComment)
		}

		// Reaction routes
		reactions := api.Group("/reactions")
		{
			reactions.POST("/add", reactionHandler.AddReaction)
			reactions.GET("/comment/:id/summary", reactionHandler.GetCommentSummary)
			for _, targetType := range []string{model.TargetTypeComment, model.TargetTypePost} {
				reactions.GET("/"+targetType+"/:id/summary", reactionHandler.GetSummary(targetType))
				reactions.POST("/"+targetType+"/:id", reactionHandler.RemoveReaction(targetType))
			}
		}

		// Report routes
		api.POST("/reports/create", reportHandler.CreateReport)
	}

	// Uploaded comment images
	r.Static("/uploads", cfg.UploadDir)

	// WebSocket route
	if wsHub != nil {
		r.GET("/ws", gin.WrapF(websocket.ServeWS(wsHub)))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
