package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"leadscore/internal/cache"
	"leadscore/internal/config"
	"leadscore/internal/database"
	apperrors "leadscore/internal/errors"
	"leadscore/internal/features"
	"leadscore/internal/monitoring"
	"leadscore/internal/ratelimit"
	"leadscore/internal/scoring"
	"leadscore/internal/training"
)

const maxBatchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger(monitoring.ParseLevel(cfg.Logging.Level))
	appLogger.SetAsDefault()

	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := database.NewDB(cfg.Database.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	extractor := features.NewExtractor(repo)
	trainer := training.NewTrainer(repo, cfg.TrainingTick())

	// Redis-backed rate limiting with in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}
	defer redisClient.Close()

	appMetrics := monitoring.NewMetrics()

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		PredictLimitPerMin: cfg.RateLimit.PredictPerMin,
		BatchLimitPerMin:   cfg.RateLimit.BatchPerMin,
		BurstMultiplier:    cfg.RateLimit.BurstMultiplier,
	}, appMetrics)
	defer limiter.Stop()

	appCache := cache.NewCache(cfg.CacheTTL())
	defer appCache.Stop()

	// New models change what the model read endpoints serve
	trainer.OnModelRegistered(func(scoring.ModelMetadata) {
		appCache.InvalidatePath("/models")
		appCache.InvalidatePath("/models/active")
	})

	// Hourly janitor fails training jobs stuck in running
	janitorLog := appLogger.WithComponent("janitor")
	janitor := cron.New()
	_, err = janitor.AddFunc("@hourly", func() {
		n, err := repo.FailStaleTrainingJobs(cfg.StaleJobAge())
		if err != nil {
			janitorLog.Error("Stale training job cleanup failed", "error", err)
			return
		}
		if n > 0 {
			janitorLog.Warn("Failed stale training jobs", "count", n)
		}
	})
	if err != nil {
		slog.Error("Failed to schedule training job janitor", "error", err)
		os.Exit(1)
	}
	janitor.Start()
	defer janitor.Stop()

	r := gin.New()

	r.Use(monitoring.Middleware(appLogger, appMetrics))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(appCache.Middleware(appMetrics))

	// activeModel resolves the model used for scoring: an explicit admin
	// selection first, then the active flag, then the built-in default.
	activeModel := func() scoring.ModelMetadata {
		settings, err := repo.GetAISettings()
		if err == nil && settings.ActiveModelID != "" {
			if m, err := repo.GetModel(settings.ActiveModelID); err == nil {
				return *m
			}
		}

		m, err := repo.GetActiveModel()
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				slog.Error("Failed to load active model, using default", "error", err)
			}
			return scoring.DefaultModel()
		}
		return *m
	}

	// scoreLead runs the full pipeline for one lead: extract features, apply
	// any caller overrides, score, and persist. Persistence is best effort.
	scoreLead := func(leadID string, overrides scoring.LeadFeatures, model scoring.ModelMetadata, withRecs bool) (*scoring.Prediction, error) {
		feats, err := extractor.Extract(leadID)
		if err != nil {
			return nil, err
		}
		for k, v := range overrides {
			feats[k] = v
		}

		pred := scoring.Score(leadID, feats, model)
		if !withRecs {
			pred.Recommendations = nil
		}

		if err := repo.InsertPrediction(&pred); err != nil {
			slog.Error("Failed to persist prediction", "error", err, "lead_id", leadID)
		} else {
			appCache.InvalidatePath("/leads/" + leadID + "/predictions")
		}
		return &pred, nil
	}

	r.GET("/health", func(c *gin.Context) {
		redisStatus := "disabled"
		if redisClient.IsEnabled() {
			redisStatus = "healthy"
			if err := redisClient.HealthCheck(c.Request.Context()); err != nil {
				redisStatus = "unhealthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"database":  db.GetPoolStats(),
			"redis":     redisStatus,
			"metrics":   appMetrics.GetStats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, limiter.GetStats())
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	r.POST("/leads", func(c *gin.Context) {
		var req struct {
			Name         string   `json:"name" binding:"required"`
			Company      string   `json:"company"`
			Industry     string   `json:"industry"`
			Status       string   `json:"status"`
			Source       string   `json:"source"`
			LeadScore    *float64 `json:"lead_score"`
			HasBudget    *bool    `json:"has_budget"`
			HasAuthority *bool    `json:"has_authority"`
			HasNeed      *bool    `json:"has_need"`
			HasTimeline  *bool    `json:"has_timeline"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid lead payload", err.Error())
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if req.LeadScore != nil && (*req.LeadScore < 0 || *req.LeadScore > 10) {
			appErr := apperrors.NewValidationError("lead_score must be between 0 and 10")
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		lead := database.NewLead(strings.TrimSpace(req.Name), req.Company, req.Industry, req.Status, req.Source)
		lead.LeadScore = req.LeadScore
		lead.HasBudget = req.HasBudget
		lead.HasAuthority = req.HasAuthority
		lead.HasNeed = req.HasNeed
		lead.HasTimeline = req.HasTimeline

		if err := repo.CreateLead(lead); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusCreated, lead)
	})

	r.GET("/leads/:id", func(c *gin.Context) {
		lead, err := repo.GetLead(c.Param("id"))
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, lead)
	})

	r.PUT("/leads/:id/qualification", func(c *gin.Context) {
		var req struct {
			LeadScore    *float64 `json:"lead_score"`
			HasBudget    *bool    `json:"has_budget"`
			HasAuthority *bool    `json:"has_authority"`
			HasNeed      *bool    `json:"has_need"`
			HasTimeline  *bool    `json:"has_timeline"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid qualification payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if req.LeadScore != nil && (*req.LeadScore < 0 || *req.LeadScore > 10) {
			appErr := apperrors.NewValidationError("lead_score must be between 0 and 10")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		err := repo.UpdateLeadQualification(c.Param("id"), req.LeadScore,
			req.HasBudget, req.HasAuthority, req.HasNeed, req.HasTimeline)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "qualification updated"})
	})

	r.POST("/leads/:id/interactions", func(c *gin.Context) {
		var req struct {
			Kind       string     `json:"kind" binding:"required"`
			Subject    string     `json:"subject"`
			OccurredAt *time.Time `json:"occurred_at"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid interaction payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		switch req.Kind {
		case database.InteractionEmail, database.InteractionCall,
			database.InteractionMeeting, database.InteractionNote:
		default:
			appErr := apperrors.NewValidationError("kind must be one of email, call, meeting, note")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if _, err := repo.GetLead(c.Param("id")); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		occurredAt := time.Now()
		if req.OccurredAt != nil {
			occurredAt = *req.OccurredAt
		}

		interaction := database.NewInteraction(c.Param("id"), req.Kind, req.Subject, occurredAt)
		if err := repo.AddInteraction(interaction); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusCreated, interaction)
	})

	r.POST("/leads/:id/tasks", func(c *gin.Context) {
		var req struct {
			Title string     `json:"title" binding:"required"`
			DueAt *time.Time `json:"due_at"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid task payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if _, err := repo.GetLead(c.Param("id")); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		task := database.NewTask(c.Param("id"), req.Title, req.DueAt)
		if err := repo.AddTask(task); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusCreated, task)
	})

	r.PUT("/tasks/:id/complete", func(c *gin.Context) {
		var req struct {
			Completed *bool `json:"completed" binding:"required"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid task payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if err := repo.SetTaskCompleted(c.Param("id"), *req.Completed); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("task", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "task updated"})
	})

	predictLimit := ratelimit.Middleware(limiter, appMetrics, ratelimit.PredictCheck)
	batchLimit := ratelimit.Middleware(limiter, appMetrics, ratelimit.BatchCheck)

	r.POST("/leads/:id/predict", predictLimit, func(c *gin.Context) {
		settings, err := repo.GetAISettings()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !settings.ScoringEnabled {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scoring is disabled"})
			return
		}

		// Optional feature overrides in the body
		var req struct {
			Features scoring.LeadFeatures `json:"features"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.BindJSON(&req); err != nil {
				appErr := apperrors.NewValidationError("invalid predict payload", err.Error())
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
		}

		start := time.Now()
		model := activeModel()

		pred, err := scoreLead(c.Param("id"), req.Features, model, settings.RecommendationsEnabled)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		appMetrics.RecordPrediction()
		appLogger.PredictionLogger(c.Request.Context(), pred.LeadID, pred.ModelID,
			pred.Probability, time.Since(start).Milliseconds())

		c.JSON(http.StatusOK, pred)
	})

	r.POST("/predict/batch", batchLimit, func(c *gin.Context) {
		settings, err := repo.GetAISettings()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !settings.ScoringEnabled {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scoring is disabled"})
			return
		}

		var req struct {
			LeadIDs []string `json:"lead_ids" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid batch payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.LeadIDs) == 0 {
			appErr := apperrors.NewValidationError("lead_ids cannot be empty")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.LeadIDs) > maxBatchSize {
			appErr := apperrors.NewValidationError("batch size exceeds limit of " + strconv.Itoa(maxBatchSize))
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		model := activeModel()

		inputs := make([]scoring.BatchInput, 0, len(req.LeadIDs))
		skipped := make([]string, 0)
		for _, leadID := range req.LeadIDs {
			feats, err := extractor.Extract(leadID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					skipped = append(skipped, leadID)
					continue
				}
				appErr := apperrors.ToAppError(err)
				apperrors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			inputs = append(inputs, scoring.BatchInput{LeadID: leadID, Features: feats})
		}

		preds, err := scoring.ScoreBatch(c.Request.Context(), inputs, model)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		for i := range preds {
			if !settings.RecommendationsEnabled {
				preds[i].Recommendations = nil
			}
			if err := repo.InsertPrediction(&preds[i]); err != nil {
				slog.Error("Failed to persist prediction", "error", err, "lead_id", preds[i].LeadID)
			} else {
				appCache.InvalidatePath("/leads/" + preds[i].LeadID + "/predictions")
			}
		}

		appMetrics.RecordBatch(len(preds))
		appLogger.BatchLogger(c.Request.Context(), len(preds), time.Since(start).Milliseconds())

		c.JSON(http.StatusOK, gin.H{
			"predictions": preds,
			"skipped":     skipped,
		})
	})

	r.GET("/leads/:id/predictions", func(c *gin.Context) {
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		if _, err := repo.GetLead(c.Param("id")); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("lead", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		preds, err := repo.ListPredictions(c.Param("id"), limit)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"lead_id":     c.Param("id"),
			"predictions": preds,
		})
	})

	r.GET("/models", func(c *gin.Context) {
		models, err := repo.ListModels()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// The built-in default is always available even before any training
		if len(models) == 0 {
			models = []scoring.ModelMetadata{scoring.DefaultModel()}
		}

		c.JSON(http.StatusOK, gin.H{"models": models})
	})

	r.GET("/models/active", func(c *gin.Context) {
		c.JSON(http.StatusOK, activeModel())
	})

	r.POST("/training/jobs", func(c *gin.Context) {
		job, err := trainer.StartJob()
		if err != nil {
			appMetrics.RecordTrainingJob(true)
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		appMetrics.RecordTrainingJob(false)
		appLogger.TrainingLogger(job.ID, job.Status, job.Progress)

		c.JSON(http.StatusAccepted, job)
	})

	r.GET("/training/jobs", func(c *gin.Context) {
		jobs, err := repo.ListTrainingJobs()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	})

	r.GET("/training/jobs/:id", func(c *gin.Context) {
		job, err := repo.GetTrainingJob(c.Param("id"))
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				appErr := apperrors.NewNotFoundError("training job", c.Param("id"))
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, job)
	})

	r.GET("/settings/ai", func(c *gin.Context) {
		settings, err := repo.GetAISettings()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, settings)
	})

	r.PUT("/settings/ai", func(c *gin.Context) {
		var req struct {
			ScoringEnabled         *bool   `json:"scoring_enabled"`
			RecommendationsEnabled *bool   `json:"recommendations_enabled"`
			AutoRetrain            *bool   `json:"auto_retrain"`
			ActiveModelID          *string `json:"active_model_id"`
		}

		if err := c.BindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid settings payload", err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		settings, err := repo.GetAISettings()
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if req.ScoringEnabled != nil {
			settings.ScoringEnabled = *req.ScoringEnabled
		}
		if req.RecommendationsEnabled != nil {
			settings.RecommendationsEnabled = *req.RecommendationsEnabled
		}
		if req.AutoRetrain != nil {
			settings.AutoRetrain = *req.AutoRetrain
		}
		if req.ActiveModelID != nil {
			if *req.ActiveModelID != "" {
				if _, err := repo.GetModel(*req.ActiveModelID); err != nil {
					appErr := apperrors.NewValidationError("active_model_id does not reference a known model")
					c.JSON(appErr.HTTPStatus, appErr)
					return
				}
			}
			settings.ActiveModelID = *req.ActiveModelID
		}

		if err := repo.UpdateAISettings(settings); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// A model pin changes what /models/active serves
		appCache.InvalidatePath("/models/active")

		c.JSON(http.StatusOK, settings)
	})

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the trainer first so in-flight jobs are marked failed
	trainer.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
