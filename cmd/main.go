// @title GoImóvel API
// @version 1.0
// @description Marketplace de imóveis com moderação de anúncios e limites por papel.
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"goimovel/config"
	"goimovel/internal/pkg/cache"
	"goimovel/internal/pkg/database"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/token"

	"goimovel/internal/api/listing"
	"goimovel/internal/api/moderation"
	"goimovel/internal/api/router"
	"goimovel/internal/api/user"
	"goimovel/internal/domain"
	"goimovel/internal/jobs"
	"goimovel/internal/repository/listingrepo"
	"goimovel/internal/repository/memstore"
	"goimovel/internal/repository/userrepo"
	"goimovel/internal/service/listingservice"
	"goimovel/internal/service/moderationservice"
	"goimovel/internal/service/userservice"
)

func main() {
	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// Sem .env seguimos só com o ambiente do sistema (ex: Docker).
	if err := godotenv.Load(); err != nil {
		log.Println("Aviso: arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	// 1. Configuração e Logger
	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)
	defer appLog.Sync()
	appLog.Info("Configurações carregadas.", map[string]interface{}{"env": cfg.Environment, "storage": cfg.StorageDriver})

	// 2. Cache (Redis), opcional
	var cacheClient cache.Client
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			appLog.Warn("Redis indisponível; seguindo sem cache e sem rate limit.", map[string]interface{}{"error": err.Error()})
		} else {
			cacheClient = c
			appLog.Info("Conexão Redis estabelecida.", nil)
		}
	}

	// 3. Repositórios
	var (
		userRepo    domain.UserRepository
		listingRepo domain.ListingRepository
		db          *sql.DB
	)
	switch cfg.StorageDriver {
	case "memory":
		store := memstore.New()
		userRepo, listingRepo = store, store.Listings()
		appLog.Warn("Armazenamento em memória: os dados não sobrevivem a reinícios.", nil)
	default:
		var err error
		db, err = database.NewPostgresDB(context.Background(), cfg.DatabaseURL, database.DefaultPool)
		if err != nil {
			appLog.Fatal("Falha ao conectar ao banco de dados.", err)
		}
		appLog.Info("Conexão PostgreSQL estabelecida.", nil)
		userRepo = userrepo.NewUserRepository(db, cfg.DBTimeout, appLog)
		listingRepo = listingrepo.NewListingRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, appLog)
	}

	// 4. Serviços
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	userSvc := userservice.NewService(userRepo, tokenSvc, appLog)
	listingSvc := listingservice.NewService(listingRepo, userRepo, appLog)
	moderationSvc := moderationservice.NewService(listingRepo, appLog)

	// 5. Job de reconciliação dos contadores
	var scheduler *jobs.Scheduler
	if cfg.QuotaReconcileCron != "" {
		s, err := jobs.NewScheduler(cfg.QuotaReconcileCron, listingRepo, cfg.DBTimeout*4, appLog)
		if err != nil {
			appLog.Fatal("Expressão cron inválida em QUOTA_RECONCILE_CRON.", err)
		}
		scheduler = s
		scheduler.Start()
		appLog.Info("Reconciliação de limites agendada.", map[string]interface{}{"cron": cfg.QuotaReconcileCron})
	}

	// 6. Handlers e Roteador
	r := router.NewRouter(router.Options{
		ListingHandler:    listing.NewHandler(listingSvc, appLog),
		ModerationHandler: moderation.NewHandler(moderationSvc, appLog),
		UserHandler:       user.NewHandler(userSvc, appLog),
		TokenSvc:          tokenSvc,
		Cache:             cacheClient,
		RateLimitMax:      cfg.RateLimitMaxRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		Logger:            appLog,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 7. Execução e Graceful Shutdown
	go func() {
		appLog.Info("Servidor GoImóvel ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("Desligamento do servidor forçado.", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			appLog.Error("Falha ao fechar o banco de dados.", err)
		}
	}

	appLog.Info("Servidor encerrado com sucesso.", nil)
}
