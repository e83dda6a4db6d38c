// Package main API Server 入口
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/apiserver/server"
	"petmarket/internal/config"
	"petmarket/internal/shared/cache"
	cacheredis "petmarket/internal/shared/cache/redis"
	"petmarket/internal/shared/objstore"
	"petmarket/internal/shared/storage"
	"petmarket/internal/shared/storage/driver/postgres"
	"petmarket/internal/shared/storage/driver/sqlite"
	"petmarket/internal/shared/storage/mongostore"
	"petmarket/internal/shared/storage/repository"
	"petmarket/internal/tlsutil"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "install" {
		runInstall()
		return
	}

	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和 Redis）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化持久化存储
	store, closeStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()
	log.Printf("Connected to %s", cfg.DatabaseDriver)

	// 初始化缓存（未启用 Redis 时注入空实现）
	var listingCache cache.Cache = cache.NewNoOpCache()
	if cfg.RedisURL != "" {
		redisCache, err := cacheredis.NewStoreFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		listingCache = redisCache
	}
	defer listingCache.Close()

	// 初始化照片对象存储（未配置 MinIO 时照片内联保存）
	var photos *objstore.Client
	if cfg.MinIO.Endpoint != "" {
		photos, err = objstore.NewClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := photos.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure MinIO bucket: %v", err)
		}
		cancel()
		log.Printf("Connected to MinIO [bucket=%s]", cfg.MinIO.Bucket)
	}

	// 启动时幂等创建管理员账号
	authCfg := auth.ConfigFromApp(cfg.Auth)
	if err := auth.EnsureAdminAccount(context.Background(), store, cfg.Auth); err != nil {
		log.Fatalf("Failed to ensure admin account: %v", err)
	}

	// 初始化 Handler
	h := server.NewHandler(store, authCfg, server.Options{
		Cache:        listingCache,
		Photos:       photos,
		MinPhotos:    cfg.Registration.MinPhotos,
		AllowOrigins: cfg.AllowOrigins,
	})

	// 启动业务指标刷新循环
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartMetricsUpdater(ctx, 30*time.Second)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if cfg.TLS.Enabled {
		err = serveTLS(srv, cfg.TLS)
	} else {
		log.Printf("API Server listening on :%s", cfg.APIPort)
		err = srv.ListenAndServe()
	}
	if err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// newStore 根据配置的驱动初始化持久化存储
func newStore(cfg *config.Config) (storage.PersistentStore, func(), error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		dialect := postgres.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		store := repository.NewStore(db, dialect)
		return store, func() { store.Close() }, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		dialect := sqlite.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		store := repository.NewStore(db, dialect)
		return store, func() { store.Close() }, nil

	default: // mongodb
		store, err := mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

// serveTLS 以 HTTPS 模式启动：证书缺失时自动生成自签名证书
func serveTLS(srv *http.Server, tlsCfg config.TLSConfig) error {
	opts := tlsutil.DefaultGenerateOptions()
	if tlsCfg.CertDir != "" {
		opts.CertDir = tlsCfg.CertDir
	}
	if tlsCfg.Hosts != "" {
		opts.Hosts = tlsCfg.Hosts
	}
	files, err := tlsutil.EnsureCerts(opts)
	if err != nil {
		return fmt.Errorf("ensure certs: %w", err)
	}

	// 提供 CA 证书下载，方便客户端信任自签名 CA
	srv.Handler = withCACertEndpoint(srv.Handler, files.CAFile)

	// 自签名证书下浏览器会制造大量 handshake error 噪音
	srv.ErrorLog = newTLSFilteredLogger()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		return err
	}
	srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}

	log.Printf("API Server listening on %s (HTTPS)", srv.Addr)
	// 误发到 TLS 端口的纯 HTTP 请求自动 301 到 HTTPS
	return srv.ServeTLS(&httpOnTLSListener{Listener: ln}, "", "")
}
