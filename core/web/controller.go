package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/engine"
	"github.com/flowmintdao/solana_swap_engine/core/web/handler"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func ServerRoute(e *engine.Engine) *gin.Engine {
	router := gin.New()

	cfg := config.GetServerConfig()
	visitLogFile := cfg.VisitLogFile
	if visitLogFile == "" {
		visitLogFile = "./log/visit.log"
	}
	recoverLogFile := cfg.RecoverLogFile
	if recoverLogFile == "" {
		recoverLogFile = "./log/recover.log"
	}

	recoverFile, err := os.OpenFile(recoverLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil || recoverFile == nil {

		if err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Error("open recover log file failed")
		}
		if recoverFile == nil {
			logger.Logrus.Error("open recover log file failed:recoverFile is nil")
		}

		return nil
	}

	router.Use(MiddleLogger(visitLogFile, "/health", "/metrics"), gin.RecoveryWithWriter(recoverFile))

	// http router
	router.POST("/swap/execute", handler.ExecuteSwapHandler(e))
	router.POST("/swap/:receipt_id/submit", handler.SubmitSignedHandler(e))
	router.GET("/swap/receipt/:receipt_id", handler.GetReceiptHandler(e))
	router.GET("/swap/receipt/:receipt_id/timeline", handler.GetReceiptTimelineHandler(e))
	router.POST("/swap/receipt/:receipt_id/status", handler.UpdateReceiptStatusHandler(e))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

func Run(e *engine.Engine) {
	router := ServerRoute(e)
	if router == nil {
		logger.Logrus.Fatal("server route init failed")
	}
	if router != nil {
		addr := config.GetServerConfig().ListenAddr
		if addr == "" {
			addr = ":8080"
		}

		server := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  120 * time.Second,
			WriteTimeout: 120 * time.Second,
		}

		go func() {
			err := server.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err}).Fatal("Server start failed")
			}
		}()

		// Wait for interrupt signal to gracefully shutdown the server with
		// a timeout of 5 seconds.
		quit := make(chan os.Signal, 1)
		// kill (no param) default send syscall.SIGTERM
		// kill -2 is syscall.SIGINT
		// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Error("Server forced to shutdown")
		}

		logger.Logrus.Info("Server shutdown complete")
	}
}
