package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hl7bridge/hl7bridge/internal/config"
	"github.com/hl7bridge/hl7bridge/internal/domain/exchange"
	"github.com/hl7bridge/hl7bridge/internal/hl7"
	"github.com/hl7bridge/hl7bridge/internal/platform/auth"
	"github.com/hl7bridge/hl7bridge/internal/platform/db"
	"github.com/hl7bridge/hl7bridge/internal/platform/middleware"
	"github.com/hl7bridge/hl7bridge/internal/platform/mllp"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hl7-gateway",
		Short: "HL7 v2 message gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP API and MLLP listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// readHL7File loads an HL7 message from disk, tolerating LF or CRLF segment
// separators in place of the wire-format CR.
func readHL7File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	return strings.TrimRight(text, "\r"), nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse and validate an HL7 message file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readHL7File(args[0])
			if err != nil {
				return err
			}

			msg, warnings, err := hl7.ParseMessage(raw)
			if err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}
			for _, w := range warnings {
				fmt.Printf("warning: %s\n", w)
			}

			typ, _ := msg.Type()
			fmt.Printf("Message type: %s\n", typ)
			fmt.Printf("Control ID:   %s\n", msg.ControlID())

			ok, errs := msg.Validate()
			if ok {
				fmt.Println("Result: VALID")
				return nil
			}
			fmt.Println("Result: INVALID")
			for _, e := range errs {
				fmt.Printf("  - %s\n", e)
			}
			os.Exit(1)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send an HL7 message file to an MLLP endpoint and print the ACK",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			raw, err := readHL7File(args[0])
			if err != nil {
				return err
			}

			conn, err := net.DialTimeout("tcp", addr, timeout)
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			conn.SetDeadline(time.Now().Add(timeout))
			if _, err := conn.Write(mllp.Frame([]byte(raw))); err != nil {
				return fmt.Errorf("send: %w", err)
			}

			var buf []byte
			readBuf := make([]byte, 4096)
			for {
				n, err := conn.Read(readBuf)
				if n > 0 {
					buf = append(buf, readBuf[:n]...)
					if ack, _, found := mllp.Unframe(buf); found {
						fmt.Println(strings.ReplaceAll(string(ack), "\r", "\n"))
						return nil
					}
				}
				if err != nil {
					return fmt.Errorf("read ACK: %w", err)
				}
			}
		},
	}
	cmd.Flags().String("addr", "localhost:2575", "MLLP endpoint address")
	cmd.Flags().Duration("timeout", 10*time.Second, "Connection and read timeout")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSecret == "" {
				return fmt.Errorf("AUTH_SECRET is required to issue tokens")
			}

			token, err := auth.IssueToken([]byte(cfg.AuthSecret), subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "cli-user", "Token subject")
	cmd.Flags().StringSlice("roles", []string{"integration"}, "Roles to embed in the token")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	routing := hl7.Routing{
		SendingApp:        cfg.SendingApp,
		SendingFacility:   cfg.SendingFacility,
		ReceivingApp:      cfg.ReceivingApp,
		ReceivingFacility: cfg.ReceivingFacility,
	}

	messageRepo := exchange.NewMessageRepoPG(pool)
	exchangeSvc := exchange.NewService(messageRepo, routing, logger)
	exchangeHandler := exchange.NewHandler(exchangeSvc)
	auditLog := exchange.NewAuditLogPG(pool)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept", middleware.RequestIDHeader},
	}))

	if cfg.IsDev() && cfg.AuthSecret == "" {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware([]byte(cfg.AuthSecret)))
	}

	e.Use(middleware.Audit(logger, auditLog))

	apiV1 := e.Group("/api/v1")
	exchangeHandler.RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// MLLP listener: every inbound message is journaled, then ACKed. A message
	// that fails validation still gets a response, an AE carrying the first
	// validation error in MSA-3.
	var mllpServer *mllp.Server
	if cfg.MLLPEnabled {
		handler := func(msg *hl7.Message) *hl7.Message {
			result, err := exchangeSvc.IngestParsed(context.Background(), msg, nil)
			if err != nil {
				logger.Error().Err(err).Msg("mllp ingest failed")
				return mllp.GenerateACK(msg, mllp.AckError, "journaling failed")
			}
			if !result.Record.Valid() {
				return mllp.GenerateACK(msg, mllp.AckError, result.Errors[0])
			}
			return mllp.GenerateACK(msg, mllp.AckAccept, "")
		}

		mllpServer = mllp.NewServer(cfg.MLLPAddr, handler, logger)
		if err := mllpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start MLLP listener")
		}
		logger.Info().Str("addr", cfg.MLLPAddr).Msg("MLLP listener started")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	if mllpServer != nil {
		if err := mllpServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("MLLP shutdown failed")
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
