// Package health reports the running bot's state over HTTP and in chat.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/index"
)

// Status is a point-in-time snapshot of the bot.
type Status struct {
	Uptime             time.Duration `json:"-"`
	UptimeSeconds      int64         `json:"uptime_seconds"`
	ActiveSessions     int           `json:"active_sessions"`
	PendingEnrichments int64         `json:"pending_enrichments"`
	Ledger             *index.Stats  `json:"ledger,omitempty"`
}

// Text renders the status for the /health command.
func (s Status) Text() string {
	var b strings.Builder
	b.WriteString("✅ Focus Bot is running\n")
	fmt.Fprintf(&b, "Uptime: %s\n", FormatUptime(s.Uptime))
	fmt.Fprintf(&b, "Active drafts: %d\n", s.ActiveSessions)
	fmt.Fprintf(&b, "Pending enrichments: %d", s.PendingEnrichments)
	if s.Ledger != nil {
		fmt.Fprintf(&b, "\nNotes: %d (%d enriched, %d published)",
			s.Ledger.Notes, s.Ledger.Enriched, s.Ledger.Published)
	}
	return b.String()
}

// FormatUptime renders d as "3d 4h 5m", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

type LedgerStats interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Source gathers a Status from the live components. Nil funcs report zero.
type Source struct {
	Started  time.Time
	Sessions func() int
	Pending  func() int64
	Ledger   LedgerStats
	Logger   *zap.Logger

	now func() time.Time
}

func (s *Source) Status(ctx context.Context) Status {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	st := Status{Uptime: now().Sub(s.Started)}
	st.UptimeSeconds = int64(st.Uptime / time.Second)
	if s.Sessions != nil {
		st.ActiveSessions = s.Sessions()
	}
	if s.Pending != nil {
		st.PendingEnrichments = s.Pending()
	}
	if s.Ledger != nil {
		stats, err := s.Ledger.Stats(ctx)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("ledger stats", zap.Error(err))
			}
		} else {
			st.Ledger = &stats
		}
	}
	return st
}

// Server serves GET /healthz.
type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
}

func NewServer(addr string, src *Source, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(src.Status(c.UserContext()))
	})
	return &Server{app: app, addr: addr, logger: logger}
}

func (s *Server) App() *fiber.App { return s.app }

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("health endpoint listening", zap.String("addr", s.addr))
		errc <- s.app.Listen(s.addr)
	}()
	select {
	case err := <-errc:
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}
