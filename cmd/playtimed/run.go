package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/aaronsb/playtimed/internal/accounting"
	"github.com/aaronsb/playtimed/internal/browser"
	"github.com/aaronsb/playtimed/internal/config"
	"github.com/aaronsb/playtimed/internal/control"
	"github.com/aaronsb/playtimed/internal/daemon"
	"github.com/aaronsb/playtimed/internal/discovery"
	"github.com/aaronsb/playtimed/internal/enforcer"
	"github.com/aaronsb/playtimed/internal/notify"
	"github.com/aaronsb/playtimed/internal/patternengine"
	"github.com/aaronsb/playtimed/internal/procmon"
	"github.com/aaronsb/playtimed/internal/router"
	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/scheduler"
	"github.com/aaronsb/playtimed/internal/store"
	"github.com/aaronsb/playtimed/pkg/logger"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the playtimed daemon in the foreground",
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "/etc/playtimed/config.yaml", "bootstrap config file (optional)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" && cmd.Flags().Changed("db") {
		cfg.Database.Path = dbPath
	}

	log := logger.New("daemon", cfg.Logging.Level)

	st, err := store.Open(store.DefaultConfig(cfg.Database.Path))
	if err != nil {
		return err
	}
	defer st.Close()

	engine := patternengine.New(st, log.Printf)
	disco := discovery.New(st, nil)
	excluder := safety.New(os.Getpid(), "playtimed", "playtimed run")
	monitor := procmon.New(procmon.NewGopsutilEnumerator(), excluder, engine, disco)
	acct := accounting.New(st)
	enf := enforcer.New(st, procmon.NewGopsutilEnumerator(), excluder, cfg.Enforcer.GracefulWait, log.Printf)

	dispatcher := buildDispatcher(log)
	rt := router.New(st, dispatcher)

	ctl := control.New(st, cfg.Scheduler.ControlReloadTicks, log.Printf)
	ctl.OnModeChange(func(old, next store.DaemonMode) {
		log.Info("daemon mode changed", "from", old, "to", next)
		if err := rt.Send(context.Background(), "mode_change", router.Context{Mode: string(next)}, false); err != nil {
			log.Error("mode_change notification failed", "error", err)
		}
	})
	if err := ctl.Load(context.Background()); err != nil {
		return err
	}

	d := daemon.New(daemon.Deps{
		Store: st, Control: ctl, Engine: engine, Discovery: disco, Monitor: monitor,
		Accounting: acct, Enforcer: enf, Router: rt, Browsers: browserResolverFactory(log),
		Log: log, PollInterval: cfg.Scheduler.PollInterval,
	})

	sched := scheduler.New(cfg.Scheduler.PollInterval, d.Tick, func(err error) {
		log.Error("scan tick failed", "error", err)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan struct{}, 1)
	go watchSighup(sighup)
	go func() {
		for range sighup {
			ctl.RequestReload()
		}
	}()

	if cfg.HTTP.Enabled {
		srv := buildStatusServer(cfg.HTTP.ListenAddr, st, ctl)
		go func() {
			log.Info("status endpoint listening", "addr", cfg.HTTP.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("status endpoint failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("playtimed daemon starting", "poll_interval", cfg.Scheduler.PollInterval, "db", cfg.Database.Path)
	sched.Run(ctx)
	log.Info("playtimed daemon stopped")
	return nil
}

// browserResolverFactory builds a per-user browser resolver dialing that
// user's own session bus, since the daemon runs as root.
func browserResolverFactory(log *logger.Logger) daemon.BrowserResolverFactory {
	return func(username string) *browser.Resolver {
		u, err := user.Lookup(username)
		if err != nil {
			log.Warn("cannot resolve uid for browser scanning", "user", username, "error", err)
			return nil
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return nil
		}
		conn, err := browser.DialUserSessionBus(uid)
		if err != nil {
			log.Debug("browser scanning unavailable for user", "user", username, "error", err)
			return nil
		}
		return browser.New(browser.NewKWinSource(conn))
	}
}

// watchSighup re-reads config/mode/users from the Store on SIGHUP, the
// daemon's reload-equivalent signal.
func watchSighup(out chan<- struct{}) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		out <- struct{}{}
	}
}

func buildDispatcher(log *logger.Logger) *notify.Dispatcher {
	sessionBus, err := dbus.ConnectSessionBus()
	var backends []notify.Backend
	if err == nil {
		backends = append(backends, notify.NewRichWidgetBackend(sessionBus, "org.playtimed.Widget"))
		backends = append(backends, notify.NewDesktopBackend(sessionBus))
	} else {
		log.Warn("session bus unavailable, notifications will be log-only", "error", err)
	}
	backends = append(backends, notify.NewLogSink(log))
	return notify.NewDispatcher(log, backends...)
}

// buildStatusServer exposes a localhost-only, read-only /status and
// /healthz JSON endpoint so an operator can inspect daemon health
// without opening the database directly.
func buildStatusServer(addr string, st *store.Store, ctl *control.Surface) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		snap := ctl.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"mode":                 snap.Mode,
			"strict_grace_seconds": snap.StrictGraceSeconds,
			"enabled_users":        snap.EnabledUsers,
			"database":             st.Path(),
		})
	})
	return &http.Server{Addr: addr, Handler: r}
}
