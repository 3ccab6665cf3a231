package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raidtrack/engine/internal/capture"
	"github.com/raidtrack/engine/internal/config"
	"github.com/raidtrack/engine/internal/core/event"
	"github.com/raidtrack/engine/internal/decrypt"
	"github.com/raidtrack/engine/internal/dispatch"
	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/heartbeat"
	"github.com/raidtrack/engine/internal/localstore"
	"github.com/raidtrack/engine/internal/mainloop"
	"github.com/raidtrack/engine/internal/metadata"
	"github.com/raidtrack/engine/internal/persist"
	"github.com/raidtrack/engine/internal/ports"
	"github.com/raidtrack/engine/internal/rules"
	"github.com/raidtrack/engine/internal/snapshot"
	"github.com/raidtrack/engine/internal/stats"
)

// version is stamped at build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(port int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            raidtrackd  " + version + strings.Repeat(" ", max(0, 19-len(version))) + "\033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m監聽埠:\033[0m %d\n\n", port)
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s ──────────────────────────────\033[0m\n", title)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func run() error {
	cfgPath := "config/raidtrackd.toml"
	if p := os.Getenv("RAIDTRACK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Port)

	// 1. Persistence: open db, run migrations, recover any crash-orphaned saves.
	printSection("資料庫")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Paths.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("SQLite 連線成功")

	if err := persist.RunMigrations(ctx, db.Conn); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("資料庫遷移完成")

	encounterRepo := persist.NewEncounterRepo(db, log)
	recovered, err := encounterRepo.RecoverPending(ctx)
	if err != nil {
		return fmt.Errorf("recover pending saves: %w", err)
	}
	if recovered > 0 {
		log.Warn("恢復中斷的儲存", zap.Int("筆數", recovered))
	}
	fmt.Println()

	// 2. Static metadata tables and rule scripts.
	printSection("資料載入")
	tables, err := metadata.Load(cfg.Paths.MetadataDir)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	printOK(fmt.Sprintf("技能 %d  Buff %d  NPC %d  地區 %d",
		tables.Skills.Count(), tables.Buffs.Count(), tables.Npcs.Count(), tables.Zones.Count()))

	ruleEngine, err := rules.NewEngine(cfg.Paths.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("rules engine: %w", err)
	}
	defer ruleEngine.Close()
	printOK("規則腳本載入完成")
	fmt.Println()

	// 3. Local file stores shared with the capture bootstrap and heartbeat sender.
	regionStore, err := localstore.NewRegionStore(cfg.Paths.RegionPath)
	if err != nil {
		return fmt.Errorf("region store: %w", err)
	}
	localPlayerStore := localstore.NewLocalPlayerStore(cfg.Paths.LocalPlayerPath)
	if _, err := localPlayerStore.Load(); err != nil {
		return fmt.Errorf("local player store: %w", err)
	}

	// 4. External collaborators: stats/heartbeat clients, damage decryptor.
	statsClient, err := stats.New(cfg.Stats.Endpoint, cfg.Stats.RequestTimeout, cfg.Stats.CacheSize, cfg.Stats.CacheTTL, log)
	if err != nil {
		return fmt.Errorf("stats client: %w", err)
	}

	var heartbeatClient ports.HeartbeatApi
	if cfg.Metrics.Enabled {
		heartbeatClient = heartbeat.New(cfg.Metrics.Endpoint, cfg.Metrics.RequestTimeout, cfg.Metrics.BeatInterval, log)
	}

	damageDecryptor := decrypt.New()
	if err := damageDecryptor.Start(); err != nil {
		return fmt.Errorf("decryptor start: %w", err)
	}

	// 5. Core encounter state, event bus, and dispatcher.
	state := engine.New(tables, log)
	bus := event.NewBus()

	d := dispatch.New(state, tables, bus, damageDecryptor, ruleEngine, log)
	d.Region = regionStore
	d.Stats = statsClient
	usageCounts := localPlayerStore.UsageCounts()
	d.SetUsageTracking(usageCounts, func(characterID uint64, name string) {
		if err := localPlayerStore.Write(name, characterID); err != nil {
			log.Warn("record local player usage failed", zap.Error(err))
		}
	})

	period := cfg.Capture.SnapshotPeriod
	if cfg.Capture.LowPerformanceMode {
		period = cfg.Capture.SnapshotPeriodLowPerf
	}
	snapshotEmitter := snapshot.New(bus, period, cfg.Capture.PartySnapshotPeriod)

	packets := make(chan ports.Packet, 4096)
	source := capture.NewChannelSource(packets)

	loop := mainloop.New(context.Background(), mainloop.Deps{
		State:          state,
		Dispatcher:     d,
		Snapshot:       snapshotEmitter,
		Source:         source,
		Persister:      encounterRepo,
		Region:         regionStore,
		Heartbeat:      heartbeatClient,
		Rules:          ruleEngine,
		ClientID:       func() (uuid.UUID, bool) { info := localPlayerStore.Get(); return info.ClientID, true },
		Version:        version,
		HeartbeatEvery: cfg.Metrics.BeatInterval,
		Log:            log,
	})
	loop.Flags().BossOnlyDamage = cfg.Capture.BossOnlyDamage
	d.SaveNow = loop.TriggerSave

	// A phase-closing save is decided inside the core (component G) and
	// surfaced as an event; the loop is the only thing allowed to actually
	// touch the persister, so bridge the two through the flag it already polls.
	event.Subscribe(bus, func(ports.EventSaveEncounter) {
		loop.Flags().Save = true
	})

	// 6. Run until stop or capture EOF.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("遙測核心啟動 (快照週期: %s)", period))
	fmt.Println()

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case sig := <-shutdownCh:
		log.Info("收到關閉信號", zap.String("signal", sig.String()))
		loop.Flags().Stop = true
		close(packets)
		<-done
	case err := <-done:
		if err != nil {
			return err
		}
	}

	log.Info("raidtrackd 已停止")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
