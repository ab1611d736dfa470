package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"otcmarket/config"
	"otcmarket/core/events"
	coretypes "otcmarket/core/types"
	"otcmarket/native/ledger"
	"otcmarket/native/market"
	"otcmarket/native/premarket"
	"otcmarket/native/referral"
	"otcmarket/observability/logging"
	"otcmarket/rpc"
	"otcmarket/state"
	"otcmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("OTC_ENV"))
	logger := logging.Setup("otcmarketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err), slog.String("dataDir", cfg.DataDir))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := &logEmitter{logger: logger}

	funds := ledger.NewLedger(manager)

	markets := market.NewRegistry(manager)
	markets.SetEmitter(emitter)
	markets.SetPauses(manager)

	fees := referral.NewEngine(manager, referral.Params{
		BaseFeeBps:       cfg.Fees.BaseFeeBps,
		BaseReferralBps:  cfg.Fees.BaseReferralBps,
		ExtraReferralBps: cfg.Fees.ExtraReferralBps,
		Authority:        cfg.AuthorityBytes(),
	})
	fees.SetEmitter(emitter)
	fees.SetPauses(manager)

	engine := premarket.NewEngine(manager, markets, fees, funds, premarket.Policy{
		ProtectedBufferBps: cfg.Trading.ProtectedBufferBps,
	})
	engine.SetEmitter(emitter)
	engine.SetPauses(manager)

	delivery := premarket.NewDelivery(engine)

	server := rpc.NewServer(engine, delivery, markets, fees, funds, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(dataDir string) (storage.Database, error) {
	if dataDir == ":memory:" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

// logEmitter surfaces engine events on the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	attrs := []any{}
	if carrier, ok := evt.(interface{ Event() *coretypes.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info("event "+evt.EventType(), attrs...)
}
