package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"path/filepath"

	"catalogchain/config"
	"catalogchain/core/events"
	"catalogchain/core/state"
	"catalogchain/crypto"
	"catalogchain/native/catalog"
	"catalogchain/rpc"
	"catalogchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	owner, err := crypto.DecodeAddress(cfg.OwnerAddress)
	if err != nil {
		log.Fatalf("invalid OwnerAddress in config: %v", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "catalog"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ledger := state.NewCatalogState(db)
	recorder := events.NewRecorder(0)
	directory := catalog.NewManagerDirectory()

	engine := catalog.NewEngine(owner.Fixed())
	engine.SetState(ledger)
	engine.SetEmitter(recorder)
	engine.SetResolver(directory)
	engine.SetVault(catalog.ModuleVault)
	if err := engine.InitParams(&catalog.Params{
		ContentFee:              new(big.Int).SetUint64(cfg.ContentFee),
		ContentPeriod:           cfg.ContentPeriod,
		PremiumFee:              new(big.Int).SetUint64(cfg.PremiumFee),
		PremiumPeriod:           cfg.PremiumPeriod,
		PremiumWithdrawalPeriod: cfg.PremiumWithdrawalPeriod,
		PayableViews:            cfg.PayableViews,
	}); err != nil {
		log.Fatalf("failed to seed catalog parameters: %v", err)
	}
	ledger.Finalize()

	if err := registerStaticContent(cfg, directory); err != nil {
		log.Fatalf("failed to register static content: %v", err)
	}

	server := rpc.NewServer(engine, ledger, directory, recorder)
	if err := server.Start(cfg.RPCAddress); err != nil {
		log.Fatalf("rpc server stopped: %v", err)
	}
}

// registerStaticContent wires locally hosted content managers declared in the
// configuration file. Remote collaborators register themselves over RPC.
func registerStaticContent(cfg *config.Config, directory *catalog.ManagerDirectory) error {
	for _, entry := range cfg.StaticContent {
		ref, err := crypto.DecodeAddress(entry.Ref)
		if err != nil {
			return fmt.Errorf("static content %q: invalid ref: %w", entry.Title, err)
		}
		author, err := crypto.DecodeAddress(entry.Author)
		if err != nil {
			return fmt.Errorf("static content %q: invalid author: %w", entry.Title, err)
		}
		manager := catalog.NewStaticManager(author.Fixed(), entry.Title, entry.Genre, []byte(entry.Body))
		directory.Register(ref.Fixed(), manager)
	}
	return nil
}
