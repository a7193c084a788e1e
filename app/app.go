package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/starius/api2"
	launcher "gitlab.com/atechtools/token-launcher"
	"gitlab.com/atechtools/token-launcher/feepolicy"
	"gitlab.com/atechtools/token-launcher/launchdb"
	"gitlab.com/atechtools/token-launcher/metadata"
	"gitlab.com/atechtools/token-launcher/registry"
	"gitlab.com/atechtools/token-launcher/solana"
)

var _ launcher.Chain = (*solana.Minter)(nil)

type Config struct {
	ApiAddr   string `short:"a" env:"API_ADDR" default:":9580" description:"host:port that the API server listens on, empty to disable"`
	DBCfgPath string `long:"launch-db-cfg" env:"DB_CFG_PATH" description:"Path to launch ledger DB config, in-memory ledger if empty"`

	HeliusApiKey  string `long:"helius-api-key" env:"HELIUS_API_KEY"`
	SolanaDevnet  bool   `long:"solana-use-devnet" env:"SOLANA_USE_DEVNET"`
	SolanaRPC     string `long:"solana-rpc" env:"SOLANA_RPC" description:"custom RPC URL, overrides Helius"`
	SolanaWS      string `long:"solana-ws" env:"SOLANA_WS" description:"custom websocket URL, used with --solana-rpc"`
	SkipPreflight bool   `long:"skip-preflight" env:"SKIP_PREFLIGHT"`

	Treasury            string `long:"treasury" env:"TREASURY" description:"wallet receiving creation fees and basic transfer fees"`
	BasicFee            string `long:"basic-fee" env:"BASIC_FEE" default:"0SOL"`
	AdvancedFee         string `long:"advanced-fee" env:"ADVANCED_FEE" default:"0.01SOL"`
	EnterpriseFee       string `long:"enterprise-fee" env:"ENTERPRISE_FEE" default:"0.015SOL"`
	MetadataFee         string `long:"metadata-fee" env:"METADATA_FEE" default:"0.01SOL"`
	ClaimFee            string `long:"claim-fee" env:"CLAIM_FEE" default:"0.005SOL" description:"paid to the treasury when a creator claims royalties"`
	BasicTransferFeeBps uint16 `long:"basic-transfer-fee-bps" env:"BASIC_TRANSFER_FEE_BPS" default:"20"`
	MaxRoyaltyBps       uint16 `long:"max-royalty-bps" env:"MAX_ROYALTY_BPS" default:"500"`

	ConfirmationTimeout time.Duration `long:"confirmation-timeout" env:"CONFIRMATION_TIMEOUT" default:"2m"`
	BroadcastAttempts   uint          `long:"broadcast-attempts" env:"BROADCAST_ATTEMPTS" default:"3"`
	BroadcastRetryDelay time.Duration `long:"broadcast-retry-delay" env:"BROADCAST_RETRY_DELAY" default:"1s"`
	ReconcileInterval   time.Duration `long:"reconcile-interval" env:"RECONCILE_INTERVAL" default:"1m"`

	PinataApiKey    string `long:"pinata-api-key" env:"PINATA_API_KEY"`
	PinataSecretKey string `long:"pinata-secret-key" env:"PINATA_SECRET_KEY"`
	PinataGateway   string `long:"pinata-gateway" env:"PINATA_GATEWAY" default:"https://gateway.pinata.cloud/ipfs/"`

	RegistryURL string `long:"registry-url" env:"REGISTRY_URL" description:"token registry base URL, in-process registry if empty"`
}

// ScheduleFromConfig builds the fee schedule from the configured SOL amounts.
func ScheduleFromConfig(c Config) (feepolicy.Schedule, error) {
	schedule := feepolicy.DefaultSchedule()
	if c.Treasury != "" {
		treasury, err := solanago.PublicKeyFromBase58(c.Treasury)
		if err != nil {
			return feepolicy.Schedule{}, fmt.Errorf("bad treasury %q: %w", c.Treasury, err)
		}
		schedule.Treasury = treasury
	}
	schedule.BasicTransferFeeBps = c.BasicTransferFeeBps
	schedule.MaxRoyaltyBps = c.MaxRoyaltyBps

	fees := []struct {
		value  string
		target *uint64
	}{
		{c.BasicFee, &schedule.TierFeeLamports[0]},
		{c.AdvancedFee, &schedule.TierFeeLamports[1]},
		{c.EnterpriseFee, &schedule.TierFeeLamports[2]},
		{c.MetadataFee, &schedule.MetadataFeeLamports},
		{c.ClaimFee, &schedule.ClaimFeeLamports},
	}
	for _, fee := range fees {
		lamports, err := feepolicy.ParseSOL(fee.value)
		if err != nil {
			return feepolicy.Schedule{}, err
		}
		*fee.target = lamports
	}
	return schedule, schedule.Validate()
}

func SettingsFromConfig(c Config) (launcher.Settings, error) {
	schedule, err := ScheduleFromConfig(c)
	if err != nil {
		return launcher.Settings{}, fmt.Errorf("failed to parse fee schedule: %w", err)
	}
	return launcher.Settings{
		Schedule: schedule,
		Submitter: solana.SubmitterConfig{
			BroadcastAttempts:   c.BroadcastAttempts,
			BroadcastRetryDelay: c.BroadcastRetryDelay,
			ConfirmationTimeout: c.ConfirmationTimeout,
		},
		ReconcileInterval: c.ReconcileInterval,
	}, nil
}

func MinterConfigFromConfig(c Config) solana.MinterConfig {
	var mc solana.MinterConfig
	switch {
	case c.SolanaRPC != "":
		mc = solana.NewCustomConfig("custom", c.SolanaRPC, c.SolanaWS)
	case c.SolanaDevnet:
		mc = solana.NewDevNetConfig(c.HeliusApiKey)
	default:
		mc = solana.NewMainNetConfig(c.HeliusApiKey)
	}
	mc.SkipPreflight = c.SkipPreflight
	return mc
}

type App struct {
	server *http.Server

	launcher *launcher.Server
	closers  []io.Closer
	minter   *solana.Minter
}

func New() *App {
	return &App{}
}

// Launcher is available once Start succeeded.
func (a *App) Launcher() *launcher.Server {
	return a.launcher
}

func (a *App) Minter() *solana.Minter {
	return a.minter
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func (a *App) Start(ctx context.Context, c Config) error {
	settings, err := SettingsFromConfig(c)
	if err != nil {
		return err
	}

	var storage launcher.Storage
	if c.DBCfgPath != "" {
		pg, err := launchdb.OpenPostgresWithRetries(ctx, c.DBCfgPath)
		if err != nil {
			return fmt.Errorf("failed to open launch DB: %w", err)
		}
		ldb, err := launchdb.NewDB(pg)
		if err != nil {
			return fmt.Errorf("failed to initialize launchDB: %w", err)
		}
		a.closers = append(a.closers, ldb)
		storage = ldb
	} else {
		log.Printf("No launch DB configured, launches are kept in memory")
		storage = launchdb.NewMemory()
	}

	var uploader metadata.Uploader
	if c.PinataApiKey != "" {
		pinata, err := metadata.NewPinata(metadata.PinataConfig{
			APIKey:    c.PinataApiKey,
			SecretKey: c.PinataSecretKey,
			Gateway:   c.PinataGateway,
			Platform:  "token-launcher",
		})
		if err != nil {
			return fmt.Errorf("failed to create pinata uploader: %w", err)
		}
		uploader = pinata
	} else {
		log.Printf("No Pinata keys configured, tokens are created without off-chain metadata")
	}

	var reg registry.Service
	var localRegistry *registry.Memory
	if c.RegistryURL != "" {
		client, err := registry.NewClient(c.RegistryURL)
		if err != nil {
			return fmt.Errorf("failed to create registry client: %w", err)
		}
		a.closers = append(a.closers, client)
		reg = client
	} else {
		localRegistry = registry.NewMemory()
		reg = localRegistry
	}

	minter, err := solana.NewMinter(ctx, MinterConfigFromConfig(c))
	if err != nil {
		return fmt.Errorf("failed to create solana minter: %w", err)
	}
	a.minter = minter

	srv, err := launcher.New(settings, minter, storage, uploader, reg)
	if err != nil {
		return fmt.Errorf("could not initialize server: %w", err)
	}
	a.launcher = srv

	if c.ApiAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	api2.BindRoutes(mux, launcher.GetRoutes(srv))
	if localRegistry != nil {
		api2.BindRoutes(mux, registry.GetRoutes(localRegistry))
	}

	log.Printf("Listening on %v...", c.ApiAddr)
	a.server = &http.Server{Addr: c.ApiAddr, Handler: mux}

	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			log.Printf("server.ListenAndServe failed: %v.", err)
		}
	}()

	return nil
}

func (a *App) Close() {
	if a.server != nil {
		if err := a.server.Close(); err != nil {
			log.Printf("server.Close failed: %v.", err)
		}
	}
	if a.launcher != nil {
		if err := a.launcher.Close(); err != nil {
			log.Printf("launcher.Close failed: %v", err)
		}
	}
	if a.minter != nil {
		a.minter.Close()
	}
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			log.Printf("Close failed: %v", err)
		}
	}
}
