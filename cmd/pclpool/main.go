package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/cosmoswap-labs/pclpool/internal/config"
	"github.com/cosmoswap-labs/pclpool/internal/ledger"
	"github.com/cosmoswap-labs/pclpool/internal/logger"
	"github.com/cosmoswap-labs/pclpool/internal/pool"
	"github.com/cosmoswap-labs/pclpool/internal/service"
	"github.com/cosmoswap-labs/pclpool/internal/state"
	"github.com/cosmoswap-labs/pclpool/internal/twap"
	"github.com/cosmoswap-labs/pclpool/internal/types"
	"github.com/cosmoswap-labs/pclpool/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	RECONCILE_INTERVAL = 30 * time.Second
)

// main is the entry point for the pool pricing daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Pool pricing daemon starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Pool Record ---
	priceScale, err := sdkmath.LegacyNewDecFromStr(config.InitialPriceScale)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid POOL_INITIAL_PRICE_SCALE")
	}
	amp, err := sdkmath.LegacyNewDecFromStr(config.InitialAmp)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid POOL_AMP")
	}
	gamma, err := sdkmath.LegacyNewDecFromStr(config.InitialGamma)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid POOL_GAMMA")
	}
	ampGamma, err := types.NewAmpGamma(amp, gamma)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid amp/gamma configuration")
	}

	record, err := state.LoadPoolRecord()
	if err != nil {
		log.Warn().Err(err).Msg("No pool record found, creating a fresh pool")
		env := types.Env{BlockTime: time.Now().Unix()}
		poolState, err := types.NewPoolState(ampGamma, priceScale, env)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build initial pool state")
		}
		record = &state.PoolRecord{
			State:      poolState,
			Balances:   [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()},
			TotalShare: sdkmath.ZeroInt(),
		}
		if err := state.SavePoolRecord(*record); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial pool record")
		}
	}

	buffer, err := state.LoadObservations(twap.DefaultCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load observation buffer")
	}

	startHeight, err := state.GetCurrentHeight()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load current height")
	}

	// --- 3. Engine ---
	denoms := [2]string{config.BaseDenom, config.QuoteDenom}
	precisions := types.Precisions{config.BasePrecision, config.QuotePrecision}
	engine, err := pool.New(denoms, precisions, config.DefaultPoolParams, buffer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pool engine")
	}

	shareDenom := os.Getenv("POOL_SHARE_DENOM")
	if shareDenom == "" {
		shareDenom = "factory/pclpool/" + denoms[0] + "." + denoms[1] + ".lp"
	}

	// --- 4. Ledger Initialization (with Safety Switch) ---
	var ldg ledger.Ledger
	poolMode := os.Getenv("POOL_MODE")

	if poolMode == "live" {
		log.Warn().Msg("Initializing in LIVE mode. Balances will be reconciled against the chain.")

		grpcEndpoint := config.NodeGRPC
		var creds grpc.DialOption
		if strings.Contains(grpcEndpoint, ":443") {
			creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))
		} else {
			creds = grpc.WithTransportCredentials(insecure.NewCredentials())
		}
		grpcClient, err := grpc.NewClient(grpcEndpoint, creds)
		if err != nil {
			log.Fatal().Err(err).Msg("gRPC connection error")
		}
		log.Info().Str("endpoint", grpcEndpoint).Msg("gRPC connected")

		poolAddress := os.Getenv("POOL_ADDRESS")
		liveLedger, err := ledger.NewGRPCLedger(poolAddress, grpcClient)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize gRPC ledger")
		}
		ldg = liveLedger
	} else {
		log.Info().Msg("POOL_MODE is not 'live'. Using in-memory ledger for local simulation.")
		mem := ledger.NewMemoryLedger()
		mem.SetBalance(denoms[0], record.Balances[0])
		mem.SetBalance(denoms[1], record.Balances[1])
		mem.SetSupply(shareDenom, record.TotalShare)
		ldg = mem
	}
	defer ldg.Close()

	// --- 5. Service ---
	makerFeeRate, err := sdkmath.LegacyNewDecFromStr(config.MakerFeeRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid MAKER_FEE_RATE")
	}
	svc, err := service.NewPoolService(service.Config{
		Engine: engine,
		Ledger: ldg,
		Record: record,
		FeeInfo: types.FeeInfo{
			MakerFeeRate: makerFeeRate,
			FeeRecipient: config.FeeRecipient,
		},
		ShareDenom:    shareDenom,
		StartHeight:   startHeight,
		TrackBalances: os.Getenv("TRACK_BALANCES") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool service")
	}
	log.Info().Msg("Pool service created successfully")

	// --- 6. Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, svc)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting pool query API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 7. Run ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	if poolMode == "live" {
		log.Info().Str("interval", RECONCILE_INTERVAL.String()).Msg("Starting reconcile loop")
		svc.RunLoop(ctx, RECONCILE_INTERVAL)
	} else {
		<-ctx.Done()
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
