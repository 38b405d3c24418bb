package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/application"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	esploraclock "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/clock/esplora"
	localclock "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/clock/local"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db"
	inmemoryledger "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/ledger/inmemory"
	redisledger "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/ledger/redis"
	simulatedstrategy "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/strategy/simulated"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedEventDbs = supportedType{
		"badger":   {},
		"postgres": {},
	}
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
	}
	supportedLedgers = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedClocks = supportedType{
		"esplora": {},
		"local":   {},
	}
)

// StrategyConfig describes a simulated strategy in the form
// underlying:share:yieldRatePerBlock.
type StrategyConfig struct {
	UnderlyingAsset string
	ShareAsset      string
	YieldRate       decimal.Decimal
}

func parseStrategy(value string) (StrategyConfig, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return StrategyConfig{}, fmt.Errorf(
			"invalid strategy %q, must be in the form underlying:share:yield_rate", value,
		)
	}
	rate, err := decimal.NewFromString(parts[2])
	if err != nil {
		return StrategyConfig{}, fmt.Errorf("invalid yield rate in strategy %q: %s", value, err)
	}
	return StrategyConfig{
		UnderlyingAsset: parts[0],
		ShareAsset:      parts[1],
		YieldRate:       rate,
	}, nil
}

type Config struct {
	Datadir   string
	Port      uint32
	AdminPort uint32
	LogLevel  int

	DbType      string
	EventDbType string
	DbDir       string
	DbUrl       string
	EventDbDir  string
	EventDbUrl  string

	LedgerType          string
	RedisUrl            string
	RedisTxNumOfRetries int

	ClockType          string
	EsploraURL         string
	ClockTickInterval  int64
	LocalStartHeight   int64
	LocalBlockInterval int64

	FactoryAddress       string
	MintAuthorityAddress string
	AdminAddress         string
	IncentiveToken       string
	WhitelistFactory     bool
	DefaultYieldSplit    decimal.Decimal
	DefaultRewardRate    decimal.Decimal

	TokenMinter    string
	YieldSource    string
	Strategies     []StrategyConfig
	NoLedgerFaucet bool

	repo          ports.RepoManager
	ledger        ports.TokenLedger
	clock         ports.LedgerClock
	strategies    ports.StrategyProvider
	vaultSvc      application.VaultService
	mintAuthority application.MintAuthorityService
	ledgerSvc     application.LedgerService
}

func (c *Config) String() string {
	clone := *c
	if clone.RedisUrl != "" {
		clone.RedisUrl = "••••••"
	}
	if clone.DbUrl != "" {
		clone.DbUrl = "••••••"
	}
	if clone.EventDbUrl != "" {
		clone.EventDbUrl = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = appDataDir("flowerboxd")
	DefaultPort                = 7080
	DefaultAdminPort           = 7081
	defaultDbType              = "sqlite"
	defaultEventDbType         = "badger"
	defaultLedgerType          = "inmemory"
	defaultRedisTxNumOfRetries = 10
	defaultClockType           = "local"
	defaultEsploraURL          = "https://blockstream.info/api"
	defaultClockTickInterval   = 30 // seconds
	defaultLocalBlockInterval  = 10 // seconds
	defaultLogLevel            = 4
	defaultIncentiveToken      = "PETALS"
	defaultYieldSplit          = "0.2"
	defaultRewardRate          = "0.001"
	defaultWhitelistFactory    = true

	defaultFactoryAddress       = "0x000000000000000000000000000000000000f100"
	defaultMintAuthorityAddress = "0x000000000000000000000000000000000000f200"
	defaultTokenMinter          = "0x000000000000000000000000000000000000f300"
	defaultYieldSource          = "0x000000000000000000000000000000000000f400"
	defaultStrategy             = "yCRV:yvCRV:0.0001"
)

// env returns a list of strings prefixed with `FLOWERBOXD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("FLOWERBOXD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Port = &cli.UintFlag{
		Usage: "Port (public) to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	AdminPort = &cli.UintFlag{
		Usage: "Admin port (private) to listen on, fallback to service port if 0",
		Name:  "admin-port", EnvVars: env("ADMIN_PORT"),
		Value: uint(DefaultAdminPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (postgres, sqlite, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if FLOWERBOXD_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	EventDbType = &cli.StringFlag{
		Usage: "Event database type (postgres, badger)",
		Name:  "event-db-type", EnvVars: env("EVENT_DB_TYPE"),
		Value: defaultEventDbType,
	}

	EventDbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if FLOWERBOXD_EVENT_DB_TYPE is set to postgres",
		Name:  "pg-event-db-url", EnvVars: env("PG_EVENT_DB_URL"),
	}

	LedgerType = &cli.StringFlag{
		Usage: "Token ledger type (inmemory, redis)",
		Name:  "ledger-type", EnvVars: env("LEDGER_TYPE"),
		Value: defaultLedgerType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if FLOWERBOXD_LEDGER_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for Redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	ClockType = &cli.StringFlag{
		Usage: "Ledger clock type (esplora, local)",
		Name:  "clock-type", EnvVars: env("CLOCK_TYPE"),
		Value: defaultClockType,
	}

	EsploraURL = &cli.StringFlag{
		Usage: "Esplora API URL if FLOWERBOXD_CLOCK_TYPE is set to esplora",
		Name:  "esplora-url", EnvVars: env("ESPLORA_URL"),
		Value: defaultEsploraURL,
	}

	ClockTickInterval = &cli.Int64Flag{
		Usage: "Interval in seconds between two polls of the esplora chain tip",
		Name:  "clock-tick-interval", EnvVars: env("CLOCK_TICK_INTERVAL"),
		Value: int64(defaultClockTickInterval),
	}

	LocalStartHeight = &cli.Int64Flag{
		Usage: "Starting height of the local clock",
		Name:  "local-start-height", EnvVars: env("LOCAL_START_HEIGHT"),
	}

	LocalBlockInterval = &cli.Int64Flag{
		Usage: "Seconds between two blocks of the local clock",
		Name:  "local-block-interval", EnvVars: env("LOCAL_BLOCK_INTERVAL"),
		Value: int64(defaultLocalBlockInterval),
	}

	FactoryAddress = &cli.StringFlag{
		Usage: "Ledger identity of the vault factory",
		Name:  "factory-address", EnvVars: env("FACTORY_ADDRESS"),
		Value: defaultFactoryAddress,
	}

	MintAuthorityAddress = &cli.StringFlag{
		Usage: "Ledger identity of the mint authority",
		Name:  "mint-authority-address", EnvVars: env("MINT_AUTHORITY_ADDRESS"),
		Value: defaultMintAuthorityAddress,
	}

	AdminAddress = &cli.StringFlag{
		Usage: "Ledger identity of the mint authority admin",
		Name:  "admin-address", EnvVars: env("ADMIN_ADDRESS"),
	}

	IncentiveToken = &cli.StringFlag{
		Usage: "Incentive token minted as settlement reward",
		Name:  "incentive-token", EnvVars: env("INCENTIVE_TOKEN"),
		Value: defaultIncentiveToken,
	}

	WhitelistFactory = &cli.BoolFlag{
		Usage: "Whitelist the factory on the mint authority at startup",
		Name:  "whitelist-factory", EnvVars: env("WHITELIST_FACTORY"),
		Value: defaultWhitelistFactory,
	}

	YieldSplit = &cli.StringFlag{
		Usage: "Default fraction of the surplus yield assigned to the creator",
		Name:  "yield-split", EnvVars: env("YIELD_SPLIT"),
		Value: defaultYieldSplit,
	}

	RewardRate = &cli.StringFlag{
		Usage: "Default incentive tokens minted per unit of deposit per locked block",
		Name:  "reward-rate", EnvVars: env("REWARD_RATE"),
		Value: defaultRewardRate,
	}

	TokenMinter = &cli.StringFlag{
		Usage: "Minter of the underlying assets registered at startup",
		Name:  "token-minter", EnvVars: env("TOKEN_MINTER"),
		Value: defaultTokenMinter,
	}

	YieldSource = &cli.StringFlag{
		Usage: "Ledger identity funding the yield of the simulated strategies",
		Name:  "yield-source", EnvVars: env("YIELD_SOURCE"),
		Value: defaultYieldSource,
	}

	Strategies = &cli.StringSliceFlag{
		Usage: "Simulated strategies in the form underlying:share:yield_rate_per_block",
		Name:  "strategy", EnvVars: env("STRATEGIES"),
		Value: cli.NewStringSlice(defaultStrategy),
	}

	NoLedgerFaucet = &cli.BoolFlag{
		Usage: "Disable the admin ledger faucet",
		Name:  "no-ledger-faucet", EnvVars: env("NO_LEDGER_FAUCET"),
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	AdminPort,
	LogLevel,
	DbType,
	DbUrl,
	EventDbType,
	EventDbUrl,
	LedgerType,
	RedisUrl,
	RedisTxNumOfRetries,
	ClockType,
	EsploraURL,
	ClockTickInterval,
	LocalStartHeight,
	LocalBlockInterval,
	FactoryAddress,
	MintAuthorityAddress,
	AdminAddress,
	IncentiveToken,
	WhitelistFactory,
	YieldSplit,
	RewardRate,
	TokenMinter,
	YieldSource,
	Strategies,
	NoLedgerFaucet,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")
	if err := makeDirectoryIfNotExists(dbPath); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %s", err)
	}

	var eventDbUrl string
	if c.String(EventDbType.Name) == "postgres" {
		eventDbUrl = c.String(EventDbUrl.Name)
		if eventDbUrl == "" {
			return nil, fmt.Errorf("event db type set to 'postgres' but event db url is missing")
		}
	}

	var dbUrl string
	if c.String(DbType.Name) == "postgres" {
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fmt.Errorf("db type set to 'postgres' but db url is missing")
		}
	}

	var redisUrl string
	if c.String(LedgerType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fmt.Errorf("ledger type set to 'redis' but redis url is missing")
		}
	}

	yieldSplit, err := decimal.NewFromString(c.String(YieldSplit.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid yield split: %s", err)
	}
	rewardRate, err := decimal.NewFromString(c.String(RewardRate.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid reward rate: %s", err)
	}

	strategies := make([]StrategyConfig, 0)
	for _, value := range c.StringSlice(Strategies.Name) {
		strategy, err := parseStrategy(value)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}

	// In case the admin port is unset, fallback to service port.
	adminPort := c.Uint(AdminPort.Name)
	if adminPort == 0 {
		adminPort = c.Uint(Port.Name)
	}

	return &Config{
		Datadir:              c.String(Datadir.Name),
		Port:                 uint32(c.Uint(Port.Name)),
		AdminPort:            uint32(adminPort),
		LogLevel:             c.Int(LogLevel.Name),
		DbType:               c.String(DbType.Name),
		EventDbType:          c.String(EventDbType.Name),
		DbDir:                dbPath,
		DbUrl:                dbUrl,
		EventDbDir:           dbPath,
		EventDbUrl:           eventDbUrl,
		LedgerType:           c.String(LedgerType.Name),
		RedisUrl:             redisUrl,
		RedisTxNumOfRetries:  c.Int(RedisTxNumOfRetries.Name),
		ClockType:            c.String(ClockType.Name),
		EsploraURL:           c.String(EsploraURL.Name),
		ClockTickInterval:    c.Int64(ClockTickInterval.Name),
		LocalStartHeight:     c.Int64(LocalStartHeight.Name),
		LocalBlockInterval:   c.Int64(LocalBlockInterval.Name),
		FactoryAddress:       c.String(FactoryAddress.Name),
		MintAuthorityAddress: c.String(MintAuthorityAddress.Name),
		AdminAddress:         c.String(AdminAddress.Name),
		IncentiveToken:       c.String(IncentiveToken.Name),
		WhitelistFactory:     c.Bool(WhitelistFactory.Name),
		DefaultYieldSplit:    yieldSplit,
		DefaultRewardRate:    rewardRate,
		TokenMinter:          c.String(TokenMinter.Name),
		YieldSource:          c.String(YieldSource.Name),
		Strategies:           strategies,
		NoLedgerFaucet:       c.Bool(NoLedgerFaucet.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

// appDataDir returns the default data directory of the daemon under the user
// home, ie. ~/.flowerboxd.
func appDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf(
			"event db type not supported, please select one of: %s",
			supportedEventDbs,
		)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedLedgers.supports(c.LedgerType) {
		return fmt.Errorf(
			"ledger type not supported, please select one of: %s", supportedLedgers,
		)
	}
	if !supportedClocks.supports(c.ClockType) {
		return fmt.Errorf("clock type not supported, please select one of: %s", supportedClocks)
	}
	for name, address := range map[string]string{
		"factory":        c.FactoryAddress,
		"mint authority": c.MintAuthorityAddress,
		"admin":          c.AdminAddress,
		"token minter":   c.TokenMinter,
		"yield source":   c.YieldSource,
	} {
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid %s address %q", name, address)
		}
	}
	if c.IncentiveToken == "" {
		return fmt.Errorf("missing incentive token")
	}
	if c.DefaultYieldSplit.IsNegative() || c.DefaultYieldSplit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid yield split, must be in range [0, 1]")
	}
	if c.DefaultRewardRate.IsNegative() {
		return fmt.Errorf("invalid reward rate, must not be negative")
	}
	if len(c.Strategies) <= 0 {
		return fmt.Errorf("at least one strategy must be configured")
	}
	if c.ClockType == "esplora" && c.ClockTickInterval <= 0 {
		return fmt.Errorf("invalid clock tick interval, must be at least 1 second")
	}
	if c.ClockType == "local" && c.LocalBlockInterval <= 0 {
		return fmt.Errorf("invalid local block interval, must be at least 1 second")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.ledgerService(); err != nil {
		return err
	}
	if err := c.clockService(); err != nil {
		return err
	}
	if err := c.strategyProvider(); err != nil {
		return err
	}
	if err := c.mintAuthorityService(); err != nil {
		return err
	}
	if err := c.vaultService(); err != nil {
		return err
	}
	c.ledgerSvc = application.NewLedgerService(c.ledger, c.protectedTokens()...)
	return nil
}

func (c *Config) VaultService() application.VaultService {
	return c.vaultSvc
}

func (c *Config) MintAuthorityService() application.MintAuthorityService {
	return c.mintAuthority
}

func (c *Config) LedgerService() application.LedgerService {
	return c.ledgerSvc
}

func (c *Config) LedgerClock() ports.LedgerClock {
	return c.clock
}

func (c *Config) TokenLedger() ports.TokenLedger {
	return c.ledger
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	case "postgres":
		eventStoreConfig = []interface{}{c.EventDbUrl, true}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl, true}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}
	c.repo = svc
	return nil
}

func (c *Config) ledgerService() error {
	switch c.LedgerType {
	case "inmemory":
		c.ledger = inmemoryledger.NewLedger()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid redis url: %s", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %s", err)
		}
		c.ledger = redisledger.NewLedger(rdb, c.RedisTxNumOfRetries)
	default:
		return fmt.Errorf("unknown ledger type")
	}
	return nil
}

func (c *Config) clockService() error {
	var err error
	switch c.ClockType {
	case "esplora":
		c.clock, err = esploraclock.NewClock(
			c.EsploraURL,
			esploraclock.WithTickerInterval(time.Duration(c.ClockTickInterval)*time.Second),
		)
	case "local":
		c.clock, err = localclock.NewClock(
			c.LocalStartHeight, time.Duration(c.LocalBlockInterval)*time.Second,
		)
	default:
		return fmt.Errorf("unknown clock type")
	}
	return err
}

// strategyProvider registers the underlying assets that are missing from the
// ledger, then deploys one simulated strategy per configured pair.
func (c *Config) strategyProvider() error {
	ctx := context.Background()

	strategies := make([]ports.Strategy, 0, len(c.Strategies))
	for _, cfg := range c.Strategies {
		ok, err := c.ledger.HasToken(ctx, cfg.UnderlyingAsset)
		if err != nil {
			return err
		}
		if !ok {
			if err := c.ledger.SetMinter(ctx, cfg.UnderlyingAsset, c.TokenMinter); err != nil {
				return fmt.Errorf("failed to register %s: %s", cfg.UnderlyingAsset, err)
			}
			log.Debugf("registered token %s on ledger", cfg.UnderlyingAsset)
		}

		strategy, err := simulatedstrategy.NewStrategy(
			ctx, c.ledger, c.clock, simulatedstrategy.Config{
				UnderlyingAsset: cfg.UnderlyingAsset,
				ShareAsset:      cfg.ShareAsset,
				YieldSource:     c.YieldSource,
				YieldRate:       cfg.YieldRate,
			},
		)
		if err != nil {
			return fmt.Errorf(
				"failed to create strategy %s/%s: %s", cfg.UnderlyingAsset, cfg.ShareAsset, err,
			)
		}
		strategies = append(strategies, strategy)
	}

	provider, err := simulatedstrategy.NewProvider(strategies...)
	if err != nil {
		return err
	}
	c.strategies = provider
	return nil
}

func (c *Config) mintAuthorityService() error {
	var whitelist []string
	if c.WhitelistFactory {
		whitelist = []string{c.FactoryAddress}
	}
	svc, err := application.NewMintAuthorityService(
		c.repo, c.ledger, c.MintAuthorityAddress, c.AdminAddress, c.IncentiveToken, whitelist,
	)
	if err != nil {
		return err
	}
	c.mintAuthority = svc
	return nil
}

func (c *Config) vaultService() error {
	svc, err := application.NewService(
		c.repo, c.ledger, c.strategies, c.clock, c.mintAuthority, c.FactoryAddress,
		c.DefaultYieldSplit, c.DefaultRewardRate,
	)
	if err != nil {
		return err
	}
	c.vaultSvc = svc
	return nil
}

// protectedTokens are never minted by the faucet: the incentive token and the
// strategy shares.
func (c *Config) protectedTokens() []string {
	tokens := []string{c.IncentiveToken}
	for _, strategy := range c.Strategies {
		tokens = append(tokens, strategy.ShareAsset)
	}
	return tokens
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	sort.Strings(types)
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
