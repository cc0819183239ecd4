package main

import (
	"time"

	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// entryPointConfig is one [[entry_points]] table in the optional config
// file: the per-entry-point tunables a deployment wants to override.
type entryPointConfig struct {
	Address                             string `mapstructure:"address"`
	ChainID                             uint64 `mapstructure:"chain_id"`
	MaxSizeOfPoolBytes                  uint64 `mapstructure:"max_size_of_pool_bytes"`
	MinReplacementFeeIncreasePercentage uint64 `mapstructure:"min_replacement_fee_increase_percentage"`
	ThrottledEntityMempoolCount         uint64 `mapstructure:"throttled_entity_mempool_count"`
	ThrottledEntityLiveBlocks           uint64 `mapstructure:"throttled_entity_live_blocks"`
	PaymasterTrackingEnabled            bool   `mapstructure:"paymaster_tracking_enabled"`
}

// fileConfig is the thin shape read from an optional TOML/YAML config file,
// layered beneath CLI flags (flags override file override defaults) per
// §10 -- this is deliberately not a general config framework.
type fileConfig struct {
	EntryPoints []entryPointConfig `mapstructure:"entry_points"`
}

var (
	maxPoolSizeBytesFlag = &cli.Uint64Flag{
		Name:     "pool.max-size-bytes",
		Usage:    "Default byte size budget for a single entry point's operation pool",
		Value:    50 * 1024 * 1024,
		Category: poolFlagCategory,
	}
	minReplacementFeeIncreaseFlag = &cli.Uint64Flag{
		Name:     "pool.min-replacement-fee-increase-pct",
		Usage:    "Minimum percentage a replacement operation's fees must exceed the original by",
		Value:    10,
		Category: poolFlagCategory,
	}
	throttledEntityCountFlag = &cli.Uint64Flag{
		Name:     "pool.throttled-entity-mempool-count",
		Usage:    "Max operations kept in the pool for a throttled entity",
		Value:    4,
		Category: poolFlagCategory,
	}
	throttledEntityLiveBlocksFlag = &cli.Uint64Flag{
		Name:     "pool.throttled-entity-live-blocks",
		Usage:    "Blocks after which a throttled entity's operations are considered stale",
		Value:    10,
		Category: poolFlagCategory,
	}
	paymasterTrackingFlag = &cli.BoolFlag{
		Name:     "pool.paymaster-tracking",
		Usage:    "Enable paymaster deposit-balance accounting",
		Value:    true,
		Category: poolFlagCategory,
	}
	entryPointsFlag = &cli.StringSliceFlag{
		Name:     "pool.entry-point",
		Usage:    "Entry point address to run a pool for (repeatable)",
		Category: poolFlagCategory,
	}

	pollIntervalFlag = &cli.DurationFlag{
		Name:     "tracker.poll-interval",
		Usage:    "How often the transaction tracker polls chain state",
		Value:    time.Second,
		Category: trackerFlagCategory,
	}
	maxBlocksToWaitFlag = &cli.Uint64Flag{
		Name:     "tracker.max-blocks-to-wait-for-mine",
		Usage:    "Blocks to wait for a submitted transaction to mine before reporting it stuck",
		Value:    3,
		Category: trackerFlagCategory,
	}
	replacementFeePercentFlag = &cli.Uint64Flag{
		Name:     "tracker.replacement-fee-percent-increase",
		Usage:    "Percentage the tracker bumps fees by on self-initiated replacement",
		Value:    10,
		Category: trackerFlagCategory,
	}
	treatDroppedAsPendingFlag = &cli.BoolFlag{
		Name:     "tracker.treat-dropped-as-pending",
		Usage:    "Treat a sender-reported dropped transaction as still pending rather than surfacing it immediately",
		Value:    true,
		Category: trackerFlagCategory,
	}

	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "Path to an optional TOML or YAML config file layering entry-point overrides beneath the flags above",
		Category: poolFlagCategory,
	}
)

// poolFlags returns the pool and entry-point selection flags.
func poolFlags() []cli.Flag {
	return []cli.Flag{
		configFileFlag,
		entryPointsFlag,
		maxPoolSizeBytesFlag,
		minReplacementFeeIncreaseFlag,
		throttledEntityCountFlag,
		throttledEntityLiveBlocksFlag,
		paymasterTrackingFlag,
	}
}

// trackerFlags returns the transaction tracker flags.
func trackerFlags() []cli.Flag {
	return []cli.Flag{
		pollIntervalFlag,
		maxBlocksToWaitFlag,
		replacementFeePercentFlag,
		treatDroppedAsPendingFlag,
	}
}

// loadFileConfig reads the optional config file named by --config, if any.
// An unset flag is not an error: the process runs on flag defaults alone.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildPoolConfigs merges the file config's per-entry-point overrides over
// the CLI flag defaults, producing one uopool.Config per configured entry
// point. A flag set explicitly on the command line wins over the file.
// CLI-supplied --pool.entry-point addresses with no matching file entry get
// pure flag values.
func buildPoolConfigs(cctx *cli.Context, file fileConfig) []uopool.Config {
	defaults := uopool.Config{
		MaxSizeOfPoolBytes:                  cctx.Uint64(maxPoolSizeBytesFlag.Name),
		MinReplacementFeeIncreasePercentage: cctx.Uint64(minReplacementFeeIncreaseFlag.Name),
		ThrottledEntityMempoolCount:         cctx.Uint64(throttledEntityCountFlag.Name),
		ThrottledEntityLiveBlocks:           cctx.Uint64(throttledEntityLiveBlocksFlag.Name),
		PaymasterTrackingEnabled:            cctx.Bool(paymasterTrackingFlag.Name),
	}

	byAddress := make(map[common.Address]uopool.Config)
	for _, addr := range cctx.StringSlice(entryPointsFlag.Name) {
		cfg := defaults
		cfg.EntryPoint = common.HexToAddress(addr)
		byAddress[cfg.EntryPoint] = cfg
	}
	for _, ep := range file.EntryPoints {
		cfg := defaults
		cfg.EntryPoint = common.HexToAddress(ep.Address)
		cfg.ChainID = ep.ChainID
		if ep.MaxSizeOfPoolBytes != 0 && !cctx.IsSet(maxPoolSizeBytesFlag.Name) {
			cfg.MaxSizeOfPoolBytes = ep.MaxSizeOfPoolBytes
		}
		if ep.MinReplacementFeeIncreasePercentage != 0 && !cctx.IsSet(minReplacementFeeIncreaseFlag.Name) {
			cfg.MinReplacementFeeIncreasePercentage = ep.MinReplacementFeeIncreasePercentage
		}
		if ep.ThrottledEntityMempoolCount != 0 && !cctx.IsSet(throttledEntityCountFlag.Name) {
			cfg.ThrottledEntityMempoolCount = ep.ThrottledEntityMempoolCount
		}
		if ep.ThrottledEntityLiveBlocks != 0 && !cctx.IsSet(throttledEntityLiveBlocksFlag.Name) {
			cfg.ThrottledEntityLiveBlocks = ep.ThrottledEntityLiveBlocks
		}
		if !cctx.IsSet(paymasterTrackingFlag.Name) {
			cfg.PaymasterTrackingEnabled = ep.PaymasterTrackingEnabled
		}
		byAddress[cfg.EntryPoint] = cfg
	}

	configs := make([]uopool.Config, 0, len(byAddress))
	for _, cfg := range byAddress {
		configs = append(configs, cfg)
	}
	return configs
}

// bindPFlags lets viper read the same flag set urfave/cli parsed, so an
// env-var or file value can be inspected through a single layering API
// where that's convenient, per the "flags override file override defaults"
// pattern named in §10. The bundlercore entrypoint does not call it.
func bindPFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	return v.BindPFlags(flags)
}
