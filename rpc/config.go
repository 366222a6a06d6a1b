package rpc

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Config tunes the handler bundle.
type Config struct {
	// GasCap bounds the gas of a single simulated call. Zero means no cap.
	GasCap uint64
	// EVMTimeout aborts a simulated call that runs longer. Zero disables it.
	EVMTimeout time.Duration
	// MaxBlocksPerFilter bounds the range of a log query. Zero means no limit.
	MaxBlocksPerFilter uint64
	// MaxLogsPerResponse bounds the logs returned by one query. Zero means
	// no limit.
	MaxLogsPerResponse int
	// FilterTimeout evicts installed filters that were not polled in time.
	FilterTimeout time.Duration
	// MaxFilters bounds the number of installed filters.
	MaxFilters int
	// MaxBlockingTasks sizes the pool used for EVM execution.
	MaxBlockingTasks int
	// MaxCallManyTxs bounds the calls in one bundle. Zero means no limit.
	MaxCallManyTxs int
	// SubscriptionBuffer sizes the channels between event sources and
	// subscription forwarders.
	SubscriptionBuffer int
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		GasCap:             50_000_000,
		EVMTimeout:         5 * time.Second,
		MaxBlocksPerFilter: 100_000,
		MaxLogsPerResponse: 20_000,
		FilterTimeout:      5 * time.Minute,
		MaxFilters:         1_000,
		MaxBlockingTasks:   max(runtime.NumCPU()/2, 1),
		MaxCallManyTxs:     500,
		SubscriptionBuffer: 128,
	}
}

// Validate checks the configuration for values the handlers cannot run with.
func (c *Config) Validate() error {
	if c.EVMTimeout < 0 {
		return fmt.Errorf("config: negative evm timeout: %s", c.EVMTimeout)
	}
	if c.MaxLogsPerResponse < 0 || c.MaxCallManyTxs < 0 {
		return errors.New("config: limits must not be negative")
	}
	if c.FilterTimeout <= 0 {
		return fmt.Errorf("config: invalid filter timeout: %s", c.FilterTimeout)
	}
	if c.MaxFilters < 1 {
		return fmt.Errorf("config: invalid max filters: %d", c.MaxFilters)
	}
	if c.MaxBlockingTasks < 1 {
		return fmt.Errorf("config: invalid blocking pool size: %d", c.MaxBlockingTasks)
	}
	if c.SubscriptionBuffer < 0 {
		return fmt.Errorf("config: invalid subscription buffer: %d", c.SubscriptionBuffer)
	}
	return nil
}

// normalized returns c with every invalid field replaced by its default.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.EVMTimeout < 0 {
		c.EVMTimeout = def.EVMTimeout
	}
	if c.MaxLogsPerResponse < 0 {
		c.MaxLogsPerResponse = def.MaxLogsPerResponse
	}
	if c.MaxCallManyTxs < 0 {
		c.MaxCallManyTxs = def.MaxCallManyTxs
	}
	if c.FilterTimeout <= 0 {
		c.FilterTimeout = def.FilterTimeout
	}
	if c.MaxFilters < 1 {
		c.MaxFilters = def.MaxFilters
	}
	if c.MaxBlockingTasks < 1 {
		c.MaxBlockingTasks = def.MaxBlockingTasks
	}
	if c.SubscriptionBuffer < 0 {
		c.SubscriptionBuffer = def.SubscriptionBuffer
	}
	return c
}
