package metrics

// Pre-declared metrics. All of them live in DefaultRegistry.
var (
	// ---- Layer ----

	// HandlerBundlesBuilt counts handler bundle constructions. One per
	// layer value that was ever asked for its handlers.
	HandlerBundlesBuilt = DefaultRegistry.Counter("layer.handler_bundles_built")
	// DirectCalls counts provider calls answered in-process.
	DirectCalls = DefaultRegistry.Counter("layer.direct_calls")
	// DirectCallErrors counts in-process calls that returned an error.
	DirectCallErrors = DefaultRegistry.Counter("layer.direct_call_errors")
	// ForwardedCalls counts calls passed through to the wrapped provider.
	ForwardedCalls = DefaultRegistry.Counter("layer.forwarded_calls")
	// DirectCallLatency records in-process call latency in milliseconds.
	DirectCallLatency = DefaultRegistry.Histogram("layer.direct_call_ms")

	// ---- Handlers ----

	EVMExecutions  = DefaultRegistry.Counter("rpc.evm_executions")
	EVMGasUsed     = DefaultRegistry.Counter("rpc.evm_gas_used")
	EVMTimeouts    = DefaultRegistry.Counter("rpc.evm_timeouts")
	LogQueries     = DefaultRegistry.Counter("rpc.log_queries")
	FiltersActive  = DefaultRegistry.Gauge("rpc.filters_active")
	FiltersEvicted = DefaultRegistry.Counter("rpc.filters_evicted")
	Subscriptions  = DefaultRegistry.Gauge("rpc.subscriptions")

	// ---- Tasks ----

	BlockingTasksInFlight = DefaultRegistry.Gauge("tasks.blocking_in_flight")
	TasksSpawned          = DefaultRegistry.Counter("tasks.spawned")
	TaskPanics            = DefaultRegistry.Counter("tasks.panics")

	// ---- Events ----

	CanonNotifications = DefaultRegistry.Counter("chain.canon_notifications")
)
