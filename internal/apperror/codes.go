package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Domain error codes
const (
	// Blockchain errors
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeTxSubmissionFailed       Code = "TX_SUBMISSION_FAILED"
	CodeTxConfirmationTimeout    Code = "TX_CONFIRMATION_TIMEOUT"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Venue errors
	CodeVenueNotFound        Code = "VENUE_NOT_FOUND"
	CodeVenueInactive        Code = "VENUE_INACTIVE"
	CodeVenueQuoteFailed     Code = "VENUE_QUOTE_FAILED"
	CodeVenueSwapFailed      Code = "VENUE_SWAP_FAILED"
	CodePoolNotFound         Code = "POOL_NOT_FOUND"
	CodeContractCallFailed   Code = "CONTRACT_CALL_FAILED"
	CodeLiquidityFetchFailed Code = "LIQUIDITY_FETCH_FAILED"

	// Price feed errors
	CodePriceFetchFailed  Code = "PRICE_FETCH_FAILED"
	CodePriceUnavailable  Code = "PRICE_UNAVAILABLE"
	CodeStaleQuote        Code = "STALE_QUOTE"
	CodeFeedDecodeError   Code = "FEED_DECODE_ERROR"
	CodeSubscribeFailed   Code = "SUBSCRIBE_FAILED"
	CodeFeedCycleAborted  Code = "FEED_CYCLE_ABORTED"
	CodeVolatilityUnknown Code = "VOLATILITY_UNKNOWN"

	// Detection errors
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"
	CodePathTooLong           Code = "PATH_TOO_LONG"

	// Execution errors
	CodeEmergencyStopActive  Code = "EMERGENCY_STOP_ACTIVE"
	CodeCircuitBreakerActive Code = "CIRCUIT_BREAKER_ACTIVE"
	CodeSimulationRejected   Code = "SIMULATION_REJECTED"
	CodeProfitDeviation      Code = "PROFIT_DEVIATION"
	CodeSlippageOutOfRange   Code = "SLIPPAGE_OUT_OF_RANGE"
	CodeFlashloanQuoteFailed Code = "FLASHLOAN_QUOTE_FAILED"
	CodeSwapRejected         Code = "SWAP_REJECTED"

	// Advisor errors
	CodeAdvisorUnavailable Code = "ADVISOR_UNAVAILABLE"
	CodeAdvisorDeclined    Code = "ADVISOR_DECLINED"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
