package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Blockchain errors
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeTxSubmissionFailed:       "Transaction submission failed",
	CodeTxConfirmationTimeout:    "Transaction confirmation timed out",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Venue errors
	CodeVenueNotFound:        "Venue not registered",
	CodeVenueInactive:        "Venue is not active",
	CodeVenueQuoteFailed:     "Failed to get venue quote",
	CodeVenueSwapFailed:      "Venue swap execution failed",
	CodePoolNotFound:         "Liquidity pool not found",
	CodeContractCallFailed:   "Smart contract call failed",
	CodeLiquidityFetchFailed: "Failed to fetch pool liquidity",

	// Price feed errors
	CodePriceFetchFailed:  "Failed to fetch token price",
	CodePriceUnavailable:  "No price available for token",
	CodeStaleQuote:        "Quote is stale",
	CodeFeedDecodeError:   "Failed to decode feed message",
	CodeSubscribeFailed:   "Failed to subscribe to price stream",
	CodeFeedCycleAborted:  "Polling cycle aborted by rate limiter",
	CodeVolatilityUnknown: "Not enough history to compute volatility",

	// Detection errors
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:      "Invalid trade size",
	CodePathTooLong:           "Arbitrage path exceeds maximum length",

	// Execution errors
	CodeEmergencyStopActive:  "Emergency stop is active",
	CodeCircuitBreakerActive: "Execution circuit breaker is active",
	CodeSimulationRejected:   "Transaction simulation rejected trade",
	CodeProfitDeviation:      "Simulated profit deviates from expected",
	CodeSlippageOutOfRange:   "Slippage tolerance out of range",
	CodeFlashloanQuoteFailed: "Failed to quote flashloan fee",
	CodeSwapRejected:         "Swap rejected by venue",

	// Advisor errors
	CodeAdvisorUnavailable: "Strategy advisor unavailable",
	CodeAdvisorDeclined:    "Strategy advisor declined opportunity",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
