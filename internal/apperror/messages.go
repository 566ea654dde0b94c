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

	// Chain connectivity errors
	CodeChainConnectionFailed: "Failed to connect to chain RPC endpoint",
	CodeChainSubscribeFailed:  "Failed to subscribe to chain events",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeChainPoolExhausted:    "Every endpoint in the chain RPC pool is unreachable",
	CodeChainNotConfigured:    "Chain is not configured on this node",
	CodeSigningIdentityFailed: "Failed to build chain signing identity",
	CodeContractCallFailed:    "Smart contract call failed",
	CodeTokenLookupFailed:     "Token metadata lookup failed",
	CodeVerificationFailed:    "On-chain update verification failed",

	// Resolution errors
	CodeDescriptorNotFound:  "Descriptor not found",
	CodeStoreFailed:         "Descriptor store operation failed",
	CodePeerQueryFailed:     "Peer query failed",
	CodePeerResponseInvalid: "Peer returned an invalid resolution record",

	// File object storage errors
	CodeStorageUnsupported: "Unsupported file storage type",
	CodeStorageSpecInvalid: "Invalid file storage specification",
	CodeStorageFetchFailed: "Failed to fetch file object metadata",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
