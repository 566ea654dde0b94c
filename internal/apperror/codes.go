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

// Node-specific error codes
const (
	// Chain connectivity errors
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainSubscribeFailed  Code = "CHAIN_SUBSCRIBE_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeChainPoolExhausted    Code = "CHAIN_POOL_EXHAUSTED"
	CodeChainNotConfigured    Code = "CHAIN_NOT_CONFIGURED"
	CodeSigningIdentityFailed Code = "SIGNING_IDENTITY_FAILED"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
	CodeTokenLookupFailed     Code = "TOKEN_LOOKUP_FAILED"
	CodeVerificationFailed    Code = "UPDATE_VERIFICATION_FAILED"

	// Resolution errors
	CodeDescriptorNotFound  Code = "DESCRIPTOR_NOT_FOUND"
	CodeStoreFailed         Code = "STORE_OPERATION_FAILED"
	CodePeerQueryFailed     Code = "PEER_QUERY_FAILED"
	CodePeerResponseInvalid Code = "PEER_RESPONSE_INVALID"

	// File object storage errors
	CodeStorageUnsupported Code = "STORAGE_TYPE_UNSUPPORTED"
	CodeStorageSpecInvalid Code = "STORAGE_SPEC_INVALID"
	CodeStorageFetchFailed Code = "STORAGE_FETCH_FAILED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
