package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem catalog, fixtures and boilerplate errors
// 13000-13099: Submission & run session errors
// 13100-13199: Dispatch & callback errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// Storage & messaging errors (10400-10599)
	StorageError         ErrorCode = 10400
	MessagePublishFailed ErrorCode = 10500

	// ========== Problem Catalog Errors (12000-12999) ==========

	ProblemNotFound ErrorCode = 12000

	// Fixtures (12100-12199)
	TestCaseNotFound ErrorCode = 12100
	TestCaseInvalid  ErrorCode = 12102

	// Boilerplate (12200-12299)
	BoilerplateNotFound    ErrorCode = 12200
	BoilerplateMergeFailed ErrorCode = 12201
	LanguageNotSupported   ErrorCode = 12202

	// ========== Submission Errors (13000-13099) ==========

	SubmissionNotFound       ErrorCode = 13000
	SubmissionCreateFailed   ErrorCode = 13001
	CodeTooLarge             ErrorCode = 13002
	SubmitTooFrequently      ErrorCode = 13004
	SubmissionFinalizeFailed ErrorCode = 13005

	// ========== Dispatch & Callback Errors (13100-13199) ==========

	DispatchFailed           ErrorCode = 13100
	JudgeSystemError         ErrorCode = 13101
	InvalidCallback          ErrorCode = 13102
	UnknownResultID          ErrorCode = 13103
	CallbackSignatureInvalid ErrorCode = 13104
	ClientTimeout            ErrorCode = 13105
)

// errorMessages maps error codes to default messages
var errorMessages = map[ErrorCode]string{
	// System
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database error",
	RecordNotFound:    "Record not found",
	TransactionFailed: "Transaction failed",

	// Cache
	CacheError: "Cache error",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Storage & messaging
	StorageError:         "Object storage error",
	MessagePublishFailed: "Failed to publish message",

	// Problem
	ProblemNotFound: "Problem not found",

	// Fixtures
	TestCaseNotFound: "No test cases found",
	TestCaseInvalid:  "Invalid test case format",

	// Boilerplate
	BoilerplateNotFound:    "Boilerplate not found",
	BoilerplateMergeFailed: "Editable stub not found in scaffold",
	LanguageNotSupported:   "Programming language not supported",

	// Submission
	SubmissionNotFound:       "Submission not found",
	SubmissionCreateFailed:   "Failed to create submission",
	CodeTooLarge:             "Code is too large",
	SubmitTooFrequently:      "Submitting too frequently, please wait",
	SubmissionFinalizeFailed: "Failed to finalize submission",

	// Dispatch & callback
	DispatchFailed:           "Failed to dispatch test case",
	JudgeSystemError:         "Judge system error",
	InvalidCallback:          "Invalid callback body",
	UnknownResultID:          "Unknown test case result",
	CallbackSignatureInvalid: "Invalid callback signature",
	ClientTimeout:            "Time Limit Exceeded",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == CallbackSignatureInvalid:
		return 401
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound, c == TestCaseNotFound,
		c == BoilerplateNotFound, c == SubmissionNotFound:
		return 404
	case c == Timeout, c == ClientTimeout:
		return 408
	case c == BoilerplateMergeFailed:
		return 422
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidCallback, c == UnknownResultID, c == CodeTooLarge,
		c == LanguageNotSupported, c == TestCaseInvalid:
		return 400
	default:
		return 500
	}
}
