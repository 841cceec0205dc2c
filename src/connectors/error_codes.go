package connectors

import "fmt"

// phemexErrorCodes maps the Phemex bizError codes a position read can hit.
var phemexErrorCodes = map[int]string{
	10001: "OM_DUPLICATE_ORDERID",
	10002: "OM_ORDER_NOT_FOUND",
	10500: "INVALID_SIGNATURE",
	11001: "TE_SUCCESS",
	11002: "TE_UNKNOWN_ERROR",
	11003: "TE_INVALID_ARGUMENT",
	11005: "TE_MAINTENANCE_MODE",
	11037: "TE_USER_NOT_EXIST",
	11040: "TE_MARGIN_ACCOUNT_NOT_EXIST",
	11041: "TE_MARGIN_ACCOUNT_FROZEN",
	11062: "TE_POSITION_NOT_EXIST",
	11071: "TE_RESTRICTED_REGION",
	11104: "TE_FUTURES_INVALID_POSITION",
	11120: "TE_CONTRACT_NOT_FOUND",
	39999: "RATE_LIMITED",
}

// phemexErrorName returns the symbolic name for code, or UNKNOWN_PHEMEX_ERROR_<code>.
func phemexErrorName(code int) string {
	if name, ok := phemexErrorCodes[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_PHEMEX_ERROR_%d", code)
}

// phemexAPIError renders a non-zero response code for LastError.
func phemexAPIError(code int, msg string) error {
	if msg == "" {
		return fmt.Errorf("API error %d (%s)", code, phemexErrorName(code))
	}
	return fmt.Errorf("API error %d (%s): %s", code, phemexErrorName(code), msg)
}
