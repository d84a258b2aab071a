package internal

import "expvar"

var (
	apiCallsTotal  = expvar.NewMap("prsmoke_api_calls_total")
	deliveryErrors = expvar.NewMap("prsmoke_delivery_errors_total")
)

func IncAPICall(operation string) {
	apiCallsTotal.Add(operation, 1)
}

func IncDeliveryError(driver string) {
	deliveryErrors.Add(driver, 1)
}
