package mpesa

// Outcome is how a completed HTTP exchange is reported to the caller.
type Outcome int

const (
	// OutcomeBusiness: the body is the gateway's business answer (success or
	// rejection) and is returned as a Result.
	OutcomeBusiness Outcome = iota
	// OutcomeExchangeFailure: the exchange is raised as an *ExchangeError.
	OutcomeExchangeFailure
)

func (o Outcome) String() string {
	if o == OutcomeBusiness {
		return "business"
	}
	return "exchange_failure"
}

// Classify maps an HTTP status to an Outcome. Every status from 200 up to 499 is
// business-interpretable; the gateway reports rejections such as INS-2006
// (insufficient balance) with 4xx statuses and a normal response body.
func Classify(status int) Outcome {
	if status >= 200 && status < 500 {
		return OutcomeBusiness
	}
	return OutcomeExchangeFailure
}
