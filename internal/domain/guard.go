package domain

// GuardResult is the outcome of a protective check (rate limiter, circuit
// breaker) in front of an operation.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"`
}
