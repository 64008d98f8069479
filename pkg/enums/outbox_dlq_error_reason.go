package enums

// OutboxDLQErrorReason says why an outbox row stopped being retried.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks rows that failed transiently until the
	// attempt ceiling; they can be requeued as is.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable and OutboxDLQReasonUnroutable need a code or
	// topic configuration fix before a requeue can succeed.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnroutable   OutboxDLQErrorReason = "unroutable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable:
		return true
	default:
		return false
	}
}

// Transient reports whether the failure may clear up without a deploy.
func (r OutboxDLQErrorReason) Transient() bool {
	return r == OutboxDLQReasonMaxAttempts
}
