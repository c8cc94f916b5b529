package step

// Result is the outcome of one Fire call. It is a closed sum of exactly
// three cases: Skipped, Proceed and Erred. The unexported marker method
// keeps other packages from adding cases; use Fold for exhaustive
// handling.
type Result interface {
	isResult()
}

// Skipped means the step decided not to continue. No side effect
// happened and the action (if any) must not run.
type Skipped struct{}

// Proceed means the step succeeded and produced Data for the next step.
type Proceed struct {
	Data Data
}

// Erred means the step failed with a message.
type Erred struct {
	Message string
}

func (Skipped) isResult() {}
func (Proceed) isResult() {}
func (Erred) isResult()   {}

// Fold maps r onto exactly one of the three handlers. A nil Result is
// treated as an Erred with a descriptive message, so a faulty step can
// never slip through as a success.
func Fold[T any](r Result, skipped func() T, proceed func(Data) T, erred func(string) T) T {
	switch v := r.(type) {
	case Skipped:
		return skipped()
	case *Skipped:
		return skipped()
	case Proceed:
		return proceed(v.Data)
	case *Proceed:
		return proceed(v.Data)
	case Erred:
		return erred(v.Message)
	case *Erred:
		return erred(v.Message)
	default:
		return erred("step returned no result")
	}
}
