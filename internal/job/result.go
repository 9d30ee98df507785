package job

// Result is what a job query yields: either a PlainResult or a TieredResult.
// Consumers switch on the concrete type.
type Result interface {
	Listing() []Job
	isResult()
}

// PlainResult is an ordered list returned at full fidelity.
type PlainResult struct {
	Jobs []Job
}

// TieredResult carries results that were downgraded for the viewer's tier,
// typically a match sort served in date order.
type TieredResult struct {
	Warning string
	Jobs    []Job
}

func (r PlainResult) Listing() []Job  { return r.Jobs }
func (r TieredResult) Listing() []Job { return r.Jobs }

func (PlainResult) isResult()  {}
func (TieredResult) isResult() {}
