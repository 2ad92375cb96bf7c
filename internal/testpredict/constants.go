package testpredict

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultRecheck       = 20
	PercentageMultiplier = 100
)

// outcomeSuccess is the status field of a successful prediction.
const outcomeSuccess = "success"
