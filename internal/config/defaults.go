package config

// Default values applied before the config file and environment are read.
const (
	DefaultStatisticCondition = "segregating"
	DefaultStatisticMethod    = "length"

	DefaultVerifyTolerance = 1e-9

	DefaultOutputFormat    = FormatTable
	DefaultOutputPrecision = 6

	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false

	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsFile  = ""
)
