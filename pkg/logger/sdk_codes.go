package logger

import (
	"fmt"
	"time"
)

// SDK codes are stable numbered messages shared across the SDK family so that
// operators can grep one code across services written in different languages.
//
//	1xxx init, 3xxx close, 4xxx polling, 6xxx evaluation, 7xxx metrics
const (
	codeInitOK         = 1000
	codeMissingSDKKey  = 1002
	codeStartClose     = 3000
	codeCloseSuccess   = 3001
	codePollStarted    = 4000
	codePollStopped    = 4001
	codeEvalSuccess    = 6000
	codeEvalDefault    = 6001
	codeMetricsStarted = 7000
	codeMetricsStopped = 7001
	codeMetricsFailed  = 7002
	codeMetricsPosted  = 7003
)

var sdkCodeMessages = map[int]string{
	codeInitOK:         "The SDK has successfully initialized",
	codeMissingSDKKey:  "The SDK has failed to initialize due to a missing or empty API key - defaults will be served",
	codeStartClose:     "Closing SDK",
	codeCloseSuccess:   "SDK Closed successfully",
	codePollStarted:    "Polling started, interval:",
	codePollStopped:    "Polling stopped",
	codeEvalSuccess:    "Evaluation successful:",
	codeEvalDefault:    "Evaluation Failed, returning default variation:",
	codeMetricsStarted: "Metrics thread started with request interval:",
	codeMetricsStopped: "Metrics stopped",
	codeMetricsFailed:  "Posting metrics failed, reason:",
	codeMetricsPosted:  "Metrics posted successfully",
}

func sdkCode(code int, appendText string) string {
	msg, ok := sdkCodeMessages[code]
	if !ok {
		msg = "Unknown SDK code"
	}
	return fmt.Sprintf("SDKCODE:%d: %s %s", code, msg, appendText)
}

func InfoSDKInitOK(log *Logger) {
	log.Info(sdkCode(codeInitOK, ""))
}

func WarnMissingSDKKey(log *Logger) {
	log.Warn(sdkCode(codeMissingSDKKey, ""))
}

func InfoSDKStartClose(log *Logger) {
	log.Info(sdkCode(codeStartClose, ""))
}

func InfoSDKCloseSuccess(log *Logger) {
	log.Info(sdkCode(codeCloseSuccess, ""))
}

func InfoPollStarted(interval time.Duration, log *Logger) {
	log.Info(sdkCode(codePollStarted, interval.String()))
}

func InfoPollingStopped(log *Logger) {
	log.Info(sdkCode(codePollStopped, ""))
}

func DebugEvalSuccess(result string, flagIdentifier string, targetIdentifier string, log *Logger) {
	log.Debug(sdkCode(codeEvalSuccess,
		fmt.Sprintf("result=%s, flag identifier=%s, target=%s", result, flagIdentifier, targetIdentifier)))
}

func WarnDefaultVariationServed(flagIdentifier string, targetIdentifier string, defaultValue string, log *Logger) {
	log.Warn(sdkCode(codeEvalDefault,
		fmt.Sprintf("default variation used=%s, flag=%s, target=%s", defaultValue, flagIdentifier, targetIdentifier)))
}

func InfoMetricsThreadStarted(interval time.Duration, log *Logger) {
	log.Info(sdkCode(codeMetricsStarted, interval.String()))
}

func InfoMetricsThreadExited(log *Logger) {
	log.Info(sdkCode(codeMetricsStopped, ""))
}

func WarnPostMetricsFailed(reason string, log *Logger) {
	log.Warn(sdkCode(codeMetricsFailed, reason))
}

func InfoMetricsSuccess(log *Logger) {
	log.Info(sdkCode(codeMetricsPosted, ""))
}
