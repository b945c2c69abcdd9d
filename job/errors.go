package job

import "errors"

// Submission-time errors, returned synchronously before a job is created.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrPayloadTooLarge   = errors.New("uploaded file exceeds the size limit")
)

// Failure kinds recorded in Job.ErrorKind when a pipeline run fails.
const (
	KindConversionError       = "conversion_error"
	KindTranscriptionError    = "transcription_error"
	KindEmptyTranscript       = "empty_transcript"
	KindSummarizationError    = "summarization_error"
	KindExportError           = "export_error"
	KindStageTimeout          = "stage_timeout"
	KindCanceled              = "canceled"
	KindInsufficientResources = "insufficient_resources"
)
