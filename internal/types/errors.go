package types

import (
	"errors"
	"time"
)

// ErrorKind 是流水线错误的分类标签。
type ErrorKind string

const (
	ErrKindWorkerTimeout       ErrorKind = "worker-timeout"
	ErrKindWorkerData          ErrorKind = "worker-data"
	ErrKindClassificationParse ErrorKind = "classification-parse"
	ErrKindSession             ErrorKind = "session"
	ErrKindIntegrationEmpty    ErrorKind = "integration-empty"
	ErrKindUpstreamOrdering    ErrorKind = "upstream-ordering"
	ErrKindInternal            ErrorKind = "internal"
)

// ErrNoEvidence 表示过滤后没有任何可用结果，Integrator 据此拒绝合成答案。
var ErrNoEvidence = errors.New("no usable worker output")

// WorkerError 封装单个 Worker 的失败信息，挂到 Context.errors 上。
type WorkerError struct {
	Worker    string
	Kind      ErrorKind
	Err       error
	Timestamp time.Time
}

func (e *WorkerError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Worker + ": " + string(e.Kind)
	}
	return e.Worker + ": " + e.Err.Error()
}

func (e *WorkerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
