package resource

// Status identifies the active variant of a Resource.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Resource is the result envelope of an asynchronous operation.
// Exactly one of Loading, Success or Error is active. The zero value is Loading.
type Resource[T any] struct {
	status Status
	value  T
	err    *Error
	stale  bool
}

// Loading returns an envelope for an operation that has not resolved yet.
func Loading[T any]() Resource[T] {
	return Resource[T]{status: StatusLoading}
}

// Success wraps a resolved value.
func Success[T any](v T) Resource[T] {
	return Resource[T]{status: StatusSuccess, value: v}
}

// Stale wraps a value served from an expired-but-not-evicted cache entry.
func Stale[T any](v T) Resource[T] {
	return Resource[T]{status: StatusSuccess, value: v, stale: true}
}

// Failure wraps a classified error. A nil error is classified as Unknown.
func Failure[T any](err *Error) Resource[T] {
	if err == nil {
		err = &Error{Kind: KindUnknown}
	}
	return Resource[T]{status: StatusFailed, err: err}
}

// FromError classifies err and wraps it.
func FromError[T any](err error) Resource[T] {
	return Failure[T](Classify(err))
}

func (r Resource[T]) Status() Status   { return r.status }
func (r Resource[T]) IsLoading() bool  { return r.status == StatusLoading }
func (r Resource[T]) IsSuccess() bool  { return r.status == StatusSuccess }
func (r Resource[T]) IsError() bool    { return r.status == StatusFailed }
func (r Resource[T]) IsStale() bool    { return r.stale }
func (r Resource[T]) Err() *Error      { return r.err }

// Value returns the wrapped value and whether the envelope is a Success.
func (r Resource[T]) Value() (T, bool) {
	if r.status != StatusSuccess {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Map converts a Success value, passing Loading and Error through.
func Map[T, U any](r Resource[T], fn func(T) U) Resource[U] {
	switch r.status {
	case StatusSuccess:
		return Resource[U]{status: StatusSuccess, value: fn(r.value), stale: r.stale}
	case StatusFailed:
		return Resource[U]{status: StatusFailed, err: r.err}
	default:
		return Loading[U]()
	}
}
