package jsvm

// ErrorKind 定义后端适配层统一的错误类别。
type ErrorKind string

const (
	ErrInit        ErrorKind = "init"
	ErrClosed      ErrorKind = "closed"
	ErrUnsupported ErrorKind = "unsupported"
	ErrEval        ErrorKind = "eval"
	ErrInternal    ErrorKind = "internal"
)

// VMError 是后端适配层返回的统一错误结构。
type VMError struct {
	Kind    ErrorKind
	Message string
	Stack   string
	Cause   error
}

func (e *VMError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *VMError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
