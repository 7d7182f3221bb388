package bind

import "errors"

// ErrorKind 标识绑定层错误类别。
type ErrorKind string

const (
	// ErrNotAnObject 调用接收者不是对象。
	ErrNotAnObject ErrorKind = "not_an_object"
	// ErrWrongType 调用接收者不属于期望的类型。
	ErrWrongType ErrorKind = "wrong_type"
	// ErrCalledOnPrototype 方法在原型对象上被调用。
	ErrCalledOnPrototype ErrorKind = "called_on_prototype"
	// ErrSlotAlreadyOccupied 实例私有槽已被占用。
	ErrSlotAlreadyOccupied ErrorKind = "slot_already_occupied"
	// ErrSlotEmpty 实例私有槽尚未附加负载。
	ErrSlotEmpty ErrorKind = "slot_empty"
	// ErrDuplicateInstall 同一上下文中重复安装同名类型。
	ErrDuplicateInstall ErrorKind = "duplicate_installation"
	// ErrConstructionFailed 构造钩子执行失败，实例已被丢弃。
	ErrConstructionFailed ErrorKind = "construction_failed"
	// ErrNativeFailure 原生函数体返回错误或 panic。
	ErrNativeFailure ErrorKind = "native_failure"
	// ErrInvalidSpec 类型描述符不合法，安装被拒绝。
	ErrInvalidSpec ErrorKind = "invalid_spec"
)

// Error 是绑定层的统一错误表示。
// 可能进入脚本侧的错误信息使用英文，仅安装期可见的信息使用中文。
type Error struct {
	Kind    ErrorKind
	Type    string // 相关类型名，可为空
	Op      string // 出错的操作或方法名，可为空
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ScriptTypeError 报告该错误在脚本侧是否应以 TypeError 形式抛出。
// 接收者检查类错误对应脚本语义上的类型错误，其余按通用错误抛出。
func (e *Error) ScriptTypeError() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ErrNotAnObject, ErrWrongType, ErrCalledOnPrototype:
		return true
	}
	return false
}

// KindOf 提取错误的绑定层类别。非绑定层错误返回空串。
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
