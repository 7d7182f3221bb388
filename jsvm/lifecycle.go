package jsvm

import "sync/atomic"

// State 表示上下文生命周期状态。
type State int32

const (
	StateReady State = iota
	StateClosing
	StateClosed
)

// Lifecycle 提供线程安全的上下文状态管理。
// 用于统一 Close 与使用期操作并发时的状态切换约束。
type Lifecycle struct {
	state atomic.Int32
}

// NewLifecycle 创建生命周期管理器，初始状态为 StateReady。
func NewLifecycle() *Lifecycle {
	l := &Lifecycle{}
	l.state.Store(int32(StateReady))
	return l
}

// State 返回当前状态。
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Alive 报告上下文是否仍可使用。
func (l *Lifecycle) Alive() bool {
	return l.State() == StateReady
}

// CompareAndSwap 尝试原子切换状态。
func (l *Lifecycle) CompareAndSwap(oldState, newState State) bool {
	return l.state.CompareAndSwap(int32(oldState), int32(newState))
}

// Store 强制设置状态。
func (l *Lifecycle) Store(s State) {
	l.state.Store(int32(s))
}
