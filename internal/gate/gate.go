package gate

import (
	"errors"
	"sync"
)

// ErrAlreadyBusy 已有变更操作在等待账本确认
var ErrAlreadyBusy = errors.New("another operation is in flight")

// Gate 变更操作互斥门, 只有 idle 和 busy 两种状态, 不排队
type Gate struct {
	mu       sync.Mutex
	busy     bool
	onChange func(busy bool)
}

// New 创建互斥门, onChange 在状态变化时回调, 可为 nil
func New(onChange func(busy bool)) *Gate {
	return &Gate{onChange: onChange}
}

// TryAcquire 尝试进入 busy 状态, 已忙时立即返回 ErrAlreadyBusy
func (g *Gate) TryAcquire() error {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		return ErrAlreadyBusy
	}
	g.busy = true
	g.mu.Unlock()

	g.notify(true)
	return nil
}

// Release 无条件恢复 idle 状态
func (g *Gate) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()

	g.notify(false)
}

// IsBusy 是否有操作在进行中
func (g *Gate) IsBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

func (g *Gate) notify(busy bool) {
	if g.onChange != nil {
		g.onChange(busy)
	}
}
