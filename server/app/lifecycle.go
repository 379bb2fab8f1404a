// Package app 定義應用程式根目錄用以管理長期運行元件的最小生命週期抽象。
package app

import (
	"context"
	"sync"
)

// Component 抽象任何「可啟動 / 可關閉」的長生命週期元件。
// - Run() 應該是阻塞呼叫，直到元件停止為止（正常或錯誤）。
// - Shutdown(ctx) 用於要求優雅關閉；實作方應該尊重 ctx deadline/cancel。
// 典型實例：HTTP Server、DevicePool、Background Worker 等。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// OnShutdown 把「只需要在關閉時收尾」的資源（例如 DevicePool.Close）包成 Component。
// Run 會阻塞到 Shutdown 被呼叫為止。
func OnShutdown(fn func()) Component {
	return &closer{fn: fn, done: make(chan struct{})}
}

type closer struct {
	fn   func()
	once sync.Once
	done chan struct{}
}

func (c *closer) Run() error {
	<-c.done
	return nil
}

func (c *closer) Shutdown(context.Context) error {
	c.once.Do(func() {
		if c.fn != nil {
			c.fn()
		}
		close(c.done)
	})
	return nil
}
