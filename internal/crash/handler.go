package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"tg-exchange/internal/logger"
)

// RecoverWithStack 恢复 panic 并记录堆栈，调用方继续运行
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, false)
	}
}

// Recover 与 RecoverWithStack 相同，但会把 panic 交给 onPanic，
// 供调用方把它转换成普通错误
func Recover(moduleName string, onPanic func(v interface{})) {
	if r := recover(); r != nil {
		report(moduleName, r, false)
		if onPanic != nil {
			onPanic(r)
		}
	}
}

// RecoverWithStackAndExit 用于主程序，记录后以非零状态退出
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, true)

		// 给日志系统一些时间写入文件
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// SafeGoroutine 启动一个带有 panic 恢复的 goroutine
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName string, r interface{}, fatal bool) {
	stack := debug.Stack()
	prefix := "PANIC"
	if fatal {
		prefix = "FATAL PANIC"
	}

	logger.Errorf("%s in %s: %v", prefix, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// 同时输出到标准错误，确保在容器日志中能看到
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", prefix, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)

	if fatal {
		logRuntimeInfo()
	}
}

// logRuntimeInfo 记录运行时信息，帮助调试
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf(`
Runtime Information:
- Go version: %s
- Number of CPUs: %d
- Number of goroutines: %d
- Heap allocated: %d KB
- Heap in use: %d KB
- Num GC: %d
`,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.NumGC,
	)

	logger.Error(info)
	fmt.Fprint(os.Stderr, info)
}
