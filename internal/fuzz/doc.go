// Package fuzztests houses Go fuzz harnesses for the instrumentation path:
// target parsing, trace-id log correlation and the pass itself over
// arbitrary textual IR. The goal is to smoke test robustness and to check
// that any module the pass accepts stays well formed afterwards.
//
// Назначение: прогонять байты через ParseTarget, Correlate и Pass.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/instrument, internal/tracelog, internal/debugloc,
// internal/testkit, github.com/llir/llvm/asm.
package fuzztests
