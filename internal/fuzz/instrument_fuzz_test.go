package fuzztests

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/ident"
	"fulltrace/internal/instrument"
	"fulltrace/internal/testkit"
	"fulltrace/internal/tracelog"
)

const maxFuzzInput = 1 << 16 // 64 KiB

func FuzzParseTarget(f *testing.F) {
	for _, seed := range []string{"foo.c:10", "src/a/b.c:1", `C:\x\y.c:7`, ":3", "foo.c:", "foo.c:0", "é.c:12"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		key, err := instrument.ParseTarget(in)
		if err != nil {
			return
		}
		again, err := instrument.ParseTarget(key)
		if err != nil {
			t.Fatalf("canonical key %q rejected: %v", key, err)
		}
		if again != key {
			t.Fatalf("ParseTarget not idempotent: %q -> %q -> %q", in, key, again)
		}
	})
}

func FuzzCorrelate(f *testing.F) {
	f.Add([]byte("foo.c:9\nfoo.c:10\n0\n1\n"))
	f.Add([]byte("\nfoo.c:10\n\n3"))
	f.Fuzz(func(t *testing.T, input []byte) {
		entries, err := tracelog.Correlate(strings.NewReader(string(input)))
		if err != nil {
			return
		}
		numeric := 0
		for _, line := range strings.Split(string(input), "\n") {
			if _, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32); err == nil {
				numeric++
			}
		}
		if len(entries) != numeric {
			t.Fatalf("entries = %d, numeric lines = %d", len(entries), numeric)
		}
	})
}

func FuzzInstrumentModule(f *testing.F) {
	addModuleSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		m := parseQuietly(string(input))
		if m == nil {
			return
		}
		pass := instrument.New(instrument.Options{Store: &ident.MemStore{}, Capacity: 1 << 20})
		if err := pass.Init(m); err != nil {
			return // конфликтующее объявление trace_value
		}
		if _, _, err := pass.RunOnModule(context.Background(), allLocations(m)); err != nil {
			t.Fatalf("run: %v", err)
		}
		if err := pass.Finish(); err != nil {
			t.Fatalf("finish: %v", err)
		}
		if err := testkit.CheckModuleInvariants(m, instrument.LoggerName, 1<<20); err != nil {
			t.Fatalf("invariants: %v", err)
		}
	})
}

// parseQuietly treats parser panics on garbage as rejected input.
func parseQuietly(src string) (m *ir.Module) {
	defer func() {
		if recover() != nil {
			m = nil
		}
	}()
	m, err := asm.ParseString("fuzz.ll", src)
	if err != nil {
		return nil
	}
	return m
}

// allLocations targets every source line the module mentions.
func allLocations(m *ir.Module) instrument.Targets {
	var raw []string
	for _, fn := range m.Funcs {
		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				if loc := debugloc.Resolve(inst); loc.Valid() {
					raw = append(raw, loc.Key())
				}
			}
		}
	}
	targets, _ := instrument.ParseTargets(raw)
	return targets
}
