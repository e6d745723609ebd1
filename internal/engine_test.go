package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gnolang/cprop/internal/analysis/constprop"
	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

const straightDoc = `functions:
  - name: straight
    blocks:
      - name: entry
        instrs:
          - {def: x, op: alloca}
          - {op: store, args: [5, x]}
          - {def: t1, op: load, args: [x]}
          - {def: t2, op: add, args: [t1, 3]}
          - {op: ret, args: [t2]}
  - name: dead
    blocks:
      - name: entry
        instrs:
          - {op: ret}
      - name: island
        instrs:
          - {op: ret}
`

func writeIR(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine := NewEngine(constprop.Options{}, 0, nil)
	assert.Equal(t, 1, engine.workers)
	assert.NotNil(t, engine.logger)
	assert.Nil(t, engine.cache)
}

func TestEngine_IgnoreFunction(t *testing.T) {
	t.Parallel()

	engine := &Engine{}
	engine.IgnoreFunction("dead")
	assert.True(t, engine.ignoredFuncs["dead"])
}

func TestEngine_RunSource(t *testing.T) {
	t.Parallel()

	engine := NewEngine(constprop.Options{}, 2, nil)
	res, err := engine.RunSource(context.Background(), []byte(straightDoc))
	require.NoError(t, err)
	require.Len(t, res.Functions, 2)

	straight := res.Functions[0]
	assert.Equal(t, "straight", straight.Function.Name)
	assert.Equal(t, []constprop.Entry{
		{Line: 6, Slot: "x", Value: 5},
		{Line: 8, Slot: "t1", Value: 5},
		{Line: 9, Slot: "t2", Value: 8},
	}, straight.Report.Blocks[0].Constants)
	assert.Equal(t, 2, straight.Summary.Folded)
	assert.Empty(t, straight.Unreachable)

	want := `define straight {
entry:
  %x = alloca
  store 5, %x
  ret 8
}
`
	assert.Equal(t, want, straight.Function.String())

	dead := res.Functions[1]
	assert.Equal(t, []string{"island"}, dead.Unreachable)
	assert.False(t, dead.Report.Blocks[1].Executed)
}

func TestEngine_RunSourceCleanup(t *testing.T) {
	t.Parallel()

	engine := NewEngine(constprop.Options{Cleanup: true}, 1, nil)
	engine.IgnoreFunction("dead")

	res, err := engine.RunSource(context.Background(), []byte(straightDoc))
	require.NoError(t, err)
	require.Len(t, res.Functions, 1)

	want := `define straight {
entry:
  ret 8
}
`
	assert.Equal(t, want, res.Functions[0].Function.String())
}

func TestEngine_RunSourceInvalid(t *testing.T) {
	t.Parallel()

	engine := NewEngine(constprop.Options{}, 1, nil)

	_, err := engine.RunSource(context.Background(), []byte("functions: [{name: f, blocks: []}]\n"))
	assert.ErrorContains(t, err, "no blocks")

	_, err = engine.RunSource(context.Background(), []byte("functions: {"))
	assert.Error(t, err)
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeIR(t, dir, "straight.ir.yaml", straightDoc)

	engine := NewEngine(constprop.Options{}, 1, nil)
	engine.EnableCache()

	first, err := engine.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Filename)

	second, err := engine.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = engine.Run(context.Background(), filepath.Join(dir, "missing.ir.yaml"))
	assert.Error(t, err)
}

func TestEngine_RunFunctionsKeepsOrder(t *testing.T) {
	t.Parallel()

	var fns []*ir.Function
	for i := 0; i < 16; i++ {
		b := ir.NewBuilder(fmt.Sprintf("f%d", i))
		b.Block("entry").
			Binary("v", ir.OpMul, b.Lit(int64(i)), b.Lit(2)).
			Ret(b.Ref("v"))
		fn, err := b.Build()
		require.NoError(t, err)
		fns = append(fns, fn)
	}

	engine := NewEngine(constprop.Options{}, 4, nil)
	results, err := engine.RunFunctions(context.Background(), fns)
	require.NoError(t, err)
	require.Len(t, results, len(fns))

	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("f%d", i), res.Function.Name)
		require.Len(t, res.Report.Blocks[0].Constants, 1)
		assert.Equal(t, int64(i*2), res.Report.Blocks[0].Constants[0].Value)
	}
}

func TestEngine_RunFunctionsWithoutBuilder(t *testing.T) {
	t.Parallel()

	slots := ir.NewSlotTable()
	v := slots.Intern("v")
	entry := &ir.Block{Name: "entry", Instrs: []*ir.Instruction{
		{Kind: ir.KindBinary, Op: ir.OpMul, Def: v, Args: []ir.Operand{ir.Lit(6), ir.Lit(7)}, Line: 1},
		{Kind: ir.KindBranch, Def: ir.NoSlot, Line: 2},
	}}
	exit := &ir.Block{Name: "exit", Instrs: []*ir.Instruction{
		{Kind: ir.KindReturn, Def: ir.NoSlot, Args: []ir.Operand{ir.Ref(v)}, Line: 3},
	}}
	entry.Succs = []*ir.Block{exit}
	exit.Preds = []*ir.Block{entry}
	fn := &ir.Function{Name: "manual", Blocks: []*ir.Block{entry, exit}, Slots: slots}
	require.NoError(t, fn.Validate())

	engine := NewEngine(constprop.Options{}, 1, nil)
	var results []FunctionResult
	var err error
	require.NotPanics(t, func() {
		results, err = engine.RunFunctions(context.Background(), []*ir.Function{fn})
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Unreachable)
	assert.Equal(t, "define manual {\nentry:\n  br label %exit\n\nexit:\n  ret 42\n}\n", results[0].Function.String())
}

func TestEngine_RunFunctionsCancelled(t *testing.T) {
	t.Parallel()

	b := ir.NewBuilder("f")
	b.Block("entry").Ret()
	fn, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(constprop.Options{}, 1, nil)
	_, err = engine.RunFunctions(ctx, []*ir.Function{fn})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_DebugTrace(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	traced := 0
	engine := NewEngine(constprop.Options{
		Trace: func(*ir.Block, lattice.AbstractState) { traced++ },
	}, 1, zap.New(core))
	engine.IgnoreFunction("dead")

	_, err := engine.RunSource(context.Background(), []byte(straightDoc))
	require.NoError(t, err)

	updates := logs.FilterMessage("out state updated").All()
	require.NotEmpty(t, updates)
	assert.Equal(t, len(updates), traced)
	assert.Equal(t, "entry", updates[0].ContextMap()["block"])
	assert.Len(t, logs.FilterMessage("function processed").All(), 1)
}

func TestEngine_Watch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	results := make(chan *FileResult, 8)

	engine := NewEngine(constprop.Options{}, 1, nil)
	engine.OnResult = func(res *FileResult, err error) {
		if err == nil {
			results <- res
		}
	}
	require.NoError(t, engine.StartWatching(context.Background(), dir))
	defer engine.StopWatching()
	assert.Equal(t, []string{dir}, engine.WatchedDirs())

	assert.ErrorIs(t, engine.StartWatching(context.Background(), dir), errAlreadyWatching)

	writeIR(t, dir, "notes.txt", "not ir")
	path := writeIR(t, dir, "straight.ir.yaml", straightDoc)

	select {
	case res := <-results:
		assert.Equal(t, path, res.Filename)
		assert.Len(t, res.Functions, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no result from watcher")
	}
}

func constantsOf(t *testing.T, res FunctionResult, block string) map[string]int64 {
	t.Helper()
	for _, b := range res.Report.Blocks {
		if b.Block != block {
			continue
		}
		out := make(map[string]int64, len(b.Constants))
		for _, e := range b.Constants {
			out[e.Slot] = e.Value
		}
		return out
	}
	t.Fatalf("no block %s in %s", block, res.Report.Function)
	return nil
}

func TestEngine_Scenarios(t *testing.T) {
	t.Parallel()

	engine := NewEngine(constprop.Options{Cleanup: true}, 2, nil)
	res, err := engine.Run(context.Background(), filepath.Join("testdata", "scenarios.ir.yaml"))
	require.NoError(t, err)
	require.Len(t, res.Functions, 3)

	straight, diverging, unresolved := res.Functions[0], res.Functions[1], res.Functions[2]

	t.Run("straight line", func(t *testing.T) {
		assert.Equal(t, map[string]int64{"x": 5, "t1": 5, "t2": 8}, constantsOf(t, straight, "entry"))
		assert.Equal(t, "define straight {\nentry:\n  ret 8\n}\n", straight.Function.String())
	})

	t.Run("diverging branches", func(t *testing.T) {
		join := constantsOf(t, diverging, "join")
		assert.Equal(t, int64(2), join["x"])
		assert.Equal(t, int64(2), join["r"])
		assert.False(t, diverging.Report.Blocks[2].Executed, "else is never taken")
	})

	t.Run("unresolved condition", func(t *testing.T) {
		join := constantsOf(t, unresolved, "join")
		assert.NotContains(t, join, "x")
		assert.NotContains(t, join, "r")
		for _, b := range unresolved.Report.Blocks {
			assert.True(t, b.Executed, b.Block)
		}
	})
}

func TestEngine_StopWatchingClearsDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	engine := NewEngine(constprop.Options{}, 1, nil)
	require.NoError(t, engine.StartWatching(context.Background(), dir))
	assert.Equal(t, []string{dir}, engine.WatchedDirs())

	require.NoError(t, engine.StopWatching())
	assert.Nil(t, engine.WatchedDirs())
	assert.NoError(t, engine.StopWatching())
}
