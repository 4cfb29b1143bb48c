// Package hostmod exposes a handle registry to WebAssembly guests as a
// wazero host module.
//
// Guests address handles by registry id. Every function returns a
// non-negative result on success and a negative errno on failure:
//
//	create(num_fds i32, num_ints i32) -> id i32
//	num_fds(id i32) -> i32
//	num_ints(id i32) -> i32
//	get_int(id i32, idx i32) -> i64      zero-extended value, or -errno
//	set_int(id i32, idx i32, v i32) -> i32
//	copy(id i32) -> id i32
//	close(id i32) -> i32
//	delete(id i32) -> i32                forgets the handle, fds stay open
//	layout(id i32, ptr i32, len i32) -> i32
//
// layout writes the flat handle layout into the caller's memory and returns
// its size. When len is too small nothing is written and the required size
// is returned, so guests can size a buffer first.
package hostmod

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/nativehandle/errors"
	"github.com/wippyai/nativehandle/handle"
	"github.com/wippyai/nativehandle/resource"
)

// ModuleName is the import module name guests link against.
const ModuleName = "native_handle"

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// Host serves guest calls against a registry.
type Host struct {
	table *resource.Table
}

// New creates a host over table. The table stays owned by the caller.
func New(table *resource.Table) *Host {
	return &Host{table: table}
}

// Table returns the registry guests operate on.
func (h *Host) Table() *resource.Table {
	return h.table
}

type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func (h *Host) funcs() []hostFunc {
	return []hostFunc{
		{name: "create", fn: h.create, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "num_fds", fn: h.numFds, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "num_ints", fn: h.numInts, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "get_int", fn: h.getInt, params: []api.ValueType{i32, i32}, results: []api.ValueType{i64}},
		{name: "set_int", fn: h.setInt, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "copy", fn: h.copy, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "close", fn: h.close, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "delete", fn: h.delete, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "layout", fn: h.layout, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}},
	}
}

// Instantiate registers the host module in rt.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, f := range h.funcs() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidArgument, err, "instantiate "+ModuleName)
	}
	return mod, nil
}

// WriteLayout writes the flat layout of hd into mem at ptr.
func WriteLayout(mem api.Memory, ptr uint32, hd *handle.Handle) error {
	if mem == nil {
		return errors.InvalidArgument(errors.PhaseEncode, "caller has no memory")
	}
	b, err := hd.MarshalBinary()
	if err != nil {
		return err
	}
	if !mem.Write(ptr, b) {
		return errors.New(errors.PhaseEncode, errors.KindInvalidArgument).
			Value(ptr).
			Detail("layout of %d bytes at %d exceeds memory size %d", len(b), ptr, mem.Size()).
			Build()
	}
	return nil
}

func status(err error) uint64 {
	return api.EncodeI32(errors.Code(err))
}

func fail(op string, err error) uint64 {
	Logger().Debug("guest call failed", zap.String("func", op), zap.Error(err))
	return status(err)
}

func (h *Host) lookup(id uint32) (*handle.Handle, error) {
	hd, ok := h.table.Get(resource.ID(id))
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "handle", id)
	}
	return hd, nil
}

func (h *Host) create(_ context.Context, _ api.Module, stack []uint64) {
	numFds := int(api.DecodeI32(stack[0]))
	numInts := int(api.DecodeI32(stack[1]))

	hd, err := h.table.Manager().Create(numFds, numInts)
	if err != nil {
		stack[0] = fail("create", err)
		return
	}
	id, err := h.table.Insert(hd)
	if err != nil {
		stack[0] = fail("create", err)
		return
	}
	stack[0] = api.EncodeI32(int32(id))
}

func (h *Host) numFds(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.lookup(api.DecodeU32(stack[0]))
	if err != nil {
		stack[0] = fail("num_fds", err)
		return
	}
	stack[0] = api.EncodeI32(int32(hd.NumFds()))
}

func (h *Host) numInts(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.lookup(api.DecodeU32(stack[0]))
	if err != nil {
		stack[0] = fail("num_ints", err)
		return
	}
	stack[0] = api.EncodeI32(int32(hd.NumInts()))
}

func (h *Host) getInt(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.lookup(api.DecodeU32(stack[0]))
	if err != nil {
		stack[0] = api.EncodeI64(int64(errors.Code(err)))
		return
	}
	v, ok := hd.Int(int(api.DecodeI32(stack[1])))
	if !ok {
		err = errors.InvalidArgument(errors.PhaseHost, "integer slot %d out of range", api.DecodeI32(stack[1]))
		Logger().Debug("guest call failed", zap.String("func", "get_int"), zap.Error(err))
		stack[0] = api.EncodeI64(int64(errors.Code(err)))
		return
	}
	stack[0] = api.EncodeI64(int64(uint32(v)))
}

func (h *Host) setInt(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.lookup(api.DecodeU32(stack[0]))
	if err == nil {
		err = hd.SetInt(int(api.DecodeI32(stack[1])), api.DecodeI32(stack[2]))
	}
	if err != nil {
		stack[0] = fail("set_int", err)
		return
	}
	stack[0] = 0
}

func (h *Host) copy(_ context.Context, _ api.Module, stack []uint64) {
	id := resource.ID(api.DecodeU32(stack[0]))
	src, ok := h.table.Borrow(id)
	if !ok {
		stack[0] = fail("copy", errors.NotFound(errors.PhaseHost, "handle", uint32(id)))
		return
	}
	defer h.table.Return(id)

	mgr := h.table.Manager()
	dst, err := mgr.Copy(src)
	if err != nil {
		stack[0] = fail("copy", err)
		return
	}
	newID, err := h.table.Insert(dst)
	if err != nil {
		_ = mgr.Close(dst)
		_ = mgr.Delete(dst)
		stack[0] = fail("copy", err)
		return
	}
	stack[0] = api.EncodeI32(int32(newID))
}

func (h *Host) close(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.lookup(api.DecodeU32(stack[0]))
	if err == nil {
		err = h.table.Manager().Close(hd)
	}
	if err != nil {
		stack[0] = fail("close", err)
		return
	}
	stack[0] = 0
}

func (h *Host) delete(_ context.Context, _ api.Module, stack []uint64) {
	hd, err := h.table.Remove(resource.ID(api.DecodeU32(stack[0])))
	if err == nil {
		err = h.table.Manager().Delete(hd)
	}
	if err != nil {
		stack[0] = fail("delete", err)
		return
	}
	stack[0] = 0
}

func (h *Host) layout(_ context.Context, mod api.Module, stack []uint64) {
	id := resource.ID(api.DecodeU32(stack[0]))
	ptr := api.DecodeU32(stack[1])
	size := api.DecodeU32(stack[2])

	hd, ok := h.table.Borrow(id)
	if !ok {
		stack[0] = fail("layout", errors.NotFound(errors.PhaseHost, "handle", uint32(id)))
		return
	}
	defer h.table.Return(id)

	need := hd.LayoutSize()
	if int(size) < need {
		stack[0] = api.EncodeI32(int32(need))
		return
	}
	if err := WriteLayout(mod.Memory(), ptr, hd); err != nil {
		stack[0] = fail("layout", err)
		return
	}
	stack[0] = api.EncodeI32(int32(need))
}
