// Package nativehandle provides native handles: a variable-length bundle of
// file descriptors and opaque integers passed between subsystems as one unit.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	nativehandle/
//	├── handle/       Handle type, lifecycle operations, flat layout codec
//	├── errors/       Structured error taxonomy and errno mapping
//	├── resource/     Registry mapping integer ids to owned handles
//	├── hostmod/      wazero host module exposing the registry to guests
//	└── cmd/nhdump/   Decode, build and inspect flat handle layouts
//
// # Quick Start
//
// Create a handle, fill it, and hand out an independent copy:
//
//	h, err := handle.Create(1, 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h.SetFd(0, fd)
//	h.SetInt(0, 42)
//
//	c, err := handle.Copy(h)   // dup()s every descriptor
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handle.Close(h)            // descriptors
//	handle.Delete(h)           // storage
//
// # Guests
//
// Register the host module to let WebAssembly guests work with handles by id:
//
//	table := resource.NewTable(nil)
//	defer table.Close()
//
//	rt := wazero.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	if _, err := hostmod.New(table).Instantiate(ctx, rt); err != nil {
//	    log.Fatal(err)
//	}
package nativehandle
