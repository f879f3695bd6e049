package macro

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/schema"
)

// descriptorSnapshot is the on-disk representation of one registered macro
// edge: its original source text plus the argument types RegisterMacroEdge
// inferred for it. Re-registering from source, rather than trying to
// serialize the expansion AST directly, keeps the snapshot format stable
// across gqlparser/v2 AST changes.
type descriptorSnapshot struct {
	SourceText string            `msgpack:"source"`
	ArgTypes   map[string]string `msgpack:"arg_types"`
}

// Snapshot encodes every registered macro edge's source text and argument
// types as msgpack. LoadSnapshot re-registers each macro from that source
// text, so loading a snapshot re-parses every definition. No CLI command
// calls Snapshot or LoadSnapshot.
func (r *Registry) Snapshot() ([]byte, error) {
	names := make([]string, 0, len(r.byBase))
	for base := range r.byBase {
		names = append(names, base)
	}
	sort.Strings(names)

	var snapshots []descriptorSnapshot
	for _, base := range names {
		byName := r.byBase[base]
		edgeNames := make([]string, 0, len(byName))
		for name := range byName {
			edgeNames = append(edgeNames, name)
		}
		sort.Strings(edgeNames)
		for _, name := range edgeNames {
			d := byName[name]
			argTypes := make(map[string]string, len(d.MacroArgs))
			for argName, t := range d.MacroArgs {
				argTypes[argName] = schema.TypeString(t)
			}
			snapshots = append(snapshots, descriptorSnapshot{SourceText: d.SourceText, ArgTypes: argTypes})
		}
	}

	data, err := msgpack.Marshal(snapshots)
	if err != nil {
		return nil, compilerr.NewInternalError("macro registry snapshot encoding failed: %v", err)
	}
	return data, nil
}

// LoadSnapshot re-registers every macro edge recorded in data onto registry,
// in the order Snapshot wrote them (base type, then macro edge name, both
// sorted), so conflict-detection rules run identically on reload.
func LoadSnapshot(registry *Registry, data []byte) error {
	var snapshots []descriptorSnapshot
	if err := msgpack.Unmarshal(data, &snapshots); err != nil {
		return compilerr.NewInternalError("macro registry snapshot decoding failed: %v", err)
	}

	for _, snap := range snapshots {
		args := make(map[string]*ast.Type, len(snap.ArgTypes))
		for name, s := range snap.ArgTypes {
			if s == "" {
				args[name] = nil
				continue
			}
			t, err := schema.ParseTypeString(s)
			if err != nil {
				return compilerr.NewInternalError("macro registry snapshot: %v", err)
			}
			args[name] = t
		}
		if _, err := RegisterMacroEdge(registry, snap.SourceText, args); err != nil {
			return err
		}
	}
	return nil
}
