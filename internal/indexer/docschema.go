package indexer

import "encoding/json"

// This file declares the Go shape of the doc-JSON blob the external
// extractor produces, modeled directly on rustdoc_types::Crate as seen
// driving the parsing in rustdoc_parser.rs. Externally tagged enums (the
// Rust source's serde default) decode as a JSON object with exactly one
// recognized key; each Go struct below exposes one optional field per
// variant actually consumed by the indexer.

// DocID is the opaque identifier rustdoc assigns to every item.
type DocID string

// DocBlob is the top-level document produced for one package.
type DocBlob struct {
	Root  DocID                  `json:"root"`
	Index map[DocID]Item         `json:"index"`
	Paths map[DocID]ItemSummary  `json:"paths"`
}

// ItemSummary is an entry in the blob's path table: every item's
// crate-qualified path segments, restricted by CrateID==0 to local items.
type ItemSummary struct {
	CrateID int      `json:"crate_id"`
	Path    []string `json:"path"`
	Kind    string   `json:"kind"`
}

// Span is a 1-based inclusive source location.
type Span struct {
	Filename string `json:"filename"`
	Begin    [2]int `json:"begin"`
	End      [2]int `json:"end"`
}

// Item is one entry in the blob's index, covering every item kind; Inner
// carries the kind-specific payload as a raw externally tagged enum so
// callers decode only the variant they need.
type Item struct {
	ID         DocID           `json:"id"`
	CrateID    int             `json:"crate_id"`
	Name       *string         `json:"name"`
	Span       *Span           `json:"span"`
	Visibility json.RawMessage `json:"visibility"`
	Docs       *string         `json:"docs"`
	Inner      map[string]json.RawMessage `json:"inner"`
}

// IsPublic interprets the visibility field: the string "public" is public,
// everything else (default/crate/restricted) is private.
func (it Item) IsPublic() bool {
	var s string
	if err := json.Unmarshal(it.Visibility, &s); err == nil {
		return s == "public"
	}
	return false
}

func (it Item) itemName() string {
	if it.Name == nil {
		return ""
	}
	return *it.Name
}

// Type is a reference to a Rust type, covering only the variants the
// canonical-path and signature rules need to resolve.
type Type struct {
	ResolvedPath *ResolvedPath `json:"resolved_path,omitempty"`
	Generic      *string       `json:"generic,omitempty"`
	Primitive    *string       `json:"primitive,omitempty"`
}

// ResolvedPath names a concrete type by id, with the path segments rustdoc
// already resolved for it.
type ResolvedPath struct {
	ID   DocID  `json:"id"`
	Name string `json:"path"`
}

// DisplayName renders a best-effort human name for a Type, used both for
// generic parameter rendering and ImplBlock.ForPath fallback.
func (t Type) DisplayName() string {
	switch {
	case t.ResolvedPath != nil:
		return t.ResolvedPath.Name
	case t.Generic != nil:
		return *t.Generic
	case t.Primitive != nil:
		return *t.Primitive
	default:
		return "_"
	}
}

// ModuleInner is the "module" variant's payload.
type ModuleInner struct {
	Items []DocID `json:"items"`
}

// StructInner is the "struct" variant's payload.
type StructInner struct {
	Generics Generics        `json:"generics"`
	Kind     json.RawMessage `json:"kind"`
}

// StructFieldIDs extracts the field item ids regardless of whether the
// struct is a plain (named-field), tuple, or unit struct.
func (s StructInner) StructFieldIDs() []DocID {
	var plain struct {
		Plain struct {
			Fields []DocID `json:"fields"`
		} `json:"plain"`
	}
	if err := json.Unmarshal(s.Kind, &plain); err == nil && len(plain.Plain.Fields) > 0 {
		return plain.Plain.Fields
	}
	var tuple struct {
		Tuple []*DocID `json:"tuple"`
	}
	if err := json.Unmarshal(s.Kind, &tuple); err == nil && len(tuple.Tuple) > 0 {
		ids := make([]DocID, 0, len(tuple.Tuple))
		for _, id := range tuple.Tuple {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		return ids
	}
	return nil
}

// EnumInner is the "enum" variant's payload.
type EnumInner struct {
	Generics Generics `json:"generics"`
	Variants []DocID  `json:"variants"`
}

// TraitInner is the "trait" variant's payload.
type TraitInner struct {
	Generics Generics `json:"generics"`
	IsUnsafe bool     `json:"is_unsafe"`
	Items    []DocID  `json:"items"`
}

// FunctionInner is the "function" variant's payload.
type FunctionInner struct {
	Decl     FnDecl         `json:"decl"`
	Generics Generics       `json:"generics"`
	Header   FunctionHeader `json:"header"`
}

// FnDecl carries the argument list and return type.
type FnDecl struct {
	Inputs [][2]json.RawMessage `json:"inputs"`
	Output *Type                `json:"output"`
}

// ArgNames returns just the argument names from Inputs, ignoring types
// (signature rendering never spells out argument types, per §4.6.5).
func (d FnDecl) ArgNames() []string {
	names := make([]string, 0, len(d.Inputs))
	for _, pair := range d.Inputs {
		var name string
		if err := json.Unmarshal(pair[0], &name); err == nil {
			names = append(names, name)
		}
	}
	return names
}

// FunctionHeader carries the qualifiers signature rendering needs.
type FunctionHeader struct {
	IsConst  bool `json:"is_const"`
	IsAsync  bool `json:"is_async"`
	IsUnsafe bool `json:"is_unsafe"`
}

// ImplInner is the "impl" variant's payload.
type ImplInner struct {
	IsUnsafe bool            `json:"is_unsafe"`
	Generics Generics        `json:"generics"`
	ForType  Type            `json:"for"`
	Trait    *TraitReference `json:"trait"`
	Items    []DocID         `json:"items"`
}

// TraitReference names the trait a trait-impl implements.
type TraitReference struct {
	ID   DocID  `json:"id"`
	Name string `json:"path"`
}

// ConstantInner, StaticInner, TypeAliasInner carry only what the indexer
// reads: nothing for constants, is_mutable for statics, and the generics
// of a type alias for signature rendering.
type ConstantInner struct{}
type StaticInner struct {
	IsMutable bool `json:"is_mutable"`
}
type TypeAliasInner struct {
	Generics Generics `json:"generics"`
}

// StructFieldInner is the "struct_field" variant's payload: the field's
// type, unused beyond confirming the item is a field.
type StructFieldInner struct {
	Type Type `json:"type"`
}

// VariantInner marks an enum variant; no fields are needed beyond its
// presence as an item kind.
type VariantInner struct{}

// Generics carries the type-parameter list used for `<G...>` rendering.
type Generics struct {
	Params []GenericParamDef `json:"params"`
}

// GenericParamDef is one generic parameter; rendering only needs its name.
type GenericParamDef struct {
	Name string `json:"name"`
}

// ParamNames joins generic parameter names, skipping rustdoc's synthetic
// lifetime parameters (conventionally named "'_" or starting with "'").
func (g Generics) ParamNames() []string {
	names := make([]string, 0, len(g.Params))
	for _, p := range g.Params {
		if len(p.Name) > 0 && p.Name[0] == '\'' {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}
