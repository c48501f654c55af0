package vm

import (
	"errors"

	"github.com/xhub/reshop-sub001/internal/diagnostics"
	"github.com/xhub/reshop-sub001/internal/model"
	"github.com/xhub/reshop-sub001/internal/symbols"
	"github.com/xhub/reshop-sub001/internal/token"
)

// APIFunc selects a model-API call on the object in progress.
type APIFunc byte

const (
	API_ADD_VAR APIFunc = iota
	API_ADD_EQU
	API_ADD_VI_ZERO
	API_ADD_VI_PAIR
	API_SET_OBJVAR
	API_SET_OBJEQU
	API_SET_KIND
	API_SET_FEASIBILITY
	API_MARK_FLIPPED
	API_FINALIZE
	API_OVF_ADD_ARG
	API_OVF_SET_PARAM
	API_OVF_SYNC_PARAMS
	API_OVF_CHECK
	API_OVF_FINALIZE
	API_CCF_ADD_ARG
	API_CCF_SET_PARAM
	API_ATTACH_OVF
)

// Ctor selects an object constructor.
type Ctor byte

const (
	CTOR_NEW_MP Ctor = iota
	CTOR_NEW_NASH
	CTOR_NEW_OVF
	CTOR_NEW_CCF
)

// apiFn mutates the graph through obj. parent is the object obj is nested
// in, nil at top level.
type apiFn func(s *Session, obj, parent Value, args []Value) error

type apiEntry struct {
	Name  string
	Arity int
	Pops  bool // the call ends the object in progress
	fn    apiFn
}

var apiTable = [...]apiEntry{
	API_ADD_VAR:         {"ADD_VAR", 1, false, apiAddVar},
	API_ADD_EQU:         {"ADD_EQU", 1, false, apiAddEqu},
	API_ADD_VI_ZERO:     {"ADD_VI_ZERO", 1, false, apiAddViZero},
	API_ADD_VI_PAIR:     {"ADD_VI_PAIR", 2, false, apiAddViPair},
	API_SET_OBJVAR:      {"SET_OBJVAR", 1, false, apiSetObjVar},
	API_SET_OBJEQU:      {"SET_OBJEQU", 1, false, apiSetObjEqu},
	API_SET_KIND:        {"SET_KIND", 1, false, apiSetKind},
	API_SET_FEASIBILITY: {"SET_FEASIBILITY", 0, false, apiSetFeasibility},
	API_MARK_FLIPPED:    {"MARK_FLIPPED", 1, false, apiMarkFlipped},
	API_FINALIZE:        {"FINALIZE", 0, true, apiFinalize},
	API_OVF_ADD_ARG:     {"OVF_ADD_ARG", 1, false, apiOvfAddArg},
	API_OVF_SET_PARAM:   {"OVF_SET_PARAM", 2, false, apiOvfSetParam},
	API_OVF_SYNC_PARAMS: {"OVF_SYNC_PARAMS", 0, false, apiOvfSyncParams},
	API_OVF_CHECK:       {"OVF_CHECK", 0, false, apiOvfCheck},
	API_OVF_FINALIZE:    {"OVF_FINALIZE", 0, true, apiOvfFinalize},
	API_CCF_ADD_ARG:     {"CCF_ADD_ARG", 1, false, apiCCFAddArg},
	API_CCF_SET_PARAM:   {"CCF_SET_PARAM", 2, false, apiCCFSetParam},
	API_ATTACH_OVF:      {"ATTACH_OVF", 0, false, apiAttachOvf},
}

type ctorEntry struct {
	Name  string
	Arity int
	fn    func(s *Session, args []Value) (Value, error)
}

var ctorTable = [...]ctorEntry{
	CTOR_NEW_MP:   {"NEW_MP", 1, ctorNewMP},
	CTOR_NEW_NASH: {"NEW_NASH", 0, ctorNewNash},
	CTOR_NEW_OVF:  {"NEW_OVF", 2, ctorNewOvf},
	CTOR_NEW_CCF:  {"NEW_CCF", 2, ctorNewCCF},
}

func (f APIFunc) String() string {
	if int(f) < len(apiTable) {
		return apiTable[f].Name
	}
	return "API?"
}

func (c Ctor) String() string {
	if int(c) < len(ctorTable) {
		return ctorTable[c].Name
	}
	return "CTOR?"
}

// CallAPI applies fn to the object in progress. Immediate execution and
// the VM both go through here, so both produce the same journal.
func (s *Session) CallAPI(fn APIFunc, obj, parent Value, args ...Value) error {
	if int(fn) >= len(apiTable) {
		return diagnostics.Bug("unknown API function %d", fn)
	}
	e := apiTable[fn]
	if len(args) != e.Arity {
		return diagnostics.Bug("%s takes %d arguments, got %d", e.Name, e.Arity, len(args))
	}
	return e.fn(s, obj, parent, args)
}

// Construct creates a new object in progress.
func (s *Session) Construct(c Ctor, args ...Value) (Value, error) {
	if int(c) >= len(ctorTable) {
		return Value{}, diagnostics.Bug("unknown constructor %d", c)
	}
	e := ctorTable[c]
	if len(args) != e.Arity {
		return Value{}, diagnostics.Bug("%s takes %d arguments, got %d", e.Name, e.Arity, len(args))
	}
	return e.fn(s, args)
}

// Argument helpers

func mpOf(obj Value) (int, error) {
	if obj.Type != ValMP {
		return 0, diagnostics.Bug("expected an mp in progress, got %s", obj.Type)
	}
	return obj.AsID(), nil
}

func ovfOf(obj Value) (int, error) {
	if obj.Type != ValOvf {
		return 0, diagnostics.Bug("expected an ovf in progress, got %s", obj.Type)
	}
	return obj.AsID(), nil
}

func refArg(args []Value, i int, kind symbols.Kind) (symbols.Ref, error) {
	a := args[i]
	if a.Type != ValRef {
		return symbols.Ref{}, diagnostics.Bug("argument %d is a %s, want a symbol ref", i, a.Type)
	}
	ref := a.AsRef()
	if ref.Kind != kind {
		return symbols.Ref{}, diagnostics.NewError(diagnostics.ErrS002, token.Token{},
			"expected a %s, got a %s", kind, ref.Kind)
	}
	return ref, nil
}

// singleArg reads an argument that has to designate exactly one variable
// or equation. nil stands for no index.
func singleArg(args []Value, i int, kind symbols.Kind) (int, error) {
	if args[i].Type == ValNil {
		return model.NoIndex, nil
	}
	ref, err := refArg(args, i, kind)
	if err != nil {
		return 0, err
	}
	idx, ok := ref.Single()
	if !ok {
		return 0, diagnostics.NewError(diagnostics.ErrR001, token.Token{},
			"expected a single %s, the reference designates %d", kind, ref.Len())
	}
	return idx, nil
}

func numArg(args []Value, i int) (float64, error) {
	v, ok := args[i].Number()
	if !ok {
		return 0, diagnostics.Bug("argument %d is a %s, want a number", i, args[i].Type)
	}
	return v, nil
}

func strArg(args []Value, i int) (string, error) {
	if args[i].Type != ValStr {
		return "", diagnostics.Bug("argument %d is a %s, want a string", i, args[i].Type)
	}
	return args[i].AsStr(), nil
}

// eachIndex applies add to every index designated by args[0].
func eachIndex(args []Value, kind symbols.Kind, add func(int) error) error {
	ref, err := refArg(args, 0, kind)
	if err != nil {
		return err
	}
	for _, idx := range ref.Indices() {
		if err := add(idx); err != nil {
			return modelError(err)
		}
	}
	return nil
}

// Math programs

func apiAddVar(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindVar, func(vi int) error { return s.Graph.AddVar(id, vi) })
}

func apiAddEqu(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindEqu, func(ei int) error { return s.Graph.AddEqu(id, ei) })
}

func apiAddViZero(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindVar, func(vi int) error { return s.Graph.AddViZero(id, vi) })
}

func apiAddViPair(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	equs, err := refArg(args, 0, symbols.KindEqu)
	if err != nil {
		return err
	}
	vars, err := refArg(args, 1, symbols.KindVar)
	if err != nil {
		return err
	}
	if equs.Len() != vars.Len() {
		return diagnostics.NewError(diagnostics.ErrS002, token.Token{},
			"cannot pair %d equations with %d variables", equs.Len(), vars.Len())
	}
	vis := vars.Indices()
	for i, ei := range equs.Indices() {
		if err := s.Graph.AddViPair(id, ei, vis[i]); err != nil {
			return modelError(err)
		}
	}
	return nil
}

func apiSetObjVar(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	vi, err := singleArg(args, 0, symbols.KindVar)
	if err != nil {
		return err
	}
	return modelError(s.Graph.SetObjVar(id, vi))
}

func apiSetObjEqu(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	ei, err := singleArg(args, 0, symbols.KindEqu)
	if err != nil {
		return err
	}
	return modelError(s.Graph.SetObjEqu(id, ei))
}

func apiSetKind(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	if args[0].Type != ValInt {
		return diagnostics.Bug("SET_KIND: argument is a %s", args[0].Type)
	}
	return modelError(s.Graph.SetKind(id, model.ProblemType(args[0].AsInt())))
}

func apiSetFeasibility(s *Session, obj, _ Value, _ []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return modelError(s.Graph.SetFeasibility(id))
}

func apiMarkFlipped(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindEqu, func(ei int) error { return s.Graph.MarkFlipped(id, ei) })
}

func apiFinalize(s *Session, obj, _ Value, _ []Value) error {
	ref := obj.Node()
	if !ref.Valid() {
		return diagnostics.Bug("FINALIZE on a %s", obj.Type)
	}
	return modelError(s.Graph.Finalize(ref))
}

// OVF definitions

func apiOvfAddArg(s *Session, obj, _ Value, args []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindVar, func(vi int) error { return s.Graph.OvfAddArg(id, vi) })
}

func apiOvfSetParam(s *Session, obj, _ Value, args []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	name, err := strArg(args, 0)
	if err != nil {
		return err
	}
	v, err := numArg(args, 1)
	if err != nil {
		return err
	}
	return modelError(s.Graph.OvfSetParam(id, name, v))
}

func apiOvfSyncParams(s *Session, obj, _ Value, _ []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	return modelError(s.Graph.OvfSyncParams(id))
}

func apiOvfCheck(s *Session, obj, _ Value, _ []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	return modelError(s.Graph.OvfCheck(id))
}

func apiOvfFinalize(s *Session, obj, _ Value, _ []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	return modelError(s.Graph.OvfFinalize(id))
}

func apiAttachOvf(s *Session, obj, parent Value, _ []Value) error {
	id, err := ovfOf(obj)
	if err != nil {
		return err
	}
	mp, err := mpOf(parent)
	if err != nil {
		return err
	}
	return modelError(s.Graph.AttachOvf(mp, id))
}

// Composite-function nodes

func apiCCFAddArg(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	return eachIndex(args, symbols.KindVar, func(vi int) error { return s.Graph.AddCCFArg(id, vi) })
}

func apiCCFSetParam(s *Session, obj, _ Value, args []Value) error {
	id, err := mpOf(obj)
	if err != nil {
		return err
	}
	name, err := strArg(args, 0)
	if err != nil {
		return err
	}
	v, err := numArg(args, 1)
	if err != nil {
		return err
	}
	return modelError(s.Graph.SetCCFParam(id, name, v))
}

// Constructors

func ctorNewMP(s *Session, args []Value) (Value, error) {
	if args[0].Type != ValInt {
		return Value{}, diagnostics.Bug("NEW_MP: sense is a %s", args[0].Type)
	}
	mp := s.Graph.NewMP(model.Sense(args[0].AsInt()))
	return MPVal(mp.ID), nil
}

func ctorNewNash(s *Session, _ []Value) (Value, error) {
	return NashVal(s.Graph.NewNash().ID), nil
}

func ctorNewOvf(s *Session, args []Value) (Value, error) {
	name, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	resvar, err := singleArg(args, 1, symbols.KindVar)
	if err != nil {
		return Value{}, err
	}
	ovf, err := s.Graph.NewOvf(name, resvar)
	if err != nil {
		return Value{}, modelError(err)
	}
	return OvfVal(ovf.ID), nil
}

func ctorNewCCF(s *Session, args []Value) (Value, error) {
	name, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	resvar, err := singleArg(args, 1, symbols.KindVar)
	if err != nil {
		return Value{}, err
	}
	mp, err := s.Graph.NewCCF(name, resvar)
	if err != nil {
		return Value{}, modelError(err)
	}
	return MPVal(mp.ID), nil
}

// modelError classifies a graph failure. Definition errors are the
// user's; anything else means the caller broke the object protocol.
func modelError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, model.ErrUnknownOvf), errors.Is(err, model.ErrUnknownParam),
		errors.Is(err, model.ErrMissingParam), errors.Is(err, model.ErrNoArgs):
		return diagnostics.NewError(diagnostics.ErrS010, token.Token{}, "%v", err)
	case errors.Is(err, model.ErrNoObjective), errors.Is(err, model.ErrInvalidTarget):
		return diagnostics.NewError(diagnostics.ErrS002, token.Token{}, "%v", err)
	}
	return diagnostics.Bug("%v", err)
}
