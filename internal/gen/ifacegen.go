package gen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/capnpy/stubgen/pkg/schema"
)

// methodPlan is the resolved shape of one RPC method: its parameters, its
// result representation and the synthetic names of the per-method types.
type methodPlan struct {
	name        string
	params      []*fieldInfo
	results     []*fieldInfo
	requestName string
	resultName  string
	// directRecord is set when the method returns a bare record type; its
	// fields inline into the promise-like result instead of synthesizing a
	// named-fields result.
	directRecord *Entity
}

// syntheticResultNode reports whether a method's result struct is the
// compiler-synthesized named-fields shape rather than a declared record.
// Synthesized param/result structs have no enclosing scope and a "$"-marked
// display name; declared records have both.
func syntheticResultNode(node *schema.Node) bool {
	if node == nil {
		return true
	}
	if uint64(node.ScopeID) == 0 {
		return true
	}
	return strings.Contains(node.LocalName(), "$")
}

// genInterface generates an interface node: its nested types, a calling
// client declaration, per-method request/result types, and a server
// declaration with per-method params/results/context types.
func (g *Generator) genInterface(node *schema.Node) (*Entity, error) {
	if e, err := g.importIfForeign(node); err != nil {
		if IsAlreadyImportedErr(err) {
			return e, nil
		}
		return nil, err
	}
	if e, err := g.lookup(uint64(node.ID)); err == nil {
		return e, nil
	}

	name := sanitizeIdent(node.ShortName())
	scope, err := g.pushScopeFor(name, uint64(node.ID), uint64(node.ScopeID), classHeader(name))
	if err != nil {
		if !IsNoParentScopeErr(err) {
			return nil, err
		}
		g.log.Debugw("interface scope fell back to root", "interface", node.DisplayName)
		scope = g.pushChild(g.root, name, classHeader(name))
		g.scopes[uint64(node.ID)] = scope
	}
	e := g.register(uint64(node.ID), node, name, scope.Parent)

	// Superclasses first. One that cannot be located even through the
	// cross-module search is dropped from the inheritance list; the
	// interface merely becomes less specific.
	var supers []*Entity
	for _, sc := range node.Interface.Superclasses {
		se, serr := g.ensureEntity(uint64(sc.ID))
		if serr != nil {
			g.log.Debugw("dropping unresolvable superclass",
				"interface", node.DisplayName, "superclass", sc.ID, "error", serr)
			continue
		}
		supers = append(supers, se)
	}

	for _, child := range g.module.NestedOf(node) {
		if cerr := g.genNode(child); cerr != nil {
			g.log.Debugw("skipping nested node", "node", child.DisplayName, "error", cerr)
		}
	}

	plans := make([]*methodPlan, 0, len(node.Interface.Methods))
	directSeen := map[string]bool{}
	for i := range node.Interface.Methods {
		plan, perr := g.planMethod(&node.Interface.Methods[i])
		if perr != nil {
			g.popScope(scope)
			return nil, perr
		}
		plans = append(plans, plan)
	}

	selfPath := e.Path()

	// Per-method request and client-side result types live on the
	// interface scope so both views can reference them.
	for _, plan := range plans {
		g.emitRequestClass(scope, selfPath, plan)
		if plan.directRecord != nil && directSeen[plan.resultName] {
			continue
		}
		directSeen[plan.resultName] = true
		g.emitClientResult(scope, selfPath, plan)
	}

	g.emitClient(scope, selfPath, plans, supers)
	g.emitServer(scope, selfPath, plans, supers)

	if hasServerMethods(e, supers) {
		serverUnion := []string{selfPath + "." + affixServer}
		for _, s := range supers {
			serverUnion = append(serverUnion, s.Path()+"."+affixServer)
		}
		scope.Block.AddLine("@staticmethod")
		scope.Block.AddLine(fmt.Sprintf("def _new_client(server: %s) -> %s.Client: ...", unionOf(serverUnion...), selfPath))
	}

	g.popScope(scope)

	g.addAlias(flatViewName(selfPath, affixClient), selfPath+"."+affixClient)
	for _, plan := range plans {
		g.addAlias(flatViewName(selfPath, plan.resultName), selfPath+"."+plan.resultName)
	}
	if scope.Parent.isRoot {
		g.rootOrder = append(g.rootOrder, e)
	}

	g.capBook = append(g.capBook, capEntry{
		Name:       selfPath,
		ClientPath: selfPath + "." + affixClient,
		Depth:      g.interfaceDepth(node, map[uint64]bool{}),
	})
	return e, nil
}

// planMethod resolves one method's parameter and result shapes. A method
// whose parameter or result schema cannot be introspected degrades to an
// empty list for that side rather than aborting the interface.
func (g *Generator) planMethod(m *schema.Method) (*methodPlan, error) {
	plan := &methodPlan{
		name:        sanitizeIdent(m.Name),
		requestName: titleCase(m.Name) + "Request",
		resultName:  titleCase(m.Name) + "Result",
	}

	if paramNode, _, ok := g.nodeByID(uint64(m.ParamStructType)); ok && paramNode.Struct != nil {
		for i := range paramNode.Struct.Fields {
			fi, err := g.resolveField(&paramNode.Struct.Fields[i])
			if err != nil {
				return nil, err
			}
			plan.params = append(plan.params, fi)
		}
	} else {
		g.log.Debugw("method parameters not introspectable", "method", m.Name)
	}

	resultNode, _, ok := g.nodeByID(uint64(m.ResultStructType))
	if !ok || resultNode.Struct == nil {
		g.log.Debugw("method results not introspectable", "method", m.Name)
		return plan, nil
	}

	if !syntheticResultNode(resultNode) {
		record, err := g.ensureEntity(uint64(resultNode.ID))
		if err != nil {
			g.log.Debugw("direct result record did not resolve, treating as named fields",
				"method", m.Name, "error", err)
		} else {
			plan.directRecord = record
			plan.resultName = flatViewName(record.Path(), "") + "Result"
		}
	}
	for i := range resultNode.Struct.Fields {
		fi, err := g.resolveField(&resultNode.Struct.Fields[i])
		if err != nil {
			return nil, err
		}
		plan.results = append(plan.results, fi)
	}
	return plan, nil
}

// emitRequestClass renders the pre-send request object: settable parameter
// members, init overloads for list/record members, and send().
func (g *Generator) emitRequestClass(scope *Scope, selfPath string, plan *methodPlan) {
	req := g.pushChild(scope, plan.requestName, classHeader(plan.requestName))
	for _, fi := range plan.params {
		req.Block.AddLine(fmt.Sprintf("%s: %s | None", fi.name, fi.builderGet()))
	}
	g.emitInitOverloads(req.Block, plan.params)
	req.Block.AddLine(fmt.Sprintf("def send(self) -> %s.%s: ...", selfPath, plan.resultName))
	g.popScope(req)
}

// emitClientResult renders the promise-like result type: output fields at
// their reading-appropriate types, awaitable on itself so members may be
// accessed before the call resolves (promise pipelining).
func (g *Generator) emitClientResult(scope *Scope, selfPath string, plan *methodPlan) {
	res := g.pushChild(scope, plan.resultName, classHeader(plan.resultName))
	for _, fi := range plan.results {
		res.Block.AddLine(fmt.Sprintf("%s: %s", fi.name, fi.readerType()))
	}
	g.needs.typing("Generator")
	g.needs.typing("Any")
	res.Block.AddLine(fmt.Sprintf("def __await__(self) -> Generator[Any, None, %s.%s]: ...", selfPath, plan.resultName))
	g.popScope(res)
}

// emitClient renders the calling-client declaration: one call method plus
// one request-constructor helper per RPC method, extending every ancestor's
// client (or the dynamic capability client when there are none).
func (g *Generator) emitClient(scope *Scope, selfPath string, plans []*methodPlan, supers []*Entity) {
	bases := make([]string, 0, len(supers))
	for _, s := range supers {
		bases = append(bases, s.Path()+"."+affixClient)
	}
	if len(bases) == 0 {
		g.needs.capnpBase = true
		bases = append(bases, "_DynamicCapabilityClient")
	}
	client := g.pushChild(scope, affixClient, classHeader(affixClient, bases...))
	for _, plan := range plans {
		params := make([]string, 0, len(plan.params))
		for _, fi := range plan.params {
			params = append(params, fmt.Sprintf("%s: %s | None = ...", fi.name, fi.clientCall()))
		}
		client.Block.AddLine(defLine(plan.name, params, selfPath+"."+plan.resultName, false))
		client.Block.AddLine(defLine(plan.name+"_request", nil, selfPath+"."+plan.requestName, false))
	}
	g.popScope(client)
}

// emitServer renders the server declaration: per-method NamedTuple result
// shapes, parameter views, settable result views, invocation contexts, the
// abstract server methods, and their context-only variants.
func (g *Generator) emitServer(scope *Scope, selfPath string, plans []*methodPlan, supers []*Entity) {
	bases := make([]string, 0, len(supers))
	for _, s := range supers {
		bases = append(bases, s.Path()+"."+affixServer)
	}
	if len(bases) == 0 {
		g.needs.capnpBase = true
		bases = append(bases, "_DynamicCapabilityServer")
	}
	server := g.pushChild(scope, affixServer, classHeader(affixServer, bases...))
	serverPath := selfPath + "." + affixServer

	for _, plan := range plans {
		methodTitle := titleCase(plan.name)
		tupleName := methodTitle + "ResultTuple"
		paramsName := methodTitle + "Params"
		resultsName := methodTitle + "Results"
		contextName := methodTitle + "CallContext"

		if len(plan.results) > 0 {
			g.needs.typing("NamedTuple")
			tuple := g.pushChild(server, tupleName, classHeader(tupleName, "NamedTuple"))
			var tupleFields []string
			for _, fi := range plan.results {
				fn := tupleSafeName(fi.name)
				tupleFields = append(tupleFields, fn)
				tuple.Block.AddLine(fmt.Sprintf("%s: %s", fn, fi.readerType()))
			}
			g.popScope(tuple)
			g.tupleRegs = append(g.tupleRegs, tupleReg{
				OwnerPath: serverPath,
				TupleName: tupleName,
				Fields:    tupleFields,
			})
		}

		paramsView := g.pushChild(server, paramsName, classHeader(paramsName))
		for _, fi := range plan.params {
			paramsView.Block.AddLine(fmt.Sprintf("%s: %s", fi.name, fi.readerType()))
		}
		g.popScope(paramsView)

		if len(plan.results) > 0 {
			results := g.pushChild(server, resultsName, classHeader(resultsName))
			for _, fi := range plan.results {
				if fi.builderGet() == fi.builderSet() {
					results.Block.AddLine(fmt.Sprintf("%s: %s", fi.name, fi.builderGet()))
					continue
				}
				results.Block.AddLines(propertyLines(fi.name, fi.builderGet(), fi.builderSet())...)
			}
			g.emitInitOverloads(results.Block, plan.results)
			g.popScope(results)
		}

		callCtx := g.pushChild(server, contextName, classHeader(contextName))
		callCtx.Block.AddLine(fmt.Sprintf("params: %s.%s", serverPath, paramsName))
		if len(plan.results) > 0 {
			callCtx.Block.AddLines(
				"@property",
				fmt.Sprintf("def results(self) -> %s.%s: ...", serverPath, resultsName),
			)
		}
		g.popScope(callCtx)

		g.needs.typing("Awaitable")
		params := make([]string, 0, len(plan.params)+2)
		for _, fi := range plan.params {
			params = append(params, fmt.Sprintf("%s: %s", fi.name, fi.readerType()))
		}
		params = append(params, fmt.Sprintf("_context: %s.%s", serverPath, contextName), "**kwargs")
		server.Block.AddLine(defLine(plan.name, params, "Awaitable["+g.serverReturnUnion(serverPath, tupleName, plan)+"]", false))
		server.Block.AddLine(defLine(plan.name+"_context",
			[]string{fmt.Sprintf("context: %s.%s", serverPath, contextName)},
			"Awaitable[None]", false))
	}
	g.popScope(server)
}

// serverReturnUnion computes what a server implementation may return: the
// narrow value for a single output, the positional result tuple, or nothing
// when results were written through the context.
func (g *Generator) serverReturnUnion(serverPath, tupleName string, plan *methodPlan) string {
	if len(plan.results) == 0 {
		return "None"
	}
	tuplePath := serverPath + "." + tupleName
	if len(plan.results) == 1 {
		return unionOf(plan.results[0].readerType(), tuplePath, "None")
	}
	return unionOf(tuplePath, "None")
}

// tupleSafeName avoids colliding with NamedTuple's own reserved members.
func tupleSafeName(name string) string {
	if name == "count" || name == "index" {
		return name + "_"
	}
	return name
}

// hasServerMethods reports whether the interface declares methods itself or
// inherits any, which decides whether the client-factory hook is emitted.
func hasServerMethods(e *Entity, supers []*Entity) bool {
	if e.Node != nil && e.Node.Interface != nil && len(e.Node.Interface.Methods) > 0 {
		return true
	}
	for _, s := range supers {
		if s.Node != nil && s.Node.Interface != nil && len(s.Node.Interface.Methods) > 0 {
			return true
		}
		// Imported superclasses carry no node payload; assume they have
		// methods so the factory stays available.
		if s.Node == nil || s.Node.Interface == nil {
			return true
		}
	}
	return false
}

// interfaceDepth computes the inheritance depth used to order the
// capability-cast overloads most-derived-first: no bases is depth 0, else
// one plus the deepest direct base. A circular base chain is cut by the
// visited set and contributes depth 0 instead of recursing forever.
func (g *Generator) interfaceDepth(node *schema.Node, visiting map[uint64]bool) int {
	if node == nil || node.Interface == nil || len(node.Interface.Superclasses) == 0 {
		return 0
	}
	if visiting[uint64(node.ID)] {
		return 0
	}
	visiting[uint64(node.ID)] = true
	defer delete(visiting, uint64(node.ID))

	deepest := -1
	for _, sc := range node.Interface.Superclasses {
		base, _, ok := g.nodeByID(uint64(sc.ID))
		if !ok {
			continue
		}
		if d := g.interfaceDepth(base, visiting); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// sortedCapBook returns the capability-cast entries ordered most-derived
// first, alphabetical within a depth.
func (g *Generator) sortedCapBook() []capEntry {
	out := make([]capEntry, len(g.capBook))
	copy(out, g.capBook)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth > out[j].Depth
		}
		return out[i].Name < out[j].Name
	})
	return out
}
