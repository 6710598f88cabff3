// pflow compiles and executes declarative JSON/YAML workflow graphs
// (the Workflow IR) against a pluggable registry of node types, with
// optional LLM-assisted self-repair when validation or execution fails.
//
// A minimal program:
//
//	reg := pflow.NewRegistry()
//	reg.Register("http.get", func() pflow.RegistryNode { return httpNode{} }, "performs a GET request")
//
//	engine := pflow.NewEngine(pflow.EngineConfig{Registry: reg})
//	wf, _ := pflow.ParseWorkflow(irBytes)
//	result, err := engine.ExecuteWorkflow(ctx, wf, params, pflow.ExecuteOptions{})
package pflow
