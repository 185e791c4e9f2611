/*
Package workflow implements the multi-agent coordination loop at the
heart of the system.

The Coordinator is a pure routing policy: given the current
WorkflowState it decides whether to search internal documentation,
search the open web, or synthesize the final answer. The Engine drives
the loop (decide, dispatch, fold the outcome into state) until the
terminal synthesis step, bounded by a configured iteration maximum.

Routing policy, first match wins:

 1. iteration at the maximum: synthesize (forced termination)
 2. internal search not attempted yet: search internal
 3. internal evidence insufficient and web not used yet: search web
 4. otherwise: synthesize

Search agent failures degrade to empty evidence and the loop continues;
a synthesis failure is fatal and surfaced to the caller.
*/
package workflow
