// Package metrics provides the Prometheus collectors of the consensus and
// execution components. Registries are constructed at process start and
// passed down explicitly; there are no hidden singletons.
package metrics

const (
	namespaceConsensus = "consensus"
	namespaceExecution = "execution"

	subsystemCommitRule = "commit_rule"
	subsystemVerifier   = "verifier"
	subsystemExecutor   = "checkpoint_executor"
)
