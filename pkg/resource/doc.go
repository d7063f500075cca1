// Package resource is the transport-agnostic façade over the query and
// mutation engines. A transport decodes a request into an OperationRequest,
// calls Bridge.Execute, and maps the typed ResultStatus of the outcome back
// onto its own wire format.
package resource
