// Package diag defines the diagnostic model the lowering session reports
// failures with.
//
// A Diagnostic carries a Severity, a stable Code (see codes.go), a short
// message, the source span of the MIR statement or function that failed and
// the name of the function being lowered. Lowering errors are typed values
// in the packages that produce them; the driver classifies them with
// errors.As and turns them into diagnostics, so this package knows nothing
// about layout, ABI or LLVM.
//
// Producers emit through a Reporter, usually a BagReporter over a Bag. A Bag
// is safe for concurrent use because functions are lowered on a worker pool;
// Sort restores a deterministic order before output.
//
// Rendering is limited to the stable single-line form in golden.go, used by
// tests and the CLI's short output. Colour is applied by the CLI.
package diag
