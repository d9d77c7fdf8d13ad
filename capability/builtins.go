package capability

// Capability names used by the default catalog.
const (
	TextProcessing     = "textProcessing"
	CodeAnalysis       = "codeAnalysis"
	DataTransformation = "dataTransformation"
	FileOperations     = "fileOperations"
	NetworkAccess      = "networkAccess"
	WorkflowExecution  = "workflowExecution"
	AsyncExecution     = "asyncExecution"
	Streaming          = "streaming"
)

// Value kinds used by the default catalog.
const (
	KindText   = "text"
	KindJSON   = "json"
	KindCode   = "code"
	KindFile   = "file"
	KindURL    = "url"
	KindStream = "stream"
)

// Default returns the process-wide capability catalog.
// Each call builds a fresh catalog so callers can extend their copy without
// affecting others.
func Default() *Catalog {
	return NewCatalog(
		Definition{
			Name:           TextProcessing,
			Description:    "Transforms, summarizes, or otherwise manipulates text",
			InputKinds:     []string{KindText},
			OutputKinds:    []string{KindText, KindJSON},
			ComposableWith: []string{DataTransformation, Streaming},
		},
		Definition{
			Name:           CodeAnalysis,
			Description:    "Inspects source code and reports structure or findings",
			InputKinds:     []string{KindCode, KindFile},
			OutputKinds:    []string{KindJSON, KindText},
			ComposableWith: []string{TextProcessing, DataTransformation},
		},
		Definition{
			Name:           DataTransformation,
			Description:    "Reshapes structured data between formats",
			InputKinds:     []string{KindJSON, KindText},
			OutputKinds:    []string{KindJSON},
			ComposableWith: []string{FileOperations, WorkflowExecution},
		},
		Definition{
			Name:           FileOperations,
			Description:    "Reads, writes, and moves files",
			InputKinds:     []string{KindFile, KindText, KindJSON},
			OutputKinds:    []string{KindFile, KindText},
			ComposableWith: []string{CodeAnalysis},
		},
		Definition{
			Name:           NetworkAccess,
			Description:    "Fetches remote resources over the network",
			InputKinds:     []string{KindURL, KindJSON},
			OutputKinds:    []string{KindJSON, KindText},
			ComposableWith: []string{DataTransformation, TextProcessing, FileOperations},
		},
		Definition{
			Name:           WorkflowExecution,
			Description:    "Triggers or coordinates other workflows",
			InputKinds:     []string{KindJSON},
			OutputKinds:    []string{KindJSON},
			Requirements:   []string{DataTransformation},
			ComposableWith: []string{AsyncExecution},
		},
		Definition{
			Name:           AsyncExecution,
			Description:    "Runs work in the background and reports completion later",
			InputKinds:     []string{KindJSON},
			OutputKinds:    []string{KindJSON},
			ComposableWith: []string{WorkflowExecution, Streaming},
		},
		Definition{
			Name:        Streaming,
			Description: "Produces incremental output as a stream",
			InputKinds:  []string{KindText, KindJSON},
			OutputKinds: []string{KindStream},
		},
	)
}
